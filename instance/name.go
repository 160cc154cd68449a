// Package instance parses and represents Cloud SQL-style instance
// connection names.
package instance

import (
	"fmt"
	"strings"
)

// ConnName is an immutable "project:region:instance" triple identifying
// a managed database instance without exposing its network coordinates.
type ConnName struct {
	project  string
	region   string
	instance string
}

// ParseConnName splits a connection name of the form
// "PROJECT_ID:REGION_ID:INSTANCE_ID" into its three fields. It rejects
// any input whose colon-delimited field count is not exactly three.
func ParseConnName(cn string) (ConnName, error) {
	fields := strings.Split(cn, ":")
	if len(fields) != 3 {
		return ConnName{}, fmt.Errorf(
			"invalid instance connection name %q: expected format "+
				"\"PROJECT_ID:REGION_ID:INSTANCE_ID\"", cn)
	}
	return ConnName{project: fields[0], region: fields[1], instance: fields[2]}, nil
}

// Project returns the project ID field.
func (c ConnName) Project() string { return c.project }

// Region returns the region ID field.
func (c ConnName) Region() string { return c.region }

// Name returns the instance ID field.
func (c ConnName) Name() string { return c.instance }

// String returns the original "project:region:instance" form.
func (c ConnName) String() string {
	return fmt.Sprintf("%s:%s:%s", c.project, c.region, c.instance)
}

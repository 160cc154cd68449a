package errtype

import (
	"fmt"

	"github.com/pkg/errors"
)

// reasonMessages maps a control-plane error reason to a function that
// builds the remediation text for a given project. Structured as a
// table, rather than an if/else chain, so a new reason can be added
// without restructuring Classify.
var reasonMessages = map[string]func(projectID string) string{
	"accessNotConfigured": func(projectID string) string {
		return fmt.Sprintf(
			"the Cloud SQL Admin API is not enabled for project %q; enable it at "+
				"https://console.cloud.google.com/apis/api/sqladmin.googleapis.com/overview?project=%s",
			projectID, projectID)
	},
	"notAuthorized": func(projectID string) string {
		return fmt.Sprintf(
			"the Cloud SQL instance does not exist, or the caller is not authorized "+
				"to access it; verify the instance connection name and the IAM "+
				"permissions for project %q", projectID)
	},
}

// Classify converts a control-plane error reason into an actionable
// message for the given project. Reasons without a specific remediation
// fall back to a generic message that preserves the underlying cause.
func Classify(reason, projectID string, cause error) error {
	if build, ok := reasonMessages[reason]; ok {
		return errors.Wrap(cause, build(projectID))
	}
	return errors.Wrap(cause, "cloud SQL admin API request failed")
}

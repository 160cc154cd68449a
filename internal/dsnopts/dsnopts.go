// Package dsnopts extracts the cloudSqlInstance/ipTypes/unixSocketPath
// option keys the three driver shims all recognize, from whatever
// key-value parameter map each driver library hands its dialer hook.
package dsnopts

import (
	"fmt"
	"strings"

	"github.com/pganalyze/cloudconnect/instance"
)

// defaultIPTypes mirrors the Dialer's own default preference order, so a
// DSN that doesn't set ipTypes behaves the same as the library default.
const defaultIPTypes = "PUBLIC,PRIVATE"

// Options is the parsed, validated form of the three driver-recognized
// keys.
type Options struct {
	ConnName       instance.ConnName
	IPTypes        []string
	UnixSocketPath string
}

// Parse reads cloudSqlInstance (required unless unixSocketPath is set),
// ipTypes (comma-separated, default "PUBLIC,PRIVATE"), and
// unixSocketPath from params, the generic key-value option map every
// supported driver library exposes to its dial hook in some form.
func Parse(params map[string]string) (Options, error) {
	if sock := params["unixSocketPath"]; sock != "" {
		return Options{UnixSocketPath: sock}, nil
	}

	raw, ok := params["cloudSqlInstance"]
	if !ok || raw == "" {
		return Options{}, fmt.Errorf("missing required option %q", "cloudSqlInstance")
	}
	name, err := instance.ParseConnName(raw)
	if err != nil {
		return Options{}, err
	}

	ipTypesParam := params["ipTypes"]
	if ipTypesParam == "" {
		ipTypesParam = defaultIPTypes
	}
	var ipTypes []string
	for _, t := range strings.Split(ipTypesParam, ",") {
		t = strings.TrimSpace(t)
		if t != "" {
			ipTypes = append(ipTypes, t)
		}
	}

	return Options{ConnName: name, IPTypes: ipTypes}, nil
}

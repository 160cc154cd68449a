// Package mysql registers a "cloudsql-mysql" dial network with
// github.com/go-sql-driver/mysql, so DSNs naming that network dial
// through a cloudconnect.Dialer instead of a plain TCP address. It does
// not register a separate database/sql driver name; connections are
// opened with the "mysql" driver.
package mysql

import (
	"context"
	"net"
	"strings"
	"sync"

	gomysql "github.com/go-sql-driver/mysql"

	"github.com/pganalyze/cloudconnect"
	"github.com/pganalyze/cloudconnect/internal/dsnopts"
)

var (
	registerOnce sync.Once
	dialer       *cloudconnect.Dialer
	dialerErr    error
)

// RegisterDriver builds a Dialer from opts and registers it as the dial
// hook for every DSN that names network "cloudsql-mysql", mirroring the
// real Cloud SQL connector's per-driver registration functions. It must
// be called before sql.Open targets that network; calling it more than
// once reuses the first Dialer, so later opts are ignored.
func RegisterDriver(ctx context.Context, opts ...cloudconnect.Option) error {
	registerOnce.Do(func() {
		dialer, dialerErr = cloudconnect.NewDialer(ctx, opts...)
		if dialerErr != nil {
			return
		}
		gomysql.RegisterDialContext("cloudsql-mysql", dial)
	})
	return dialerErr
}

// dial is the github.com/go-sql-driver/mysql dial hook. addr is whatever
// the DSN puts inside the network-address parentheses — for this
// network the DSN is expected to pack its options the same whitespace-
// separated "key=value" way the postgres shim does, e.g.
// "user:pass@cloudsql-mysql(cloudSqlInstance=PROJECT:REGION:INSTANCE ipTypes=PRIVATE)/dbname",
// so the recognized keys (cloudSqlInstance, ipTypes, unixSocketPath) are
// routed through the same internal/dsnopts parsing the other two shims
// use.
func dial(ctx context.Context, addr string) (net.Conn, error) {
	params, err := parseDSNParams(addr)
	if err != nil {
		return nil, err
	}
	opts, err := dsnopts.Parse(params)
	if err != nil {
		return nil, err
	}
	if opts.UnixSocketPath != "" {
		return net.Dial("unix", opts.UnixSocketPath)
	}
	dialOpts := make([]cloudconnect.DialOption, 0, 1)
	if len(opts.IPTypes) > 0 {
		dialOpts = append(dialOpts, cloudconnect.WithIPType(opts.IPTypes...))
	}
	return dialer.Dial(ctx, opts.ConnName.String(), dialOpts...)
}

// parseDSNParams splits the whitespace-separated "key=value" pairs this
// shim expects inside the DSN's network-address parentheses, the same
// convention the postgres/libpq shim uses for its address argument.
func parseDSNParams(addr string) (map[string]string, error) {
	params := make(map[string]string)
	for _, field := range strings.Fields(addr) {
		kv := strings.SplitN(field, "=", 2)
		if len(kv) != 2 {
			continue
		}
		params[kv[0]] = kv[1]
	}
	return params, nil
}

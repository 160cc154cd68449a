// Package postgres registers a "cloudsql-postgres" database/sql driver
// that dials through a cloudconnect.Dialer instead of a plain TCP
// address, for use with github.com/lib/pq DSNs.
package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/lib/pq"

	"github.com/pganalyze/cloudconnect"
	"github.com/pganalyze/cloudconnect/internal/dsnopts"
)

var (
	registerOnce sync.Once
	dialer       *cloudconnect.Dialer
	dialerErr    error
)

func init() {
	sql.Register("cloudsql-postgres", &cloudsqlDriver{})
}

// RegisterDriver builds the shared Dialer every "cloudsql-postgres"
// connection uses. It must be called once, before the first sql.Open,
// with whatever Options the caller's Cloud SQL project needs; a second
// call is a no-op.
func RegisterDriver(ctx context.Context, opts ...cloudconnect.Option) error {
	registerOnce.Do(func() {
		dialer, dialerErr = cloudconnect.NewDialer(ctx, opts...)
	})
	return dialerErr
}

// cloudsqlDriver implements database/sql/driver.Driver by delegating to
// pq.DialOpen with itself as the pq.Dialer, the same "drive the real
// driver's dial hook" shape the mysql and sqlserver shims use.
type cloudsqlDriver struct{}

func (d *cloudsqlDriver) Open(name string) (driver.Conn, error) {
	return pq.DialOpen(d, name)
}

// Dial implements pq.Dialer.
func (d *cloudsqlDriver) Dial(network, address string) (net.Conn, error) {
	return d.dial(context.Background(), address)
}

// DialTimeout implements pq.Dialer.
func (d *cloudsqlDriver) DialTimeout(network, address string, timeout time.Duration) (net.Conn, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return d.dial(ctx, address)
}

// dial parses address — "host=... cloudSqlInstance=... ipTypes=..." in
// libpq keyword/value form, the shape pq itself hands its Dialer — pulls
// out the recognized option keys, and dials through the shared Dialer.
func (d *cloudsqlDriver) dial(ctx context.Context, address string) (net.Conn, error) {
	params, err := parseLibpqParams(address)
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

// parseLibpqParams splits the whitespace-separated "key=value" pairs pq
// passes to a custom Dialer's address argument. Single quotes around a
// value are stripped; because fields are split on whitespace first, a
// quoted value that contains spaces is not kept together.
func parseLibpqParams(address string) (map[string]string, error) {
	params := make(map[string]string)
	for _, field := range strings.Fields(address) {
		kv := strings.SplitN(field, "=", 2)
		if len(kv) != 2 {
			continue
		}
		key := kv[0]
		value := strings.Trim(kv[1], "'")
		params[key] = value
	}
	return params, nil
}

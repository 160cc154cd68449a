// Package sqlserver registers a "cloudsql-sqlserver" database/sql
// driver that dials through a cloudconnect.Dialer instead of a plain TCP
// address, for use with github.com/denisenkom/go-mssqldb DSNs.
package sqlserver

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"net"
	"net/url"
	"sync"

	mssql "github.com/denisenkom/go-mssqldb"

	"github.com/pganalyze/cloudconnect"
	"github.com/pganalyze/cloudconnect/internal/dsnopts"
)

var (
	registerOnce sync.Once
	dialer       *cloudconnect.Dialer
	dialerErr    error
)

func init() {
	sql.Register("cloudsql-sqlserver", &cloudsqlDriver{})
}

// RegisterDriver builds the shared Dialer every "cloudsql-sqlserver"
// connection uses. It must be called once, before the first sql.Open; a
// second call is a no-op.
func RegisterDriver(ctx context.Context, opts ...cloudconnect.Option) error {
	registerOnce.Do(func() {
		dialer, dialerErr = cloudconnect.NewDialer(ctx, opts...)
	})
	return dialerErr
}

// cloudsqlDriver implements database/sql/driver.Driver by building a
// mssql.Connector per DSN and overriding its Dialer field, the shape
// go-mssqldb's own documentation recommends for tunneled connections.
type cloudsqlDriver struct{}

func (d *cloudsqlDriver) Open(dsn string) (driver.Conn, error) {
	params, err := parseSQLServerDSNParams(dsn)
	if err != nil {
		return nil, err
	}
	opts, err := dsnopts.Parse(params)
	if err != nil {
		return nil, err
	}

	connector, err := mssql.NewConnector(dsn)
	if err != nil {
		return nil, err
	}
	connector.Dialer = instanceDialer{opts: opts}

	return connector.Connect(context.Background())
}

// instanceDialer implements the mssql.Dialer interface go-mssqldb uses
// for custom transport, ignoring the network address go-mssqldb would
// otherwise have resolved from the DSN's host in favor of the parsed
// Cloud SQL instance connection name.
type instanceDialer struct {
	opts dsnopts.Options
}

func (d instanceDialer) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	if d.opts.UnixSocketPath != "" {
		return net.Dial("unix", d.opts.UnixSocketPath)
	}
	dialOpts := make([]cloudconnect.DialOption, 0, 1)
	if len(d.opts.IPTypes) > 0 {
		dialOpts = append(dialOpts, cloudconnect.WithIPType(d.opts.IPTypes...))
	}
	return dialer.Dial(ctx, d.opts.ConnName.String(), dialOpts...)
}

// parseSQLServerDSNParams reads the cloudSqlInstance/ipTypes/
// unixSocketPath query parameters from a "sqlserver://..." URL-form DSN.
func parseSQLServerDSNParams(dsn string) (map[string]string, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	params := make(map[string]string, len(q))
	for key := range q {
		params[key] = q.Get(key)
	}
	return params, nil
}

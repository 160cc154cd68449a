// Package cloudconnect dials mutually-authenticated TLS connections to
// Cloud SQL-style managed database instances, refreshing ephemeral
// client certificates and instance metadata in the background so the
// synchronous Dial path never blocks on a control-plane round trip it
// doesn't have to.
package cloudconnect

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"

	"github.com/pganalyze/cloudconnect/errtype"
	"github.com/pganalyze/cloudconnect/instance"
	"github.com/pganalyze/cloudconnect/internal/adminapi"
	"github.com/pganalyze/cloudconnect/internal/cloudsql"
	"github.com/pganalyze/cloudconnect/internal/cloudsqllog"
	"github.com/pganalyze/cloudconnect/internal/keys"
)

// serverProxyPort is the fixed TCP port every Cloud SQL instance accepts
// mutually-authenticated TLS connections on.
const serverProxyPort = 3307

// Dialer dials managed database instances by connection name, serving
// each instance's credentials from its own background-refreshed
// Instance. A Dialer is safe for concurrent use and is typically
// constructed once per process.
type Dialer struct {
	cfg      *config
	registry *cloudsql.Registry
	api      adminapi.Client
	keyPair  keys.KeyPair
	logger   *cloudsqllog.Logger
}

// NewDialer builds a Dialer. It resolves Application Default
// Credentials (unless WithAdminAPIClient supplies a fake) and generates
// or reuses the process's shared RSA key pair; it does not contact any
// instance until the first Dial.
func NewDialer(ctx context.Context, opts ...Option) (*Dialer, error) {
	cfg := newConfig(opts)

	api := cfg.adminAPI
	if api == nil {
		var err error
		api, err = adminapi.NewClient(ctx, cfg.clientOpts...)
		if err != nil {
			return nil, fmt.Errorf("building Cloud SQL Admin API client: %w", err)
		}
	}

	var kp keys.KeyPair
	var err error
	if cfg.rsaKeySize != 0 {
		kp, err = keys.New(cfg.rsaKeySize)
	} else {
		kp, err = keys.Source()
	}
	if err != nil {
		return nil, fmt.Errorf("preparing RSA key pair: %w", err)
	}

	return &Dialer{
		cfg:      cfg,
		registry: cloudsql.NewRegistry(),
		api:      api,
		keyPair:  kp,
		logger:   &cloudsqllog.Logger{Destination: cfg.logger},
	}, nil
}

// Dial returns a TLS connection authenticated as the named instance,
// selecting the first IP address type available from the configured
// (or per-dial overridden) preference order. On TLS handshake failure
// it best-effort requests a forced refresh before returning the error,
// on the theory that a stale certificate is the most likely cause.
func (d *Dialer) Dial(ctx context.Context, connName string, opts ...DialOption) (net.Conn, error) {
	name, err := instance.ParseConnName(connName)
	if err != nil {
		return nil, errtype.NewConfigError(connName, err.Error())
	}
	dc := newDialConfig(d.cfg, opts)

	inst := d.registry.GetOrCreate(name, d.api, d.keyPair, d.logger)
	info, err := inst.ConnectionInfo(ctx)
	if err != nil {
		return nil, errtype.NewDialError("refresh", name.String(), err)
	}

	addr, ipType, err := selectAddress(info.Metadata.IPAddresses, dc.ipTypes)
	if err != nil {
		return nil, errtype.NewConfigError(name.String(), err.Error())
	}
	d.logger.PrintVerbose("dialing instance %s via %s address %s", name, ipType, addr)

	tcpDialer := &net.Dialer{Timeout: d.cfg.dialTimeout, KeepAlive: dc.tcpKeepAlive}
	rawConn, err := tcpDialer.DialContext(ctx, "tcp", fmt.Sprintf("%s:%d", addr, serverProxyPort))
	if err != nil {
		return nil, errtype.NewDialError("tcp connect", name.String(), err)
	}

	tlsConn := tls.Client(rawConn, info.TLSConfig)
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		rawConn.Close()
		inst.ForceRefresh()
		return nil, errtype.NewDialError("tls handshake", name.String(), err)
	}

	return tlsConn, nil
}

// ForceRefresh requests an out-of-band credential refresh for the named
// instance, subject to the per-instance rate limit. The refreshed
// credentials aren't waited for; a subsequent Dial picks them up once
// ready.
func (d *Dialer) ForceRefresh(ctx context.Context, connName string) error {
	name, err := instance.ParseConnName(connName)
	if err != nil {
		return errtype.NewConfigError(connName, err.Error())
	}
	inst := d.registry.GetOrCreate(name, d.api, d.keyPair, d.logger)
	inst.ForceRefresh()
	return nil
}

// Close stops every managed instance's background refresh scheduling.
// Dials already in flight are unaffected; no further Dial should be
// issued against a closed Dialer.
func (d *Dialer) Close() error {
	d.registry.Close()
	return nil
}

// IAMAuthNEnabled reports whether WithIAMAuthN was requested at
// construction. Driver shims check this to decide whether to fetch an
// IAM principal's OAuth2 token and send it as the database password
// instead of a static credential.
func (d *Dialer) IAMAuthNEnabled() bool {
	return d.cfg.iamAuthN
}

// selectAddress picks the first address available among ipTypes, in
// order, the same "first match wins" preference-list policy the real
// connector applies to PRIMARY/PUBLIC/PRIVATE/PSC address tags.
func selectAddress(addresses map[string]string, ipTypes []string) (addr, ipType string, err error) {
	for _, t := range ipTypes {
		if a, ok := addresses[t]; ok && a != "" {
			return a, t, nil
		}
	}
	return "", "", fmt.Errorf("instance has no IP address matching any of %v", ipTypes)
}

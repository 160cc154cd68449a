package cloudconnect

import (
	"log"
	"time"

	"google.golang.org/api/option"

	"github.com/pganalyze/cloudconnect/internal/adminapi"
)

// defaultIPTypes is the ordered IP address type preference used when a
// caller doesn't ask for a specific one: public first, falling back to
// private, matching the driver shims' documented default.
var defaultIPTypes = []string{"PUBLIC", "PRIVATE"}

// defaultDialTimeout bounds the TCP connect step of Dialer.Dial.
const defaultDialTimeout = 30 * time.Second

// config collects every Option into the immutable value NewDialer builds
// the Dialer from, the same "assemble a struct, then start the
// long-lived background work" shape as the teacher's ServerConfig.
type config struct {
	ipTypes      []string
	adminAPI     adminapi.Client
	userAgent    string
	rsaKeySize   int
	clientOpts   []option.ClientOption
	dialTimeout  time.Duration
	tcpKeepAlive time.Duration
	iamAuthN     bool
	logger       *log.Logger
}

func newConfig(opts []Option) *config {
	cfg := &config{
		ipTypes:      defaultIPTypes,
		dialTimeout:  defaultDialTimeout,
		tcpKeepAlive: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = log.Default()
	}
	return cfg
}

// WithLogger sets the destination refresh failures are printed to.
// Without this option, NewDialer logs to log.Default() so failures are
// never silently swallowed. The Dialer's logger does not enable verbose
// output, so verbose dial and refresh messages are not printed.
func WithLogger(logger *log.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// Option configures a Dialer at construction time.
type Option func(*config)

// WithIPTypes overrides the default public-then-private IP address
// preference order used when a dial doesn't specify WithIPType itself.
func WithIPTypes(types []string) Option {
	return func(c *config) { c.ipTypes = append([]string(nil), types...) }
}

// WithAdminAPIClient overrides the Cloud SQL Admin API client, a test
// seam letting callers substitute a fake without a live GCP project.
func WithAdminAPIClient(client adminapi.Client) Option {
	return func(c *config) { c.adminAPI = client }
}

// WithUserAgent appends a product token to every Admin API request,
// threaded through as a option.ClientOption.
func WithUserAgent(userAgent string) Option {
	return func(c *config) {
		c.userAgent = userAgent
		c.clientOpts = append(c.clientOpts, option.WithUserAgent(userAgent))
	}
}

// WithRSAKeySize is a test hook overriding the shared key pair's modulus
// size; it is not meant for production use, where 2048 bits is the only
// size the Admin API is known to accept for ephemeral certificates.
func WithRSAKeySize(bits int) Option {
	return func(c *config) { c.rsaKeySize = bits }
}

// WithIAMAuthN requests that dialed connections authenticate with an
// IAM principal's OAuth2 token instead of a database password, the Go
// analog of the real connector's cloudsqlconn.WithIAMAuthN(). Wiring the
// token into the chosen driver's auth handshake is left to the shim.
func WithIAMAuthN(enabled bool) Option {
	return func(c *config) { c.iamAuthN = enabled }
}

// DialOption configures a single Dialer.Dial call.
type DialOption func(*dialConfig)

type dialConfig struct {
	ipTypes      []string
	tcpKeepAlive time.Duration
}

func newDialConfig(base *config, opts []DialOption) *dialConfig {
	dc := &dialConfig{
		ipTypes:      base.ipTypes,
		tcpKeepAlive: base.tcpKeepAlive,
	}
	for _, opt := range opts {
		opt(dc)
	}
	return dc
}

// WithIPType overrides, for a single dial, which IP address type(s) to
// try and in what order.
func WithIPType(types ...string) DialOption {
	return func(c *dialConfig) { c.ipTypes = types }
}

// WithTCPKeepAlive overrides, for a single dial, the TCP keep-alive
// interval used on the underlying connection.
func WithTCPKeepAlive(d time.Duration) DialOption {
	return func(c *dialConfig) { c.tcpKeepAlive = d }
}

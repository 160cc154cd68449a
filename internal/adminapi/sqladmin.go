package adminapi

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	sqladmin "google.golang.org/api/sqladmin/v1beta4"

	"github.com/pganalyze/cloudconnect/errtype"
)

// DefaultEndpoint is the Cloud SQL Admin API base URL used when the
// caller doesn't override it with option.WithEndpoint. Mirrors the
// collector's own DefaultAPIBaseURL constant in shape and intent.
const DefaultEndpoint = "https://sqladmin.googleapis.com/"

// sqladminClient implements Client against the real Cloud SQL Admin API.
type sqladminClient struct {
	svc *sqladmin.Service
}

// NewClient builds a Client using Application Default Credentials,
// discovered the way golang.org/x/oauth2/google.FindDefaultCredentials
// does (environment variable, well-known file, or GCE/GKE metadata
// server) — the library analog of the collector's os.Getenv fallback
// chain for its own API key in config/read.go.
func NewClient(ctx context.Context, opts ...option.ClientOption) (Client, error) {
	allOpts := append([]option.ClientOption{
		option.WithHTTPClient(newHTTPClient()),
		option.WithEndpoint(DefaultEndpoint),
	}, opts...)
	svc, err := sqladmin.NewService(ctx, allOpts...)
	if err != nil {
		return nil, fmt.Errorf("building Cloud SQL Admin API client: %w", err)
	}
	return &sqladminClient{svc: svc}, nil
}

// newHTTPClient builds the base *http.Client used before the oauth2
// transport is layered on top by option.WithHTTPClient/google.DefaultClient.
// Mirrors config/read.go's own http.Client construction: a bounded
// timeout and a minimum TLS version on the transport.
func newHTTPClient() *http.Client {
	transport := &http.Transport{
		TLSClientConfig: &tls.Config{MinVersion: tls.VersionTLS12},
	}
	return &http.Client{
		Timeout:   30 * time.Second,
		Transport: transport,
	}
}

func (c *sqladminClient) InstanceMetadata(ctx context.Context, project, instance string) (Instance, error) {
	di, err := c.svc.Instances.Get(project, instance).Context(ctx).Do()
	if err != nil {
		return Instance{}, classifyAPIError(err, project)
	}

	ipAddrs := make(map[string]string, len(di.IpAddresses))
	for _, addr := range di.IpAddresses {
		ipAddrs[addr.Type] = addr.IpAddress
	}

	var caCert *x509.Certificate
	if di.ServerCaCert != nil && di.ServerCaCert.Cert != "" {
		caCert, err = parsePEMCertificate(di.ServerCaCert.Cert)
		if err != nil {
			return Instance{}, fmt.Errorf("parsing server CA certificate: %w", err)
		}
	}

	return Instance{
		Region:       di.Region,
		BackendType:  di.BackendType,
		IPAddresses:  ipAddrs,
		ServerCACert: caCert,
	}, nil
}

func (c *sqladminClient) CreateEphemeralCert(ctx context.Context, project, instance, publicKeyPEM string) (EphemeralCert, error) {
	req := &sqladmin.SslCertsCreateEphemeralRequest{PublicKey: publicKeyPEM}
	cert, err := c.svc.SslCerts.CreateEphemeral(project, instance, req).Context(ctx).Do()
	if err != nil {
		return EphemeralCert{}, classifyAPIError(err, project)
	}
	parsed, err := parsePEMCertificate(cert.Cert)
	if err != nil {
		return EphemeralCert{}, fmt.Errorf("parsing ephemeral certificate: %w", err)
	}
	return EphemeralCert{Cert: parsed}, nil
}

// classifyAPIError extracts the Reason from a googleapi.Error, if any,
// and hands it to errtype.Classify for the actionable-message treatment;
// otherwise it passes the raw error through.
func classifyAPIError(err error, project string) error {
	reason := googleAPIErrorReason(err)
	if reason == "" {
		return err
	}
	return errtype.Classify(reason, project, err)
}

// FindDefaultProjectID is a small helper shims can use to discover the
// caller's project when it isn't embedded in the instance connection
// name override path. It is unused by the core dial path (the project
// is always taken from the parsed ConnName) but is exposed for driver
// shims that need to validate credentials eagerly.
func FindDefaultProjectID(ctx context.Context) (string, error) {
	creds, err := google.FindDefaultCredentials(ctx, sqladmin.SqlserviceAdminScope)
	if err != nil {
		return "", fmt.Errorf("finding application default credentials: %w", err)
	}
	return creds.ProjectID, nil
}

// Package adminapi abstracts the two Cloud SQL Admin API calls the
// refresh engine needs, so internal/cloudsql can be tested against a
// fake without talking to the network.
package adminapi

import (
	"context"
	"crypto/x509"
)

// Instance is the subset of instance metadata the refresh engine cares
// about: region, backend generation, IP addresses by type tag, and the
// server CA certificate used as the sole TLS trust anchor.
type Instance struct {
	Region       string
	BackendType  string
	IPAddresses  map[string]string // tag ("PRIMARY", "PUBLIC", "PRIVATE") -> address
	ServerCACert *x509.Certificate
}

// EphemeralCert is a short-lived client certificate binding a public key
// to a specific instance, valid for about 60 minutes.
type EphemeralCert struct {
	Cert *x509.Certificate
}

// Client abstracts the two remote calls the refresh engine makes
// against the Cloud SQL Admin API.
type Client interface {
	// InstanceMetadata fetches region, backend type, IP addresses, and
	// server CA certificate for the named instance.
	InstanceMetadata(ctx context.Context, project, instance string) (Instance, error)

	// CreateEphemeralCert requests a short-lived client certificate
	// binding publicKeyPEM (PEM-encoded "RSA PUBLIC KEY") to the named
	// instance.
	CreateEphemeralCert(ctx context.Context, project, instance, publicKeyPEM string) (EphemeralCert, error)
}

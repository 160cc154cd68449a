package cloudsql

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"

	"github.com/pganalyze/cloudconnect/instance"
	"github.com/pganalyze/cloudconnect/internal/adminapi"
	"github.com/pganalyze/cloudconnect/internal/keys"
)

// buildTLSConfig assembles the *tls.Config a dialer uses to present the
// ephemeral client certificate and trust only the instance's server CA.
// Hostname verification is disabled (ServerName is left blank) because
// Cloud SQL server certificates identify the instance by its
// "project:instance" Subject.CN, not by a DNS name; VerifyPeerCertificate
// replaces the standard check with one that still verifies the chain.
func buildTLSConfig(name instance.ConnName, metadata adminapi.Instance, cert adminapi.EphemeralCert, keyPair keys.KeyPair) (*tls.Config, error) {
	if metadata.ServerCACert == nil {
		return nil, fmt.Errorf("instance metadata has no server CA certificate")
	}
	if cert.Cert == nil {
		return nil, fmt.Errorf("no ephemeral certificate to present")
	}

	roots := x509.NewCertPool()
	roots.AddCert(metadata.ServerCACert)

	clientCert := tls.Certificate{
		Certificate: [][]byte{cert.Cert.Raw},
		PrivateKey:  keyPair.Private(),
		Leaf:        cert.Cert,
	}

	return &tls.Config{
		MinVersion:   tls.VersionTLS12,
		Certificates: []tls.Certificate{clientCert},
		RootCAs:      roots,
		ServerName:   "",
		// Hostname verification is intentionally replaced, not removed:
		// InsecureSkipVerify only disables Go's built-in check so that
		// verifyPeerCertificateFunc below can perform the CA-then-CN
		// check Cloud SQL server certificates actually require.
		InsecureSkipVerify:    true,
		VerifyPeerCertificate: verifyPeerCertificateFunc(name, roots),
	}, nil
}

// verifyPeerCertificateFunc builds the custom certificate verification
// Cloud SQL server certificates require: verify the chain against roots,
// then check the leaf's Subject.CommonName against "project:instance"
// instead of (or in addition to) a DNS hostname.
func verifyPeerCertificateFunc(name instance.ConnName, roots *x509.CertPool) func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
	return func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
		if len(rawCerts) == 0 {
			return fmt.Errorf("[%s] no certificate presented by server", name)
		}

		certs := make([]*x509.Certificate, 0, len(rawCerts))
		for _, raw := range rawCerts {
			cert, err := x509.ParseCertificate(raw)
			if err != nil {
				return fmt.Errorf("[%s] failed to parse server certificate: %w", name, err)
			}
			certs = append(certs, cert)
		}
		serverCert := certs[0]

		if _, err := serverCert.Verify(x509.VerifyOptions{Roots: roots}); err != nil {
			return fmt.Errorf("[%s] failed to verify server certificate chain: %w", name, err)
		}

		return verifyCommonName(name, serverCert)
	}
}

// verifyCommonName checks the server certificate's Subject.CommonName
// against "project:instance", the identity Cloud SQL server certificates
// carry in place of a DNS name.
func verifyCommonName(name instance.ConnName, cert *x509.Certificate) error {
	want := fmt.Sprintf("%s:%s", name.Project(), name.Name())
	if cert.Subject.CommonName == "" {
		return fmt.Errorf("[%s] server certificate has an empty Subject.CommonName, expected %q", name, want)
	}
	if cert.Subject.CommonName != want {
		return fmt.Errorf("[%s] server certificate CommonName %q does not match expected %q", name, cert.Subject.CommonName, want)
	}
	return nil
}

package cloudsql

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pganalyze/cloudconnect/internal/adminapi"
)

// selfSignedCA generates a CA certificate and key usable to sign an
// ephemeral leaf certificate for tests.
func selfSignedCA() (*x509.Certificate, *rsa.PrivateKey, error) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, nil, err
	}
	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "test-ca"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(24 * time.Hour),
		IsCA:                  true,
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature,
		BasicConstraintsValid: true,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		return nil, nil, err
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, nil, err
	}
	return cert, key, nil
}

// signLeaf issues a leaf certificate for publicKeyPEM's caller, signed
// by ca/caKey, with the given Subject.CommonName.
func signLeaf(ca *x509.Certificate, caKey *rsa.PrivateKey, pub *rsa.PublicKey, commonName string) (*x509.Certificate, error) {
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(time.Now().UnixNano()),
		Subject:      pkix.Name{CommonName: commonName},
		NotBefore:    time.Now().Add(-time.Minute),
		NotAfter:     time.Now().Add(60 * time.Minute),
		KeyUsage:     x509.KeyUsageDigitalSignature,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, ca, pub, caKey)
	if err != nil {
		return nil, err
	}
	return x509.ParseCertificate(der)
}

// fakeAdminAPI is a configurable adminapi.Client used to drive the
// refresh engine's scenarios deterministically, without the network.
type fakeAdminAPI struct {
	ca    *x509.Certificate
	caKey *rsa.PrivateKey

	mu             sync.Mutex
	region         string
	backendType    string
	ipAddresses    map[string]string
	metadataErr    error // returned by the next InstanceMetadata call only
	metadataCalls  int32
	ephemeralCalls int32
}

func newFakeAdminAPI(t interface{ Fatalf(string, ...interface{}) }) *fakeAdminAPI {
	ca, caKey, err := selfSignedCA()
	if err != nil {
		t.Fatalf("selfSignedCA: %v", err)
	}
	return &fakeAdminAPI{
		ca:          ca,
		caKey:       caKey,
		region:      "r",
		backendType: supportedBackendType,
		ipAddresses: map[string]string{"PUBLIC": "1.2.3.4"},
	}
}

func (f *fakeAdminAPI) setNextMetadataError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.metadataErr = err
}

func (f *fakeAdminAPI) InstanceMetadata(ctx context.Context, project, inst string) (adminapi.Instance, error) {
	atomic.AddInt32(&f.metadataCalls, 1)

	f.mu.Lock()
	err := f.metadataErr
	f.metadataErr = nil
	region := f.region
	backendType := f.backendType
	ips := make(map[string]string, len(f.ipAddresses))
	for k, v := range f.ipAddresses {
		ips[k] = v
	}
	f.mu.Unlock()

	if err != nil {
		return adminapi.Instance{}, err
	}

	return adminapi.Instance{
		Region:       region,
		BackendType:  backendType,
		IPAddresses:  ips,
		ServerCACert: f.ca,
	}, nil
}

func (f *fakeAdminAPI) CreateEphemeralCert(ctx context.Context, project, inst, publicKeyPEM string) (adminapi.EphemeralCert, error) {
	atomic.AddInt32(&f.ephemeralCalls, 1)

	block, err := parsePublicKeyPEMForTest(publicKeyPEM)
	if err != nil {
		return adminapi.EphemeralCert{}, err
	}
	leaf, err := signLeaf(f.ca, f.caKey, block, fmt.Sprintf("%s:%s", project, inst))
	if err != nil {
		return adminapi.EphemeralCert{}, err
	}
	return adminapi.EphemeralCert{Cert: leaf}, nil
}

func parsePublicKeyPEMForTest(pemStr string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(pemStr))
	if block == nil {
		return nil, fmt.Errorf("no PEM block in public key")
	}
	pub, err := x509.ParsePKCS1PublicKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	return pub, nil
}

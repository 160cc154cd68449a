// Package keys generates the single RSA key pair shared by every
// instance refresher in the process.
package keys

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"sync"
)

// keyBits is the RSA modulus size. Cloud SQL requires at least 2048 bits
// for ephemeral certificate requests.
const keyBits = 2048

// KeyPair is an immutable RSA key pair. Once constructed it never
// changes, so it is safe to share by value-copy across every
// InstanceRefresher in the process; the private key never leaves the
// process and is never written to disk.
type KeyPair struct {
	private *rsa.PrivateKey
	public  *rsa.PublicKey
}

// Private returns the private key, for use as a tls.Certificate.PrivateKey.
func (k KeyPair) Private() *rsa.PrivateKey { return k.private }

// Public returns the public key.
func (k KeyPair) Public() *rsa.PublicKey { return k.public }

// PublicPEM renders the public key as a PEM block in the
// "RSA PUBLIC KEY" form the Cloud SQL Admin API's ephemeral certificate
// request expects: header, base64 DER body hard-wrapped at 64 columns,
// footer, trailing newline.
func (k KeyPair) PublicPEM() (string, error) {
	der := x509.MarshalPKCS1PublicKey(k.public)
	block := &pem.Block{Type: "RSA PUBLIC KEY", Bytes: der}
	return string(pem.EncodeToMemory(block)), nil
}

var (
	once      sync.Once
	shared    KeyPair
	sharedErr error
)

// Source lazily generates, once per process, the RSA key pair shared by
// every InstanceRefresher. Subsequent calls return the same pair.
func Source() (KeyPair, error) {
	once.Do(func() {
		shared, sharedErr = New(keyBits)
	})
	return shared, sharedErr
}

// New generates a dedicated key pair of the given modulus size. Only
// WithRSAKeySize's test seam should call this directly; every other
// caller should go through Source so the process shares one pair.
func New(bits int) (KeyPair, error) {
	priv, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return KeyPair{}, fmt.Errorf("generating RSA key pair: %w", err)
	}
	return KeyPair{private: priv, public: &priv.PublicKey}, nil
}

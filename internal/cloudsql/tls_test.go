package cloudsql

import (
	"crypto/tls"
	"net"
	"testing"
	"time"

	"github.com/pganalyze/cloudconnect/instance"
	"github.com/pganalyze/cloudconnect/internal/adminapi"
)

// TestBuildTLSConfigHandshake drives a real client/server TLS handshake
// over a net.Pipe using the config buildTLSConfig assembles, proving the
// custom CA-then-CommonName verification accepts a server certificate
// issued by the instance's CA for "project:instance". The server does not
// request a client certificate, so client authentication is not checked.
func TestBuildTLSConfigHandshake(t *testing.T) {
	ca, caKey, err := selfSignedCA()
	if err != nil {
		t.Fatalf("selfSignedCA: %v", err)
	}

	kp := testKeyPair(t)
	name, _ := instance.ParseConnName("proj:region1:my-instance")

	leaf, err := signLeaf(ca, caKey, kp.Public(), "proj:my-instance")
	if err != nil {
		t.Fatalf("signLeaf: %v", err)
	}

	metadata := adminapi.Instance{
		Region:       "region1",
		BackendType:  supportedBackendType,
		IPAddresses:  map[string]string{"PUBLIC": "127.0.0.1"},
		ServerCACert: ca,
	}
	cert := adminapi.EphemeralCert{Cert: leaf}

	clientConfig, err := buildTLSConfig(name, metadata, cert, kp)
	if err != nil {
		t.Fatalf("buildTLSConfig: %v", err)
	}

	serverConfig := &tls.Config{
		Certificates: []tls.Certificate{{
			Certificate: [][]byte{leaf.Raw},
			PrivateKey:  kp.Private(),
			Leaf:        leaf,
		}},
		ClientAuth: tls.NoClientCert,
	}

	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	serverDone := make(chan error, 1)
	go func() {
		srv := tls.Server(serverConn, serverConfig)
		serverDone <- srv.Handshake()
	}()

	cli := tls.Client(clientConn, clientConfig)
	cli.SetDeadline(time.Now().Add(5 * time.Second))
	if err := cli.Handshake(); err != nil {
		t.Fatalf("client handshake: %v", err)
	}
	if err := <-serverDone; err != nil {
		t.Fatalf("server handshake: %v", err)
	}
}

func TestVerifyCommonNameMismatch(t *testing.T) {
	name, _ := instance.ParseConnName("proj:region1:my-instance")
	ca, caKey, err := selfSignedCA()
	if err != nil {
		t.Fatalf("selfSignedCA: %v", err)
	}
	kp := testKeyPair(t)

	wrongLeaf, err := signLeaf(ca, caKey, kp.Public(), "proj:other-instance")
	if err != nil {
		t.Fatalf("signLeaf: %v", err)
	}

	if err := verifyCommonName(name, wrongLeaf); err == nil {
		t.Fatal("expected a CommonName mismatch error, got nil")
	}
}

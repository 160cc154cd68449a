package keys

import "testing"

func TestSourceReturnsSamePair(t *testing.T) {
	k1, err := Source()
	if err != nil {
		t.Fatalf("Source: %v", err)
	}
	k2, err := Source()
	if err != nil {
		t.Fatalf("Source: %v", err)
	}
	if k1.Private() != k2.Private() {
		t.Errorf("Source() returned two different private keys across calls")
	}
}

func TestPublicPEMFormat(t *testing.T) {
	k, err := Source()
	if err != nil {
		t.Fatalf("Source: %v", err)
	}
	pemStr, err := k.PublicPEM()
	if err != nil {
		t.Fatalf("PublicPEM: %v", err)
	}
	const header = "-----BEGIN RSA PUBLIC KEY-----\n"
	const footer = "-----END RSA PUBLIC KEY-----\n"
	if len(pemStr) < len(header)+len(footer) {
		t.Fatalf("PublicPEM output too short: %q", pemStr)
	}
	if pemStr[:len(header)] != header {
		t.Errorf("PublicPEM header = %q, want %q", pemStr[:len(header)], header)
	}
	if pemStr[len(pemStr)-len(footer):] != footer {
		t.Errorf("PublicPEM footer = %q, want %q", pemStr[len(pemStr)-len(footer):], footer)
	}
}

func TestNewIsIndependentOfSource(t *testing.T) {
	shared, err := Source()
	if err != nil {
		t.Fatalf("Source: %v", err)
	}
	dedicated, err := New(2048)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if dedicated.Private() == shared.Private() {
		t.Error("New returned the process-shared private key instead of a dedicated one")
	}
}

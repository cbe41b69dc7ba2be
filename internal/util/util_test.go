package util

import (
	"bytes"
	"crypto/x509/pkix"
	"testing"
)

func TestArgon2id(t *testing.T) {
	params := DefaultArgon2idParams()
	passphrase := "correct horse battery staple"
	salt := []byte("random salt")

	key, err := DeriveArgon2idKey(passphrase, salt, params)
	if err != nil {
		t.Fatalf("DeriveArgon2idKey failed: %v", err)
	}

	if len(key) != 32 {
		t.Errorf("expected key length 32, got %d", len(key))
	}

	match, err := CompareArgon2idKey(passphrase, salt, params, key)
	if err != nil {
		t.Fatalf("CompareArgon2idKey failed: %v", err)
	}
	if !match {
		t.Error("expected CompareArgon2idKey to return true")
	}

	match, _ = CompareArgon2idKey("wrong passphrase", salt, params, key)
	if match {
		t.Error("expected CompareArgon2idKey to return false for wrong passphrase")
	}
}

func TestWipeBytes(t *testing.T) {
	b := []byte{0x01, 0x02, 0x03}
	WipeBytes(b)
	if !bytes.Equal(b, []byte{0, 0, 0}) {
		t.Errorf("WipeBytes left %v", b)
	}
}

func TestNormalize(t *testing.T) {
	// NFC "é" and NFD "é" must normalize identically.
	if Normalize("café") != Normalize("café") {
		t.Error("expected NFC and NFD forms to normalize to the same string")
	}
}

func TestRandomBytes(t *testing.T) {
	b1, err := RandomBytes(32)
	if err != nil {
		t.Fatalf("RandomBytes failed: %v", err)
	}
	b2, err := RandomBytes(32)
	if err != nil {
		t.Fatalf("RandomBytes failed: %v", err)
	}
	if len(b1) != 32 {
		t.Errorf("expected 32 bytes, got %d", len(b1))
	}
	if bytes.Equal(b1, b2) {
		t.Error("RandomBytes should produce different outputs")
	}
}

func TestFormatName(t *testing.T) {
	name := pkix.Name{
		CommonName:   "svc.internal",
		Organization: []string{"Flux"},
		Country:      []string{"US"},
	}
	got := FormatName(name)
	want := "CN=svc.internal, O=Flux, C=US"
	if got != want {
		t.Errorf("FormatName = %q, want %q", got, want)
	}
}

func TestGenerateSelfSignedCert(t *testing.T) {
	cert, err := GenerateSelfSignedCert()
	if err != nil {
		t.Fatalf("GenerateSelfSignedCert failed: %v", err)
	}
	if len(cert.Certificate) == 0 {
		t.Error("expected at least one certificate in the chain")
	}
	if cert.PrivateKey == nil {
		t.Error("expected a private key")
	}
}

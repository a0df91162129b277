package agent

import (
	"bytes"
	"crypto"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadOrCreateKeyPairGeneratesAndPersists(t *testing.T) {
	dir := t.TempDir()

	kp, err := LoadOrCreateKeyPair(dir)
	if err != nil {
		t.Fatalf("LoadOrCreateKeyPair() error = %v", err)
	}
	if kp.Private.N.BitLen() < rsaKeyBits-1 {
		t.Fatalf("key size = %d bits, want ~%d", kp.Private.N.BitLen(), rsaKeyBits)
	}

	keyPath := filepath.Join(dir, privateKeyFile)
	if _, err := x509.ParsePKCS1PrivateKey(mustDecodePEM(t, keyPath)); err != nil {
		t.Fatalf("persisted private key does not parse: %v", err)
	}
}

func TestLoadOrCreateKeyPairReusesExistingKey(t *testing.T) {
	dir := t.TempDir()

	first, err := LoadOrCreateKeyPair(dir)
	if err != nil {
		t.Fatalf("first call error = %v", err)
	}
	second, err := LoadOrCreateKeyPair(dir)
	if err != nil {
		t.Fatalf("second call error = %v", err)
	}

	if !first.Private.Equal(second.Private) {
		t.Fatal("expected the same private key to be reloaded, got a different one")
	}
	if !bytes.Equal(first.PublicKeyDER, second.PublicKeyDER) {
		t.Fatal("public key DER differs across reloads")
	}
}

func TestSignProducesVerifiableSignature(t *testing.T) {
	dir := t.TempDir()
	kp, err := LoadOrCreateKeyPair(dir)
	if err != nil {
		t.Fatalf("LoadOrCreateKeyPair() error = %v", err)
	}

	data := []byte("registration-payload-bytes")
	sig, err := kp.Sign(data)
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}

	digest := sha256.Sum256(data)
	if err := rsa.VerifyPKCS1v15(&kp.Private.PublicKey, crypto.SHA256, digest[:], sig); err != nil {
		t.Fatalf("signature does not verify: %v", err)
	}
}

func mustDecodePEM(t *testing.T, path string) []byte {
	t.Helper()
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading %s: %v", path, err)
	}
	block, _ := pem.Decode(raw)
	if block == nil {
		t.Fatalf("no PEM block found in %s", path)
	}
	return block.Bytes
}

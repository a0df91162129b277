// Package agent implements the edge collector: enrollment, metric/log
// shipping, and command execution, per spec §4.5-§4.7 and SPEC_FULL.md's
// agent-side expansion.
package agent

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"
)

const (
	privateKeyFile = "client.key"
	publicKeyFile  = "client.pub"
	rsaKeyBits     = 2048
)

// KeyPair is the agent's enrollment identity: an RSA keypair whose public
// half is presented at registration and whose private half signs every
// registration payload, per spec §6.3's "client.key, client.pub — RSA
// keypair (PEM). Private key 0600."
type KeyPair struct {
	Private *rsa.PrivateKey
	// PublicKeyDER is the DER-encoded SubjectPublicKeyInfo of Private's
	// public half, the exact byte form internal/auth.Enroller hashes and
	// verifies against.
	PublicKeyDER []byte
}

// LoadOrCreateKeyPair reads an existing keypair from authDir, generating
// and persisting a fresh one on first run. Generation happens at most once
// per agent installation: the public key is what the server binds to the
// agent_id at registration, so regenerating it later would orphan the
// enrollment.
func LoadOrCreateKeyPair(authDir string) (*KeyPair, error) {
	keyPath := filepath.Join(authDir, privateKeyFile)

	data, err := os.ReadFile(keyPath)
	if err == nil {
		return parseKeyPair(data)
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading private key: %w", err)
	}

	priv, err := rsa.GenerateKey(rand.Reader, rsaKeyBits)
	if err != nil {
		return nil, fmt.Errorf("generating keypair: %w", err)
	}

	if err := persistKeyPair(authDir, priv); err != nil {
		return nil, err
	}

	pubDER, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("marshaling public key: %w", err)
	}
	return &KeyPair{Private: priv, PublicKeyDER: pubDER}, nil
}

func parseKeyPair(pemData []byte) (*KeyPair, error) {
	block, _ := pem.Decode(pemData)
	if block == nil {
		return nil, fmt.Errorf("no PEM block found in private key file")
	}
	priv, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parsing private key: %w", err)
	}
	pubDER, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("marshaling public key: %w", err)
	}
	return &KeyPair{Private: priv, PublicKeyDER: pubDER}, nil
}

func persistKeyPair(authDir string, priv *rsa.PrivateKey) error {
	keyPath := filepath.Join(authDir, privateKeyFile)
	pubPath := filepath.Join(authDir, publicKeyFile)

	privPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(priv),
	})
	if err := os.WriteFile(keyPath, privPEM, 0600); err != nil {
		return fmt.Errorf("persisting private key: %w", err)
	}

	pubDER, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	if err != nil {
		return fmt.Errorf("marshaling public key: %w", err)
	}
	pubPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})
	if err := os.WriteFile(pubPath, pubPEM, 0644); err != nil {
		return fmt.Errorf("persisting public key: %w", err)
	}
	return nil
}

// Sign produces a PKCS#1 v1.5 / SHA-256 signature over data, matching the
// verification internal/auth.Enroller.Register performs server-side.
func (k *KeyPair) Sign(data []byte) ([]byte, error) {
	digest := sha256.Sum256(data)
	return rsa.SignPKCS1v15(rand.Reader, k.Private, crypto.SHA256, digest[:])
}

package metadata

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
)

// Signer produces detached RSA PKCS#1 v1.5 signatures over SHA-256 digests
// of canonical metadata payloads. The private key is loaded once at
// startup and held only by this service. Safe for concurrent use.
type Signer struct {
	key *rsa.PrivateKey
}

// NewSigner creates a signer from an RSA private key.
func NewSigner(key *rsa.PrivateKey) (*Signer, error) {
	if key == nil {
		return nil, fmt.Errorf("%w: nil private key", ErrKeyMaterial)
	}
	return &Signer{key: key}, nil
}

// LoadSigner reads a PEM-encoded RSA private key (PKCS#1 or PKCS#8) from
// path. Any load error is fatal to startup.
func LoadSigner(path string) (*Signer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", ErrKeyMaterial, path, err)
	}

	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("%w: no PEM block in %s", ErrKeyMaterial, path)
	}

	key, err := parsePrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %v", ErrKeyMaterial, path, err)
	}
	return NewSigner(key)
}

func parsePrivateKey(der []byte) (*rsa.PrivateKey, error) {
	if key, err := x509.ParsePKCS1PrivateKey(der); err == nil {
		return key, nil
	}
	parsed, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, err
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("not an RSA private key")
	}
	return key, nil
}

// Sign returns the detached signature over data.
func (s *Signer) Sign(data []byte) ([]byte, error) {
	digest := sha256.Sum256(data)
	sig, err := rsa.SignPKCS1v15(rand.Reader, s.key, crypto.SHA256, digest[:])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSigningFailure, err)
	}
	return sig, nil
}

// Verifier returns a verifier for the signer's public key.
func (s *Signer) Verifier() *Verifier {
	return &Verifier{key: &s.key.PublicKey}
}

// Verifier validates detached signatures produced by a peer Signer.
type Verifier struct {
	key *rsa.PublicKey
}

// NewVerifier creates a verifier from an RSA public key.
func NewVerifier(key *rsa.PublicKey) (*Verifier, error) {
	if key == nil {
		return nil, fmt.Errorf("%w: nil public key", ErrKeyMaterial)
	}
	return &Verifier{key: key}, nil
}

// LoadVerifier reads a PEM-encoded public key or certificate from path.
func LoadVerifier(path string) (*Verifier, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", ErrKeyMaterial, path, err)
	}

	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("%w: no PEM block in %s", ErrKeyMaterial, path)
	}

	key, err := parsePublicKey(block)
	if err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %v", ErrKeyMaterial, path, err)
	}
	return NewVerifier(key)
}

func parsePublicKey(block *pem.Block) (*rsa.PublicKey, error) {
	if block.Type == "CERTIFICATE" {
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, err
		}
		key, ok := cert.PublicKey.(*rsa.PublicKey)
		if !ok {
			return nil, fmt.Errorf("certificate does not hold an RSA key")
		}
		return key, nil
	}

	parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	key, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("not an RSA public key")
	}
	return key, nil
}

// Verify reports whether sig is a valid signature over data. The signature
// covers the exact byte sequence: any re-serialization of the payload with
// different field order or whitespace fails verification.
func (v *Verifier) Verify(data, sig []byte) bool {
	digest := sha256.Sum256(data)
	return rsa.VerifyPKCS1v15(v.key, crypto.SHA256, digest[:], sig) == nil
}

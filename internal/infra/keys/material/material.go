// Package material parses key material handed out by the custodians:
// hex data keys, age identities, and signing credentials in PEM or
// PKCS#12 form.
package material

import (
	"bytes"
	"crypto"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"errors"
	"fmt"
	"strings"

	"kredilakay/internal/domain"

	"filippo.io/age"
	"golang.org/x/crypto/pkcs12"
)

// KeyRecord is the stored shape of a vault key, shared by the remote
// custodians.
type KeyRecord struct {
	DataKeyHex  string `json:"data_key_hex,omitempty"`
	AgeIdentity string `json:"age_identity,omitempty"`
}

// SigningRecord is the stored shape of a signing identity. Either the PEM
// pair or the base64 PKCS#12 bundle is set.
type SigningRecord struct {
	CertPEM     string `json:"cert_pem,omitempty"`
	KeyPEM      string `json:"key_pem,omitempty"`
	ChainPEM    string `json:"chain_pem,omitempty"`
	P12         []byte `json:"p12,omitempty"`
	P12Password string `json:"p12_password,omitempty"`
	Reason      string `json:"reason,omitempty"`
	Location    string `json:"location,omitempty"`
	Contact     string `json:"contact,omitempty"`
}

func DataKey(hexKey string) ([]byte, error) {
	if hexKey == "" {
		return nil, domain.ErrKeyUnknown
	}
	key, err := hex.DecodeString(strings.TrimSpace(hexKey))
	if err != nil {
		return nil, fmt.Errorf("data key: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("data key must be 32 bytes, got %d", len(key))
	}
	return key, nil
}

func AgeIdentity(s string) (*age.X25519Identity, error) {
	if s == "" {
		return nil, domain.ErrKeyUnknown
	}
	id, err := age.ParseX25519Identity(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("age identity: %w", err)
	}
	return id, nil
}

// Identity turns the record into a signing identity.
func (r SigningRecord) Identity() (*domain.SigningIdentity, error) {
	var (
		id  *domain.SigningIdentity
		err error
	)
	switch {
	case len(r.P12) > 0:
		id, err = FromPKCS12(r.P12, r.P12Password)
	case r.CertPEM != "" && r.KeyPEM != "":
		id, err = FromPEM([]byte(r.CertPEM), []byte(r.KeyPEM))
	default:
		return nil, domain.ErrMissingCredentials
	}
	if err != nil {
		return nil, err
	}
	if r.ChainPEM != "" {
		chain, err := ParseCertificates([]byte(r.ChainPEM))
		if err != nil {
			return nil, err
		}
		id.Chain = append(id.Chain, chain...)
	}
	id.Reason, id.Location, id.Contact = r.Reason, r.Location, r.Contact
	return id, nil
}

// FromPEM builds an identity from a certificate bundle (leaf first, then
// any intermediates) and a private key.
func FromPEM(certPEM, keyPEM []byte) (*domain.SigningIdentity, error) {
	certs, err := ParseCertificates(certPEM)
	if err != nil {
		return nil, err
	}
	if len(certs) == 0 {
		return nil, errors.New("no certificate in PEM")
	}
	key, err := ParsePrivateKey(keyPEM)
	if err != nil {
		return nil, err
	}
	return assemble(key, certs)
}

// FromPKCS12 decodes a PKCS#12 bundle. The leaf is the certificate whose
// public key matches the bundled private key.
func FromPKCS12(data []byte, password string) (*domain.SigningIdentity, error) {
	blocks, err := pkcs12.ToPEM(data, password)
	if err != nil {
		return nil, fmt.Errorf("pkcs12: %w", err)
	}
	var (
		key   crypto.Signer
		certs []*x509.Certificate
	)
	for _, b := range blocks {
		switch b.Type {
		case "CERTIFICATE":
			cert, err := x509.ParseCertificate(b.Bytes)
			if err != nil {
				return nil, fmt.Errorf("pkcs12 certificate: %w", err)
			}
			certs = append(certs, cert)
		default:
			if key != nil {
				continue
			}
			if key, err = parseKeyBlock(b); err != nil {
				return nil, fmt.Errorf("pkcs12 key: %w", err)
			}
		}
	}
	if key == nil || len(certs) == 0 {
		return nil, errors.New("pkcs12 bundle lacks key or certificate")
	}
	return assemble(key, certs)
}

func assemble(key crypto.Signer, certs []*x509.Certificate) (*domain.SigningIdentity, error) {
	leaf := -1
	for i, c := range certs {
		if publicKeyMatches(c.PublicKey, key.Public()) {
			leaf = i
			break
		}
	}
	if leaf < 0 {
		return nil, errors.New("private key does not match any certificate")
	}
	id := &domain.SigningIdentity{Certificate: certs[leaf], PrivateKey: key}
	for i, c := range certs {
		if i != leaf {
			id.Chain = append(id.Chain, c)
		}
	}
	return id, nil
}

func ParseCertificates(data []byte) ([]*x509.Certificate, error) {
	var out []*x509.Certificate
	rest := bytes.TrimSpace(data)
	for len(rest) > 0 {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}
		if block.Type != "CERTIFICATE" {
			continue
		}
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("parse certificate: %w", err)
		}
		out = append(out, cert)
	}
	return out, nil
}

func ParsePrivateKey(data []byte) (crypto.Signer, error) {
	rest := data
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			return nil, errors.New("no private key in PEM")
		}
		if strings.HasSuffix(block.Type, "PRIVATE KEY") {
			return parseKeyBlock(block)
		}
	}
}

func parseKeyBlock(block *pem.Block) (crypto.Signer, error) {
	switch block.Type {
	case "RSA PRIVATE KEY":
		return x509.ParsePKCS1PrivateKey(block.Bytes)
	case "EC PRIVATE KEY":
		return x509.ParseECPrivateKey(block.Bytes)
	case "PRIVATE KEY":
		key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, err
		}
		signer, ok := key.(crypto.Signer)
		if !ok {
			return nil, fmt.Errorf("unsupported key type %T", key)
		}
		return signer, nil
	default:
		return nil, fmt.Errorf("unsupported PEM block %q", block.Type)
	}
}

func publicKeyMatches(a, b crypto.PublicKey) bool {
	e, ok := a.(interface{ Equal(crypto.PublicKey) bool })
	return ok && e.Equal(b)
}

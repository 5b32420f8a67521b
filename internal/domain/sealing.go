package domain

import (
	"crypto"
	"crypto/x509"
	"time"
)

const (
	AlgorithmSHA256      = "SHA-256"
	AlgorithmSHA256RSA   = "SHA-256/RSA"
	AlgorithmSHA256ECDSA = "SHA-256/ECDSA"
)

type SigningIdentity struct {
	Certificate *x509.Certificate
	Chain       []*x509.Certificate
	PrivateKey  crypto.Signer
	Reason      string
	Location    string
	Contact     string
}

func (s *SigningIdentity) Complete() bool {
	return s != nil && s.Certificate != nil && s.PrivateKey != nil
}

func (s *SigningIdentity) CommonName() string {
	if s == nil || s.Certificate == nil {
		return ""
	}
	return s.Certificate.Subject.CommonName
}

type SealingResult struct {
	Signed         bool
	SignerIdentity string
	SignedAt       time.Time
	Algorithm      string
	Checksum       string
	Artifact       Artifact
}

type SignatureDetail struct {
	Signer    string
	Valid     bool
	Timestamp time.Time
	Reason    string
	Error     string
}

type VerificationReport struct {
	IsValid          bool
	ChecksumMatch    bool
	ExpectedChecksum string
	ActualChecksum   string
	Signatures       []SignatureDetail
	CheckedAt        time.Time
}

// SealSummary is the tamper-evidence record for an artifact.
type SealSummary struct {
	Hash      string `json:"hash" yaml:"hash"`
	Pages     int    `json:"pages" yaml:"pages"`
	Size      int    `json:"size" yaml:"size"`
	Algorithm string `json:"algorithm" yaml:"algorithm"`
}

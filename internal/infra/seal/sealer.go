package seal

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/asn1"
	"encoding/pem"
	"errors"
	"fmt"
	"time"

	"kredilakay/internal/domain"

	"go.mozilla.org/pkcs7"
)

// Signed attributes carrying the signing context, under a private arc.
var (
	oidAttributeReason   = asn1.ObjectIdentifier{1, 3, 6, 1, 4, 1, 59713, 1, 1}
	oidAttributeLocation = asn1.ObjectIdentifier{1, 3, 6, 1, 4, 1, 59713, 1, 2}
	oidAttributeContact  = asn1.ObjectIdentifier{1, 3, 6, 1, 4, 1, 59713, 1, 3}
)

// Sealer checksums artifacts and, given a signing identity, attaches a
// detached CMS signature. It holds no per-call state.
type Sealer struct {
	roots *x509.CertPool
	clock func() time.Time
}

// New returns a Sealer. With nil roots, signatures are checked against the
// certificate embedded in each signature only.
func New(roots *x509.CertPool) *Sealer {
	return &Sealer{roots: roots, clock: time.Now}
}

func (s *Sealer) WithClock(clock func() time.Time) *Sealer {
	s.clock = clock
	return s
}

func (s *Sealer) Seal(ctx context.Context, artifact domain.Artifact, signer *domain.SigningIdentity) (domain.SealingResult, error) {
	if err := ctx.Err(); err != nil {
		return domain.SealingResult{}, err
	}
	if signer == nil {
		out := artifact.WithContent(artifact.Content, artifact.PageCount)
		return domain.SealingResult{
			Algorithm: domain.AlgorithmSHA256,
			Checksum:  out.ContentHash,
			Artifact:  out,
		}, nil
	}
	if !signer.Complete() {
		return domain.SealingResult{}, &domain.SealError{Kind: domain.ErrMissingCredentials}
	}
	algorithm, err := signatureAlgorithm(signer)
	if err != nil {
		return domain.SealingResult{}, &domain.SealError{Kind: domain.ErrMissingCredentials, Err: err}
	}

	sd, err := pkcs7.NewSignedData(artifact.Content)
	if err != nil {
		return domain.SealingResult{}, &domain.SealError{Kind: domain.ErrSigningFailed, Err: err}
	}
	sd.SetDigestAlgorithm(pkcs7.OIDDigestAlgorithmSHA256)
	cfg := pkcs7.SignerInfoConfig{ExtraSignedAttributes: contextAttributes(signer)}
	if err := sd.AddSignerChain(signer.Certificate, signer.PrivateKey, signer.Chain, cfg); err != nil {
		return domain.SealingResult{}, &domain.SealError{Kind: domain.ErrSigningFailed, Err: err}
	}
	sd.Detach()
	der, err := sd.Finish()
	if err != nil {
		return domain.SealingResult{}, &domain.SealError{Kind: domain.ErrSigningFailed, Err: err}
	}

	signedAt := s.now()
	if p7, err := pkcs7.Parse(der); err == nil {
		var ts time.Time
		if err := p7.UnmarshalSignedAttribute(pkcs7.OIDAttributeSigningTime, &ts); err == nil {
			signedAt = ts.UTC()
		}
	}

	out := artifact.WithContent(appendTrailer(artifact.Content, der), artifact.PageCount)
	out.Sealed = true
	return domain.SealingResult{
		Signed:         true,
		SignerIdentity: signer.CommonName(),
		SignedAt:       signedAt,
		Algorithm:      algorithm,
		Checksum:       out.ContentHash,
		Artifact:       out,
	}, nil
}

// Verify recomputes the checksum and checks every embedded signature. It
// never fails; problems are reported in the returned report.
func (s *Sealer) Verify(ctx context.Context, artifact domain.Artifact) domain.VerificationReport {
	actual := domain.SHA256Hex(artifact.Content)
	report := domain.VerificationReport{
		ChecksumMatch:    artifact.ContentHash != "" && artifact.ContentHash == actual,
		ExpectedChecksum: artifact.ContentHash,
		ActualChecksum:   actual,
		CheckedAt:        s.now(),
	}

	trailers, err := findTrailers(artifact.Content)
	if err != nil {
		report.Signatures = []domain.SignatureDetail{{Error: err.Error()}}
		return report
	}
	allValid := true
	for _, t := range trailers {
		if ctx.Err() != nil {
			report.Signatures = append(report.Signatures, domain.SignatureDetail{Error: ctx.Err().Error()})
			allValid = false
			break
		}
		detail := s.verifyTrailer(artifact.Content[:t.offset], t.der)
		if !detail.Valid {
			allValid = false
		}
		report.Signatures = append(report.Signatures, detail)
	}
	if allValid && unsignedTail(artifact.Content, trailers) {
		last := &report.Signatures[len(report.Signatures)-1]
		last.Valid = false
		last.Error = "content after the outermost seal is not signed"
		allValid = false
	}
	report.IsValid = report.ChecksumMatch && allValid
	return report
}

func (s *Sealer) verifyTrailer(signed, der []byte) domain.SignatureDetail {
	p7, err := pkcs7.Parse(der)
	if err != nil {
		return domain.SignatureDetail{Error: fmt.Sprintf("parse signature: %v", err)}
	}
	detail := domain.SignatureDetail{}
	if cert := p7.GetOnlySigner(); cert != nil {
		detail.Signer = cert.Subject.CommonName
	}
	var ts time.Time
	if err := p7.UnmarshalSignedAttribute(pkcs7.OIDAttributeSigningTime, &ts); err == nil {
		detail.Timestamp = ts.UTC()
	}
	var reason string
	if err := p7.UnmarshalSignedAttribute(oidAttributeReason, &reason); err == nil {
		detail.Reason = reason
	}

	var digest []byte
	if err := p7.UnmarshalSignedAttribute(pkcs7.OIDAttributeMessageDigest, &digest); err != nil {
		detail.Error = "signature carries no message digest"
		return detail
	}
	sum := sha256.Sum256(signed)
	if !bytes.Equal(digest, sum[:]) {
		detail.Error = "embedded checksum does not match signed content"
		return detail
	}

	p7.Content = signed
	if s.roots != nil {
		err = p7.VerifyWithChain(s.roots)
	} else {
		err = p7.Verify()
	}
	if err != nil {
		detail.Error = err.Error()
		return detail
	}
	detail.Valid = true
	return detail
}

// Summary is the tamper-evidence record for artifact.
func Summary(artifact domain.Artifact) domain.SealSummary {
	return domain.SealSummary{
		Hash:      domain.SHA256Hex(artifact.Content),
		Pages:     artifact.PageCount,
		Size:      len(artifact.Content),
		Algorithm: domain.AlgorithmSHA256,
	}
}

// ParseTrustRoots reads PEM certificates into a pool.
func ParseTrustRoots(pemData []byte) (*x509.CertPool, error) {
	pool := x509.NewCertPool()
	found := 0
	for {
		var block *pem.Block
		block, pemData = pem.Decode(pemData)
		if block == nil {
			break
		}
		if block.Type != "CERTIFICATE" {
			continue
		}
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, err
		}
		pool.AddCert(cert)
		found++
	}
	if found == 0 {
		return nil, errors.New("no certificates in trust roots")
	}
	return pool, nil
}

func signatureAlgorithm(signer *domain.SigningIdentity) (string, error) {
	switch signer.PrivateKey.Public().(type) {
	case *rsa.PublicKey:
		return domain.AlgorithmSHA256RSA, nil
	case *ecdsa.PublicKey:
		return domain.AlgorithmSHA256ECDSA, nil
	default:
		return "", fmt.Errorf("unsupported signing key type %T", signer.PrivateKey.Public())
	}
}

func contextAttributes(signer *domain.SigningIdentity) []pkcs7.Attribute {
	var attrs []pkcs7.Attribute
	if signer.Reason != "" {
		attrs = append(attrs, pkcs7.Attribute{Type: oidAttributeReason, Value: signer.Reason})
	}
	if signer.Location != "" {
		attrs = append(attrs, pkcs7.Attribute{Type: oidAttributeLocation, Value: signer.Location})
	}
	if signer.Contact != "" {
		attrs = append(attrs, pkcs7.Attribute{Type: oidAttributeContact, Value: signer.Contact})
	}
	return attrs
}

func (s *Sealer) now() time.Time {
	if s != nil && s.clock != nil {
		return s.clock().UTC()
	}
	return time.Now().UTC()
}

package seal

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"kredilakay/internal/domain"
	"kredilakay/internal/infra/seal/sealtest"
)

func samplePDF() domain.Artifact {
	content := []byte("%PDF-1.3\n1 0 obj\n<< /Type /Catalog >>\nendobj\nxref\n0 1\ntrailer\n<< /Size 1 >>\nstartxref\n42\n%%EOF\n")
	return domain.NewArtifact(content, 1)
}

func TestSealWithoutSignerOnlyChecksums(t *testing.T) {
	in := samplePDF()
	res, err := New(nil).Seal(context.Background(), in, nil)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if res.Signed || res.Artifact.Sealed {
		t.Fatal("unsigned seal must not mark the artifact sealed")
	}
	if res.Algorithm != domain.AlgorithmSHA256 || res.Checksum != in.ContentHash {
		t.Fatalf("unexpected result %+v", res)
	}
	if !bytes.Equal(res.Artifact.Content, in.Content) {
		t.Fatal("unsigned seal changed content")
	}
	report := New(nil).Verify(context.Background(), res.Artifact)
	if !report.IsValid || !report.ChecksumMatch || len(report.Signatures) != 0 {
		t.Fatalf("unexpected report %+v", report)
	}
}

func TestSealAndVerifyRSA(t *testing.T) {
	h := sealtest.RSA(t, "KrediLakay Signing")
	sealer := New(h.Pool())
	res, err := sealer.Seal(context.Background(), samplePDF(), h.Identity)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if !res.Signed || !res.Artifact.Sealed {
		t.Fatal("expected signed, sealed artifact")
	}
	if res.Algorithm != domain.AlgorithmSHA256RSA {
		t.Fatalf("unexpected algorithm %s", res.Algorithm)
	}
	if res.SignerIdentity != "KrediLakay Signing" || res.SignedAt.IsZero() {
		t.Fatalf("unexpected signer metadata %+v", res)
	}
	if res.Checksum != domain.SHA256Hex(res.Artifact.Content) {
		t.Fatal("checksum does not cover sealed bytes")
	}
	if !bytes.HasSuffix(res.Artifact.Content, []byte("startxref\n42\n%%EOF\n")) {
		t.Fatal("sealed document lost its startxref tail")
	}

	report := sealer.Verify(context.Background(), res.Artifact)
	if !report.IsValid || !report.ChecksumMatch {
		t.Fatalf("expected valid report, got %+v", report)
	}
	if len(report.Signatures) != 1 {
		t.Fatalf("expected 1 signature, got %d", len(report.Signatures))
	}
	sig := report.Signatures[0]
	if !sig.Valid || sig.Signer != "KrediLakay Signing" || sig.Reason != "KrediGest Document Certification" {
		t.Fatalf("unexpected signature detail %+v", sig)
	}
}

func TestSealAndVerifyECDSA(t *testing.T) {
	h := sealtest.ECDSA(t, "KrediLakay EC")
	res, err := New(nil).Seal(context.Background(), samplePDF(), h.Identity)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if res.Algorithm != domain.AlgorithmSHA256ECDSA {
		t.Fatalf("unexpected algorithm %s", res.Algorithm)
	}
	if report := New(nil).Verify(context.Background(), res.Artifact); !report.IsValid {
		t.Fatalf("expected valid report, got %+v", report)
	}
}

func TestVerifyDetectsSingleByteMutation(t *testing.T) {
	h := sealtest.RSA(t, "KrediLakay Signing")
	sealer := New(h.Pool())
	res, err := sealer.Seal(context.Background(), samplePDF(), h.Identity)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}

	tampered := res.Artifact.Clone()
	tampered.Content[12] ^= 0x01
	report := sealer.Verify(context.Background(), tampered)
	if report.IsValid || report.ChecksumMatch {
		t.Fatalf("mutation not detected: %+v", report)
	}
	if len(report.Signatures) != 1 || report.Signatures[0].Valid {
		t.Fatalf("signature should fail over mutated content: %+v", report.Signatures)
	}

	// Recomputing the hash hides the checksum mismatch but not the signature.
	rehashed := domain.NewArtifact(tampered.Content, tampered.PageCount)
	report = sealer.Verify(context.Background(), rehashed)
	if !report.ChecksumMatch || report.IsValid {
		t.Fatalf("signature check should still fail: %+v", report)
	}
}

func TestVerifyRejectsUnsignedTail(t *testing.T) {
	h := sealtest.RSA(t, "KrediLakay Signing")
	sealer := New(h.Pool())
	res, err := sealer.Seal(context.Background(), samplePDF(), h.Identity)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	sealed := res.Artifact.Content

	flipped := append([]byte(nil), sealed...)
	flipped[len(flipped)-9] ^= 0x01 // a digit of the repeated startxref offset
	update := append(append([]byte(nil), sealed...),
		"1 0 obj << /Type /Catalog /Injected true >> endobj\nstartxref\n0\n%%EOF\n"...)
	cases := map[string][]byte{
		"tail byte flipped":   flipped,
		"incremental update":  update,
		"trailing whitespace": append(append([]byte(nil), sealed...), ' '),
		"tail truncated":      sealed[:len(sealed)-1],
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			report := sealer.Verify(context.Background(), domain.NewArtifact(content, 1))
			if !report.ChecksumMatch {
				t.Fatalf("checksum should match recomputed hash: %+v", report)
			}
			if report.IsValid {
				t.Fatalf("unsigned tail accepted: %+v", report)
			}
			if len(report.Signatures) != 1 || report.Signatures[0].Error == "" {
				t.Fatalf("expected an error on the outer signature: %+v", report.Signatures)
			}
		})
	}
}

func TestVerifyCounterSignedTail(t *testing.T) {
	first := sealtest.RSA(t, "Agent")
	second := sealtest.RSA(t, "Supervisor")
	sealer := New(nil)
	res, err := sealer.Seal(context.Background(), samplePDF(), first.Identity)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	res, err = sealer.Seal(context.Background(), res.Artifact, second.Identity)
	if err != nil {
		t.Fatalf("counter-sign: %v", err)
	}
	content := append(append([]byte(nil), res.Artifact.Content...), "%%EOF\n"...)
	report := sealer.Verify(context.Background(), domain.NewArtifact(content, 1))
	if report.IsValid {
		t.Fatal("bytes after a counter-signature must not verify")
	}
	if !report.Signatures[0].Valid || report.Signatures[1].Valid {
		t.Fatalf("only the outer signature should fail: %+v", report.Signatures)
	}
}

func TestVerifyRejectsUntrustedSigner(t *testing.T) {
	signer := sealtest.RSA(t, "Rogue")
	other := sealtest.RSA(t, "KrediLakay Signing")
	res, err := New(nil).Seal(context.Background(), samplePDF(), signer.Identity)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	report := New(other.Pool()).Verify(context.Background(), res.Artifact)
	if report.IsValid {
		t.Fatal("signature chained to an unknown root must not verify")
	}
}

func TestSealMissingCredentials(t *testing.T) {
	h := sealtest.RSA(t, "x")
	incomplete := *h.Identity
	incomplete.PrivateKey = nil
	_, err := New(nil).Seal(context.Background(), samplePDF(), &incomplete)
	if !errors.Is(err, domain.ErrMissingCredentials) {
		t.Fatalf("expected ErrMissingCredentials, got %v", err)
	}
	var se *domain.SealError
	if !errors.As(err, &se) {
		t.Fatalf("expected SealError, got %T", err)
	}
}

func TestCounterSignature(t *testing.T) {
	first := sealtest.RSA(t, "Agent")
	second := sealtest.ECDSA(t, "Supervisor")
	sealer := New(nil)
	res, err := sealer.Seal(context.Background(), samplePDF(), first.Identity)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	res, err = sealer.Seal(context.Background(), res.Artifact, second.Identity)
	if err != nil {
		t.Fatalf("counter-sign: %v", err)
	}
	report := sealer.Verify(context.Background(), res.Artifact)
	if !report.IsValid || len(report.Signatures) != 2 {
		t.Fatalf("expected two valid signatures, got %+v", report)
	}
	if report.Signatures[0].Signer != "Agent" || report.Signatures[1].Signer != "Supervisor" {
		t.Fatalf("unexpected signer order %+v", report.Signatures)
	}
}

func TestSummary(t *testing.T) {
	in := samplePDF()
	s := Summary(in)
	if s.Hash != in.ContentHash || s.Size != len(in.Content) || s.Pages != 1 || s.Algorithm != "SHA-256" {
		t.Fatalf("unexpected summary %+v", s)
	}
}

func TestParseTrustRoots(t *testing.T) {
	h := sealtest.RSA(t, "x")
	if _, err := ParseTrustRoots(h.RootPEM); err != nil {
		t.Fatalf("ParseTrustRoots: %v", err)
	}
	if _, err := ParseTrustRoots([]byte("nothing here")); err == nil {
		t.Fatal("expected error for empty pem")
	}
}

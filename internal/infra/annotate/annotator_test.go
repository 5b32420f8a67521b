package annotate

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"testing/fstest"
	"time"

	"kredilakay/internal/domain"
	"kredilakay/internal/infra/compose"
	"kredilakay/internal/infra/render"
	"kredilakay/internal/infra/resources"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/shopspring/decimal"
)

func composed(t *testing.T) domain.Artifact {
	t.Helper()
	provider := resources.Embedded()
	c := compose.New(render.New(provider), provider)
	artifact, err := c.Compose(context.Background(), domain.DocumentSpec{
		Kind:      domain.DocumentKindReceipt,
		SubjectID: "L-9",
		RenderContext: map[string]string{
			"loan_id":      "L-9",
			"client_name":  "Rose Pierre",
			"payment_id":   "P-1",
			"amount_paid":  "500",
			"payment_date": "2024-03-01",
		},
	})
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	return artifact
}

func overdue(due, asOf string) *domain.PenaltyInfo {
	d, _ := time.Parse("2006-01-02", due)
	a, _ := time.Parse("2006-01-02", asOf)
	return &domain.PenaltyInfo{
		DueDate:          d,
		AsOfDate:         a,
		PrincipalDue:     decimal.NewFromInt(1000),
		DailyPenaltyRate: decimal.RequireFromString("0.02"),
	}
}

func strPtr(s string) *string { return &s }

func TestAnnotateEmptyOverlaysReturnsInput(t *testing.T) {
	in := composed(t)
	out, err := New(resources.Embedded(), PenaltyPolicy{}).Annotate(context.Background(), in, domain.OverlaySet{})
	if err != nil {
		t.Fatalf("Annotate: %v", err)
	}
	if !bytes.Equal(in.Content, out.Content) || in.ContentHash != out.ContentHash {
		t.Fatal("empty overlay set changed the artifact")
	}
}

func TestAnnotateRefusesSealedArtifact(t *testing.T) {
	in := composed(t)
	in.Sealed = true
	_, err := New(resources.Embedded(), PenaltyPolicy{}).Annotate(context.Background(), in, domain.OverlaySet{WatermarkText: strPtr("X")})
	if !errors.Is(err, domain.ErrArtifactSealed) {
		t.Fatalf("expected ErrArtifactSealed, got %v", err)
	}
}

func TestAnnotateAllOverlays(t *testing.T) {
	in := composed(t)
	a := New(resources.Embedded(), PenaltyPolicy{GraceDays: 5})
	out, err := a.Annotate(context.Background(), in, domain.OverlaySet{
		WatermarkText:   strPtr("KREDILAKAY - CONFIDENTIEL"),
		SecuritySeal:    true,
		PenaltyBanner:   overdue("2024-01-01", "2024-01-10"),
		VerificationURL: strPtr("https://kredilakay.example/verify-contract?loan=L-9"),
	})
	if err != nil {
		t.Fatalf("Annotate: %v", err)
	}
	if bytes.Equal(in.Content, out.Content) {
		t.Fatal("overlays did not change the document")
	}
	if out.ContentHash != domain.SHA256Hex(out.Content) {
		t.Fatal("hash not recomputed")
	}
	if out.PageCount != in.PageCount {
		t.Fatalf("page count changed: %d -> %d", in.PageCount, out.PageCount)
	}
	pages, err := api.PageCount(bytes.NewReader(out.Content), newConfiguration())
	if err != nil || pages != in.PageCount {
		t.Fatalf("annotated output unreadable: %d %v", pages, err)
	}
	if in.ContentHash == out.ContentHash {
		t.Fatal("input artifact hash reused")
	}
}

func TestAnnotateOnTimePenaltyIsSkipped(t *testing.T) {
	in := composed(t)
	out, err := New(resources.Embedded(), PenaltyPolicy{}).Annotate(context.Background(), in, domain.OverlaySet{
		PenaltyBanner: overdue("2024-01-01", "2024-01-01"),
	})
	if err != nil {
		t.Fatalf("Annotate: %v", err)
	}
	if !bytes.Equal(in.Content, out.Content) {
		t.Fatal("penalty banner drawn with zero days late")
	}
}

func TestAnnotateMissingSealResource(t *testing.T) {
	in := composed(t)
	_, err := New(resources.FromFS(fstest.MapFS{}), PenaltyPolicy{}).Annotate(context.Background(), in, domain.OverlaySet{SecuritySeal: true})
	if !errors.Is(err, domain.ErrMissingResource) {
		t.Fatalf("expected ErrMissingResource, got %v", err)
	}
	var ae *domain.AnnotateError
	if !errors.As(err, &ae) || ae.Overlay != domain.OverlaySecuritySeal {
		t.Fatalf("expected security seal overlay in error, got %+v", ae)
	}
}

func TestAnnotateRejectsBadVerificationURL(t *testing.T) {
	in := composed(t)
	_, err := New(resources.Embedded(), PenaltyPolicy{}).Annotate(context.Background(), in, domain.OverlaySet{VerificationURL: strPtr("javascript:alert(1)")})
	var ae *domain.AnnotateError
	if !errors.As(err, &ae) || ae.Overlay != domain.OverlayVerification {
		t.Fatalf("expected verification overlay error, got %v", err)
	}
}

func TestPlanFollowsFixedOrder(t *testing.T) {
	a := New(resources.Embedded(), PenaltyPolicy{})
	stamps, err := a.plan(domain.OverlaySet{
		VerificationURL: strPtr("https://kredilakay.example/v"),
		PenaltyBanner:   overdue("2024-01-01", "2024-02-01"),
		SecuritySeal:    true,
		WatermarkText:   strPtr("W"),
	})
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	want := []domain.OverlayKind{domain.OverlayWatermark, domain.OverlaySecuritySeal, domain.OverlayPenaltyBanner, domain.OverlayVerification}
	if len(stamps) != len(want) {
		t.Fatalf("expected %d stamps, got %d", len(want), len(stamps))
	}
	for i, s := range stamps {
		if s.kind != want[i] {
			t.Fatalf("stamp %d: got %s want %s", i, s.kind, want[i])
		}
	}
}

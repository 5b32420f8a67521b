package compose

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"
	"testing/fstest"

	"kredilakay/internal/domain"
	"kredilakay/internal/infra/render"
	"kredilakay/internal/infra/resources"
)

func newComposer() *Composer {
	provider := resources.Embedded()
	return New(render.New(provider), provider)
}

func contractSpec() domain.DocumentSpec {
	return domain.DocumentSpec{
		Kind:      domain.DocumentKindContract,
		SubjectID: "L-1001",
		RenderContext: map[string]string{
			"loan_id":             "L-1001",
			"client_name":         "Jean-Baptiste Étienne",
			"client_id":           "C-42",
			"amount":              "15000",
			"duration_days":       "60",
			"daily_interest_rate": "0.3",
		},
	}
}

func signaturePNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 40, 12))
	for x := 0; x < 40; x++ {
		img.Set(x, 6, color.Black)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func TestComposeIsDeterministic(t *testing.T) {
	c := newComposer()
	first, err := c.Compose(context.Background(), contractSpec())
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	second, err := c.Compose(context.Background(), contractSpec())
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if !bytes.Equal(first.Content, second.Content) {
		t.Fatal("identical specs produced different bytes")
	}
	if first.ContentHash != second.ContentHash {
		t.Fatal("identical specs produced different hashes")
	}
	if !bytes.HasPrefix(first.Content, []byte("%PDF-")) {
		t.Fatal("output is not a pdf")
	}
	if !bytes.Contains(first.Content, []byte("D:20000101")) {
		t.Fatal("expected fixed creation date")
	}
	if first.PageCount != 2 {
		t.Fatalf("expected cover and terms pages, got %d", first.PageCount)
	}
	if first.Sealed {
		t.Fatal("fresh artifact must not be sealed")
	}
}

func TestComposeDifferentSpecsDiffer(t *testing.T) {
	c := newComposer()
	a, err := c.Compose(context.Background(), contractSpec())
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	spec := contractSpec()
	spec.RenderContext["amount"] = "16000"
	b, err := c.Compose(context.Background(), spec)
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if a.ContentHash == b.ContentHash {
		t.Fatal("different specs produced identical output")
	}
}

func TestComposeWithSignaturePage(t *testing.T) {
	spec := contractSpec()
	spec.SignatureImage = signaturePNG(t)
	artifact, err := newComposer().Compose(context.Background(), spec)
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if artifact.PageCount != 3 {
		t.Fatalf("expected signature page, got %d pages", artifact.PageCount)
	}
}

func TestComposeRejectsUnknownSignatureFormat(t *testing.T) {
	spec := contractSpec()
	spec.SignatureImage = []byte("GIF89a....")
	_, err := newComposer().Compose(context.Background(), spec)
	if !errors.Is(err, domain.ErrRenderFailure) {
		t.Fatalf("expected ErrRenderFailure, got %v", err)
	}
}

func TestComposeMissingLogo(t *testing.T) {
	templates := resources.Embedded()
	c := New(render.New(templates), resources.FromFS(fstest.MapFS{}))
	_, err := c.Compose(context.Background(), contractSpec())
	if !errors.Is(err, domain.ErrRenderFailure) || !errors.Is(err, domain.ErrMissingResource) {
		t.Fatalf("expected render failure caused by missing resource, got %v", err)
	}
}

func TestComposePropagatesMissingField(t *testing.T) {
	spec := contractSpec()
	delete(spec.RenderContext, "loan_id")
	_, err := newComposer().Compose(context.Background(), spec)
	if !errors.Is(err, domain.ErrMissingRequiredField) {
		t.Fatalf("expected ErrMissingRequiredField, got %v", err)
	}
}

func TestComposeHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := newComposer().Compose(ctx, contractSpec()); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

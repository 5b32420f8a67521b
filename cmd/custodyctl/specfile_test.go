package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"kredilakay/internal/domain"
)

const contractYAML = `
kind: contract
subject_id: L-1001
context:
  loan_id: L-1001
  client_name: Marie Joseph
  amount: 15000
signature_image: sig.png
penalty:
  due_date: 2024-03-01
  as_of_date: 2024-03-11
  principal_due: 1000
  daily_penalty_rate: "0.02"
overlays:
  watermark: CONFIDENTIEL
  security_seal: true
  penalty_banner: true
  verification_url: ""
signer: default
`

func TestParseSpecFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "sig.png"), []byte("png-bytes"), 0o600); err != nil {
		t.Fatalf("write image: %v", err)
	}
	req, err := parseSpecFile([]byte(contractYAML), dir)
	if err != nil {
		t.Fatalf("parseSpecFile: %v", err)
	}
	if req.Spec.Kind != domain.DocumentKindContract || req.Spec.SubjectID != "L-1001" {
		t.Fatalf("unexpected spec %+v", req.Spec)
	}
	if req.Spec.RenderContext["amount"] != "15000" {
		t.Fatalf("numeric context value not kept as text: %q", req.Spec.RenderContext["amount"])
	}
	if string(req.Spec.SignatureImage) != "png-bytes" {
		t.Fatal("signature image not loaded relative to spec dir")
	}
	if req.Spec.Penalty == nil || req.Spec.Penalty.PrincipalDue.String() != "1000" || req.Spec.Penalty.AsOfDate.Day() != 11 {
		t.Fatalf("unexpected penalty %+v", req.Spec.Penalty)
	}
	o := req.Overlays
	if o.WatermarkText == nil || *o.WatermarkText != "CONFIDENTIEL" || !o.SecuritySeal || o.PenaltyBanner == nil {
		t.Fatalf("unexpected overlays %+v", o)
	}
	if o.VerificationURL == nil || *o.VerificationURL != "" {
		t.Fatal("empty verification_url should request the default URL")
	}
	if req.SignerRef != "default" {
		t.Fatalf("unexpected signer %q", req.SignerRef)
	}
}

func TestParseSpecFileJSON(t *testing.T) {
	req, err := parseSpecFile([]byte(`{"kind":"receipt","subject_id":"L-9","context":{"payment_id":"P-1"}}`), ".")
	if err != nil {
		t.Fatalf("parseSpecFile: %v", err)
	}
	if req.Spec.Kind != domain.DocumentKindReceipt || !req.Overlays.Empty() {
		t.Fatalf("unexpected request %+v", req)
	}
}

func TestParseSpecFileErrors(t *testing.T) {
	cases := map[string]string{
		"unknown kind":      "kind: invoice\nsubject_id: L-1\n",
		"unknown field":     "kind: receipt\nsubject_id: L-1\nextra: 1\n",
		"banner no penalty": "kind: receipt\nsubject_id: L-1\noverlays:\n  penalty_banner: true\n",
		"bad due date":      "kind: receipt\nsubject_id: L-1\npenalty:\n  due_date: 01/03/2024\n  principal_due: 1\n  daily_penalty_rate: 0.1\n",
		"bad principal":     "kind: receipt\nsubject_id: L-1\npenalty:\n  due_date: 2024-03-01\n  principal_due: lots\n  daily_penalty_rate: 0.1\n",
	}
	for name, doc := range cases {
		if _, err := parseSpecFile([]byte(doc), "."); err == nil {
			t.Fatalf("%s: expected error", name)
		} else if strings.TrimSpace(err.Error()) == "" {
			t.Fatalf("%s: empty error", name)
		}
	}
}

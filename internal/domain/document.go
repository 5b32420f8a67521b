package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type DocumentKind string

const (
	DocumentKindContract      DocumentKind = "contract"
	DocumentKindReceipt       DocumentKind = "receipt"
	DocumentKindIdentityProof DocumentKind = "identity_proof"
	DocumentKindOther         DocumentKind = "other"
)

func ParseDocumentKind(value string) (DocumentKind, error) {
	switch kind := DocumentKind(strings.ToLower(strings.TrimSpace(value))); kind {
	case DocumentKindContract, DocumentKindReceipt, DocumentKindIdentityProof, DocumentKindOther:
		return kind, nil
	default:
		return "", fmt.Errorf("unknown document kind %q", value)
	}
}

// PenaltyInfo describes an overdue amount. Dates are compared as calendar
// days in UTC; the time of day is ignored.
type PenaltyInfo struct {
	DueDate          time.Time
	AsOfDate         time.Time
	PrincipalDue     decimal.Decimal
	DailyPenaltyRate decimal.Decimal
}

type DocumentSpec struct {
	Kind           DocumentKind
	SubjectID      string
	RenderContext  map[string]string
	SignatureImage []byte
	Penalty        *PenaltyInfo
}

func (s DocumentSpec) Clone() DocumentSpec {
	out := DocumentSpec{
		Kind:           s.Kind,
		SubjectID:      s.SubjectID,
		SignatureImage: copyBytes(s.SignatureImage),
	}
	if s.RenderContext != nil {
		out.RenderContext = make(map[string]string, len(s.RenderContext))
		for k, v := range s.RenderContext {
			out.RenderContext[k] = v
		}
	}
	if s.Penalty != nil {
		p := *s.Penalty
		out.Penalty = &p
	}
	return out
}

// Artifact is an immutable PDF byte stream plus the metadata derived from
// it. Stages never mutate an Artifact in place.
type Artifact struct {
	Content     []byte
	ContentHash string
	PageCount   int
	Sealed      bool
}

func NewArtifact(content []byte, pageCount int) Artifact {
	owned := copyBytes(content)
	return Artifact{
		Content:     owned,
		ContentHash: SHA256Hex(owned),
		PageCount:   pageCount,
	}
}

// WithContent returns a copy of a carrying new bytes. The hash is recomputed.
func (a Artifact) WithContent(content []byte, pageCount int) Artifact {
	out := NewArtifact(content, pageCount)
	out.Sealed = a.Sealed
	return out
}

func (a Artifact) Clone() Artifact {
	out := a
	out.Content = copyBytes(a.Content)
	return out
}

func SHA256Hex(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

func copyBytes(in []byte) []byte {
	if in == nil {
		return nil
	}
	out := make([]byte, len(in))
	copy(out, in)
	return out
}

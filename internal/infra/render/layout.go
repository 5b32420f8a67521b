package render

import "kredilakay/internal/domain"

type BlockKind int

const (
	BlockParagraph BlockKind = iota
	BlockListItem
)

// Block is one run of text. Label holds a leading bold phrase, if any.
type Block struct {
	Kind   BlockKind
	Marker string
	Label  string
	Text   string
}

type Section struct {
	Title  string
	Blocks []Block
}

// Layout is the structured, I/O-free description of a document. The
// composer turns it into pages.
type Layout struct {
	Kind      domain.DocumentKind
	SubjectID string
	Title     string
	Preamble  []Block
	Sections  []Section
}

// RequiredFields lists, per kind, the render context keys that must be
// present and non-blank. Order is the order they are checked in.
var RequiredFields = map[domain.DocumentKind][]string{
	domain.DocumentKindContract:      {"loan_id", "client_name", "client_id", "amount", "duration_days", "daily_interest_rate"},
	domain.DocumentKindReceipt:       {"loan_id", "client_name", "payment_id", "amount_paid", "payment_date"},
	domain.DocumentKindIdentityProof: {"client_name", "client_id", "document_number"},
	domain.DocumentKindOther:         {"title"},
}

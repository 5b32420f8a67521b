package compose

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"kredilakay/internal/domain"
	"kredilakay/internal/infra/render"
	"kredilakay/internal/infra/resources"

	"github.com/go-pdf/fpdf"
)

// documentEpoch is stamped as creation and modification date so that the
// same spec always yields the same bytes.
var documentEpoch = time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)

const (
	author  = "KrediLakay"
	creator = "kredilakay document custody"

	marginMM   = 20.0
	lineHeight = 6.0
)

var kindTitles = map[domain.DocumentKind]string{
	domain.DocumentKindContract:      "Contrat",
	domain.DocumentKindReceipt:       "Reçu",
	domain.DocumentKindIdentityProof: "Justificatif d'identité",
	domain.DocumentKindOther:         "Document",
}

type LayoutRenderer interface {
	Render(ctx context.Context, spec domain.DocumentSpec) (render.Layout, error)
}

type Composer struct {
	renderer  LayoutRenderer
	resources resources.Provider
}

func New(renderer LayoutRenderer, provider resources.Provider) *Composer {
	return &Composer{renderer: renderer, resources: provider}
}

// Compose lays the document out as cover, body sections and, when a
// signature image is supplied, a signature page.
func (c *Composer) Compose(ctx context.Context, spec domain.DocumentSpec) (domain.Artifact, error) {
	spec = spec.Clone()
	layout, err := c.renderer.Render(ctx, spec)
	if err != nil {
		return domain.Artifact{}, err
	}
	logo, err := c.resources.Open(resources.LogoImage)
	if err != nil {
		return domain.Artifact{}, domain.RenderFailure(err)
	}
	var signatureType string
	if len(spec.SignatureImage) > 0 {
		signatureType, err = imageType(spec.SignatureImage)
		if err != nil {
			return domain.Artifact{}, domain.RenderFailure(err)
		}
	}
	if err := ctx.Err(); err != nil {
		return domain.Artifact{}, err
	}

	pdf := newDocument(layout)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	w := &writer{pdf: pdf, tr: tr}

	w.cover(layout, logo)
	w.body(layout)
	if signatureType != "" {
		w.signature(spec, signatureType)
	}
	if err := pdf.Error(); err != nil {
		return domain.Artifact{}, domain.RenderFailure(err)
	}

	var out bytes.Buffer
	if err := pdf.Output(&out); err != nil {
		return domain.Artifact{}, domain.RenderFailure(err)
	}
	return domain.NewArtifact(out.Bytes(), pdf.PageCount()), nil
}

func newDocument(layout render.Layout) *fpdf.Fpdf {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetCatalogSort(true)
	pdf.SetCreationDate(documentEpoch)
	pdf.SetModificationDate(documentEpoch)
	pdf.SetCompression(true)
	pdf.SetMargins(marginMM, marginMM, marginMM)
	pdf.SetAutoPageBreak(true, marginMM)
	pdf.AliasNbPages("")

	pdf.SetTitle(layout.Title, true)
	pdf.SetAuthor(author, true)
	pdf.SetCreator(creator, true)
	subject := kindTitles[layout.Kind]
	if layout.SubjectID != "" {
		subject += " " + layout.SubjectID
	}
	pdf.SetSubject(subject, true)

	tr := pdf.UnicodeTranslatorFromDescriptor("")
	footer := tr(author + " - " + subject)
	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.SetTextColor(120, 120, 120)
		pdf.CellFormat(0, 8, footer, "", 0, "L", false, 0, "")
		pdf.SetX(marginMM)
		pdf.CellFormat(0, 8, fmt.Sprintf("Page %d/{nb}", pdf.PageNo()), "", 0, "R", false, 0, "")
		pdf.SetTextColor(0, 0, 0)
	})
	return pdf
}

type writer struct {
	pdf *fpdf.Fpdf
	tr  func(string) string
}

func (w *writer) cover(layout render.Layout, logo []byte) {
	pdf := w.pdf
	pdf.AddPage()
	pdf.RegisterImageOptionsReader("logo", fpdf.ImageOptions{ImageType: "PNG"}, bytes.NewReader(logo))
	pdf.ImageOptions("logo", marginMM, 15, 30, 0, false, fpdf.ImageOptions{ImageType: "PNG"}, 0, "")

	pdf.SetY(60)
	pdf.SetFont("Helvetica", "B", 20)
	pdf.CellFormat(0, 12, w.tr(layout.Title), "", 1, "C", false, 0, "")
	pdf.Ln(8)

	pdf.SetFont("Helvetica", "", 11)
	for _, block := range layout.Preamble {
		w.block(block)
	}
	if layout.SubjectID != "" {
		pdf.Ln(4)
		pdf.SetFont("Helvetica", "I", 10)
		pdf.CellFormat(0, lineHeight, w.tr("Dossier : "+layout.SubjectID), "", 1, "L", false, 0, "")
	}
}

func (w *writer) body(layout render.Layout) {
	if len(layout.Sections) == 0 {
		return
	}
	pdf := w.pdf
	pdf.AddPage()
	for i, section := range layout.Sections {
		if i > 0 {
			pdf.Ln(4)
		}
		if section.Title != "" {
			pdf.SetFont("Helvetica", "B", 14)
			pdf.CellFormat(0, 9, w.tr(section.Title), "B", 1, "L", false, 0, "")
			pdf.Ln(2)
		}
		for _, block := range section.Blocks {
			w.block(block)
		}
	}
}

func (w *writer) block(block render.Block) {
	pdf := w.pdf
	left, _, _, _ := pdf.GetMargins()
	if block.Kind == render.BlockListItem {
		pdf.SetX(left + 4)
		pdf.SetFont("Helvetica", "", 11)
		pdf.Write(lineHeight, block.Marker+" ")
	}
	if block.Label != "" {
		pdf.SetFont("Helvetica", "B", 11)
		pdf.Write(lineHeight, w.tr(block.Label)+" ")
	}
	pdf.SetFont("Helvetica", "", 11)
	pdf.Write(lineHeight, w.tr(block.Text))
	pdf.Ln(lineHeight + 1)
}

func (w *writer) signature(spec domain.DocumentSpec, imgType string) {
	pdf := w.pdf
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(0, 9, w.tr("Signatures"), "B", 1, "L", false, 0, "")
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "", 11)
	pdf.CellFormat(0, lineHeight, w.tr("Signature du client :"), "", 1, "L", false, 0, "")
	opts := fpdf.ImageOptions{ImageType: imgType}
	pdf.RegisterImageOptionsReader("signature", opts, bytes.NewReader(spec.SignatureImage))
	y := pdf.GetY() + 2
	pdf.ImageOptions("signature", marginMM, y, 60, 0, false, opts, 0, "")
	pdf.SetY(y + 35)
	if name := spec.RenderContext["client_name"]; name != "" {
		pdf.CellFormat(0, lineHeight, w.tr(name), "T", 1, "L", false, 0, "")
	}
}

func imageType(data []byte) (string, error) {
	switch {
	case bytes.HasPrefix(data, []byte("\x89PNG\r\n\x1a\n")):
		return "PNG", nil
	case bytes.HasPrefix(data, []byte{0xFF, 0xD8, 0xFF}):
		return "JPG", nil
	default:
		return "", errors.New("signature image must be PNG or JPEG")
	}
}

package annotate

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"kredilakay/internal/domain"
	"kredilakay/internal/infra/resources"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"github.com/skip2/go-qrcode"
)

const (
	watermarkDesc = "fontname:Helvetica-Bold, points:40, scalefactor:1 abs, rotation:45, fillcolor:0.9 0.9 0.9, opacity:0.6"
	sealDesc      = "scalefactor:0.5 rel, rotation:0, opacity:0.2"
	penaltyDesc   = "fontname:Helvetica-Bold, points:12, scalefactor:1 abs, position:tc, offset:0 -24, rotation:0, fillcolor:0.8 0.1 0.1, opacity:1"
	qrDesc        = "position:br, offset:-24 24, scalefactor:0.3 abs, rotation:0, opacity:1"

	qrSizePx = 256
)

var disableConfigDir sync.Once

type Annotator struct {
	resources resources.Provider
	penalty   PenaltyPolicy
}

func New(provider resources.Provider, policy PenaltyPolicy) *Annotator {
	disableConfigDir.Do(api.DisableConfigDir)
	return &Annotator{resources: provider, penalty: policy}
}

type stamp struct {
	kind      domain.OverlayKind
	watermark *model.Watermark
}

// Annotate stamps overlays onto every page in the fixed overlay order.
// Sealed artifacts are refused. An empty overlay set returns the input.
func (a *Annotator) Annotate(ctx context.Context, artifact domain.Artifact, overlays domain.OverlaySet) (domain.Artifact, error) {
	if artifact.Sealed {
		return domain.Artifact{}, &domain.AnnotateError{Kind: domain.ErrArtifactSealed}
	}
	stamps, err := a.plan(overlays)
	if err != nil {
		return domain.Artifact{}, err
	}
	if len(stamps) == 0 {
		return artifact.Clone(), nil
	}

	conf := newConfiguration()
	content := artifact.Content
	for _, s := range stamps {
		if err := ctx.Err(); err != nil {
			return domain.Artifact{}, err
		}
		var out bytes.Buffer
		if err := api.AddWatermarks(bytes.NewReader(content), &out, nil, s.watermark, conf); err != nil {
			return domain.Artifact{}, &domain.AnnotateError{Kind: domain.ErrRenderFailure, Overlay: s.kind, Err: err}
		}
		content = out.Bytes()
	}
	pages, err := api.PageCount(bytes.NewReader(content), conf)
	if err != nil {
		return domain.Artifact{}, &domain.AnnotateError{Kind: domain.ErrRenderFailure, Err: err}
	}
	return artifact.WithContent(content, pages), nil
}

// plan builds the watermarks for overlays in stamping order. Overlays that
// resolve to nothing (a penalty with no days late) are left out.
func (a *Annotator) plan(overlays domain.OverlaySet) ([]stamp, error) {
	var stamps []stamp
	for _, kind := range overlays.Kinds() {
		wm, err := a.watermark(kind, overlays)
		if err != nil {
			var ae *domain.AnnotateError
			if errors.As(err, &ae) {
				return nil, err
			}
			return nil, &domain.AnnotateError{Kind: domain.ErrRenderFailure, Overlay: kind, Err: err}
		}
		if wm != nil {
			stamps = append(stamps, stamp{kind: kind, watermark: wm})
		}
	}
	return stamps, nil
}

func (a *Annotator) watermark(kind domain.OverlayKind, overlays domain.OverlaySet) (*model.Watermark, error) {
	switch kind {
	case domain.OverlayWatermark:
		text := strings.TrimSpace(*overlays.WatermarkText)
		if text == "" {
			return nil, errors.New("watermark text is empty")
		}
		return api.TextWatermark(text, watermarkDesc, false, false, types.POINTS)
	case domain.OverlaySecuritySeal:
		img, err := a.resources.Open(resources.SecuritySealImage)
		if err != nil {
			return nil, &domain.AnnotateError{Kind: domain.ErrMissingResource, Overlay: kind, Err: err}
		}
		return api.ImageWatermarkForReader(bytes.NewReader(img), sealDesc, false, false, types.POINTS)
	case domain.OverlayPenaltyBanner:
		assessment := a.penalty.Assess(*overlays.PenaltyBanner)
		if assessment.DaysLate == 0 {
			return nil, nil
		}
		return api.TextWatermark(a.penaltyText(assessment), penaltyDesc, true, false, types.POINTS)
	case domain.OverlayVerification:
		target, err := url.ParseRequestURI(*overlays.VerificationURL)
		if err != nil || (target.Scheme != "http" && target.Scheme != "https") {
			return nil, fmt.Errorf("invalid verification url %q", *overlays.VerificationURL)
		}
		png, err := qrcode.Encode(target.String(), qrcode.Medium, qrSizePx)
		if err != nil {
			return nil, err
		}
		return api.ImageWatermarkForReader(bytes.NewReader(png), qrDesc, true, false, types.POINTS)
	}
	return nil, fmt.Errorf("unknown overlay %q", kind)
}

func (a *Annotator) penaltyText(p PenaltyAssessment) string {
	cur := a.penalty.currency()
	return fmt.Sprintf("RETARD DE PAIEMENT: %d jour(s) - Penalite: %s %s - Total du: %s %s",
		p.DaysLate, p.Penalty.StringFixed(2), cur, p.Total.StringFixed(2), cur)
}

func newConfiguration() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"kredilakay/internal/domain"
	"kredilakay/internal/usecase"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// specFile is the on-disk produce request. JSON files parse as well,
// being valid YAML.
type specFile struct {
	Kind           string            `yaml:"kind"`
	SubjectID      string            `yaml:"subject_id"`
	Context        map[string]string `yaml:"context"`
	SignatureImage string            `yaml:"signature_image"`
	Penalty        *penaltyFile      `yaml:"penalty"`
	Overlays       overlaysFile      `yaml:"overlays"`
	Signer         string            `yaml:"signer"`
}

type penaltyFile struct {
	DueDate          string `yaml:"due_date"`
	AsOfDate         string `yaml:"as_of_date"`
	PrincipalDue     string `yaml:"principal_due"`
	DailyPenaltyRate string `yaml:"daily_penalty_rate"`
}

type overlaysFile struct {
	Watermark       *string `yaml:"watermark"`
	SecuritySeal    bool    `yaml:"security_seal"`
	PenaltyBanner   bool    `yaml:"penalty_banner"`
	VerificationURL *string `yaml:"verification_url"`
}

const dateLayout = "2006-01-02"

func loadSpecFile(path string) (usecase.ProduceRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return usecase.ProduceRequest{}, err
	}
	return parseSpecFile(data, filepath.Dir(path))
}

// parseSpecFile decodes data. Relative image paths resolve against dir.
func parseSpecFile(data []byte, dir string) (usecase.ProduceRequest, error) {
	var f specFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return usecase.ProduceRequest{}, fmt.Errorf("spec file: %w", err)
	}

	kind, err := domain.ParseDocumentKind(f.Kind)
	if err != nil {
		return usecase.ProduceRequest{}, err
	}
	req := usecase.ProduceRequest{
		Spec: domain.DocumentSpec{
			Kind:          kind,
			SubjectID:     strings.TrimSpace(f.SubjectID),
			RenderContext: f.Context,
		},
		SignerRef: f.Signer,
	}
	if f.SignatureImage != "" {
		p := f.SignatureImage
		if !filepath.IsAbs(p) {
			p = filepath.Join(dir, p)
		}
		img, err := os.ReadFile(p)
		if err != nil {
			return usecase.ProduceRequest{}, fmt.Errorf("signature image: %w", err)
		}
		req.Spec.SignatureImage = img
	}
	if f.Penalty != nil {
		info, err := f.Penalty.info()
		if err != nil {
			return usecase.ProduceRequest{}, err
		}
		req.Spec.Penalty = &info
	}

	req.Overlays = domain.OverlaySet{
		WatermarkText:   f.Overlays.Watermark,
		SecuritySeal:    f.Overlays.SecuritySeal,
		VerificationURL: f.Overlays.VerificationURL,
	}
	if f.Overlays.PenaltyBanner {
		if req.Spec.Penalty == nil {
			return usecase.ProduceRequest{}, errors.New("penalty_banner requires a penalty section")
		}
		p := *req.Spec.Penalty
		req.Overlays.PenaltyBanner = &p
	}
	return req, nil
}

func (p penaltyFile) info() (domain.PenaltyInfo, error) {
	due, err := time.Parse(dateLayout, p.DueDate)
	if err != nil {
		return domain.PenaltyInfo{}, fmt.Errorf("penalty due_date: %w", err)
	}
	asOf := time.Now().UTC()
	if p.AsOfDate != "" {
		if asOf, err = time.Parse(dateLayout, p.AsOfDate); err != nil {
			return domain.PenaltyInfo{}, fmt.Errorf("penalty as_of_date: %w", err)
		}
	}
	principal, err := decimal.NewFromString(p.PrincipalDue)
	if err != nil {
		return domain.PenaltyInfo{}, fmt.Errorf("penalty principal_due: %w", err)
	}
	rate, err := decimal.NewFromString(p.DailyPenaltyRate)
	if err != nil {
		return domain.PenaltyInfo{}, fmt.Errorf("penalty daily_penalty_rate: %w", err)
	}
	return domain.PenaltyInfo{
		DueDate:          due,
		AsOfDate:         asOf,
		PrincipalDue:     principal,
		DailyPenaltyRate: rate,
	}, nil
}

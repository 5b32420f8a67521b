package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"kredilakay/internal/domain"
	"kredilakay/internal/metrics"

	"go.uber.org/zap"
)

type ProduceRequest struct {
	Spec     domain.DocumentSpec
	Overlays domain.OverlaySet
	// Signer is used as given. When nil and SignerRef is set, the signer
	// is fetched from Keys.
	Signer    *domain.SigningIdentity
	SignerRef string
}

// RetrieveResult pairs the artifact with the report produced for this
// read. Artifact is empty whenever the report is not valid.
type RetrieveResult struct {
	Artifact domain.Artifact
	Report   domain.VerificationReport
}

// Custody runs the produce and retrieve pipelines. Metrics, Audit, Keys
// and Logger are optional.
type Custody struct {
	Composer  Composer
	Annotator Annotator
	Sealer    Sealer
	Vault     Vault
	Handles   HandleRepository

	Keys          domain.KeyCustodian
	Audit         *AuditEmitter
	Metrics       *metrics.Metrics
	Logger        *zap.Logger
	VerifyBaseURL string
}

func NewCustody(composer Composer, annotator Annotator, sealer Sealer, vault Vault, handles HandleRepository) *Custody {
	return &Custody{
		Composer:  composer,
		Annotator: annotator,
		Sealer:    sealer,
		Vault:     vault,
		Handles:   handles,
		Logger:    zap.NewNop(),
	}
}

// DefaultVerificationURL is where the verification QR points when the
// caller asks for one without a URL.
func DefaultVerificationURL(baseURL, subjectID string) string {
	return strings.TrimRight(baseURL, "/") + "/verify-contract?loan=" + url.QueryEscape(subjectID)
}

// Produce composes, annotates, seals and stores one document. Nothing is
// left in storage and no handle is returned unless every step succeeds.
func (c *Custody) Produce(ctx context.Context, req ProduceRequest) (domain.SealedArtifactHandle, error) {
	if err := c.ready(); err != nil {
		return domain.SealedArtifactHandle{}, err
	}
	spec := req.Spec.Clone()
	handle, err := c.produce(ctx, spec, req)
	if err != nil {
		c.Metrics.Produced(string(spec.Kind), metrics.OutcomeFailure)
		c.logger().Warn("produce failed",
			zap.String("kind", string(spec.Kind)),
			zap.String("subject_id", spec.SubjectID),
			zap.Error(err),
		)
		c.emit(func(a *AuditEmitter) error {
			return a.EmitProduced(ctx, spec.SubjectID, spec.Kind, domain.SealedArtifactHandle{}, domain.AuditResultFailure, ErrorCode(err))
		})
		return domain.SealedArtifactHandle{}, err
	}
	c.Metrics.Produced(string(spec.Kind), metrics.OutcomeSuccess)
	c.logger().Info("document produced",
		zap.String("handle_id", handle.ID),
		zap.String("kind", string(handle.Kind)),
		zap.String("subject_id", handle.SubjectID),
		zap.Bool("signed", handle.Signed),
	)
	c.emit(func(a *AuditEmitter) error {
		return a.EmitProduced(ctx, spec.SubjectID, spec.Kind, handle, domain.AuditResultSuccess, "")
	})
	return handle, nil
}

func (c *Custody) produce(ctx context.Context, spec domain.DocumentSpec, req ProduceRequest) (domain.SealedArtifactHandle, error) {
	signer, err := c.resolveSigner(ctx, req)
	if err != nil {
		return domain.SealedArtifactHandle{}, fmt.Errorf("produce: %w", err)
	}
	overlays := c.resolveOverlays(req.Overlays, spec.SubjectID)

	done := c.Metrics.Stage("compose")
	artifact, err := c.Composer.Compose(ctx, spec)
	done()
	if err != nil {
		return domain.SealedArtifactHandle{}, fmt.Errorf("produce: %w", err)
	}

	if !overlays.Empty() {
		done = c.Metrics.Stage("annotate")
		artifact, err = c.Annotator.Annotate(ctx, artifact, overlays)
		done()
		if err != nil {
			return domain.SealedArtifactHandle{}, fmt.Errorf("produce: %w", err)
		}
	}

	done = c.Metrics.Stage("seal")
	sealed, err := c.Sealer.Seal(ctx, artifact, signer)
	done()
	if err != nil {
		return domain.SealedArtifactHandle{}, fmt.Errorf("produce: %w", err)
	}

	done = c.Metrics.Stage("store")
	handle, err := c.Vault.Store(ctx, sealed.Artifact, domain.StorageScope{Kind: spec.Kind, SubjectID: spec.SubjectID})
	done()
	if err != nil {
		return domain.SealedArtifactHandle{}, fmt.Errorf("produce: %w", err)
	}

	if err := c.Handles.Save(ctx, handle); err != nil {
		// The blob is unreachable without its handle record.
		if delErr := c.Vault.Delete(context.WithoutCancel(ctx), handle); delErr != nil {
			c.logger().Error("orphaned blob after failed handle save",
				zap.String("handle_id", handle.ID),
				zap.String("locator", handle.StorageLocator),
				zap.Error(delErr),
			)
		}
		return domain.SealedArtifactHandle{}, fmt.Errorf("produce: save handle: %w", err)
	}
	return handle, nil
}

// Retrieve decrypts the artifact behind handle and verifies it. A failed
// verification returns the report alongside ErrIntegrityViolation.
func (c *Custody) Retrieve(ctx context.Context, handle domain.SealedArtifactHandle) (RetrieveResult, error) {
	if err := c.ready(); err != nil {
		return RetrieveResult{}, err
	}
	done := c.Metrics.Stage("retrieve")
	artifact, err := c.Vault.Retrieve(ctx, handle)
	done()
	if err != nil {
		c.retrieveFailed(ctx, handle, domain.VerificationReport{}, "vault", err)
		return RetrieveResult{}, fmt.Errorf("retrieve: %w", err)
	}

	// Verify against the checksum recorded at store time.
	artifact.ContentHash = handle.ContentHash
	done = c.Metrics.Stage("verify")
	report := c.Sealer.Verify(ctx, artifact)
	done()
	if handle.Signed && len(report.Signatures) == 0 {
		report.IsValid = false
	}
	if !report.IsValid {
		err := &domain.VaultError{
			Kind:    domain.ErrIntegrityViolation,
			Locator: handle.StorageLocator,
			Err:     errors.New("verification failed"),
		}
		c.retrieveFailed(ctx, handle, report, "verify", err)
		return RetrieveResult{Report: report}, fmt.Errorf("retrieve: %w", err)
	}

	c.Metrics.Retrieved(metrics.OutcomeSuccess)
	c.emit(func(a *AuditEmitter) error {
		return a.EmitRetrieved(ctx, handle, report, domain.AuditResultSuccess, "")
	})
	return RetrieveResult{Artifact: artifact, Report: report}, nil
}

// RetrieveByID loads the handle record first.
func (c *Custody) RetrieveByID(ctx context.Context, id string) (RetrieveResult, error) {
	if c == nil || c.Handles == nil {
		return RetrieveResult{}, errors.New("handle repository required")
	}
	handle, err := c.Handles.Get(ctx, id)
	if err != nil {
		return RetrieveResult{}, fmt.Errorf("retrieve %s: %w", id, err)
	}
	return c.Retrieve(ctx, handle)
}

func (c *Custody) retrieveFailed(ctx context.Context, handle domain.SealedArtifactHandle, report domain.VerificationReport, stage string, err error) {
	if domain.IsFatal(err) {
		c.Metrics.Retrieved(metrics.OutcomeViolation)
		c.logger().Error("integrity violation",
			zap.String("handle_id", handle.ID),
			zap.String("stage", stage),
			zap.String("expected_checksum", handle.ContentHash),
			zap.String("actual_checksum", report.ActualChecksum),
			zap.Error(err),
		)
		c.emit(func(a *AuditEmitter) error {
			return a.EmitIntegrityViolation(ctx, handle, stage)
		})
		return
	}
	c.Metrics.Retrieved(metrics.OutcomeFailure)
	c.logger().Warn("retrieve failed", zap.String("handle_id", handle.ID), zap.Error(err))
	c.emit(func(a *AuditEmitter) error {
		return a.EmitRetrieved(ctx, handle, report, domain.AuditResultFailure, ErrorCode(err))
	})
}

func (c *Custody) resolveSigner(ctx context.Context, req ProduceRequest) (*domain.SigningIdentity, error) {
	if req.Signer != nil || req.SignerRef == "" {
		return req.Signer, nil
	}
	if c.Keys == nil {
		return nil, &domain.SealError{Kind: domain.ErrMissingCredentials, Err: errors.New("no key custodian configured")}
	}
	signer, err := c.Keys.SigningIdentity(ctx, req.SignerRef)
	if err != nil {
		return nil, &domain.SealError{Kind: domain.ErrMissingCredentials, Err: err}
	}
	return signer, nil
}

// resolveOverlays fills an empty verification URL with the default one.
func (c *Custody) resolveOverlays(in domain.OverlaySet, subjectID string) domain.OverlaySet {
	out := in
	if in.VerificationURL != nil && *in.VerificationURL == "" {
		u := DefaultVerificationURL(c.VerifyBaseURL, subjectID)
		out.VerificationURL = &u
	}
	return out
}

func (c *Custody) ready() error {
	if c == nil || c.Composer == nil || c.Annotator == nil || c.Sealer == nil || c.Vault == nil || c.Handles == nil {
		return errors.New("custody pipeline not configured")
	}
	return nil
}

// emit records an audit event. Audit failures are logged, never returned:
// the custody outcome has already happened.
func (c *Custody) emit(fn func(*AuditEmitter) error) {
	if c.Audit == nil {
		return
	}
	if err := fn(c.Audit); err != nil {
		c.logger().Error("audit append failed", zap.Error(err))
	}
}

func (c *Custody) logger() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}

// ErrorCode maps an error to the short code recorded in audit events.
func ErrorCode(err error) string {
	codes := []struct {
		target error
		code   string
	}{
		{domain.ErrIntegrityViolation, "integrity_violation"},
		{domain.ErrMissingRequiredField, "missing_required_field"},
		{domain.ErrMissingResource, "missing_resource"},
		{domain.ErrRenderFailure, "render_failure"},
		{domain.ErrArtifactSealed, "artifact_sealed"},
		{domain.ErrMissingCredentials, "missing_credentials"},
		{domain.ErrSigningFailed, "signing_failed"},
		{domain.ErrNotFound, "not_found"},
		{domain.ErrDecryptionFailed, "decryption_failed"},
		{domain.ErrStorage, "storage"},
		{context.Canceled, "canceled"},
		{context.DeadlineExceeded, "deadline_exceeded"},
	}
	if err == nil {
		return ""
	}
	for _, c := range codes {
		if errors.Is(err, c.target) {
			return c.code
		}
	}
	return "internal"
}

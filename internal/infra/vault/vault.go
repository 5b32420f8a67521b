package vault

import (
	"context"
	"errors"
	"fmt"
	"time"

	"kredilakay/internal/domain"
	"kredilakay/internal/infra/storage"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const maxLocatorAttempts = 5

type Options struct {
	Cipher string
	KeyID  string
	Clock  func() time.Time
	Logger *zap.Logger
}

// Vault encrypts artifacts at rest and hands back handles. Handles record
// the cipher suite and key id, so a vault reconfigured for a new suite or
// key still opens older handles.
type Vault struct {
	backend storage.Backend
	keys    domain.KeyCustodian
	suite   cipherSuite
	keyID   string
	clock   func() time.Time
	logger  *zap.Logger
}

func New(backend storage.Backend, keys domain.KeyCustodian, opts Options) (*Vault, error) {
	if backend == nil {
		return nil, errors.New("storage backend is required")
	}
	if keys == nil {
		return nil, errors.New("key custodian is required")
	}
	suite, err := suiteByName(opts.Cipher)
	if err != nil {
		return nil, err
	}
	if opts.KeyID == "" {
		return nil, errors.New("key id is required")
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Vault{
		backend: backend,
		keys:    keys,
		suite:   suite,
		keyID:   opts.KeyID,
		clock:   opts.Clock,
		logger:  opts.Logger,
	}, nil
}

func (v *Vault) Store(ctx context.Context, artifact domain.Artifact, scope domain.StorageScope) (domain.SealedArtifactHandle, error) {
	if err := ctx.Err(); err != nil {
		return domain.SealedArtifactHandle{}, err
	}
	checksum := domain.SHA256Hex(artifact.Content)
	if artifact.ContentHash != "" && artifact.ContentHash != checksum {
		return domain.SealedArtifactHandle{}, &domain.VaultError{Kind: domain.ErrIntegrityViolation, Err: errors.New("artifact hash does not match content")}
	}

	handleID := uuid.NewString()
	km, locKey, err := v.material(ctx, v.suite, v.keyID, handleID)
	if err != nil {
		return domain.SealedArtifactHandle{}, &domain.VaultError{Kind: domain.ErrStorage, Err: err}
	}
	body, err := v.suite.Seal(km, associatedData(v.suite, handleID), artifact.Content)
	if err != nil {
		return domain.SealedArtifactHandle{}, &domain.VaultError{Kind: domain.ErrStorage, Err: fmt.Errorf("encrypt: %w", err)}
	}
	blob := append(header(v.suite), body...)

	id, err := contentID(locKey, checksum)
	if err != nil {
		return domain.SealedArtifactHandle{}, &domain.VaultError{Kind: domain.ErrStorage, Err: err}
	}
	now := v.clock().UTC()
	var locator string
	for attempt := 0; ; attempt++ {
		locator, err = newLocator(scope, id, now)
		if err != nil {
			return domain.SealedArtifactHandle{}, &domain.VaultError{Kind: domain.ErrStorage, Err: err}
		}
		err = v.backend.Put(ctx, locator, blob)
		if err == nil {
			break
		}
		if !errors.Is(err, storage.ErrExists) || attempt+1 >= maxLocatorAttempts {
			return domain.SealedArtifactHandle{}, &domain.VaultError{Kind: domain.ErrStorage, Locator: locator, Err: err}
		}
	}

	handle := domain.SealedArtifactHandle{
		ID:             handleID,
		SubjectID:      scope.SubjectID,
		Kind:           scope.Kind,
		StorageBackend: v.backend.Kind(),
		StorageLocator: locator,
		ContentHash:    checksum,
		EncryptedSize:  int64(len(blob)),
		OriginalSize:   int64(len(artifact.Content)),
		Algorithm:      v.suite.Name(),
		KeyID:          v.keyID,
		PageCount:      artifact.PageCount,
		Signed:         artifact.Sealed,
		CreatedAt:      now,
	}
	v.logger.Info("artifact stored",
		zap.String("handle_id", handle.ID),
		zap.String("backend", string(handle.StorageBackend)),
		zap.String("locator", handle.StorageLocator),
		zap.Int64("encrypted_size", handle.EncryptedSize),
		zap.String("algorithm", handle.Algorithm),
	)
	return handle, nil
}

// Retrieve decrypts the blob behind handle and checks it against the
// handle's checksum. On mismatch the plaintext is discarded.
func (v *Vault) Retrieve(ctx context.Context, handle domain.SealedArtifactHandle) (domain.Artifact, error) {
	if err := ctx.Err(); err != nil {
		return domain.Artifact{}, err
	}
	if handle.StorageBackend != v.backend.Kind() {
		return domain.Artifact{}, &domain.VaultError{Kind: domain.ErrNotFound, Locator: handle.StorageLocator,
			Err: fmt.Errorf("handle stored on %s backend", handle.StorageBackend)}
	}
	suite, err := suiteByName(handle.Algorithm)
	if err != nil {
		return domain.Artifact{}, &domain.VaultError{Kind: domain.ErrDecryptionFailed, Locator: handle.StorageLocator, Err: err}
	}

	blob, err := v.backend.Get(ctx, handle.StorageLocator)
	if err != nil {
		kind := domain.ErrStorage
		if errors.Is(err, domain.ErrNotFound) {
			kind = domain.ErrNotFound
		}
		return domain.Artifact{}, &domain.VaultError{Kind: kind, Locator: handle.StorageLocator, Err: err}
	}

	km, _, err := v.material(ctx, suite, handle.KeyID, handle.ID)
	if err != nil {
		return domain.Artifact{}, &domain.VaultError{Kind: domain.ErrDecryptionFailed, Locator: handle.StorageLocator, Err: err}
	}
	body, err := splitBlob(blob, suite)
	if err != nil {
		return domain.Artifact{}, &domain.VaultError{Kind: domain.ErrDecryptionFailed, Locator: handle.StorageLocator, Err: err}
	}
	plaintext, err := suite.Open(km, associatedData(suite, handle.ID), body)
	if err != nil {
		return domain.Artifact{}, &domain.VaultError{Kind: domain.ErrDecryptionFailed, Locator: handle.StorageLocator, Err: err}
	}

	actual := domain.SHA256Hex(plaintext)
	if actual != handle.ContentHash {
		v.logger.Error("integrity violation on retrieve",
			zap.String("handle_id", handle.ID),
			zap.String("locator", handle.StorageLocator),
			zap.String("expected_checksum", handle.ContentHash),
			zap.String("actual_checksum", actual),
		)
		return domain.Artifact{}, &domain.VaultError{Kind: domain.ErrIntegrityViolation, Locator: handle.StorageLocator,
			Err: fmt.Errorf("expected %s, got %s", handle.ContentHash, actual)}
	}
	return domain.Artifact{
		Content:     plaintext,
		ContentHash: actual,
		PageCount:   handle.PageCount,
		Sealed:      handle.Signed,
	}, nil
}

// Delete removes the blob behind handle. Missing blobs are not an error.
func (v *Vault) Delete(ctx context.Context, handle domain.SealedArtifactHandle) error {
	if err := v.backend.Delete(ctx, handle.StorageLocator); err != nil {
		return &domain.VaultError{Kind: domain.ErrStorage, Locator: handle.StorageLocator, Err: err}
	}
	return nil
}

func (v *Vault) material(ctx context.Context, suite cipherSuite, keyID, handleID string) (keyMaterial, []byte, error) {
	if suite.NeedsDataKey() {
		master, err := v.keys.DataKey(ctx, keyID)
		if err != nil {
			return keyMaterial{}, nil, err
		}
		key, err := deriveKey(master, suite.Name(), handleID)
		if err != nil {
			return keyMaterial{}, nil, err
		}
		return keyMaterial{Key: key}, locatorKey(master), nil
	}
	identity, err := v.keys.AgeIdentity(ctx, keyID)
	if err != nil {
		return keyMaterial{}, nil, err
	}
	return keyMaterial{Identity: identity}, locatorKey([]byte(identity.String())), nil
}

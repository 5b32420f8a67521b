// Package handlecodec turns a SealedArtifactHandle into a compact token
// (base64url of deterministic CBOR) that can leave the process and come
// back unchanged.
package handlecodec

import (
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"kredilakay/internal/domain"

	"github.com/fxamacker/cbor/v2"
)

const tokenVersion = 1

var (
	encMode = mustEncMode()
	decMode = mustDecMode()
)

func mustEncMode() cbor.EncMode {
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	return em
}

func mustDecMode() cbor.DecMode {
	dm, err := cbor.DecOptions{DupMapKey: cbor.DupMapKeyEnforcedAPF}.DecMode()
	if err != nil {
		panic(err)
	}
	return dm
}

type wireHandle struct {
	Version        int    `cbor:"0,keyasint"`
	ID             string `cbor:"1,keyasint"`
	SubjectID      string `cbor:"2,keyasint"`
	Kind           string `cbor:"3,keyasint"`
	StorageBackend string `cbor:"4,keyasint"`
	StorageLocator string `cbor:"5,keyasint"`
	ContentHash    string `cbor:"6,keyasint"`
	EncryptedSize  int64  `cbor:"7,keyasint"`
	OriginalSize   int64  `cbor:"8,keyasint"`
	Algorithm      string `cbor:"9,keyasint"`
	KeyID          string `cbor:"10,keyasint"`
	PageCount      int    `cbor:"11,keyasint"`
	Signed         bool   `cbor:"12,keyasint"`
	CreatedAtNanos int64  `cbor:"13,keyasint"`
}

func Marshal(h domain.SealedArtifactHandle) ([]byte, error) {
	if h.ID == "" || h.StorageLocator == "" || h.ContentHash == "" {
		return nil, errors.New("handle is incomplete")
	}
	return encMode.Marshal(wireHandle{
		Version:        tokenVersion,
		ID:             h.ID,
		SubjectID:      h.SubjectID,
		Kind:           string(h.Kind),
		StorageBackend: string(h.StorageBackend),
		StorageLocator: h.StorageLocator,
		ContentHash:    h.ContentHash,
		EncryptedSize:  h.EncryptedSize,
		OriginalSize:   h.OriginalSize,
		Algorithm:      h.Algorithm,
		KeyID:          h.KeyID,
		PageCount:      h.PageCount,
		Signed:         h.Signed,
		CreatedAtNanos: h.CreatedAt.UnixNano(),
	})
}

func Unmarshal(data []byte) (domain.SealedArtifactHandle, error) {
	var w wireHandle
	if err := decMode.Unmarshal(data, &w); err != nil {
		return domain.SealedArtifactHandle{}, fmt.Errorf("decode handle: %w", err)
	}
	if w.Version != tokenVersion {
		return domain.SealedArtifactHandle{}, fmt.Errorf("unsupported handle version %d", w.Version)
	}
	h := domain.SealedArtifactHandle{
		ID:             w.ID,
		SubjectID:      w.SubjectID,
		Kind:           domain.DocumentKind(w.Kind),
		StorageBackend: domain.StorageBackendKind(w.StorageBackend),
		StorageLocator: w.StorageLocator,
		ContentHash:    w.ContentHash,
		EncryptedSize:  w.EncryptedSize,
		OriginalSize:   w.OriginalSize,
		Algorithm:      w.Algorithm,
		KeyID:          w.KeyID,
		PageCount:      w.PageCount,
		Signed:         w.Signed,
		CreatedAt:      time.Unix(0, w.CreatedAtNanos).UTC(),
	}
	if h.ID == "" || h.StorageLocator == "" || h.ContentHash == "" {
		return domain.SealedArtifactHandle{}, errors.New("handle is incomplete")
	}
	return h, nil
}

// Encode returns the handle as an unpadded base64url token.
func Encode(h domain.SealedArtifactHandle) (string, error) {
	b, err := Marshal(h)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func Decode(token string) (domain.SealedArtifactHandle, error) {
	b, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return domain.SealedArtifactHandle{}, fmt.Errorf("decode handle token: %w", err)
	}
	return Unmarshal(b)
}

// Package auditchain computes the hashes that link audit events into a
// per-stream chain. Payloads and link records are encoded as deterministic
// CBOR before hashing, so equal maps always hash equal.
package auditchain

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"kredilakay/internal/domain"

	"github.com/fxamacker/cbor/v2"
)

// ZeroHash is the previous-hash of the first event in a stream.
var ZeroHash = strings.Repeat("0", 64)

var encMode = mustEncMode()

func mustEncMode() cbor.EncMode {
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	return em
}

// PayloadBytes is the canonical encoding stored alongside each event.
func PayloadBytes(payload map[string]string) ([]byte, error) {
	if payload == nil {
		payload = map[string]string{}
	}
	return encMode.Marshal(payload)
}

func DecodePayload(data []byte) (map[string]string, error) {
	out := map[string]string{}
	if len(data) == 0 {
		return out, nil
	}
	if err := cbor.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func PayloadHash(payload map[string]string) (string, error) {
	b, err := PayloadBytes(payload)
	if err != nil {
		return "", err
	}
	return sha256Hex(b), nil
}

type link struct {
	Version       string `cbor:"v"`
	Stream        string `cbor:"stream"`
	Seq           int64  `cbor:"seq"`
	EventType     string `cbor:"event_type"`
	HandleID      string `cbor:"handle_id"`
	Result        string `cbor:"result"`
	ErrorCode     string `cbor:"error_code"`
	PayloadHash   string `cbor:"payload_hash"`
	PrevEventHash string `cbor:"prev_event_hash"`
	CreatedAt     string `cbor:"created_at"`
}

// EventHash hashes the link record of event. PayloadHash and
// PrevEventHash must already be set.
func EventHash(event domain.AuditEvent) (string, error) {
	if event.Stream == "" || event.EventType == "" {
		return "", errors.New("audit event missing stream or event_type")
	}
	if event.PayloadHash == "" || event.PrevEventHash == "" {
		return "", errors.New("audit event missing payload_hash or prev_event_hash")
	}
	b, err := encMode.Marshal(link{
		Version:       domain.AuditChainVersion,
		Stream:        event.Stream,
		Seq:           event.Seq,
		EventType:     string(event.EventType),
		HandleID:      event.HandleID,
		Result:        string(event.Result),
		ErrorCode:     event.ErrorCode,
		PayloadHash:   event.PayloadHash,
		PrevEventHash: event.PrevEventHash,
		CreatedAt:     event.CreatedAt.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return "", err
	}
	return sha256Hex(b), nil
}

// Link fills in the chain fields of event as the successor of prevHash
// at position seq.
func Link(event domain.AuditEvent, seq int64, prevHash string) (domain.AuditEvent, error) {
	payloadHash, err := PayloadHash(event.Payload)
	if err != nil {
		return domain.AuditEvent{}, err
	}
	event.Seq = seq
	event.PayloadHash = payloadHash
	event.PrevEventHash = prevHash
	event.EventHash, err = EventHash(event)
	if err != nil {
		return domain.AuditEvent{}, err
	}
	return event, nil
}

// Verify walks events in order and reports the first broken link.
func Verify(stream string, events []domain.AuditEvent) error {
	expectedSeq := int64(1)
	prevHash := ZeroHash
	for _, event := range events {
		if event.Stream != stream {
			return fmt.Errorf("audit chain stream mismatch at seq %d", event.Seq)
		}
		if event.Seq != expectedSeq {
			return fmt.Errorf("audit chain seq mismatch: expected %d got %d", expectedSeq, event.Seq)
		}
		if event.PrevEventHash != prevHash {
			return fmt.Errorf("audit chain prev hash mismatch at seq %d", event.Seq)
		}
		payloadHash, err := PayloadHash(event.Payload)
		if err != nil {
			return fmt.Errorf("audit chain payload encode failed at seq %d: %w", event.Seq, err)
		}
		if payloadHash != event.PayloadHash {
			return fmt.Errorf("audit chain payload hash mismatch at seq %d", event.Seq)
		}
		if event.CreatedAt.IsZero() {
			return fmt.Errorf("audit chain missing created_at at seq %d", event.Seq)
		}
		expected, err := EventHash(event)
		if err != nil {
			return fmt.Errorf("audit chain hash compute failed at seq %d: %w", event.Seq, err)
		}
		if expected != event.EventHash {
			return fmt.Errorf("audit chain hash mismatch at seq %d", event.Seq)
		}
		prevHash = event.EventHash
		expectedSeq++
	}
	return nil
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

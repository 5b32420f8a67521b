package vault

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"kredilakay/internal/config"

	"filippo.io/age"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

const blobVersion byte = 1

const (
	suiteIDXChaCha byte = 1
	suiteIDAESGCM  byte = 2
	suiteIDAge     byte = 3
)

var errMalformedBlob = errors.New("malformed ciphertext")

// keyMaterial is what a suite needs to seal or open one blob. AEAD suites
// use Key; the age suite uses Identity.
type keyMaterial struct {
	Key      []byte
	Identity *age.X25519Identity
}

type cipherSuite interface {
	Name() string
	ID() byte
	// NeedsDataKey reports whether the suite uses a symmetric master key
	// (as opposed to an age identity).
	NeedsDataKey() bool
	Seal(km keyMaterial, aad, plaintext []byte) ([]byte, error)
	Open(km keyMaterial, aad, body []byte) ([]byte, error)
}

func suiteByName(name string) (cipherSuite, error) {
	switch name {
	case config.CipherXChaCha20Poly1305, "":
		return aeadSuite{name: config.CipherXChaCha20Poly1305, id: suiteIDXChaCha, newAEAD: chacha20poly1305.NewX}, nil
	case config.CipherAES256GCM:
		return aeadSuite{name: config.CipherAES256GCM, id: suiteIDAESGCM, newAEAD: newAESGCM}, nil
	case config.CipherAgeX25519:
		return ageSuite{}, nil
	default:
		return nil, fmt.Errorf("unknown cipher suite %q", name)
	}
}

// deriveKey derives the per-handle key. The handle id is the only varying
// input; artifact content never influences key selection.
func deriveKey(master []byte, suite, handleID string) ([]byte, error) {
	if len(master) != 32 {
		return nil, fmt.Errorf("master key must be 32 bytes, got %d", len(master))
	}
	info := []byte("kredilakay.vault.v1|" + suite + "|" + handleID)
	out := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, master, nil, info), out); err != nil {
		return nil, err
	}
	return out, nil
}

func newAESGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

type aeadSuite struct {
	name    string
	id      byte
	newAEAD func(key []byte) (cipher.AEAD, error)
}

func (s aeadSuite) Name() string       { return s.name }
func (s aeadSuite) ID() byte           { return s.id }
func (s aeadSuite) NeedsDataKey() bool { return true }

func (s aeadSuite) Seal(km keyMaterial, aad, plaintext []byte) ([]byte, error) {
	aead, err := s.newAEAD(km.Key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	return aead.Seal(nonce, nonce, plaintext, aad), nil
}

func (s aeadSuite) Open(km keyMaterial, aad, body []byte) ([]byte, error) {
	aead, err := s.newAEAD(km.Key)
	if err != nil {
		return nil, err
	}
	if len(body) < aead.NonceSize()+aead.Overhead() {
		return nil, errMalformedBlob
	}
	nonce, ct := body[:aead.NonceSize()], body[aead.NonceSize():]
	return aead.Open(nil, nonce, ct, aad)
}

// ageSuite encrypts to the X25519 recipient of the configured identity.
// age has no associated data, so the AAD is carried inside the encrypted
// payload and compared on open.
type ageSuite struct{}

func (ageSuite) Name() string       { return config.CipherAgeX25519 }
func (ageSuite) ID() byte           { return suiteIDAge }
func (ageSuite) NeedsDataKey() bool { return false }

func (ageSuite) Seal(km keyMaterial, aad, plaintext []byte) ([]byte, error) {
	if km.Identity == nil {
		return nil, errors.New("age identity is required")
	}
	var out bytes.Buffer
	w, err := age.Encrypt(&out, km.Identity.Recipient())
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(framedAAD(aad)); err != nil {
		return nil, err
	}
	if _, err := w.Write(plaintext); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

func (ageSuite) Open(km keyMaterial, aad, body []byte) ([]byte, error) {
	if km.Identity == nil {
		return nil, errors.New("age identity is required")
	}
	r, err := age.Decrypt(bytes.NewReader(body), km.Identity)
	if err != nil {
		return nil, err
	}
	payload, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	prefix := framedAAD(aad)
	if !bytes.HasPrefix(payload, prefix) {
		return nil, errors.New("ciphertext bound to a different handle")
	}
	return payload[len(prefix):], nil
}

func framedAAD(aad []byte) []byte {
	out := make([]byte, 0, len(aad)+2)
	out = append(out, byte(len(aad)>>8), byte(len(aad)))
	return append(out, aad...)
}

// header is the unencrypted prefix of every blob: version then suite id.
func header(suite cipherSuite) []byte {
	return []byte{blobVersion, suite.ID()}
}

func associatedData(suite cipherSuite, handleID string) []byte {
	return append(header(suite), handleID...)
}

func splitBlob(blob []byte, suite cipherSuite) ([]byte, error) {
	if len(blob) < 2 || blob[0] != blobVersion || blob[1] != suite.ID() {
		return nil, errMalformedBlob
	}
	return blob[2:], nil
}

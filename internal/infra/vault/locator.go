package vault

import (
	"crypto/rand"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"kredilakay/internal/domain"

	"github.com/zeebo/blake3"
)

const locatorKeyContext = "kredilakay vault locator v1"

// locatorKey derives the key used to obscure content checksums in
// locators from the vault's key material.
func locatorKey(material []byte) []byte {
	out := make([]byte, 32)
	blake3.DeriveKey(locatorKeyContext, material, out)
	return out
}

// contentID is a keyed digest of the plaintext checksum. Locators are
// visible to anyone listing storage; the raw checksum is not.
func contentID(key []byte, checksum string) (string, error) {
	h, err := blake3.NewKeyed(key)
	if err != nil {
		return "", err
	}
	_, _ = h.Write([]byte(checksum))
	return hex.EncodeToString(h.Sum(nil)[:8]), nil
}

// newLocator builds kind/subject/yyyymmdd/<content id>-<unix nanos>-<random>.pdf.enc.
func newLocator(scope domain.StorageScope, id string, now time.Time) (string, error) {
	suffix := make([]byte, 4)
	if _, err := rand.Read(suffix); err != nil {
		return "", err
	}
	kind := string(scope.Kind)
	if kind == "" {
		kind = string(domain.DocumentKindOther)
	}
	var b strings.Builder
	b.WriteString(kind)
	b.WriteByte('/')
	b.WriteString(sanitizeSegment(scope.SubjectID))
	b.WriteByte('/')
	b.WriteString(now.UTC().Format("20060102"))
	b.WriteByte('/')
	b.WriteString(id)
	b.WriteByte('-')
	b.WriteString(strconv.FormatInt(now.UnixNano(), 10))
	b.WriteByte('-')
	b.WriteString(hex.EncodeToString(suffix))
	b.WriteString(".pdf.enc")
	return b.String(), nil
}

func sanitizeSegment(s string) string {
	if s == "" {
		return "_"
	}
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
		if b.Len() >= 64 {
			break
		}
	}
	return b.String()
}

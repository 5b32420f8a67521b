package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"kredilakay/internal/domain"
)

// ErrExists is returned by Put when the locator is already taken. Backends
// never overwrite.
var ErrExists = errors.New("locator already exists")

type Backend interface {
	Kind() domain.StorageBackendKind
	Put(ctx context.Context, locator string, data []byte) error
	Get(ctx context.Context, locator string) ([]byte, error)
	Delete(ctx context.Context, locator string) error
}

// ValidateLocator accepts slash-separated relative paths whose segments are
// non-empty and not dot segments.
func ValidateLocator(locator string) error {
	if locator == "" || strings.HasPrefix(locator, "/") || strings.Contains(locator, "\\") {
		return fmt.Errorf("invalid locator %q", locator)
	}
	for _, part := range strings.Split(locator, "/") {
		if part == "" || part == "." || part == ".." {
			return fmt.Errorf("invalid locator %q", locator)
		}
	}
	return nil
}

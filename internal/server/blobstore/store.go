// Package blobstore keeps encrypted file bodies under opaque locators.
//
// Backends never see plaintext or original file names. Get of a missing
// locator returns common.ErrorNotFound; Delete of a missing locator succeeds.
package blobstore

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

var ErrInvalidLocator = errors.New("invalid blob locator")

type Store interface {
	Put(ctx context.Context, locator string, data []byte) error
	Get(ctx context.Context, locator string) ([]byte, error)
	Delete(ctx context.Context, locator string) error
}

// NewLocator returns a fresh users/<account>/<yyyy>/<mm>/<dd>/<uuid>.bin key.
func NewLocator(accountID string, now time.Time) string {
	now = now.UTC()
	return fmt.Sprintf("users/%s/%04d/%02d/%02d/%s.bin",
		accountID, now.Year(), int(now.Month()), now.Day(), uuid.New())
}

// validateLocator accepts only clean, relative, slash separated keys.
func validateLocator(locator string) error {
	if locator == "" || strings.HasPrefix(locator, "/") || strings.Contains(locator, `\`) {
		return fmt.Errorf("%w: %q", ErrInvalidLocator, locator)
	}
	for _, seg := range strings.Split(locator, "/") {
		if seg == ".." || seg == "." || seg == "" {
			return fmt.Errorf("%w: %q", ErrInvalidLocator, locator)
		}
	}
	if path.Clean(locator) != locator {
		return fmt.Errorf("%w: %q", ErrInvalidLocator, locator)
	}
	return nil
}

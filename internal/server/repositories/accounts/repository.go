// Package accounts persists vault accounts and their storage counters.
package accounts

import (
	"context"

	"github.com/young8Programmer/Secure-Cloud-File-Manager-Encryptor-Bot/internal/server/models"
)

type Repository interface {
	Upsert(ctx context.Context, account *models.Account, defaultLimit int64) (*models.Account, error)
	Get(ctx context.Context, id string) (*models.Account, error)
	// AddUsage adds delta to used_bytes only if the result stays within
	// limit_bytes. It reports false when the condition did not hold or the
	// account does not exist.
	AddUsage(ctx context.Context, id string, delta int64) (bool, error)
	ReleaseUsage(ctx context.Context, id string, delta int64) error
	SetLimit(ctx context.Context, id string, limit int64) error
	LockForUpdate(ctx context.Context, id string) error
}

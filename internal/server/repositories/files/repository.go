// Package files persists encrypted file metadata and one-time link state.
package files

import (
	"context"
	"time"

	"github.com/young8Programmer/Secure-Cloud-File-Manager-Encryptor-Bot/internal/server/models"
)

type Repository interface {
	Insert(ctx context.Context, file *models.File) error
	// GetOwned returns a non-deleted file of ownerID.
	GetOwned(ctx context.Context, id, ownerID string) (*models.File, error)
	MarkDeleted(ctx context.Context, id, ownerID string) error
	// Remove deletes the row and reports the size it recorded. ok is false
	// when the row was already gone.
	Remove(ctx context.Context, id string) (size int64, ok bool, err error)
	ListByFolder(ctx context.Context, ownerID string, folderID *string) ([]*models.File, error)
	// ListMarkedInFolder returns rows of folderID left marked deleted.
	ListMarkedInFolder(ctx context.Context, ownerID, folderID string) ([]*models.File, error)
	SetLink(ctx context.Context, id, ownerID, token string, expiresAt time.Time) error
	// Redeem clears the link token and returns what it pointed to.
	Redeem(ctx context.Context, token string) (fileID, ownerID string, expiresAt time.Time, err error)
	// SelectReapable returns expired rows and rows left marked deleted,
	// skipping the ids in exclude.
	SelectReapable(ctx context.Context, now time.Time, exclude []string, limit int) ([]*models.File, error)
}

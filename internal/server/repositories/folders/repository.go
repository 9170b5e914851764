// Package folders persists the per-account folder hierarchy.
package folders

import (
	"context"

	"github.com/young8Programmer/Secure-Cloud-File-Manager-Encryptor-Bot/internal/server/models"
)

// Repository stores folders. Every lookup is scoped by account, a folder
// owned by someone else behaves as missing.
type Repository interface {
	Create(ctx context.Context, folder *models.Folder) (*models.Folder, error)
	Get(ctx context.Context, id, accountID string) (*models.Folder, error)
	// NameTaken reports whether a sibling other than excludeID already uses name.
	NameTaken(ctx context.Context, accountID string, parentID *string, name, excludeID string) (bool, error)
	Update(ctx context.Context, folder *models.Folder) error
	ListChildren(ctx context.Context, accountID string, parentID *string) ([]*models.Folder, error)
	Delete(ctx context.Context, id, accountID string) error
}

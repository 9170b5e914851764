package files

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/young8Programmer/Secure-Cloud-File-Manager-Encryptor-Bot/internal/common"
	"github.com/young8Programmer/Secure-Cloud-File-Manager-Encryptor-Bot/internal/dbx"
	"github.com/young8Programmer/Secure-Cloud-File-Manager-Encryptor-Bot/internal/server/models"
)

const fileColumns = `id, owner_id, original_name, stored_locator, mime_type, size_bytes, envelope, key_version,
	nonce, auth_tag, folder_id, expires_at, link_token, link_expires_at, deleted, created_at, updated_at`

// PostgresRepository implements file storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Insert stores a new file row and fills in its ID and timestamps.
func (r *PostgresRepository) Insert(ctx context.Context, f *models.File) error {
	query := `
		INSERT INTO files (owner_id, original_name, stored_locator, mime_type, size_bytes,
			envelope, key_version, nonce, auth_tag, folder_id, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query,
		f.OwnerID, f.OriginalName, f.Locator, f.MimeType, f.SizeBytes,
		f.Envelope, f.KeyVersion, f.Nonce, f.AuthTag, nullable(f.FolderID), nullableTime(f.ExpiresAt),
	).Scan(&f.ID, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return common.ErrConflict
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetOwned(ctx context.Context, id, ownerID string) (*models.File, error) {
	query := `SELECT ` + fileColumns + ` FROM files WHERE id = $1 AND owner_id = $2 AND NOT deleted`

	f, err := scanFile(r.db.QueryRowContext(ctx, query, id, ownerID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return f, nil
}

// MarkDeleted flags the row as being deleted. Marking twice is not an error.
func (r *PostgresRepository) MarkDeleted(ctx context.Context, id, ownerID string) error {
	query := `UPDATE files SET deleted = true, link_token = NULL, link_expires_at = NULL, updated_at = now()
		WHERE id = $1 AND owner_id = $2`

	res, err := r.db.ExecContext(ctx, query, id, ownerID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *PostgresRepository) Remove(ctx context.Context, id string) (int64, bool, error) {
	query := `DELETE FROM files WHERE id = $1 RETURNING size_bytes`

	var size int64
	if err := r.db.QueryRowContext(ctx, query, id).Scan(&size); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("db error: %w", err)
	}
	return size, true, nil
}

// ListByFolder returns the non-deleted files of one folder (nil for root),
// newest first.
func (r *PostgresRepository) ListByFolder(ctx context.Context, ownerID string, folderID *string) ([]*models.File, error) {
	query := `SELECT ` + fileColumns + ` FROM files
		WHERE owner_id = $1 AND folder_id IS NOT DISTINCT FROM $2 AND NOT deleted
		ORDER BY created_at DESC`

	return r.queryFiles(ctx, query, ownerID, nullable(folderID))
}

func (r *PostgresRepository) ListMarkedInFolder(ctx context.Context, ownerID, folderID string) ([]*models.File, error) {
	query := `SELECT ` + fileColumns + ` FROM files
		WHERE owner_id = $1 AND folder_id = $2 AND deleted`

	return r.queryFiles(ctx, query, ownerID, folderID)
}

// SetLink replaces any previous link token of the file.
func (r *PostgresRepository) SetLink(ctx context.Context, id, ownerID, token string, expiresAt time.Time) error {
	query := `UPDATE files SET link_token = $3, link_expires_at = $4, updated_at = now()
		WHERE id = $1 AND owner_id = $2 AND NOT deleted`

	res, err := r.db.ExecContext(ctx, query, id, ownerID, token, expiresAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

// Redeem consumes the token in a single statement, so two concurrent callers
// can never both see the same row. The expiry is returned for the caller to check.
func (r *PostgresRepository) Redeem(ctx context.Context, token string) (string, string, time.Time, error) {
	query := `UPDATE files SET link_token = NULL, link_expires_at = NULL, updated_at = now()
		WHERE link_token = $1 AND NOT deleted
		RETURNING id, owner_id, link_expires_at`

	var (
		fileID, ownerID string
		expiresAt       sql.NullTime
	)
	if err := r.db.QueryRowContext(ctx, query, token).Scan(&fileID, &ownerID, &expiresAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", "", time.Time{}, common.ErrInvalidToken
		}
		return "", "", time.Time{}, fmt.Errorf("db error: %w", err)
	}
	return fileID, ownerID, expiresAt.Time, nil
}

func (r *PostgresRepository) SelectReapable(ctx context.Context, now time.Time, exclude []string, limit int) ([]*models.File, error) {
	query := `SELECT ` + fileColumns + ` FROM files
		WHERE (deleted OR (expires_at IS NOT NULL AND expires_at < $1))
			AND NOT (id::text = ANY(string_to_array($2, ',')))
		ORDER BY updated_at ASC
		LIMIT $3`

	return r.queryFiles(ctx, query, now, strings.Join(exclude, ","), limit)
}

func (r *PostgresRepository) queryFiles(ctx context.Context, query string, args ...any) ([]*models.File, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select files: %w", err)
	}
	defer rows.Close()

	var result []*models.File
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanFile(s scanner) (*models.File, error) {
	f := &models.File{}
	err := s.Scan(&f.ID, &f.OwnerID, &f.OriginalName, &f.Locator, &f.MimeType, &f.SizeBytes,
		&f.Envelope, &f.KeyVersion, &f.Nonce, &f.AuthTag, &f.FolderID, &f.ExpiresAt,
		&f.LinkToken, &f.LinkExpiresAt, &f.Deleted, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return f, nil
}

func nullable(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

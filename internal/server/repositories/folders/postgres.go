package folders

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/young8Programmer/Secure-Cloud-File-Manager-Encryptor-Bot/internal/common"
	"github.com/young8Programmer/Secure-Cloud-File-Manager-Encryptor-Bot/internal/dbx"
	"github.com/young8Programmer/Secure-Cloud-File-Manager-Encryptor-Bot/internal/server/models"
)

const folderColumns = `id, account_id, name, parent_id, created_at, updated_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, f *models.Folder) (*models.Folder, error) {
	query :=
		`INSERT INTO folders (account_id, name, parent_id)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query, f.AccountID, f.Name, nullable(f.ParentID)).
		Scan(&f.ID, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return nil, common.ErrConflict
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return f, nil
}

func (r *PostgresRepository) Get(ctx context.Context, id, accountID string) (*models.Folder, error) {
	query := `SELECT ` + folderColumns + ` FROM folders WHERE id = $1 AND account_id = $2`

	f := &models.Folder{}
	err := r.db.QueryRowContext(ctx, query, id, accountID).
		Scan(&f.ID, &f.AccountID, &f.Name, &f.ParentID, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return f, nil
}

func (r *PostgresRepository) NameTaken(ctx context.Context, accountID string, parentID *string, name, excludeID string) (bool, error) {
	query :=
		`SELECT EXISTS (
			SELECT 1 FROM folders
			WHERE account_id = $1 AND parent_id IS NOT DISTINCT FROM $2 AND name = $3 AND id::text <> $4
		 )`

	var taken bool
	if err := r.db.QueryRowContext(ctx, query, accountID, nullable(parentID), name, excludeID).Scan(&taken); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return taken, nil
}

// Update writes name and parent_id of an owned folder.
func (r *PostgresRepository) Update(ctx context.Context, f *models.Folder) error {
	query :=
		`UPDATE folders SET name = $3, parent_id = $4, updated_at = now()
		 WHERE id = $1 AND account_id = $2`

	res, err := r.db.ExecContext(ctx, query, f.ID, f.AccountID, f.Name, nullable(f.ParentID))
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return common.ErrConflict
		}
		return fmt.Errorf("db error: %w", err)
	}
	return oneRow(res)
}

// ListChildren returns the direct children of parentID (nil for root) by name.
func (r *PostgresRepository) ListChildren(ctx context.Context, accountID string, parentID *string) ([]*models.Folder, error) {
	query :=
		`SELECT ` + folderColumns + ` FROM folders
		 WHERE account_id = $1 AND parent_id IS NOT DISTINCT FROM $2
		 ORDER BY name ASC`

	rows, err := r.db.QueryContext(ctx, query, accountID, nullable(parentID))
	if err != nil {
		return nil, fmt.Errorf("failed to select folders: %w", err)
	}
	defer rows.Close()

	var result []*models.Folder
	for rows.Next() {
		f := &models.Folder{}
		if err := rows.Scan(&f.ID, &f.AccountID, &f.Name, &f.ParentID, &f.CreatedAt, &f.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id, accountID string) error {
	query := `DELETE FROM folders WHERE id = $1 AND account_id = $2`

	res, err := r.db.ExecContext(ctx, query, id, accountID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return oneRow(res)
}

func oneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func nullable(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

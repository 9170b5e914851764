package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/young8Programmer/Secure-Cloud-File-Manager-Encryptor-Bot/internal/common"
	"github.com/young8Programmer/Secure-Cloud-File-Manager-Encryptor-Bot/internal/dbx"
	"github.com/young8Programmer/Secure-Cloud-File-Manager-Encryptor-Bot/internal/server/models"
)

const accountColumns = `id, external_id, username, first_name, last_name, used_bytes, limit_bytes, created_at, updated_at`

// PostgresRepository implements Repository over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Upsert creates the account for ExternalID on first contact and refreshes the
// profile fields afterwards. Counters and limits of existing accounts are kept.
func (r *PostgresRepository) Upsert(ctx context.Context, a *models.Account, defaultLimit int64) (*models.Account, error) {
	query :=
		`INSERT INTO accounts (external_id, username, first_name, last_name, limit_bytes)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (external_id) DO UPDATE SET
			username = EXCLUDED.username,
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			updated_at = now()
		 RETURNING ` + accountColumns

	row := r.db.QueryRowContext(ctx, query, a.ExternalID, a.Username, a.FirstName, a.LastName, defaultLimit)
	out, err := scanAccount(row)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`

	out, err := scanAccount(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrAccountNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

func (r *PostgresRepository) AddUsage(ctx context.Context, id string, delta int64) (bool, error) {
	query :=
		`UPDATE accounts SET used_bytes = used_bytes + $2, updated_at = now()
		 WHERE id = $1 AND used_bytes + $2 <= limit_bytes`

	res, err := r.db.ExecContext(ctx, query, id, delta)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected error: %w", err)
	}
	return n == 1, nil
}

// ReleaseUsage subtracts delta from used_bytes, clamping at zero.
func (r *PostgresRepository) ReleaseUsage(ctx context.Context, id string, delta int64) error {
	query :=
		`UPDATE accounts SET used_bytes = GREATEST(used_bytes - $2, 0), updated_at = now()
		 WHERE id = $1`

	return r.execOne(ctx, query, id, delta)
}

func (r *PostgresRepository) SetLimit(ctx context.Context, id string, limit int64) error {
	query := `UPDATE accounts SET limit_bytes = $2, updated_at = now() WHERE id = $1`

	return r.execOne(ctx, query, id, limit)
}

// LockForUpdate takes the row lock of the account for the rest of the
// surrounding transaction.
func (r *PostgresRepository) LockForUpdate(ctx context.Context, id string) error {
	query := `SELECT id FROM accounts WHERE id = $1 FOR UPDATE`

	var got string
	if err := r.db.QueryRowContext(ctx, query, id).Scan(&got); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return common.ErrAccountNotFound
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) execOne(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrAccountNotFound
	}
	return nil
}

func scanAccount(row *sql.Row) (*models.Account, error) {
	a := &models.Account{}
	err := row.Scan(&a.ID, &a.ExternalID, &a.Username, &a.FirstName, &a.LastName,
		&a.UsedBytes, &a.LimitBytes, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return a, nil
}

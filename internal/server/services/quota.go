package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/young8Programmer/Secure-Cloud-File-Manager-Encryptor-Bot/internal/common"
	"github.com/young8Programmer/Secure-Cloud-File-Manager-Encryptor-Bot/internal/dbx"
	"github.com/young8Programmer/Secure-Cloud-File-Manager-Encryptor-Bot/internal/server/models"
	"github.com/young8Programmer/Secure-Cloud-File-Manager-Encryptor-Bot/internal/server/repositories/repomanager"
)

// QuotaService keeps used_bytes within limit_bytes for every account.
//
// Admit is advisory. The authoritative check is ReserveAndCommit, a single
// conditional UPDATE, so concurrent uploads can never overshoot the limit.
type QuotaService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
}

func NewQuotaService(db *sql.DB, m repomanager.RepositoryManager) *QuotaService {
	return &QuotaService{db: db, repomanager: m}
}

// Admit reports whether delta more bytes would currently fit.
func (s *QuotaService) Admit(ctx context.Context, accountID string, delta int64) (bool, error) {
	if delta < 0 {
		return false, fmt.Errorf("%w: negative size", common.ErrValidation)
	}
	account, err := s.repomanager.Accounts(s.db).Get(ctx, accountID)
	if err != nil {
		return false, err
	}
	return account.UsedBytes+delta <= account.LimitBytes, nil
}

// ReserveAndCommit charges delta to the account through db, which is usually
// the upload transaction.
func (s *QuotaService) ReserveAndCommit(ctx context.Context, db dbx.DBTX, accountID string, delta int64) error {
	if delta < 0 {
		return fmt.Errorf("%w: negative size", common.ErrValidation)
	}
	repo := s.repomanager.Accounts(db)

	ok, err := repo.AddUsage(ctx, accountID, delta)
	if err != nil {
		return fmt.Errorf("error reserving quota: %w", err)
	}
	if ok {
		return nil
	}

	if _, err := repo.Get(ctx, accountID); err != nil {
		return err
	}
	return common.ErrQuotaExceeded
}

// Release returns delta bytes to the account. used_bytes never drops below zero.
func (s *QuotaService) Release(ctx context.Context, db dbx.DBTX, accountID string, delta int64) error {
	if delta < 0 {
		return fmt.Errorf("%w: negative size", common.ErrValidation)
	}
	if err := s.repomanager.Accounts(db).ReleaseUsage(ctx, accountID, delta); err != nil {
		if errors.Is(err, common.ErrAccountNotFound) {
			return err
		}
		return fmt.Errorf("error releasing quota: %w", err)
	}
	return nil
}

func (s *QuotaService) Snapshot(ctx context.Context, accountID string) (*models.QuotaInfo, error) {
	account, err := s.repomanager.Accounts(s.db).Get(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return quotaInfo(account.UsedBytes, account.LimitBytes), nil
}

func (s *QuotaService) SetLimit(ctx context.Context, accountID string, limit int64) error {
	if limit < 0 {
		return fmt.Errorf("%w: negative limit", common.ErrValidation)
	}
	return s.repomanager.Accounts(s.db).SetLimit(ctx, accountID, limit)
}

func quotaInfo(used, limit int64) *models.QuotaInfo {
	info := &models.QuotaInfo{Used: used, Limit: limit}
	if limit > used {
		info.Available = limit - used
	}
	if limit > 0 {
		info.Percentage = math.Round(float64(used)/float64(limit)*100*100) / 100
	}
	return info
}

var byteUnits = []string{"Bytes", "KB", "MB", "GB", "TB"}

// FormatBytes renders n with 1024-based units, e.g. "0 Bytes", "1.5 KB".
func FormatBytes(n int64) string {
	if n <= 0 {
		return "0 Bytes"
	}
	i := int(math.Floor(math.Log(float64(n)) / math.Log(1024)))
	if i >= len(byteUnits) {
		i = len(byteUnits) - 1
	}
	v := math.Round(float64(n)/math.Pow(1024, float64(i))*100) / 100
	return strconv.FormatFloat(v, 'f', -1, 64) + " " + byteUnits[i]
}

package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/young8Programmer/Secure-Cloud-File-Manager-Encryptor-Bot/internal/common"
	"github.com/young8Programmer/Secure-Cloud-File-Manager-Encryptor-Bot/internal/cryptox"
	"github.com/young8Programmer/Secure-Cloud-File-Manager-Encryptor-Bot/internal/dbx"
	"github.com/young8Programmer/Secure-Cloud-File-Manager-Encryptor-Bot/internal/logging"
	"github.com/young8Programmer/Secure-Cloud-File-Manager-Encryptor-Bot/internal/server/blobstore"
	"github.com/young8Programmer/Secure-Cloud-File-Manager-Encryptor-Bot/internal/server/metrics"
	"github.com/young8Programmer/Secure-Cloud-File-Manager-Encryptor-Bot/internal/server/models"
	"github.com/young8Programmer/Secure-Cloud-File-Manager-Encryptor-Bot/internal/server/repositories/repomanager"
)

const (
	defaultMimeType = "application/octet-stream"
	sweepBatchSize  = 500
)

// UploadInput is one file handed over by a transport.
type UploadInput struct {
	AccountID    string
	Data         []byte
	OriginalName string
	MimeType     string
	FolderID     *string
	ExpiresAt    *time.Time
}

// FileService stores files encrypted under per-file data keys and keeps the
// owner's quota in step with the rows that exist.
type FileService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	vault       KeyVault
	store       blobstore.Store
	quota       *QuotaService
	links       *LinkService
	logger      logging.Logger
	metrics     *metrics.Metrics
	now         Clock
	sweepBatch  int
}

func NewFileService(db *sql.DB, m repomanager.RepositoryManager, vault KeyVault, store blobstore.Store,
	quota *QuotaService, links *LinkService, logger logging.Logger) *FileService {
	return &FileService{
		db:          db,
		repomanager: m,
		vault:       vault,
		store:       store,
		quota:       quota,
		links:       links,
		logger:      logger.With("module", "files"),
		now:         time.Now,
		sweepBatch:  sweepBatchSize,
	}
}

func (s *FileService) WithClock(now Clock) *FileService {
	s.now = now
	return s
}

func (s *FileService) WithMetrics(m *metrics.Metrics) *FileService {
	s.metrics = m
	return s
}

// Upload encrypts in.Data and records it for in.AccountID.
//
// The blob is written before the metadata transaction. Any failure after the
// write deletes the blob again, so a failed upload leaves neither a row, a
// quota charge nor an orphan blob.
func (s *FileService) Upload(ctx context.Context, in UploadInput) (_ *models.File, err error) {
	started := time.Now()
	defer func() { s.metrics.ObserveOperation("upload", resultOf(err), started) }()

	name := strings.TrimSpace(in.OriginalName)
	if in.AccountID == "" || name == "" {
		return nil, fmt.Errorf("%w: account and file name are required", common.ErrValidation)
	}
	now := s.now()
	if in.ExpiresAt != nil && !in.ExpiresAt.After(now) {
		return nil, fmt.Errorf("%w: expiry must be in the future", common.ErrValidation)
	}
	mimeType := in.MimeType
	if mimeType == "" {
		mimeType = defaultMimeType
	}
	size := int64(len(in.Data))

	ok, err := s.quota.Admit(ctx, in.AccountID, size)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, common.ErrQuotaExceeded
	}

	if in.FolderID != nil {
		if _, err := s.repomanager.Folders(s.db).Get(ctx, *in.FolderID, in.AccountID); err != nil {
			return nil, fmt.Errorf("folder: %w", err)
		}
	}

	dataKey, err := s.vault.NewDataKey()
	if err != nil {
		return nil, fmt.Errorf("error generating data key: %w", err)
	}
	defer common.WipeByteArray(dataKey)

	ciphertext, nonce, tag, err := cryptox.Seal(in.Data, dataKey)
	if err != nil {
		return nil, fmt.Errorf("error encrypting file: %w", err)
	}

	locator := blobstore.NewLocator(in.AccountID, now)
	if err := s.store.Put(ctx, locator, ciphertext); err != nil {
		return nil, fmt.Errorf("error storing blob: %w", err)
	}
	defer func() {
		if err != nil {
			s.discardBlob(ctx, locator)
		}
	}()

	envelope, keyVersion, err := s.vault.Wrap(dataKey)
	if err != nil {
		return nil, fmt.Errorf("error wrapping data key: %w", err)
	}

	file := &models.File{
		OwnerID:      in.AccountID,
		OriginalName: name,
		Locator:      locator,
		MimeType:     mimeType,
		SizeBytes:    size,
		Envelope:     envelope,
		KeyVersion:   keyVersion,
		Nonce:        nonce,
		AuthTag:      tag,
		FolderID:     in.FolderID,
		ExpiresAt:    in.ExpiresAt,
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.quota.ReserveAndCommit(ctx, tx, in.AccountID, size); err != nil {
			return err
		}
		return s.repomanager.Files(tx).Insert(ctx, file)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordUpload(size)
	s.logger.Info(ctx, "file uploaded", "file_id", file.ID, "account_id", in.AccountID, "size", size)
	return file, nil
}

func (s *FileService) discardBlob(ctx context.Context, locator string) {
	ctx = context.WithoutCancel(ctx)
	if err := s.store.Delete(ctx, locator); err != nil {
		s.logger.Error(ctx, "failed to delete blob of failed upload", "locator", locator, "error", err)
	}
}

// Download decrypts an owned file. Integrity failures are returned as
// ErrIntegrity or ErrFormat and never as not found.
func (s *FileService) Download(ctx context.Context, fileID, accountID string) (_ *models.Download, err error) {
	started := time.Now()
	defer func() { s.metrics.ObserveOperation("download", resultOf(err), started) }()

	file, err := s.repomanager.Files(s.db).GetOwned(ctx, fileID, accountID)
	if err != nil {
		return nil, err
	}
	if file.Expired(s.now()) {
		return nil, common.ErrExpired
	}

	dataKey, err := s.vault.Unwrap(file.Envelope, file.KeyVersion)
	if err != nil {
		s.logger.Error(ctx, "failed to unwrap data key", "file_id", file.ID, "error", err)
		return nil, fmt.Errorf("unwrap data key: %w", err)
	}
	defer common.WipeByteArray(dataKey)

	ciphertext, err := s.store.Get(ctx, file.Locator)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			// a delete that ran after the row was read also removes the blob
			if _, gerr := s.repomanager.Files(s.db).GetOwned(ctx, file.ID, file.OwnerID); errors.Is(gerr, common.ErrorNotFound) {
				return nil, common.ErrorNotFound
			}
			s.logger.Error(ctx, "blob missing for file", "file_id", file.ID, "locator", file.Locator)
			return nil, fmt.Errorf("%w: blob missing", common.ErrIntegrity)
		}
		return nil, fmt.Errorf("load blob: %w", err)
	}

	plaintext, err := cryptox.Open(ciphertext, dataKey, file.Nonce, file.AuthTag)
	if err != nil {
		s.logger.Error(ctx, "file failed integrity check", "file_id", file.ID, "error", err)
		return nil, fmt.Errorf("decrypt file: %w", err)
	}

	s.metrics.RecordDownload(int64(len(plaintext)))
	return &models.Download{Data: plaintext, OriginalName: file.OriginalName, MimeType: file.MimeType}, nil
}

// DownloadByToken redeems a one-time link and downloads the file it names.
func (s *FileService) DownloadByToken(ctx context.Context, token string) (*models.Download, error) {
	r, err := s.links.Redeem(ctx, token)
	if err != nil {
		return nil, err
	}
	return s.Download(ctx, r.FileID, r.AccountID)
}

// Delete removes an owned file with its blob and releases its quota.
func (s *FileService) Delete(ctx context.Context, fileID, accountID string) (err error) {
	started := time.Now()
	defer func() { s.metrics.ObserveOperation("delete", resultOf(err), started) }()

	file, err := s.repomanager.Files(s.db).GetOwned(ctx, fileID, accountID)
	if err != nil {
		return err
	}
	if err := s.retire(ctx, file); err != nil {
		return err
	}

	s.logger.Info(ctx, "file deleted", "file_id", fileID, "account_id", accountID)
	return nil
}

// retire is the only path that removes file rows.
//
// The row is marked deleted first, then the blob goes, then the row is
// removed and quota released in one transaction. Removal reports whether this
// call removed the row, so quota is released exactly once. A crash between
// the steps leaves a marked row that the sweep finishes later.
func (s *FileService) retire(ctx context.Context, file *models.File) error {
	if !file.Deleted {
		if err := s.repomanager.Files(s.db).MarkDeleted(ctx, file.ID, file.OwnerID); err != nil {
			return fmt.Errorf("mark deleted: %w", err)
		}
	}

	if err := s.store.Delete(ctx, file.Locator); err != nil {
		return fmt.Errorf("delete blob: %w", err)
	}

	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		size, removed, err := s.repomanager.Files(tx).Remove(ctx, file.ID)
		if err != nil {
			return fmt.Errorf("remove row: %w", err)
		}
		if !removed {
			return nil
		}
		return s.quota.Release(ctx, tx, file.OwnerID, size)
	})
}

// RetireMarked finishes interrupted deletes of files in folderID so the
// folder row can be removed.
func (s *FileService) RetireMarked(ctx context.Context, accountID, folderID string) error {
	marked, err := s.repomanager.Files(s.db).ListMarkedInFolder(ctx, accountID, folderID)
	if err != nil {
		return fmt.Errorf("list marked files: %w", err)
	}
	for _, file := range marked {
		if err := s.retire(ctx, file); err != nil {
			return fmt.Errorf("retire file %s: %w", file.ID, err)
		}
	}
	return nil
}

// List returns the owner's non-deleted files in folderID (nil for root), newest first.
func (s *FileService) List(ctx context.Context, accountID string, folderID *string) ([]*models.File, error) {
	return s.repomanager.Files(s.db).ListByFolder(ctx, accountID, folderID)
}

// SweepExpired retires files whose expiry has passed and finishes deletes
// that were interrupted. Per-file failures are logged and skipped.
func (s *FileService) SweepExpired(ctx context.Context) (int, error) {
	repo := s.repomanager.Files(s.db)
	retired := 0
	var failed []string

	for {
		batch, err := repo.SelectReapable(ctx, s.now(), failed, s.sweepBatch)
		if err != nil {
			s.metrics.RecordSweep(retired, len(failed))
			return retired, fmt.Errorf("select expired files: %w", err)
		}

		for _, file := range batch {
			if err := ctx.Err(); err != nil {
				s.metrics.RecordSweep(retired, len(failed))
				return retired, err
			}
			if err := s.retire(ctx, file); err != nil {
				failed = append(failed, file.ID)
				s.logger.Warn(ctx, "failed to retire file", "file_id", file.ID, "error", err)
				continue
			}
			retired++
		}

		// failed rows are excluded from the next select
		if len(batch) < s.sweepBatch {
			break
		}
	}

	s.metrics.RecordSweep(retired, len(failed))
	if retired > 0 || len(failed) > 0 {
		s.logger.Info(ctx, "expired files swept", "retired", retired, "failed", len(failed))
	}
	return retired, nil
}

func resultOf(err error) string {
	switch {
	case err == nil:
		return metrics.ResultOK
	case errors.Is(err, common.ErrQuotaExceeded):
		return metrics.ResultQuota
	case errors.Is(err, common.ErrorNotFound):
		return metrics.ResultNotFound
	case errors.Is(err, common.ErrExpired):
		return metrics.ResultExpired
	default:
		return metrics.ResultError
	}
}

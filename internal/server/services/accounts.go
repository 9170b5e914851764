package services

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/young8Programmer/Secure-Cloud-File-Manager-Encryptor-Bot/internal/common"
	"github.com/young8Programmer/Secure-Cloud-File-Manager-Encryptor-Bot/internal/server/models"
	"github.com/young8Programmer/Secure-Cloud-File-Manager-Encryptor-Bot/internal/server/repositories/repomanager"
)

// Identity is what a transport knows about the person behind a request.
type Identity struct {
	ExternalID string
	Username   string
	FirstName  string
	LastName   string
}

type AccountService struct {
	db           *sql.DB
	repomanager  repomanager.RepositoryManager
	defaultLimit int64
}

func NewAccountService(db *sql.DB, m repomanager.RepositoryManager, defaultLimit int64) *AccountService {
	return &AccountService{db: db, repomanager: m, defaultLimit: defaultLimit}
}

// GetOrCreate returns the account for id.ExternalID, creating it with the
// default quota on first contact. Profile fields are refreshed every call.
func (s *AccountService) GetOrCreate(ctx context.Context, id Identity) (*models.Account, error) {
	ext := strings.TrimSpace(id.ExternalID)
	if ext == "" {
		return nil, fmt.Errorf("%w: external id is required", common.ErrValidation)
	}

	account := &models.Account{
		ExternalID: ext,
		Username:   optional(id.Username),
		FirstName:  optional(id.FirstName),
		LastName:   optional(id.LastName),
	}

	out, err := s.repomanager.Accounts(s.db).Upsert(ctx, account, s.defaultLimit)
	if err != nil {
		return nil, fmt.Errorf("error upserting account: %w", err)
	}
	return out, nil
}

func (s *AccountService) Get(ctx context.Context, accountID string) (*models.Account, error) {
	return s.repomanager.Accounts(s.db).Get(ctx, accountID)
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

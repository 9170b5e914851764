package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/young8Programmer/Secure-Cloud-File-Manager-Encryptor-Bot/internal/common"
	"github.com/young8Programmer/Secure-Cloud-File-Manager-Encryptor-Bot/internal/server/metrics"
	"github.com/young8Programmer/Secure-Cloud-File-Manager-Encryptor-Bot/internal/server/models"
	"github.com/young8Programmer/Secure-Cloud-File-Manager-Encryptor-Bot/internal/server/repositories/repomanager"
)

// LinkService issues single-use, time-limited download tokens.
//
// A file has at most one live token; issuing a new one replaces it. Redeem
// clears the token in the same statement that reads it, so a token is
// consumed exactly once even under concurrent redemption.
type LinkService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	defaultTTL  time.Duration
	baseURL     string
	now         Clock
	metrics     *metrics.Metrics
}

func NewLinkService(db *sql.DB, m repomanager.RepositoryManager, defaultTTL time.Duration, baseURL string) *LinkService {
	return &LinkService{
		db:          db,
		repomanager: m,
		defaultTTL:  defaultTTL,
		baseURL:     strings.TrimRight(baseURL, "/"),
		now:         time.Now,
	}
}

func (s *LinkService) WithClock(now Clock) *LinkService {
	s.now = now
	return s
}

func (s *LinkService) WithMetrics(m *metrics.Metrics) *LinkService {
	s.metrics = m
	return s
}

// Issue creates a token for an owned, non-deleted file. A ttl of zero or
// less falls back to the configured default.
func (s *LinkService) Issue(ctx context.Context, fileID, accountID string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = s.defaultTTL
	}

	token, err := common.MakeRandHexString(common.LinkTokenSize)
	if err != nil {
		return "", fmt.Errorf("error generating link token: %w", err)
	}

	expiresAt := s.now().Add(ttl)
	if err := s.repomanager.Files(s.db).SetLink(ctx, fileID, accountID, token, expiresAt); err != nil {
		return "", err
	}

	s.metrics.RecordLinkIssued()
	return token, nil
}

// Redeem consumes token. An expired token is consumed too and reports ErrExpired.
func (s *LinkService) Redeem(ctx context.Context, token string) (*models.Redemption, error) {
	if token == "" {
		s.metrics.RecordLinkRedeemed(metrics.ResultInvalid)
		return nil, common.ErrInvalidToken
	}

	fileID, ownerID, expiresAt, err := s.repomanager.Files(s.db).Redeem(ctx, token)
	if err != nil {
		if errors.Is(err, common.ErrInvalidToken) {
			s.metrics.RecordLinkRedeemed(metrics.ResultInvalid)
		} else {
			s.metrics.RecordLinkRedeemed(metrics.ResultError)
		}
		return nil, err
	}

	if s.now().After(expiresAt) {
		s.metrics.RecordLinkRedeemed(metrics.ResultExpired)
		return nil, common.ErrExpired
	}

	s.metrics.RecordLinkRedeemed(metrics.ResultOK)
	return &models.Redemption{FileID: fileID, AccountID: ownerID}, nil
}

// URL returns the public capability URL for token.
func (s *LinkService) URL(token string) string {
	return s.baseURL + "/download/" + token
}

package models

import "time"

type Account struct {
	ID         string
	ExternalID string
	Username   *string
	FirstName  *string
	LastName   *string
	UsedBytes  int64
	LimitBytes int64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// QuotaInfo is a point-in-time view of an account's storage usage.
type QuotaInfo struct {
	Used       int64
	Limit      int64
	Available  int64
	Percentage float64
}

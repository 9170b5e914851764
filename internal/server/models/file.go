// Package models defines server-side data models persisted in the database.
package models

import "time"

// File is the metadata row of one encrypted upload. The ciphertext itself
// lives in blob storage under Locator.
type File struct {
	ID           string
	OwnerID      string
	OriginalName string
	// Locator is the opaque blob storage key, never derived from OriginalName.
	Locator  string
	MimeType string
	// SizeBytes is the plaintext size charged against the owner's quota.
	SizeBytes int64
	// Envelope is the base64 wrapped data key, unwrapped with KeyVersion.
	Envelope   string
	KeyVersion int
	Nonce      []byte
	AuthTag    []byte
	FolderID   *string
	ExpiresAt  *time.Time

	LinkToken     *string
	LinkExpiresAt *time.Time

	// Deleted marks a row whose delete has started but not finished.
	Deleted   bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Expired reports whether the file has an expiry that lies before now.
func (f *File) Expired(now time.Time) bool {
	return f.ExpiresAt != nil && f.ExpiresAt.Before(now)
}

// Download is a decrypted file ready to hand to the caller.
type Download struct {
	Data         []byte
	OriginalName string
	MimeType     string
}

// Redemption identifies the file a one-time link pointed to.
type Redemption struct {
	FileID    string
	AccountID string
}

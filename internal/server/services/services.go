// Package services contains the vault's business logic: accounts and their
// quota, the folder tree, encrypted files and one-time download links.
//
// Services hold a *sql.DB and a repomanager.RepositoryManager. Work that must
// be atomic runs inside dbx.WithTx with repositories bound to the transaction.
package services

import "time"

// KeyVault wraps per-file data keys under the master secret.
type KeyVault interface {
	NewDataKey() ([]byte, error)
	Wrap(dataKey []byte) (envelope string, keyVersion int, err error)
	Unwrap(envelope string, keyVersion int) ([]byte, error)
}

// Clock returns the current time. Tests replace it to move time forward.
type Clock func() time.Time

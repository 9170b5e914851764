package common

const (
	// DataKeySize is the size of per-file data keys and master wrapping keys (AES-256).
	DataKeySize = 32

	// LinkTokenSize is the number of random bytes in a capability link token.
	LinkTokenSize = 32

	// DefaultLimitBytes is the storage limit given to new accounts (100 MiB).
	DefaultLimitBytes int64 = 100 * 1024 * 1024
)

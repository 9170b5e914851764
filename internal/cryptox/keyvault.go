package cryptox

import (
	"encoding/base64"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/young8Programmer/Secure-Cloud-File-Manager-Encryptor-Bot/internal/common"
)

const (
	// DefaultKeyVersion is the version assigned to a single master secret.
	DefaultKeyVersion = 1

	envelopeHeader = SaltSize + NonceSize + TagSize

	derivedKeyCacheSize = 1024
)

// KeyVault issues per-file data keys and wraps them under a master secret.
//
// The vault knows every master secret by version. Wrap always uses the
// current version; Unwrap uses the version recorded next to the envelope,
// which lets old envelopes open after a new secret becomes current.
//
// Derived wrapping keys are kept in a bounded LRU keyed by version and salt.
// The cache lives as long as the vault, so dropping a master secret means
// building a new vault.
type KeyVault struct {
	secrets    map[int][]byte
	current    int
	iterations int
	derived    *lru.Cache[string, []byte]
}

// NewKeyVault builds a vault over secrets (version -> master password).
// current must be one of the versions and iterations must be at least
// MinIterations.
func NewKeyVault(secrets map[int]string, current int, iterations int) (*KeyVault, error) {
	if iterations < MinIterations {
		return nil, fmt.Errorf("pbkdf2 iterations %d below minimum %d", iterations, MinIterations)
	}
	if _, ok := secrets[current]; !ok {
		return nil, fmt.Errorf("current key version %d has no secret", current)
	}

	cache, err := lru.New[string, []byte](derivedKeyCacheSize)
	if err != nil {
		return nil, err
	}

	v := &KeyVault{
		secrets:    make(map[int][]byte, len(secrets)),
		current:    current,
		iterations: iterations,
		derived:    cache,
	}
	for version, secret := range secrets {
		if secret == "" {
			return nil, fmt.Errorf("empty master secret for key version %d", version)
		}
		v.secrets[version] = []byte(secret)
	}
	return v, nil
}

// NewSingleKeyVault is NewKeyVault with one secret at DefaultKeyVersion.
func NewSingleKeyVault(masterPassword string, iterations int) (*KeyVault, error) {
	return NewKeyVault(map[int]string{DefaultKeyVersion: masterPassword}, DefaultKeyVersion, iterations)
}

// CurrentVersion reports the key version used by Wrap.
func (v *KeyVault) CurrentVersion() int { return v.current }

// NewDataKey returns a fresh random KeySize-byte key. Keys are never cached.
func (v *KeyVault) NewDataKey() ([]byte, error) {
	return common.GenerateRandByteArray(KeySize)
}

// Wrap encrypts dataKey under the current master secret and returns the
// base64 envelope salt ‖ nonce ‖ tag ‖ ciphertext together with the version
// that must be passed back to Unwrap.
func (v *KeyVault) Wrap(dataKey []byte) (string, int, error) {
	if len(dataKey) != KeySize {
		return "", 0, ErrInvalidKey
	}

	salt, err := common.GenerateRandByteArray(SaltSize)
	if err != nil {
		return "", 0, fmt.Errorf("salt: %w", err)
	}

	wrappingKey := v.wrappingKey(v.current, salt)

	ciphertext, nonce, tag, err := Seal(dataKey, wrappingKey)
	if err != nil {
		return "", 0, err
	}

	blob := make([]byte, 0, envelopeHeader+len(ciphertext))
	blob = append(blob, salt...)
	blob = append(blob, nonce...)
	blob = append(blob, tag...)
	blob = append(blob, ciphertext...)

	return base64.StdEncoding.EncodeToString(blob), v.current, nil
}

// Unwrap reverses Wrap.
//
// It returns common.ErrFormat when the envelope is not valid base64, is too
// short or names an unknown key version, and common.ErrIntegrity when the tag
// does not verify (tampering, corruption or a wrong master secret).
func (v *KeyVault) Unwrap(envelope string, version int) ([]byte, error) {
	blob, err := base64.StdEncoding.DecodeString(envelope)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrFormat, err)
	}
	if len(blob) <= envelopeHeader {
		return nil, fmt.Errorf("%w: envelope is %d bytes", common.ErrFormat, len(blob))
	}
	if _, ok := v.secrets[version]; !ok {
		return nil, fmt.Errorf("%w: unknown key version %d", common.ErrFormat, version)
	}

	salt := blob[:SaltSize]
	nonce := blob[SaltSize : SaltSize+NonceSize]
	tag := blob[SaltSize+NonceSize : envelopeHeader]
	ciphertext := blob[envelopeHeader:]

	return Open(ciphertext, v.wrappingKey(version, salt), nonce, tag)
}

func (v *KeyVault) wrappingKey(version int, salt []byte) []byte {
	cacheKey := fmt.Sprintf("%d:%x", version, salt)
	if key, ok := v.derived.Get(cacheKey); ok {
		return key
	}
	key := DeriveMasterKey(v.secrets[version], salt, v.iterations)
	v.derived.Add(cacheKey, key)
	return key
}

package keychain

import (
	"crypto/rand"
	"encoding/base64"
	"os"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/zalando/go-keyring"

	"github.com/sweeply/sweeply/internal/errors"
)

const service = "com.sweeply.sweeply"

// Store reads and writes secrets in the OS keychain. Successful lookups
// are cached for the process lifetime behind a mutex; a key that was not
// found is looked up again on the next call.
type Store struct {
	mu    sync.Mutex
	cache map[string]string
}

// New returns an empty store.
func New() *Store {
	return &Store{cache: make(map[string]string)}
}

// Get returns the secret for key. The environment variable envFallback
// is consulted when the keychain has no entry; an empty envFallback
// skips that step.
func (s *Store) Get(key, envFallback string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.cache[key]; ok {
		return v, nil
	}

	v, err := keyring.Get(service, key)
	if err == nil {
		s.cache[key] = v
		return v, nil
	}
	if err != keyring.ErrNotFound {
		log.Debug().Err(err).Str("key", key).Msg("keychain unavailable")
	}
	if envFallback != "" {
		if v := os.Getenv(envFallback); v != "" {
			s.cache[key] = v
			return v, nil
		}
	}
	return "", errors.Crypto("no secret for "+key, err)
}

// Set stores a secret and refreshes the cache.
func (s *Store) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := keyring.Set(service, key, value); err != nil {
		return errors.Crypto("storing secret "+key, err)
	}
	s.cache[key] = value
	return nil
}

// MasterSecret returns the backup master secret, generating and
// persisting a fresh one on first use.
func (s *Store) MasterSecret() (string, error) {
	const key = "backup-master-secret"
	if v, err := s.Get(key, "SWEEPLY_BACKUP_SECRET"); err == nil {
		return v, nil
	}

	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", errors.Crypto("generating master secret", err)
	}
	secret := base64.StdEncoding.EncodeToString(raw)
	if err := s.Set(key, secret); err != nil {
		// Keychain-less hosts still get a working (session-only) key.
		log.Warn().Msg("keychain unavailable, backup key will not survive this process")
		s.mu.Lock()
		s.cache[key] = secret
		s.mu.Unlock()
	}
	return secret, nil
}

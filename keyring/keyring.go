// Package keyring provides secure password storage for remembered portal
// logins. It uses the system keyring when available, falling back to an
// encrypted local file when not.
package keyring

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/zalando/go-keyring"
	"golang.org/x/crypto/argon2"

	"github.com/yllada/ncconnect/common"
)

const (
	// ServiceName is the identifier used in the system keyring.
	ServiceName = "ncconnect"
	probeKey    = "ncconnect-probe"
)

// Common errors returned by keyring operations.
var (
	ErrNotFound = common.ErrCredentialsNotFound
	ErrEmpty    = errors.New("account and password cannot be empty")
)

// Store keeps passwords in the system keyring or, when that is
// unavailable, in an AES-GCM encrypted file.
type Store struct {
	service   string
	fallback  string
	probeOnce sync.Once

	mu       sync.RWMutex
	useLocal bool
	local    map[string]string
	key      []byte
}

// New creates a store for the given keyring service. fallbackPath is the
// encrypted file used when the system keyring cannot be reached.
func New(service, fallbackPath string) *Store {
	return &Store{
		service:  service,
		fallback: fallbackPath,
		local:    make(map[string]string),
	}
}

// Default returns a store using ServiceName and
// ~/.config/ncconnect/.credentials as the fallback.
func Default() (*Store, error) {
	dir, err := common.GetConfigDir()
	if err != nil {
		return nil, err
	}
	return New(ServiceName, filepath.Join(dir, common.CredentialsFileName)), nil
}

// probe decides once whether the system keyring is usable.
func (s *Store) probe() {
	s.probeOnce.Do(func() {
		err := keyring.Set(s.service, probeKey, "probe")
		if err == nil {
			_ = keyring.Delete(s.service, probeKey)
			return
		}
		common.LogWarn("Keyring: system keyring unavailable, using encrypted file: %v", err)
		s.switchToLocal()
	})
}

// switchToLocal enables the encrypted file backend and loads it.
func (s *Store) switchToLocal() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.useLocal {
		return
	}
	s.useLocal = true
	s.key = deriveKey()
	s.loadLocal()
}

// deriveKey derives the file key from machine-specific data.
func deriveKey() []byte {
	hostname, _ := os.Hostname()
	keyData := fmt.Sprintf("%s-%s-%d", ServiceName, hostname, os.Getuid())
	return argon2.IDKey([]byte(keyData), []byte(getMachineID()), 1, 64*1024, 4, 32)
}

func getMachineID() string {
	data, err := os.ReadFile("/etc/machine-id")
	if err == nil {
		return strings.TrimSpace(string(data))
	}
	return "default-machine-id"
}

// loadLocal reads the encrypted file. Callers must hold s.mu.
func (s *Store) loadLocal() {
	data, err := os.ReadFile(s.fallback)
	if err != nil {
		return
	}

	decrypted, err := s.decrypt(data)
	if err != nil {
		common.LogWarn("Keyring: could not decrypt %s: %v", s.fallback, err)
		return
	}

	if err := json.Unmarshal(decrypted, &s.local); err != nil {
		common.LogWarn("Keyring: could not parse %s: %v", s.fallback, err)
	}
}

// saveLocal writes the encrypted file. Callers must hold s.mu.
func (s *Store) saveLocal() error {
	data, err := json.Marshal(s.local)
	if err != nil {
		return err
	}

	encrypted, err := s.encrypt(data)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(s.fallback), 0700); err != nil {
		return err
	}
	return os.WriteFile(s.fallback, encrypted, 0600)
}

func (s *Store) encrypt(plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(s.key)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	ciphertext := gcm.Seal(nonce, nonce, plaintext, nil)
	return []byte(base64.StdEncoding.EncodeToString(ciphertext)), nil
}

func (s *Store) decrypt(data []byte) ([]byte, error) {
	ciphertext, err := base64.StdEncoding.DecodeString(string(data))
	if err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(s.key)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	if len(ciphertext) < gcm.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}

	nonce, ciphertext := ciphertext[:gcm.NonceSize()], ciphertext[gcm.NonceSize():]
	return gcm.Open(nil, nonce, ciphertext, nil)
}

func (s *Store) isLocal() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.useLocal
}

// Store saves a password for an account.
func (s *Store) Store(account, password string) error {
	if account == "" || password == "" {
		return ErrEmpty
	}
	s.probe()

	if !s.isLocal() {
		err := keyring.Set(s.service, account, password)
		if err == nil {
			return nil
		}
		common.LogWarn("Keyring: set failed, falling back to encrypted file: %v", err)
		s.switchToLocal()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.local[account] = password
	if err := s.saveLocal(); err != nil {
		return fmt.Errorf("%w: %v", common.ErrCredentialStorage, err)
	}
	return nil
}

// Get retrieves the password for an account.
func (s *Store) Get(account string) (string, error) {
	if account == "" {
		return "", ErrEmpty
	}
	s.probe()

	if !s.isLocal() {
		password, err := keyring.Get(s.service, account)
		if err == nil {
			return password, nil
		}
		if errors.Is(err, keyring.ErrNotFound) {
			return "", ErrNotFound
		}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	password, exists := s.local[account]
	if !exists {
		return "", ErrNotFound
	}
	return password, nil
}

// Delete removes the password for an account.
func (s *Store) Delete(account string) error {
	if account == "" {
		return ErrEmpty
	}
	s.probe()

	if !s.isLocal() {
		if err := keyring.Delete(s.service, account); err != nil && !errors.Is(err, keyring.ErrNotFound) {
			common.LogWarn("Keyring: delete %s failed: %v", account, err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.local[account]; !ok {
		return nil
	}
	delete(s.local, account)
	return s.saveLocal()
}

// Clear removes every stored password.
func (s *Store) Clear() error {
	s.probe()

	if !s.isLocal() {
		if err := keyring.DeleteAll(s.service); err != nil {
			return fmt.Errorf("%w: %v", common.ErrCredentialStorage, err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.local = make(map[string]string)
	if !s.useLocal {
		return nil
	}
	return s.saveLocal()
}

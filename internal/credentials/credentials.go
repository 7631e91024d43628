// Package credentials resolves the database password from the environment,
// the OS keyring, or an interactive prompt, in that order.
package credentials

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"
	"sync"

	"github.com/99designs/keyring"
	"golang.org/x/term"
)

// ServiceName is the keyring namespace.
const ServiceName = "sqlgate"

// EnvPassword is read before the keyring is consulted.
const EnvPassword = "DB_PASSWORD"

// ErrNotFound is returned when the keyring holds no password for a key.
var ErrNotFound = errors.New("credentials: password not found")

// Source names where a resolved password came from.
type Source string

const (
	SourceEnv     Source = "env"
	SourceKeyring Source = "keyring"
	SourcePrompt  Source = "prompt"
	SourceNone    Source = "none"
)

// Store keeps database passwords in a keyring. Safe for concurrent use.
type Store struct {
	mu   sync.RWMutex
	ring keyring.Keyring
}

// Open opens the platform keyring.
func Open() (*Store, error) {
	var backends []keyring.BackendType
	switch runtime.GOOS {
	case "darwin":
		backends = []keyring.BackendType{keyring.KeychainBackend, keyring.PassBackend}
	case "windows":
		backends = []keyring.BackendType{keyring.WinCredBackend}
	default:
		backends = []keyring.BackendType{keyring.SecretServiceBackend, keyring.KWalletBackend, keyring.PassBackend}
	}
	ring, err := keyring.Open(keyring.Config{
		ServiceName:     ServiceName,
		AllowedBackends: backends,
		PassPrefix:      ServiceName,
		WinCredPrefix:   ServiceName,
	})
	if err != nil {
		return nil, fmt.Errorf("credentials: open keyring: %w", err)
	}
	return New(ring), nil
}

// New wraps an already opened keyring.
func New(ring keyring.Keyring) *Store {
	return &Store{ring: ring}
}

// Key is the keyring item key of a user on a host.
func Key(user, host string) string {
	return "db_password:" + user + "@" + host
}

// Password returns the stored password for user@host.
func (s *Store) Password(user, host string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	it, err := s.ring.Get(Key(user, host))
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("credentials: read %s: %w", Key(user, host), err)
	}
	return string(it.Data), nil
}

// SetPassword stores the password for user@host.
func (s *Store) SetPassword(user, host, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.ring.Set(keyring.Item{
		Key:   Key(user, host),
		Data:  []byte(password),
		Label: fmt.Sprintf("sqlgate database password for %s@%s", user, host),
	})
	if err != nil {
		return fmt.Errorf("credentials: store %s: %w", Key(user, host), err)
	}
	return nil
}

// Clear removes the password for user@host.
func (s *Store) Clear(user, host string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.ring.Remove(Key(user, host))
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return ErrNotFound
	}
	return err
}

// Prompter asks the operator for a secret.
type Prompter func(label string) (string, error)

// TerminalPrompt reads a password from stdin without echo. It fails when
// stdin is not a terminal.
func TerminalPrompt(label string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("credentials: stdin is not a terminal")
	}
	fmt.Fprint(os.Stderr, label)
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("credentials: read password: %w", err)
	}
	return strings.TrimRight(string(b), "\r\n"), nil
}

// Resolver finds the database password. Any field may be nil.
type Resolver struct {
	Getenv func(string) string
	Store  *Store
	Prompt Prompter
}

// Resolve returns the password for user@host and where it came from. A
// missing password is not an error: the result is "" with SourceNone.
func (r Resolver) Resolve(user, host string) (string, Source, error) {
	getenv := r.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	if pw := getenv(EnvPassword); pw != "" {
		return pw, SourceEnv, nil
	}

	if r.Store != nil {
		pw, err := r.Store.Password(user, host)
		switch {
		case err == nil:
			return pw, SourceKeyring, nil
		case !errors.Is(err, ErrNotFound):
			return "", SourceNone, err
		}
	}

	if r.Prompt != nil {
		pw, err := r.Prompt(fmt.Sprintf("Password for %s@%s: ", user, host))
		if err != nil {
			return "", SourceNone, err
		}
		return pw, SourcePrompt, nil
	}
	return "", SourceNone, nil
}

package passphrase

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"
)

// Source resolves a keystore passphrase from an environment variable or by
// prompting on the terminal. The first result is cached.
type Source struct {
	envVar  string
	confirm bool

	once  sync.Once
	value string
	err   error

	// Overridden in tests.
	isTerminal func(fd int) bool
	readSecret func(fd int) ([]byte, error)
}

// NewSource returns a source that reads envVar before prompting.
func NewSource(envVar string) *Source {
	return &Source{
		envVar:     strings.TrimSpace(envVar),
		isTerminal: term.IsTerminal,
		readSecret: term.ReadPassword,
	}
}

// WithConfirmation makes interactive prompts ask twice, for new keystores.
func (s *Source) WithConfirmation() *Source {
	s.confirm = true
	return s
}

// Get returns the passphrase. Whitespace-only values are rejected.
func (s *Source) Get() (string, error) {
	s.once.Do(func() {
		s.value, s.err = s.resolve()
	})
	return s.value, s.err
}

func (s *Source) resolve() (string, error) {
	if s.envVar != "" {
		if value, ok := os.LookupEnv(s.envVar); ok {
			if strings.TrimSpace(value) == "" {
				return "", fmt.Errorf("%s is set but empty", s.envVar)
			}
			return value, nil
		}
	}

	fd := int(os.Stdin.Fd())
	if !s.isTerminal(fd) {
		if s.envVar != "" {
			return "", fmt.Errorf("keystore passphrase required; set %s or run interactively", s.envVar)
		}
		return "", errors.New("keystore passphrase required and no terminal available")
	}

	first, err := s.prompt(fd, "Enter keystore passphrase: ")
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(first) == "" {
		return "", errors.New("keystore passphrase cannot be empty")
	}
	if s.confirm {
		second, err := s.prompt(fd, "Repeat keystore passphrase: ")
		if err != nil {
			return "", err
		}
		if second != first {
			return "", errors.New("passphrases do not match")
		}
	}
	return first, nil
}

func (s *Source) prompt(fd int, label string) (string, error) {
	fmt.Fprint(os.Stderr, label)
	raw, err := s.readSecret(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read passphrase: %w", err)
	}
	return string(raw), nil
}

package passphrase

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"
)

// ErrMismatch is returned when the confirmation prompt differs from the first
// entry.
var ErrMismatch = errors.New("operator keystore passphrases do not match")

// Terminal reads a line without echo.
type Terminal interface {
	IsTerminal() bool
	ReadPassword() ([]byte, error)
}

type stdinTerminal struct{}

func (stdinTerminal) IsTerminal() bool { return term.IsTerminal(int(os.Stdin.Fd())) }

func (stdinTerminal) ReadPassword() ([]byte, error) { return term.ReadPassword(int(os.Stdin.Fd())) }

// Source resolves the operator keystore passphrase from an environment
// variable, falling back to a hidden terminal prompt. The first result, value
// or error, is cached.
type Source struct {
	envVar string
	term   Terminal
	prompt io.Writer

	once  sync.Once
	value string
	err   error
}

func NewSource(envVar string) *Source {
	return &Source{envVar: strings.TrimSpace(envVar), term: stdinTerminal{}, prompt: os.Stderr}
}

// WithTerminal replaces the prompt device.
func (s *Source) WithTerminal(t Terminal, prompt io.Writer) *Source {
	s.term = t
	if prompt != nil {
		s.prompt = prompt
	}
	return s
}

// Get returns the passphrase protecting an existing keystore.
func (s *Source) Get() (string, error) {
	s.once.Do(func() { s.value, s.err = s.resolve(false) })
	return s.value, s.err
}

// Confirm returns a passphrase for a new keystore. Interactive entry is asked
// twice and must match.
func (s *Source) Confirm() (string, error) {
	s.once.Do(func() { s.value, s.err = s.resolve(true) })
	return s.value, s.err
}

func (s *Source) resolve(confirm bool) (string, error) {
	if s.envVar != "" {
		if value, ok := os.LookupEnv(s.envVar); ok {
			if strings.TrimSpace(value) == "" {
				return "", fmt.Errorf("%s is set but empty", s.envVar)
			}
			return value, nil
		}
	}
	if s.term == nil || !s.term.IsTerminal() {
		if s.envVar != "" {
			return "", fmt.Errorf("operator keystore passphrase required; set %s or run interactively", s.envVar)
		}
		return "", errors.New("operator keystore passphrase required and no terminal available")
	}

	first, err := s.read("Enter operator keystore passphrase: ")
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(first) == "" {
		return "", errors.New("operator keystore passphrase cannot be empty")
	}
	if !confirm {
		return first, nil
	}
	second, err := s.read("Repeat operator keystore passphrase: ")
	if err != nil {
		return "", err
	}
	if first != second {
		return "", ErrMismatch
	}
	return first, nil
}

func (s *Source) read(label string) (string, error) {
	fmt.Fprint(s.prompt, label)
	raw, err := s.term.ReadPassword()
	fmt.Fprintln(s.prompt)
	if err != nil {
		return "", fmt.Errorf("read passphrase: %w", err)
	}
	return string(raw), nil
}

package passphrase

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"
)

// Source resolves a secret once and caches the result. Lookup order is the
// environment variable, then a file named by <envVar>_FILE, then an
// interactive prompt.
type Source struct {
	envVar string
	label  string

	once  sync.Once
	value string
	err   error
}

// NewSource returns a Source reading envVar and prompting for label.
func NewSource(envVar, label string) *Source {
	label = strings.TrimSpace(label)
	if label == "" {
		label = "secret"
	}
	return &Source{envVar: strings.TrimSpace(envVar), label: label}
}

// Get returns the secret. Blank secrets are rejected.
func (s *Source) Get() (string, error) {
	s.once.Do(func() {
		s.value, s.err = s.resolve()
	})
	return s.value, s.err
}

func (s *Source) resolve() (string, error) {
	if s.envVar != "" {
		if value, ok := os.LookupEnv(s.envVar); ok {
			return s.nonBlank(value, s.envVar)
		}
		if path, ok := os.LookupEnv(s.envVar + "_FILE"); ok {
			data, err := os.ReadFile(strings.TrimSpace(path))
			if err != nil {
				return "", fmt.Errorf("read %s from %s_FILE: %w", s.label, s.envVar, err)
			}
			return s.nonBlank(strings.TrimRight(string(data), "\r\n"), path)
		}
	}
	return s.prompt()
}

func (s *Source) prompt() (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		if s.envVar != "" {
			return "", fmt.Errorf("%s required: set %s or %s_FILE", s.label, s.envVar, s.envVar)
		}
		return "", fmt.Errorf("%s required and stdin is not a terminal", s.label)
	}
	fmt.Fprintf(os.Stderr, "Enter %s: ", s.label)
	raw, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", s.label, err)
	}
	return s.nonBlank(string(raw), "prompt")
}

func (s *Source) nonBlank(value, origin string) (string, error) {
	if strings.TrimSpace(value) == "" {
		return "", fmt.Errorf("%s from %s is empty", s.label, origin)
	}
	return value, nil
}

package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

var ErrNoMasterPassword = errors.New("master password is not configured")

// terminal seams, replaced in tests
var (
	stdinFd    = func() int { return int(os.Stdin.Fd()) }
	isTerminal = term.IsTerminal
	readSecret = term.ReadPassword
)

// ResolveMasterPassword makes sure MasterPassword is set. An empty value is
// read from the terminal without echo; without a terminal it fails.
func (c *Config) ResolveMasterPassword(prompt io.Writer) error {
	if c.MasterPassword != "" {
		return nil
	}

	fd := stdinFd()
	if !isTerminal(fd) {
		return ErrNoMasterPassword
	}

	fmt.Fprint(prompt, "Master password: ")
	secret, err := readSecret(fd)
	fmt.Fprintln(prompt)
	if err != nil {
		return fmt.Errorf("read master password: %w", err)
	}

	pw := strings.TrimSpace(string(secret))
	if pw == "" {
		return ErrNoMasterPassword
	}
	c.MasterPassword = pw
	return nil
}

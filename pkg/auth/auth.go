// Package auth turns a command-line server reference plus credential flags
// into an authenticated Galaxy client.
package auth

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/juju/loggo"
	"golang.org/x/term"

	"github.com/BV-BRC/galaxy-admin/internal/aliases"
	"github.com/BV-BRC/galaxy-admin/pkg/galaxy"
)

var logger = loggo.GetLogger("galaxy-admin.auth")

// Options are the credential flags given for one invocation.
type Options struct {
	APIKey   string
	Username string
	Password string
	NoVerify bool
	Timeout  time.Duration
}

// Lookup resolves an alias or URL to a stored record.
type Lookup interface {
	Lookup(target string) (aliases.Record, error)
}

// PasswordFunc obtains a password interactively.
type PasswordFunc func(prompt string) (string, error)

// TerminalPassword reads a password from the terminal without echo.
func TerminalPassword(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("no password supplied and stdin is not a terminal")
	}
	fmt.Fprint(os.Stderr, prompt)
	data, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(data), nil
}

// LooksLikeURL reports whether target should be used as a server address
// when it is not a known alias.
func LooksLikeURL(target string) bool {
	return strings.Contains(target, "://") || strings.ContainsAny(target, ".:")
}

// Resolve builds the client configuration for target. Stored aliases win;
// otherwise target is used as a URL if it looks like one. An explicit API
// key overrides the stored one, and a username switches to password login.
func Resolve(store Lookup, target string, opts Options, password PasswordFunc) (galaxy.Config, error) {
	cfg := galaxy.Config{NoVerify: opts.NoVerify, Timeout: opts.Timeout}

	rec, err := store.Lookup(target)
	switch {
	case err == nil:
		cfg.URL = rec.URL
		cfg.APIKey = rec.APIKey
	case LooksLikeURL(target):
		cfg.URL = target
		if opts.APIKey == "" && opts.Username == "" {
			logger.Warningf("no API key or username supplied for %s", target)
		}
	default:
		return galaxy.Config{}, err
	}

	if opts.APIKey != "" {
		cfg.APIKey = opts.APIKey
	}
	if opts.Username != "" {
		cfg.APIKey = ""
		cfg.Email = opts.Username
		cfg.Password = opts.Password
		if cfg.Password == "" {
			if password == nil {
				return galaxy.Config{}, errors.New("password required for " + opts.Username)
			}
			p, err := password(fmt.Sprintf("Password for %s: ", opts.Username))
			if err != nil {
				return galaxy.Config{}, err
			}
			cfg.Password = p
		}
	}
	return cfg, nil
}

// Connect resolves target and returns a ready client.
func Connect(ctx context.Context, store Lookup, target string, opts Options, password PasswordFunc) (*galaxy.Client, error) {
	cfg, err := Resolve(store, target, opts, password)
	if err != nil {
		return nil, err
	}
	logger.Debugf("connecting to %s", cfg.URL)
	return galaxy.Connect(ctx, cfg)
}

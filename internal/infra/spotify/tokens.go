package spotify

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
)

// Per-user refresh tokens live as plain files under the configured
// token directory, written by the auth tool and read at ingestion time.

// TokenPath returns the refresh token file path for a user tag.
func TokenPath(dir, tag string) (string, error) {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return "", errors.New("user tag is required")
	}
	if strings.ContainsAny(tag, "/\\") || tag == "." || tag == ".." {
		return "", errors.Newf("invalid user tag: %q", tag)
	}
	return filepath.Join(dir, tag+".token"), nil
}

// SaveUserToken writes a user's refresh token, creating the directory
// if needed. The file is restricted to the owner.
func SaveUserToken(dir, tag, refreshToken string) error {
	if refreshToken == "" {
		return errors.New("refresh token is required")
	}
	path, err := TokenPath(dir, tag)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return errors.Wrap(err, "failed to create token directory")
	}
	if err := os.WriteFile(path, []byte(refreshToken+"\n"), 0600); err != nil {
		return errors.Wrap(err, "failed to write token file")
	}
	return nil
}

// LoadUserToken reads a user's refresh token.
func LoadUserToken(dir, tag string) (string, error) {
	path, err := TokenPath(dir, tag)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", errors.Wrapf(err, "no refresh token for %q (run the auth tool first)", tag)
	}
	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", errors.Newf("empty refresh token for %q", tag)
	}
	return token, nil
}

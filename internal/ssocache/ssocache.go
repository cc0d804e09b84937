// Package ssocache reads and writes the AWS CLI SSO token cache.
//
// The cache is one JSON file per token under ~/.aws/sso/cache. Files are
// untyped on disk (client registrations live next to access tokens), so a
// lookup scans every entry and skips anything that doesn't parse or doesn't
// carry the fields of an access token.
package ssocache

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/awsgate/awsgate/internal/log"
)

// Token is a cached SSO access token in the standard AWS CLI format.
type Token struct {
	StartURL    string    `json:"startUrl"`
	Region      string    `json:"region,omitempty"`
	AccessToken string    `json:"accessToken"`
	ExpiresAt   time.Time `json:"-"` // custom marshal to RFC3339
}

// tokenJSON is the wire format for Token (expiresAt as string).
type tokenJSON struct {
	StartURL    string `json:"startUrl"`
	Region      string `json:"region,omitempty"`
	AccessToken string `json:"accessToken"`
	ExpiresAt   string `json:"expiresAt"`
}

// MarshalJSON implements json.Marshaler with RFC3339 expiresAt.
func (t Token) MarshalJSON() ([]byte, error) {
	return json.Marshal(tokenJSON{
		StartURL:    t.StartURL,
		Region:      t.Region,
		AccessToken: t.AccessToken,
		ExpiresAt:   t.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

// UnmarshalJSON implements json.Unmarshaler with RFC3339 expiresAt.
func (t *Token) UnmarshalJSON(data []byte) error {
	var raw tokenJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	expiresAt, err := time.Parse(time.RFC3339, raw.ExpiresAt)
	if err != nil {
		// Also try the legacy AWS CLI format "2020-06-17T10:02:08UTC"
		expiresAt, err = time.Parse("2006-01-02T15:04:05UTC", raw.ExpiresAt)
		if err != nil {
			return fmt.Errorf("cannot parse expiresAt %q: %w", raw.ExpiresAt, err)
		}
	}

	t.StartURL = raw.StartURL
	t.Region = raw.Region
	t.AccessToken = raw.AccessToken
	t.ExpiresAt = expiresAt
	return nil
}

// Valid reports whether the token is usable at the given instant. A token
// expiring exactly at now is already invalid.
func (t Token) Valid(now time.Time) bool {
	return t.AccessToken != "" && t.ExpiresAt.After(now)
}

// DefaultDir returns the standard AWS CLI SSO cache directory.
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".aws", "sso", "cache")
	}
	return filepath.Join(home, ".aws", "sso", "cache")
}

// EnsureDir creates the cache directory if it is absent. A creation failure
// is logged, not returned: a scan of a missing directory simply finds nothing.
func EnsureDir(dir string) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		log.Warn("cannot create SSO cache directory", "dir", dir, "error", err)
	}
}

// Scan walks the cache directory for a token matching startURL that is still
// valid at now. Unparsable files and entries of other shapes are skipped.
func Scan(dir, startURL string, now time.Time) (*Token, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading SSO cache directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			log.Debug("skipping unreadable cache entry", "path", path, "error", err)
			continue
		}

		var token Token
		if err := json.Unmarshal(data, &token); err != nil {
			// Client registrations and other cache shapes land here.
			log.Debug("skipping unparsable cache entry", "path", path, "error", err)
			continue
		}

		if token.StartURL != startURL {
			continue
		}
		if !token.Valid(now) {
			log.Debug("cache entry expired", "path", path, "expiresAt", token.ExpiresAt)
			continue
		}

		return &token, nil
	}

	return nil, nil
}

// Write persists a token under the AWS CLI naming convention
// (SHA1(startURL).json) so the aws CLI and SDKs can reuse it.
func Write(dir string, token Token) error {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("creating SSO cache directory: %w", err)
	}

	h := sha1.New()
	h.Write([]byte(token.StartURL))
	name := strings.ToLower(hex.EncodeToString(h.Sum(nil))) + ".json"

	data, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("marshaling SSO token: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, name), data, 0600); err != nil {
		return fmt.Errorf("writing SSO cache file: %w", err)
	}
	return nil
}

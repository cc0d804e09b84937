package resolver

import (
	"errors"
	"fmt"
)

// ConfigError reports a missing or malformed profile or sso-session
// definition. It is fatal to the resolution that hit it.
type ConfigError struct {
	Profile string
	Reason  string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("profile %q: %s", e.Profile, e.Reason)
}

// TokenUnavailableError means no valid cached token exists and the login flow
// did not produce one. It degrades resolution to the provider chain.
type TokenUnavailableError struct {
	StartURL string
}

func (e *TokenUnavailableError) Error() string {
	return fmt.Sprintf("no valid cached SSO token for %s", e.StartURL)
}

// ExchangeError means the SSO role-credential exchange failed or returned an
// incomplete credential tuple. It degrades resolution to the provider chain.
type ExchangeError struct {
	Cause error
}

func (e *ExchangeError) Error() string {
	return fmt.Sprintf("sso role credential exchange: %v", e.Cause)
}

func (e *ExchangeError) Unwrap() error { return e.Cause }

// NotFoundError means every provider in the chain was exhausted.
type NotFoundError struct {
	Profile string
	LastErr error
}

func (e *NotFoundError) Error() string {
	if e.LastErr != nil {
		return fmt.Sprintf("no credentials found for profile %q (last failure: %v)", e.Profile, e.LastErr)
	}
	return fmt.Sprintf("no credentials found for profile %q", e.Profile)
}

func (e *NotFoundError) Unwrap() error { return e.LastErr }

// IsFatal reports whether err terminates a resolution rather than degrading
// it to the next fallback.
func IsFatal(err error) bool {
	var cfgErr *ConfigError
	var nfErr *NotFoundError
	return errors.As(err, &cfgErr) || errors.As(err, &nfErr)
}

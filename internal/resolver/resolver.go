// Package resolver turns a named profile into usable AWS credentials.
//
// Resolution is a small state machine: profiles that reference an sso-session
// go through the token cache and, if needed, the interactive login flow and
// the role-credential exchange; anything that fails there (short of a
// configuration error) falls through to an ordered provider chain. Only
// exhausting every fallback surfaces an error to the caller.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/awsgate/awsgate/internal/awsconfig"
	"github.com/awsgate/awsgate/internal/log"
	"github.com/awsgate/awsgate/internal/ssocache"
)

// Resolution states, logged at each transition.
const (
	stateStart          = "START"
	stateSSOAttempt     = "SSO_ATTEMPT"
	stateSSOSuccess     = "SSO_SUCCESS"
	stateSSOFallthrough = "SSO_FALLTHROUGH"
	stateProviderChain  = "PROVIDER_CHAIN"
	stateResolved       = "RESOLVED"
	stateFailed         = "FAILED"
)

// Credentials is a resolved access-key triple. SessionToken and Expires may
// be empty for long-lived keys. Source names the step that produced it.
type Credentials struct {
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	Expires         time.Time
	Source          string
}

// ExchangeInput carries everything the SSO role-credential exchange needs.
type ExchangeInput struct {
	AccessToken string
	Region      string
	AccountID   string
	RoleName    string
}

// ExchangeFunc exchanges a cached bearer token for temporary role credentials.
type ExchangeFunc func(ctx context.Context, in ExchangeInput) (*Credentials, error)

// LoginFunc runs the interactive SSO login for a profile.
type LoginFunc func(ctx context.Context, profileName string) error

// Step is one fallible provider-chain entry.
type Step struct {
	Name    string
	Resolve func(ctx context.Context) (*Credentials, error)
}

// Options configures a Resolver. Zero-value fields get working defaults.
type Options struct {
	Store    *awsconfig.Store
	CacheDir string
	Login    LoginFunc
	Exchange ExchangeFunc
	// Steps builds the provider chain for a profile. Defaults to the real
	// chain (unified SDK chain, then the legacy ordered providers).
	Steps func(profile awsconfig.Profile) []Step
	// Attempts is the per-step retry budget for network calls (default 3).
	Attempts int
	// Delay is the base backoff; attempt n waits Delay*n (default 1s).
	Delay time.Duration
	Now   func() time.Time
	Sleep func(time.Duration)
}

// Resolver resolves profiles to credentials.
type Resolver struct {
	opts Options
}

// New returns a Resolver with defaults filled in.
func New(opts Options) *Resolver {
	if opts.CacheDir == "" {
		opts.CacheDir = ssocache.DefaultDir()
	}
	if opts.Exchange == nil {
		opts.Exchange = ExchangeRoleCredentials
	}
	if opts.Steps == nil {
		opts.Steps = DefaultSteps
	}
	if opts.Attempts <= 0 {
		opts.Attempts = 3
	}
	if opts.Delay == 0 {
		opts.Delay = time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Sleep == nil {
		opts.Sleep = time.Sleep
	}
	if opts.Login == nil {
		opts.Login = func(context.Context, string) error {
			return errors.New("no login flow configured")
		}
	}
	return &Resolver{opts: opts}
}

// Resolve produces credentials for the named profile or a terminal error
// (*ConfigError or *NotFoundError).
func (r *Resolver) Resolve(ctx context.Context, profileName string) (*Credentials, error) {
	log.Debug("resolver state", "state", stateStart, "profile", profileName)

	profile, ok := r.opts.Store.Profile(profileName)
	if !ok {
		log.Debug("resolver state", "state", stateFailed, "profile", profileName)
		return nil, &ConfigError{Profile: profileName, Reason: "not defined in any configuration source"}
	}

	if profile.HasSSOSession() {
		log.Debug("resolver state", "state", stateSSOAttempt, "profile", profileName, "ssoSession", profile.SSOSession)
		creds, err := r.resolveSSO(ctx, profile)
		if err == nil {
			log.Debug("resolver state", "state", stateResolved, "profile", profileName, "source", creds.Source)
			return creds, nil
		}
		if IsFatal(err) {
			log.Debug("resolver state", "state", stateFailed, "profile", profileName)
			return nil, err
		}
		log.Warn("SSO resolution fell through to provider chain", "profile", profileName, "reason", err)
		log.Debug("resolver state", "state", stateSSOFallthrough, "profile", profileName)
	}

	log.Debug("resolver state", "state", stateProviderChain, "profile", profileName)
	creds, err := r.providerChain(ctx, profile)
	if err != nil {
		log.Debug("resolver state", "state", stateFailed, "profile", profileName)
		return nil, err
	}
	log.Debug("resolver state", "state", stateResolved, "profile", profileName, "source", creds.Source)
	return creds, nil
}

// resolveSSO runs SSO_ATTEMPT through SSO_SUCCESS. Non-fatal failures come
// back as *TokenUnavailableError or *ExchangeError and mean fallthrough.
func (r *Resolver) resolveSSO(ctx context.Context, profile awsconfig.Profile) (*Credentials, error) {
	sess, ok := r.opts.Store.SSOSession(profile.SSOSession)
	if !ok {
		return nil, &ConfigError{
			Profile: profile.Name,
			Reason:  fmt.Sprintf("sso-session %q is not defined", profile.SSOSession),
		}
	}
	if sess.StartURL == "" {
		return nil, &ConfigError{
			Profile: profile.Name,
			Reason:  fmt.Sprintf("sso-session %q has no sso_start_url", profile.SSOSession),
		}
	}

	ssocache.EnsureDir(r.opts.CacheDir)

	token := r.scan(sess.StartURL)
	if token == nil {
		if err := r.opts.Login(ctx, profile.Name); err != nil {
			log.Warn("interactive SSO login did not complete", "profile", profile.Name, "error", err)
		}
		token = r.scan(sess.StartURL)
	}
	if token == nil {
		return nil, &TokenUnavailableError{StartURL: sess.StartURL}
	}
	log.Debug("resolver state", "state", stateSSOSuccess, "profile", profile.Name)

	region := sess.Region
	if region == "" {
		region = profile.SSORegion
	}

	var creds *Credentials
	err := r.retry(ctx, "sso role credential exchange", func(ctx context.Context) error {
		var err error
		creds, err = r.opts.Exchange(ctx, ExchangeInput{
			AccessToken: token.AccessToken,
			Region:      region,
			AccountID:   profile.SSOAccountID,
			RoleName:    profile.SSORoleName,
		})
		return err
	})
	if err != nil {
		return nil, &ExchangeError{Cause: err}
	}
	if creds == nil || creds.AccessKeyID == "" || creds.SecretAccessKey == "" ||
		creds.SessionToken == "" || creds.Expires.IsZero() {
		return nil, &ExchangeError{Cause: errors.New("exchange returned an incomplete credential tuple")}
	}

	creds.Source = "sso"
	return creds, nil
}

// scan looks for a valid cached token; a scan failure counts as a miss.
func (r *Resolver) scan(startURL string) *ssocache.Token {
	token, err := ssocache.Scan(r.opts.CacheDir, startURL, r.opts.Now())
	if err != nil {
		log.Debug("SSO cache scan failed", "dir", r.opts.CacheDir, "error", err)
		return nil
	}
	return token
}

// providerChain tries each step in order, first success wins.
func (r *Resolver) providerChain(ctx context.Context, profile awsconfig.Profile) (*Credentials, error) {
	var lastErr error
	for _, step := range r.opts.Steps(profile) {
		var creds *Credentials
		err := r.retry(ctx, step.Name, func(ctx context.Context) error {
			var err error
			creds, err = step.Resolve(ctx)
			return err
		})
		if err != nil {
			logStepFailure(step.Name, profile.Name, err)
			lastErr = err
			continue
		}
		if creds.Source == "" {
			creds.Source = step.Name
		}
		return creds, nil
	}
	return nil, &NotFoundError{Profile: profile.Name, LastErr: lastErr}
}

// retry runs fn up to Attempts times with linearly increasing backoff.
func (r *Resolver) retry(ctx context.Context, name string, fn func(context.Context) error) error {
	var err error
	for attempt := 1; attempt <= r.opts.Attempts; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return err
		}
		if attempt < r.opts.Attempts {
			delay := r.opts.Delay * time.Duration(attempt)
			log.Debug("step failed, retrying", "step", name, "attempt", attempt, "delay", delay, "error", err)
			r.opts.Sleep(delay)
		}
	}
	return err
}

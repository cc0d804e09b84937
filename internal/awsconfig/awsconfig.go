// Package awsconfig reads profiles and sso-session definitions from the
// shared AWS config and credentials files.
//
// Both files are read independently; a failure on either side degrades to an
// empty contribution plus a diagnostic instead of failing the load. Profile
// attributes are typed; keys this package doesn't know about are ignored.
package awsconfig

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"dario.cat/mergo"
	"golang.org/x/sync/errgroup"
	"gopkg.in/ini.v1"
)

// Profile is one named profile merged from the credentials and config files.
type Profile struct {
	Name              string
	Region            string
	Output            string
	SSOSession        string
	SSOAccountID      string
	SSORoleName       string
	SSOStartURL       string
	SSORegion         string
	RoleARN           string
	SourceProfile     string
	CredentialProcess string
	AccessKeyID       string
	SecretAccessKey   string
	SessionToken      string
}

// HasSSOSession reports whether the profile references a named sso-session.
func (p Profile) HasSSOSession() bool {
	return p.SSOSession != ""
}

// SSOSession is a named identity-provider login context shared by profiles.
type SSOSession struct {
	Name               string
	StartURL           string
	Region             string
	RegistrationScopes string
}

// Options configures where the store reads from.
type Options struct {
	// ConfigFile overrides the AWS config file path.
	// Default: $AWS_CONFIG_FILE or ~/.aws/config.
	ConfigFile string
	// CredentialsFile overrides the shared credentials file path.
	// Default: $AWS_SHARED_CREDENTIALS_FILE or ~/.aws/credentials.
	CredentialsFile string
}

// Store is an immutable snapshot of both configuration sources.
type Store struct {
	profiles map[string]Profile
	sessions map[string]SSOSession
	loadErr  error
}

// DefaultConfigFile returns the AWS config file path.
func DefaultConfigFile() string {
	if path := os.Getenv("AWS_CONFIG_FILE"); path != "" {
		return path
	}
	return filepath.Join(homeDir(), ".aws", "config")
}

// DefaultCredentialsFile returns the shared credentials file path.
func DefaultCredentialsFile() string {
	if path := os.Getenv("AWS_SHARED_CREDENTIALS_FILE"); path != "" {
		return path
	}
	return filepath.Join(homeDir(), ".aws", "credentials")
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}

// Load reads both sources and returns a snapshot. It never fails outright:
// with zero readable sources the snapshot is empty and Err() is non-nil.
func Load(opts Options) *Store {
	credPath := opts.CredentialsFile
	if credPath == "" {
		credPath = DefaultCredentialsFile()
	}
	cfgPath := opts.ConfigFile
	if cfgPath == "" {
		cfgPath = DefaultConfigFile()
	}

	var (
		credProfiles map[string]Profile
		cfgProfiles  map[string]Profile
		sessions     map[string]SSOSession
		credErr      error
		cfgErr       error
	)

	// Each source keeps its own error variable so one read cannot clobber
	// the other's failure.
	var g errgroup.Group
	g.Go(func() error {
		credProfiles, _, credErr = parseFile(credPath, false)
		return nil
	})
	g.Go(func() error {
		cfgProfiles, sessions, cfgErr = parseFile(cfgPath, true)
		return nil
	})
	_ = g.Wait()

	// Credentials file first, config file second: the config file's
	// attributes win on collision.
	merged := credProfiles
	if merged == nil {
		merged = map[string]Profile{}
	}
	if err := mergo.Merge(&merged, cfgProfiles, mergo.WithOverride); err != nil {
		cfgErr = errors.Join(cfgErr, fmt.Errorf("merging profiles: %w", err))
	}
	for name, p := range merged {
		p.Name = name
		merged[name] = p
	}

	if sessions == nil {
		sessions = map[string]SSOSession{}
	}

	var loadErr error
	switch {
	case credErr != nil && cfgErr != nil:
		loadErr = fmt.Errorf("credentials file: %v; config file: %v", credErr, cfgErr)
	case credErr != nil:
		loadErr = fmt.Errorf("credentials file: %w", credErr)
	case cfgErr != nil:
		loadErr = fmt.Errorf("config file: %w", cfgErr)
	}

	return &Store{profiles: merged, sessions: sessions, loadErr: loadErr}
}

// parseFile reads one ini source. In the config file, profile sections are
// prefixed "profile " (except "default") and sso-session sections exist;
// in the credentials file every section is a profile.
func parseFile(path string, isConfigFile bool) (map[string]Profile, map[string]SSOSession, error) {
	profiles := map[string]Profile{}
	sessions := map[string]SSOSession{}

	f, err := ini.LoadSources(ini.LoadOptions{Insensitive: false}, path)
	if err != nil {
		return profiles, sessions, err
	}

	for _, section := range f.Sections() {
		name := strings.TrimSpace(section.Name())
		if name == ini.DefaultSection {
			continue
		}

		if isConfigFile {
			if rest, ok := strings.CutPrefix(name, "sso-session "); ok {
				sessionName := strings.TrimSpace(rest)
				if sessionName == "" {
					continue
				}
				sessions[sessionName] = SSOSession{
					Name:               sessionName,
					StartURL:           section.Key("sso_start_url").String(),
					Region:             section.Key("sso_region").String(),
					RegistrationScopes: section.Key("sso_registration_scopes").String(),
				}
				continue
			}
			if rest, ok := strings.CutPrefix(name, "profile "); ok {
				name = strings.TrimSpace(rest)
			} else if name != "default" {
				// Not a profile or sso-session section. Skip it.
				continue
			}
		}

		if name == "" {
			continue
		}
		profiles[name] = profileFromSection(name, section)
	}

	return profiles, sessions, nil
}

func profileFromSection(name string, section *ini.Section) Profile {
	return Profile{
		Name:              name,
		Region:            section.Key("region").String(),
		Output:            section.Key("output").String(),
		SSOSession:        section.Key("sso_session").String(),
		SSOAccountID:      section.Key("sso_account_id").String(),
		SSORoleName:       section.Key("sso_role_name").String(),
		SSOStartURL:       section.Key("sso_start_url").String(),
		SSORegion:         section.Key("sso_region").String(),
		RoleARN:           section.Key("role_arn").String(),
		SourceProfile:     section.Key("source_profile").String(),
		CredentialProcess: section.Key("credential_process").String(),
		AccessKeyID:       section.Key("aws_access_key_id").String(),
		SecretAccessKey:   section.Key("aws_secret_access_key").String(),
		SessionToken:      section.Key("aws_session_token").String(),
	}
}

// Profiles returns a copy of the profile map.
func (s *Store) Profiles() map[string]Profile {
	out := make(map[string]Profile, len(s.profiles))
	for name, p := range s.profiles {
		out[name] = p
	}
	return out
}

// Profile looks up one profile by name.
func (s *Store) Profile(name string) (Profile, bool) {
	p, ok := s.profiles[name]
	return p, ok
}

// SSOSession looks up an sso-session definition by name.
func (s *Store) SSOSession(name string) (SSOSession, bool) {
	sess, ok := s.sessions[name]
	return sess, ok
}

// Names returns all profile names, sorted.
func (s *Store) Names() []string {
	names := make([]string, 0, len(s.profiles))
	for name := range s.profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Err returns the per-source diagnostic from the load, if any. A non-nil Err
// does not mean the snapshot is unusable; the readable source still
// contributed.
func (s *Store) Err() error {
	return s.loadErr
}

// Package tools implements the three agent-facing tools: list-profiles,
// select-profile, and run-script.
//
// Handlers convert every failure into a structured text response. Whatever a
// script or a login attempt does, the process stays up; the transport above
// this package only ever sees strings.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/awsgate/awsgate/internal/awsbinding"
	"github.com/awsgate/awsgate/internal/awsconfig"
	"github.com/awsgate/awsgate/internal/config"
	"github.com/awsgate/awsgate/internal/log"
	"github.com/awsgate/awsgate/internal/resolver"
	"github.com/awsgate/awsgate/internal/sandbox"
	"github.com/awsgate/awsgate/internal/session"
	"github.com/awsgate/awsgate/internal/ssologin"
)

// RunScriptArgs are the inputs to the run-script tool. Reasoning is advisory
// and only logged.
type RunScriptArgs struct {
	Reasoning   string `json:"reasoning,omitempty"`
	Code        string `json:"code"`
	ProfileName string `json:"profileName,omitempty"`
	Region      string `json:"region,omitempty"`
}

// SelectProfileArgs are the inputs to the select-profile tool.
type SelectProfileArgs struct {
	Profile string `json:"profile"`
	Region  string `json:"region,omitempty"`
}

// profileList is the list-profiles response shape.
type profileList struct {
	Profiles []string `json:"profiles"`
	Error    *string  `json:"error"`
}

// Handler wires the tools to the resolver, sandbox, and session state.
type Handler struct {
	Session *session.State
	Config  *config.Config

	// LoadStore re-reads the configuration sources. Fresh per call so
	// profile edits are visible without a restart.
	LoadStore func() *awsconfig.Store

	// Resolve runs full credential resolution against a store.
	Resolve func(ctx context.Context, store *awsconfig.Store, profile string) (*resolver.Credentials, error)

	// BuildBinding assembles the script's cloud capability object.
	BuildBinding func(ctx context.Context, snap session.Snapshot) map[string]any

	Sandbox *sandbox.Sandbox
}

// New builds a Handler with the real collaborators for the given config.
func New(cfg *config.Config, state *session.State) *Handler {
	login := ssologin.NewRunner(cfg.LoginCommand)
	return &Handler{
		Session:   state,
		Config:    cfg,
		LoadStore: func() *awsconfig.Store { return awsconfig.Load(awsconfig.Options{}) },
		Resolve: func(ctx context.Context, store *awsconfig.Store, profile string) (*resolver.Credentials, error) {
			r := resolver.New(resolver.Options{
				Store:    store,
				CacheDir: cfg.SSOCacheDir,
				Login:    login.Login,
				Attempts: cfg.Retry.Attempts,
				Delay:    cfg.RetryDelay(),
			})
			return r.Resolve(ctx, profile)
		},
		BuildBinding: awsbinding.Build,
		Sandbox:      sandbox.New(cfg.ScriptTimeoutDuration()),
	}
}

// ListProfiles returns the JSON profile listing. It never fails: an
// unreadable filesystem yields an empty list plus a diagnostic.
func (h *Handler) ListProfiles(ctx context.Context) string {
	store := h.LoadStore()

	out := profileList{Profiles: store.Names()}
	if out.Profiles == nil {
		out.Profiles = []string{}
	}
	if err := store.Err(); err != nil {
		msg := err.Error()
		out.Error = &msg
	}

	data, err := json.Marshal(out)
	if err != nil {
		// Unreachable with this shape; keep the contract anyway.
		return `{"profiles":[],"error":"internal: ` + err.Error() + `"}`
	}
	return string(data)
}

// SelectProfile resolves credentials for a profile and stores them in the
// session. The response is an acknowledgement or a failure naming the cause.
func (h *Handler) SelectProfile(ctx context.Context, args SelectProfileArgs) string {
	if strings.TrimSpace(args.Profile) == "" {
		return "Invalid arguments: profile is required."
	}

	store := h.LoadStore()
	creds, err := h.Resolve(ctx, store, args.Profile)
	if err != nil {
		log.Warn("profile selection failed", "profile", args.Profile, "error", err)
		return fmt.Sprintf("Authentication failed for profile %q: %v", args.Profile, err)
	}

	region := h.pickRegion(args.Region, store, args.Profile)
	h.Session.Select(args.Profile, creds, region)

	log.Info("profile selected", "profile", args.Profile, "region", region, "source", creds.Source)
	return fmt.Sprintf("Selected profile %q (region %s, credentials via %s).", args.Profile, region, creds.Source)
}

// RunScript executes code against the session's credentials and returns the
// JSON result text or an error description.
func (h *Handler) RunScript(ctx context.Context, args RunScriptArgs) string {
	if strings.TrimSpace(args.Code) == "" {
		return "Invalid arguments: code is required."
	}
	if args.Reasoning != "" {
		log.Debug("run-script reasoning", "reasoning", args.Reasoning)
	}

	if args.ProfileName != "" {
		if resp := h.SelectProfile(ctx, SelectProfileArgs{Profile: args.ProfileName, Region: args.Region}); strings.HasPrefix(resp, "Authentication failed") || strings.HasPrefix(resp, "Invalid arguments") {
			return resp
		}
	}

	snap, err := h.Session.Current()
	if err != nil {
		return h.guidance()
	}
	if args.Region != "" {
		snap.Region = args.Region
	}

	bindings := map[string]any{"aws": h.BuildBinding(ctx, snap)}
	result, err := h.Sandbox.Execute(ctx, args.Code, bindings)
	if err != nil {
		log.Warn("script execution failed", "profile", snap.Profile, "error", err)
		return fmt.Sprintf("Script failed: %v", err)
	}
	return result
}

// guidance tells the agent how to proceed when nothing is selected.
func (h *Handler) guidance() string {
	store := h.LoadStore()
	names := store.Names()

	var b strings.Builder
	b.WriteString("No profile is selected. Call select-profile, or pass profileName to run-script.")
	if len(names) > 0 {
		b.WriteString(" Available profiles: ")
		b.WriteString(strings.Join(names, ", "))
		b.WriteString(".")
	} else {
		b.WriteString(" No profiles were found in the AWS configuration files.")
	}
	if err := store.Err(); err != nil {
		fmt.Fprintf(&b, " (configuration warning: %v)", err)
	}
	return b.String()
}

// pickRegion applies the precedence explicit argument > profile region >
// configured default.
func (h *Handler) pickRegion(explicit string, store *awsconfig.Store, profileName string) string {
	if explicit != "" {
		return explicit
	}
	if p, ok := store.Profile(profileName); ok && p.Region != "" {
		return p.Region
	}
	if h.Config != nil && h.Config.Region != "" {
		return h.Config.Region
	}
	return session.DefaultRegion
}

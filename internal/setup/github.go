// Package setup automates the GitHub side of a pushgate installation.
// It registers the push webhook on the target repository so pushes
// start reaching the gateway without manual console work.
package setup

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/go-github/v57/github"
	"golang.org/x/oauth2"
)

// Options describes the webhook to register.
type Options struct {
	OwnerRepo string // repository in "owner/name" form
	HookURL   string // public URL of the deploy hook endpoint
	Secret    string // shared secret GitHub signs payloads with
}

// NewClient returns a GitHub API client authenticated with the given
// personal access token.
func NewClient(ctx context.Context, token string) *github.Client {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	return github.NewClient(oauth2.NewClient(ctx, ts))
}

// RegisterWebhook creates a push webhook on the repository unless a
// hook for the same URL already exists, so re-running setup is safe.
// It reports whether a new hook was created.
func RegisterWebhook(ctx context.Context, client *github.Client, opts Options) (bool, error) {
	owner, repo, err := splitOwnerRepo(opts.OwnerRepo)
	if err != nil {
		return false, err
	}

	hooks, _, err := client.Repositories.ListHooks(ctx, owner, repo, nil)
	if err != nil {
		return false, fmt.Errorf("listing webhooks: %w", err)
	}
	for _, hook := range hooks {
		if hookMatchesURL(hook, opts.HookURL) {
			return false, nil
		}
	}

	active := true
	hookReq := &github.Hook{
		Events: []string{"push"},
		Active: &active,
		Config: map[string]interface{}{
			"url":          opts.HookURL,
			"content_type": "json",
			"secret":       opts.Secret,
			"insecure_ssl": "0",
		},
	}

	if _, _, err := client.Repositories.CreateHook(ctx, owner, repo, hookReq); err != nil {
		return false, fmt.Errorf("creating webhook: %w", err)
	}
	return true, nil
}

func hookMatchesURL(hook *github.Hook, hookURL string) bool {
	if hook == nil || hook.Config == nil {
		return false
	}
	configured, ok := hook.Config["url"].(string)
	return ok && configured == hookURL
}

func splitOwnerRepo(s string) (string, string, error) {
	parts := strings.Split(s, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid owner/repo format: %s", s)
	}
	return parts[0], parts[1], nil
}

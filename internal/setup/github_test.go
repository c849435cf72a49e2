package setup

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/google/go-github/v57/github"
)

// fakeGitHub serves just enough of the hooks API to drive RegisterWebhook.
type fakeGitHub struct {
	existingURLs []string
	createdHooks []map[string]interface{}
}

func (f *fakeGitHub) client(t *testing.T) *github.Client {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/repos/octocat/site/hooks", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			hooks := make([]map[string]interface{}, 0, len(f.existingURLs))
			for i, u := range f.existingURLs {
				hooks = append(hooks, map[string]interface{}{
					"id":     i + 1,
					"config": map[string]interface{}{"url": u},
				})
			}
			_ = json.NewEncoder(w).Encode(hooks)
		case http.MethodPost:
			var hook map[string]interface{}
			_ = json.NewDecoder(r.Body).Decode(&hook)
			f.createdHooks = append(f.createdHooks, hook)
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"id": 99}`))
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	client := github.NewClient(nil)
	base, err := url.Parse(srv.URL + "/")
	if err != nil {
		t.Fatalf("Failed to parse test server URL: %v", err)
	}
	client.BaseURL = base
	return client
}

func TestRegisterWebhook_CreatesHook(t *testing.T) {
	fake := &fakeGitHub{}
	client := fake.client(t)

	opts := Options{
		OwnerRepo: "octocat/site",
		HookURL:   "https://example.com/hooks/deploy",
		Secret:    "kJ8mN2pQ5tR7vX1zB4cE6gH9jL3nP8qS",
	}

	created, err := RegisterWebhook(context.Background(), client, opts)
	if err != nil {
		t.Fatalf("RegisterWebhook failed: %v", err)
	}
	if !created {
		t.Error("Expected a new hook to be created")
	}
	if len(fake.createdHooks) != 1 {
		t.Fatalf("Expected 1 created hook, got %d", len(fake.createdHooks))
	}

	hook := fake.createdHooks[0]
	events, _ := hook["events"].([]interface{})
	if len(events) != 1 || events[0] != "push" {
		t.Errorf("Expected events [push], got %v", hook["events"])
	}
	config, _ := hook["config"].(map[string]interface{})
	if config["url"] != opts.HookURL {
		t.Errorf("Expected hook URL %q, got %v", opts.HookURL, config["url"])
	}
	if config["content_type"] != "json" {
		t.Errorf("Expected json content type, got %v", config["content_type"])
	}
	if config["secret"] != opts.Secret {
		t.Error("Expected the shared secret in the hook config")
	}
}

func TestRegisterWebhook_AlreadyExists(t *testing.T) {
	fake := &fakeGitHub{
		existingURLs: []string{
			"https://other.example.com/hooks/deploy",
			"https://example.com/hooks/deploy",
		},
	}
	client := fake.client(t)

	opts := Options{
		OwnerRepo: "octocat/site",
		HookURL:   "https://example.com/hooks/deploy",
		Secret:    "kJ8mN2pQ5tR7vX1zB4cE6gH9jL3nP8qS",
	}

	created, err := RegisterWebhook(context.Background(), client, opts)
	if err != nil {
		t.Fatalf("RegisterWebhook failed: %v", err)
	}
	if created {
		t.Error("Expected existing hook to be reused")
	}
	if len(fake.createdHooks) != 0 {
		t.Errorf("Expected no created hooks, got %d", len(fake.createdHooks))
	}
}

func TestRegisterWebhook_InvalidRepo(t *testing.T) {
	fake := &fakeGitHub{}
	client := fake.client(t)

	for _, ownerRepo := range []string{"", "justaname", "a/b/c", "/repo", "owner/"} {
		t.Run(ownerRepo, func(t *testing.T) {
			_, err := RegisterWebhook(context.Background(), client, Options{OwnerRepo: ownerRepo})
			if err == nil {
				t.Errorf("Expected error for %q", ownerRepo)
			}
		})
	}
}

func TestSplitOwnerRepo(t *testing.T) {
	owner, repo, err := splitOwnerRepo("octocat/site")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if owner != "octocat" || repo != "site" {
		t.Errorf("Expected octocat/site, got %s/%s", owner, repo)
	}
}

func TestHookMatchesURL(t *testing.T) {
	target := "https://example.com/hooks/deploy"

	if hookMatchesURL(nil, target) {
		t.Error("Expected nil hook not to match")
	}
	if hookMatchesURL(&github.Hook{}, target) {
		t.Error("Expected hook without config not to match")
	}
	if hookMatchesURL(&github.Hook{Config: map[string]interface{}{"url": 42}}, target) {
		t.Error("Expected non-string URL not to match")
	}
	if !hookMatchesURL(&github.Hook{Config: map[string]interface{}{"url": target}}, target) {
		t.Error("Expected matching URL to match")
	}
}

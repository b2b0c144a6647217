package export

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"

	"auditrelay/internal/config"
	gh "auditrelay/internal/github"

	"github.com/google/go-github/v81/github"
)

func newTestGitHubClient(t *testing.T, serverURL string) *gh.Client {
	t.Helper()
	client, err := gh.NewClient(context.Background(), "dummy")
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	base, err := url.Parse(serverURL + "/")
	if err != nil {
		t.Fatalf("url.Parse(%q) failed: %v", serverURL, err)
	}
	client.Client.BaseURL = base
	client.Client.UploadURL = base
	return client
}

func newTestServer(t *testing.T) (*http.ServeMux, *gh.Client, *httptest.Server) {
	t.Helper()
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return mux, newTestGitHubClient(t, server.URL), server
}

func TestResolveRepos(t *testing.T) {
	t.Run("explicit repo selectors are normalized and deduped", func(t *testing.T) {
		mux, client, _ := newTestServer(t)
		calls := 0
		mux.HandleFunc("/repos/acme/foo", func(w http.ResponseWriter, r *http.Request) {
			calls++
			fmt.Fprint(w, `{"id":1, "name":"foo", "full_name":"acme/foo", "owner":{"login":"acme"}}`)
		})

		cfg := config.New().Export
		cfg.Repos = []string{"acme/foo", "https://github.com/acme/foo.git"}
		refs, err := ResolveRepos(context.Background(), client, cfg)
		if err != nil {
			t.Fatalf("ResolveRepos failed: %v", err)
		}
		if len(refs) != 1 || refs[0].Owner != "acme" || refs[0].Name != "foo" {
			t.Fatalf("expected 1 repo 'acme/foo', got %v", refs)
		}
		if calls != 2 {
			t.Fatalf("expected one lookup per selector, got %d", calls)
		}
	})

	t.Run("org discovery with --repos include filter", func(t *testing.T) {
		mux, client, _ := newTestServer(t)
		mux.HandleFunc("/orgs/test-org/repos", func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `[
				{"id":10, "name":"payments-service", "full_name":"test-org/payments-service", "owner":{"login":"test-org"}},
				{"id":11, "name":"billing-api", "full_name":"test-org/billing-api", "owner":{"login":"test-org"}}
			]`)
		})

		for _, sel := range []string{"*-service", "test-org/*-service"} {
			cfg := config.New().Export
			cfg.Org = "test-org"
			cfg.Repos = []string{sel}
			refs, err := ResolveRepos(context.Background(), client, cfg)
			if err != nil {
				t.Fatalf("ResolveRepos(%q) failed: %v", sel, err)
			}
			if len(refs) != 1 || refs[0].Name != "payments-service" {
				t.Fatalf("ResolveRepos(%q): expected payments-service, got %v", sel, refs)
			}
		}
	})

	t.Run("user discovery uses authenticated endpoint when user matches token owner", func(t *testing.T) {
		mux, client, _ := newTestServer(t)
		var authed, public int
		mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"login":"test-user"}`)
		})
		mux.HandleFunc("/user/repos", func(w http.ResponseWriter, r *http.Request) {
			authed++
			fmt.Fprint(w, `[{"id":3, "name":"baz", "full_name":"test-user/baz", "owner":{"login":"test-user"}}]`)
		})
		mux.HandleFunc("/users/test-user/repos", func(w http.ResponseWriter, r *http.Request) {
			public++
			fmt.Fprint(w, `[]`)
		})

		cfg := config.New().Export
		cfg.User = "Test-User"
		refs, err := ResolveRepos(context.Background(), client, cfg)
		if err != nil {
			t.Fatalf("ResolveRepos failed: %v", err)
		}
		if len(refs) != 1 || refs[0].FullName() != "test-user/baz" {
			t.Fatalf("expected test-user/baz, got %v", refs)
		}
		if authed != 1 || public != 0 {
			t.Fatalf("expected authenticated listing only, got authed=%d public=%d", authed, public)
		}
	})

	t.Run("user discovery falls back to public listing", func(t *testing.T) {
		mux, client, _ := newTestServer(t)
		mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"login":"someone-else"}`)
		})
		mux.HandleFunc("/users/octo/repos", func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `[{"id":4, "name":"pub", "full_name":"octo/pub", "owner":{"login":"octo"}}]`)
		})

		cfg := config.New().Export
		cfg.User = "octo"
		refs, err := ResolveRepos(context.Background(), client, cfg)
		if err != nil {
			t.Fatalf("ResolveRepos failed: %v", err)
		}
		if len(refs) != 1 || refs[0].Name != "pub" {
			t.Fatalf("expected octo/pub, got %v", refs)
		}
	})

	t.Run("list error is wrapped", func(t *testing.T) {
		mux, client, _ := newTestServer(t)
		mux.HandleFunc("/orgs/acme/repos", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"message":"Not Found"}`)
		})

		cfg := config.New().Export
		cfg.Org = "acme"
		_, err := ResolveRepos(context.Background(), client, cfg)
		if err == nil || !strings.Contains(err.Error(), "failed to list org repos") {
			t.Fatalf("unexpected error: %v", err)
		}
	})
}

func TestResolveRepos_GlobRequiresScope(t *testing.T) {
	mux, client, _ := newTestServer(t)
	callCount := 0
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		callCount++
		w.WriteHeader(http.StatusTeapot)
	})

	cfg := config.New().Export
	cfg.Repos = []string{"acme/*"}

	_, err := ResolveRepos(context.Background(), client, cfg)
	if err == nil || !strings.Contains(err.Error(), "contains glob characters") {
		t.Fatalf("expected glob scope error, got: %v", err)
	}
	if callCount != 0 {
		t.Fatalf("expected no network calls, got %d", callCount)
	}
}

func TestResolveRepos_OrgDiscovery_IsBounded(t *testing.T) {
	tests := []struct {
		name         string
		maxRepos     int
		pages        int
		wantRepos    int
		wantRequests int
	}{
		{name: "max repos", maxRepos: 250, pages: 5, wantRepos: 250, wantRequests: 3},
		{name: "default limit", maxRepos: 0, pages: 12, wantRepos: defaultDiscoveryRepoLimit, wantRequests: defaultDiscoveryRepoLimit / 100},
		{name: "last page", maxRepos: 0, pages: 2, wantRepos: 200, wantRequests: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux, client, server := newTestServer(t)
			requests := 0
			mux.HandleFunc("/orgs/acme/repos", func(w http.ResponseWriter, r *http.Request) {
				requests++
				page := 1
				if n, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil {
					page = n
				}
				if page < tt.pages {
					w.Header().Set("Link", fmt.Sprintf("<%s/orgs/acme/repos?page=%d>; rel=\"next\"", server.URL, page+1))
				}
				w.Header().Set("Content-Type", "application/json")

				var b strings.Builder
				b.WriteString("[")
				for i := 0; i < 100; i++ {
					id := (page-1)*100 + i + 1
					if i > 0 {
						b.WriteString(",")
					}
					fmt.Fprintf(&b, `{"id":%d,"name":"repo-%04d","full_name":"acme/repo-%04d","owner":{"login":"acme"}}`, id, id, id)
				}
				b.WriteString("]")
				_, _ = w.Write([]byte(b.String()))
			})

			cfg := config.New().Export
			cfg.Org = "acme"
			cfg.MaxRepos = tt.maxRepos

			refs, err := ResolveRepos(context.Background(), client, cfg)
			if err != nil {
				t.Fatalf("ResolveRepos returned error: %v", err)
			}
			if len(refs) != tt.wantRepos {
				t.Fatalf("expected %d repos, got %d", tt.wantRepos, len(refs))
			}
			if requests != tt.wantRequests {
				t.Fatalf("expected %d requests, got %d", tt.wantRequests, requests)
			}
		})
	}
}

func TestNormalizeRepoSelector(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "", want: ""},
		{in: "  acme/foo  ", want: "acme/foo"},
		{in: "github.com/acme/foo", want: "acme/foo"},
		{in: "www.github.com/acme/foo", want: "acme/foo"},
		{in: "https://github.com/acme/foo.git", want: "acme/foo"},
		{in: "https://github.com/acme/foo/tree/main", want: "acme/foo"},
		{in: "git@github.com:acme/foo.git", want: "acme/foo"},
		{in: "https://gitlab.com/acme/foo", wantErr: true},
		{in: "https://github.com/acme", wantErr: true},
		{in: "git@github.com:acme", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := normalizeRepoSelector(tt.in)
			if tt.wantErr {
				if err == nil || !strings.Contains(err.Error(), "expected owner/name") {
					t.Fatalf("expected owner/name error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("normalizeRepoSelector returned error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("want %q, got %q", tt.want, got)
			}
		})
	}
}

func TestDedupeRefs(t *testing.T) {
	in := []RepositoryRef{
		{ID: 1, Owner: "acme", Name: "a"},
		{ID: 1, Owner: "acme", Name: "a"},
		{Repo: &github.Repository{FullName: github.Ptr("acme/B")}},
		{Repo: &github.Repository{FullName: github.Ptr("acme/b")}},
		{Owner: "acme", Name: "c"},
		{},
		{},
	}
	got := dedupeRefs(in)
	if len(got) != 5 {
		t.Fatalf("expected 5 refs, got %d: %+v", len(got), got)
	}
}

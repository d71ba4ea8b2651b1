package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"golang.org/x/oauth2"
)

// newFakeGitHub serves a token endpoint and a /user endpoint.
func newFakeGitHub(t *testing.T, userJSON string, userStatus int) (*GitHubProvider, *httptest.Server) {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/login/oauth/access_token", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil || r.Form.Get("code") != "good-code" {
			http.Error(w, `{"error":"bad_verification_code"}`, http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"gho_test","token_type":"bearer"}`))
	})
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer gho_test" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(userStatus)
		w.Write([]byte(userJSON))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	p := NewGitHubProvider("client-id", "client-secret", "http://localhost/auth/github/callback/")
	p.config.Endpoint = oauth2.Endpoint{
		AuthURL:  srv.URL + "/login/oauth/authorize",
		TokenURL: srv.URL + "/login/oauth/access_token",
	}
	p.userAPI = srv.URL + "/user"
	return p, srv
}

func TestAuthURL_CarriesState(t *testing.T) {
	p := NewGitHubProvider("client-id", "secret", "http://localhost/cb")

	u, err := url.Parse(p.AuthURL("state-123"))
	if err != nil {
		t.Fatalf("parsing AuthURL: %v", err)
	}
	q := u.Query()
	if q.Get("state") != "state-123" || q.Get("client_id") != "client-id" {
		t.Errorf("AuthURL query = %v", q)
	}
	if !strings.HasPrefix(u.String(), "https://github.com/") {
		t.Errorf("AuthURL = %q, want a github.com URL", u)
	}
}

func TestExchange(t *testing.T) {
	p, _ := newFakeGitHub(t, `{"id":777,"login":"octocat","email":"octo@example.com"}`, http.StatusOK)

	u, err := p.Exchange(context.Background(), "good-code")
	if err != nil {
		t.Fatalf("Exchange() error = %v", err)
	}
	if u.ID != 777 || u.Login != "octocat" || u.Email != "octo@example.com" {
		t.Errorf("Exchange() = %+v", u)
	}
}

func TestExchange_Failures(t *testing.T) {
	tests := []struct {
		name   string
		code   string
		body   string
		status int
	}{
		{name: "bad code", code: "bad-code", body: `{"id":1}`, status: http.StatusOK},
		{name: "api error", code: "good-code", body: `{}`, status: http.StatusInternalServerError},
		{name: "zero id", code: "good-code", body: `{"id":0,"login":"ghost"}`, status: http.StatusOK},
		{name: "bad json", code: "good-code", body: `{`, status: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, _ := newFakeGitHub(t, tt.body, tt.status)
			if _, err := p.Exchange(context.Background(), tt.code); err == nil {
				t.Error("Exchange() succeeded, want an error")
			}
		})
	}
}

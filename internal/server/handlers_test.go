package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/musicshare/server/internal/auth"
	"github.com/musicshare/server/internal/services"
	"github.com/musicshare/server/internal/tasks"
	"golang.org/x/oauth2"
)

// fakeTokenServer stands in for the OAuth token endpoint.
func fakeTokenServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"at-1","refresh_token":"rt-1","token_type":"Bearer","expires_in":3600}`)
	}))
}

func newTestManager(t *testing.T, tokenURL string) *auth.Manager {
	t.Helper()
	return auth.NewManager(auth.ManagerOpts{
		Config: &oauth2.Config{
			ClientID:     "client",
			ClientSecret: "secret",
			RedirectURL:  "http://127.0.0.1:8080/auth/callback",
			Endpoint: oauth2.Endpoint{
				AuthURL:  "http://auth.example/authorize",
				TokenURL: tokenURL,
			},
		},
	})
}

// fakeProxy records calls and returns a canned upstream response.
type fakeProxy struct {
	calls int
	resp  *services.APIResponse
	query url.Values
}

func (f *fakeProxy) Search(ctx context.Context, token, query, kind, limit string) (*services.APIResponse, error) {
	f.calls++
	f.query = url.Values{"q": {query}, "type": {kind}, "limit": {limit}}
	return f.resp, nil
}

func (f *fakeProxy) Me(ctx context.Context, token string) (*services.APIResponse, error) {
	f.calls++
	return f.resp, nil
}

func (f *fakeProxy) TopItems(ctx context.Context, token, kind, timeRange, limit, offset string) (*services.APIResponse, error) {
	f.calls++
	f.query = url.Values{"type": {kind}, "time_range": {timeRange}, "limit": {limit}, "offset": {offset}}
	return f.resp, nil
}

func okResponse(body string) *services.APIResponse {
	return &services.APIResponse{
		StatusCode: http.StatusOK,
		Headers:    http.Header{"Content-Type": []string{"application/json"}},
		Body:       []byte(body),
		IsJSON:     true,
	}
}

// sessionRequest builds a GET request carrying a session cookie.
func sessionRequest(path, sid string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, path, nil)
	if sid != "" {
		r.AddCookie(&http.Cookie{Name: SessionCookieName, Value: sid})
	}
	return r
}

// completeLogin drives login and callback, returning the session id the
// browser ends up with.
func completeLogin(t *testing.T, h *AuthHandler) string {
	t.Helper()

	login := httptest.NewRecorder()
	h.ServeHTTP(login, httptest.NewRequest(http.MethodGet, "/auth/login", nil))
	if login.Code != http.StatusFound {
		t.Fatalf("login: expected 302, got %d", login.Code)
	}

	loc, err := url.Parse(login.Header().Get("Location"))
	if err != nil {
		t.Fatalf("login: bad redirect URL: %v", err)
	}
	state := loc.Query().Get("state")
	if state == "" {
		t.Fatal("login: redirect carries no state")
	}

	cb := httptest.NewRecorder()
	h.ServeHTTP(cb, httptest.NewRequest(http.MethodGet, "/auth/callback?code=good&state="+state, nil))
	if cb.Code != http.StatusFound {
		t.Fatalf("callback: expected 302, got %d: %s", cb.Code, cb.Body.String())
	}

	for _, c := range cb.Result().Cookies() {
		if c.Name == SessionCookieName {
			return c.Value
		}
	}
	t.Fatal("callback: no session cookie set")
	return ""
}

func TestAuthHandler(t *testing.T) {
	tokens := fakeTokenServer(t)
	defer tokens.Close()

	t.Run("Full Flow", func(t *testing.T) {
		h := NewAuthHandler(newTestManager(t, tokens.URL), "http://front.example/main", nil)

		sid := completeLogin(t, h)

		status := httptest.NewRecorder()
		h.ServeHTTP(status, sessionRequest("/auth/status", sid))
		if status.Code != http.StatusOK {
			t.Errorf("status: expected 200, got %d", status.Code)
		}
		var probe map[string]any
		json.NewDecoder(status.Body).Decode(&probe)
		if probe["authenticated"] != true {
			t.Errorf("status: expected authenticated true, got %v", probe)
		}

		logout := httptest.NewRecorder()
		h.ServeHTTP(logout, sessionRequest("/auth/logout", sid))
		if logout.Code != http.StatusOK {
			t.Errorf("logout: expected 200, got %d", logout.Code)
		}
		if !strings.Contains(logout.Body.String(), `"success":true`) {
			t.Errorf("logout: unexpected body %s", logout.Body.String())
		}

		after := httptest.NewRecorder()
		h.ServeHTTP(after, sessionRequest("/auth/status", sid))
		if after.Code != http.StatusUnauthorized {
			t.Errorf("status after logout: expected 401, got %d", after.Code)
		}
	})

	t.Run("Callback Redirects To Frontend", func(t *testing.T) {
		h := NewAuthHandler(newTestManager(t, tokens.URL), "http://front.example/main", nil)

		login := httptest.NewRecorder()
		h.ServeHTTP(login, httptest.NewRequest(http.MethodGet, "/auth/login", nil))
		loc, _ := url.Parse(login.Header().Get("Location"))

		cb := httptest.NewRecorder()
		h.ServeHTTP(cb, httptest.NewRequest(http.MethodGet, "/auth/callback?code=good&state="+loc.Query().Get("state"), nil))
		if got := cb.Header().Get("Location"); got != "http://front.example/main" {
			t.Errorf("expected frontend redirect, got %q", got)
		}
	})

	t.Run("Replayed State", func(t *testing.T) {
		h := NewAuthHandler(newTestManager(t, tokens.URL), "http://front.example/main", nil)

		login := httptest.NewRecorder()
		h.ServeHTTP(login, httptest.NewRequest(http.MethodGet, "/auth/login", nil))
		loc, _ := url.Parse(login.Header().Get("Location"))
		state := loc.Query().Get("state")

		first := httptest.NewRecorder()
		h.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/auth/callback?code=good&state="+state, nil))
		if first.Code != http.StatusFound {
			t.Fatalf("first callback: expected 302, got %d", first.Code)
		}

		replay := httptest.NewRecorder()
		h.ServeHTTP(replay, httptest.NewRequest(http.MethodGet, "/auth/callback?code=good&state="+state, nil))
		if replay.Code != http.StatusBadRequest {
			t.Errorf("replayed callback: expected 400, got %d", replay.Code)
		}
		if !strings.Contains(replay.Body.String(), "Invalid or expired state") {
			t.Errorf("unexpected body: %s", replay.Body.String())
		}
	})

	t.Run("Callback Missing Parameters", func(t *testing.T) {
		h := NewAuthHandler(newTestManager(t, tokens.URL), "http://front.example/main", nil)

		for _, path := range []string{"/auth/callback", "/auth/callback?code=x", "/auth/callback?state=y"} {
			w := httptest.NewRecorder()
			h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
			if w.Code != http.StatusBadRequest {
				t.Errorf("%s: expected 400, got %d", path, w.Code)
			}
		}
	})

	t.Run("Exchange Failure", func(t *testing.T) {
		failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, `{"error":"invalid_grant"}`)
		}))
		defer failing.Close()

		h := NewAuthHandler(newTestManager(t, failing.URL), "http://front.example/main", nil)

		login := httptest.NewRecorder()
		h.ServeHTTP(login, httptest.NewRequest(http.MethodGet, "/auth/login", nil))
		loc, _ := url.Parse(login.Header().Get("Location"))

		cb := httptest.NewRecorder()
		h.ServeHTTP(cb, httptest.NewRequest(http.MethodGet, "/auth/callback?code=bad&state="+loc.Query().Get("state"), nil))
		if cb.Code != http.StatusInternalServerError {
			t.Errorf("expected 500, got %d", cb.Code)
		}
		if !strings.Contains(cb.Body.String(), "invalid_grant") {
			t.Errorf("expected upstream details in body, got %s", cb.Body.String())
		}
	})

	t.Run("Status Without Session", func(t *testing.T) {
		h := NewAuthHandler(newTestManager(t, tokens.URL), "http://front.example/main", nil)

		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/auth/status", nil))
		if w.Code != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", w.Code)
		}
		if !strings.Contains(w.Body.String(), "No session ID") {
			t.Errorf("unexpected body: %s", w.Body.String())
		}
	})

	t.Run("Logout Without Session Is Idempotent", func(t *testing.T) {
		h := NewAuthHandler(newTestManager(t, tokens.URL), "http://front.example/main", nil)

		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/auth/logout", nil))
		if w.Code != http.StatusOK {
			t.Errorf("expected 200, got %d", w.Code)
		}
	})
}

func TestProxyHandler(t *testing.T) {
	tokens := fakeTokenServer(t)
	defer tokens.Close()

	// authed returns a proxy handler plus a session id holding valid tokens.
	authed := func(t *testing.T, upstream *fakeProxy) (*ProxyHandler, string) {
		manager := newTestManager(t, tokens.URL)
		sid := completeLogin(t, NewAuthHandler(manager, "http://front.example", nil))
		return NewProxyHandler(manager, upstream, nil), sid
	}

	t.Run("Search Validates Before Upstream", func(t *testing.T) {
		upstream := &fakeProxy{resp: okResponse(`{}`)}
		h, sid := authed(t, upstream)

		cases := []struct {
			name string
			path string
		}{
			{"Invalid Type", "/search?q=hello&type=artist"},
			{"Missing Type", "/search?q=hello"},
			{"Missing Query", "/search?type=track"},
		}

		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				w := httptest.NewRecorder()
				h.ServeHTTP(w, sessionRequest(tc.path, sid))
				if w.Code != http.StatusBadRequest {
					t.Errorf("expected 400, got %d", w.Code)
				}
			})
		}

		if upstream.calls != 0 {
			t.Errorf("expected no upstream calls for invalid requests, got %d", upstream.calls)
		}
	})

	t.Run("Search Unauthenticated", func(t *testing.T) {
		upstream := &fakeProxy{resp: okResponse(`{}`)}
		h := NewProxyHandler(newTestManager(t, tokens.URL), upstream, nil)

		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/search?q=hello&type=track", nil))
		if w.Code != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", w.Code)
		}
		if upstream.calls != 0 {
			t.Errorf("expected no upstream calls, got %d", upstream.calls)
		}
	})

	t.Run("Search Passes Through", func(t *testing.T) {
		upstream := &fakeProxy{resp: okResponse(`{"tracks":{"items":[]}}`)}
		h, sid := authed(t, upstream)

		w := httptest.NewRecorder()
		h.ServeHTTP(w, sessionRequest("/search?q=hello&type=track&limit=7", sid))
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", w.Code)
		}
		if w.Body.String() != `{"tracks":{"items":[]}}` {
			t.Errorf("body not passed through verbatim: %s", w.Body.String())
		}
		if upstream.query.Get("limit") != "7" {
			t.Errorf("limit not forwarded: %v", upstream.query)
		}
	})

	t.Run("Upstream Error Status Propagates", func(t *testing.T) {
		upstream := &fakeProxy{resp: &services.APIResponse{
			StatusCode: http.StatusTooManyRequests,
			Headers:    http.Header{"Content-Type": []string{"application/json"}},
			Body:       []byte(`{"error":{"status":429}}`),
		}}
		h, sid := authed(t, upstream)

		w := httptest.NewRecorder()
		h.ServeHTTP(w, sessionRequest("/profile", sid))
		if w.Code != http.StatusTooManyRequests {
			t.Errorf("expected 429, got %d", w.Code)
		}
	})

	t.Run("Top Items", func(t *testing.T) {
		router := NewBasicRouter()

		upstream := &fakeProxy{resp: okResponse(`{"items":[]}`)}
		h, sid := authed(t, upstream)
		router.Handler(h)

		t.Run("Invalid Type", func(t *testing.T) {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, sessionRequest("/spotify/top/albums", sid))
			if w.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", w.Code)
			}
			if upstream.calls != 0 {
				t.Errorf("expected no upstream calls, got %d", upstream.calls)
			}
		})

		t.Run("Forwards Paging", func(t *testing.T) {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, sessionRequest("/spotify/top/tracks?time_range=short_term&limit=10&offset=5", sid))
			if w.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
			}
			if upstream.query.Get("time_range") != "short_term" || upstream.query.Get("offset") != "5" {
				t.Errorf("paging not forwarded: %v", upstream.query)
			}
		})
	})
}

func TestRecommendHandler(t *testing.T) {
	tokens := fakeTokenServer(t)
	defer tokens.Close()

	newHandler := func(t *testing.T, catalog services.Catalog) (*RecommendHandler, string) {
		manager := newTestManager(t, tokens.URL)
		sid := completeLogin(t, NewAuthHandler(manager, "http://front.example", nil))
		engine := tasks.NewRecommendEngine(catalog, nil)
		return NewRecommendHandler(manager, engine, nil), sid
	}

	t.Run("Empty History Message", func(t *testing.T) {
		h, sid := newHandler(t, emptyCatalog{})

		w := httptest.NewRecorder()
		h.ServeHTTP(w, sessionRequest("/alternative-recommendations", sid))
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", w.Code)
		}

		var set tasks.RecommendationSet
		if err := json.NewDecoder(w.Body).Decode(&set); err != nil {
			t.Fatalf("failed to decode body: %v", err)
		}
		if set.Message != "No listening history found" {
			t.Errorf("unexpected message: %q", set.Message)
		}
	})

	t.Run("Invalid Limit", func(t *testing.T) {
		h, sid := newHandler(t, emptyCatalog{})

		for _, path := range []string{"/alternative-recommendations?limit=0", "/alternative-recommendations?limit=abc"} {
			w := httptest.NewRecorder()
			h.ServeHTTP(w, sessionRequest(path, sid))
			if w.Code != http.StatusBadRequest {
				t.Errorf("%s: expected 400, got %d", path, w.Code)
			}
		}
	})

	t.Run("Unauthenticated", func(t *testing.T) {
		h, _ := newHandler(t, emptyCatalog{})

		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/alternative-recommendations", nil))
		if w.Code != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", w.Code)
		}
	})
}

// emptyCatalog simulates a user with no listening history.
type emptyCatalog struct{}

func (emptyCatalog) TopArtists(ctx context.Context, token, timeRange string, limit int) ([]services.SpotifyArtist, error) {
	return nil, nil
}

func (emptyCatalog) SearchTracks(ctx context.Context, token, query string, limit int) ([]services.SpotifyTrack, error) {
	return nil, nil
}

func (emptyCatalog) ArtistAlbums(ctx context.Context, token, artistID string, limit int) ([]services.SpotifyAlbum, error) {
	return nil, nil
}

func (emptyCatalog) AlbumTracks(ctx context.Context, token, albumID string, limit int) ([]services.SpotifyTrack, error) {
	return nil, nil
}

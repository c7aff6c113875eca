package auth

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/musicshare/server/internal/shared"
	"golang.org/x/oauth2"
)

// DefaultRefreshSkew is the safety margin subtracted from a token's expiry
// before deciding it needs a refresh. Covers clock drift and request latency.
const DefaultRefreshSkew = 5 * time.Second

// Manager orchestrates the authorization-code flow and token lifecycle for
// browser sessions. Every inbound request re-resolves its token through
// [Manager.EnsureAccessToken]; refresh is lazy and request-triggered only.
type Manager struct {
	config     *oauth2.Config
	states     StateStore
	tokens     TokenStore
	usePKCE    bool
	skew       time.Duration
	httpClient *http.Client
	logger     *log.Logger
	now        func() time.Time
}

// ManagerOpts contains configuration options for creating a Manager.
type ManagerOpts struct {
	Config     *oauth2.Config
	States     StateStore
	Tokens     TokenStore
	UsePKCE    bool
	Skew       time.Duration // defaults to DefaultRefreshSkew
	HTTPClient *http.Client  // used for exchange and refresh calls; bounds them with its Timeout
	Logger     *log.Logger
}

// NewManager creates a Manager with the provided stores and OAuth2 config.
func NewManager(opts ManagerOpts) *Manager {
	if opts.States == nil {
		opts.States = NewMemoryStateStore(DefaultStateTTL)
	}
	if opts.Tokens == nil {
		opts.Tokens = NewMemoryTokenStore()
	}
	if opts.Skew <= 0 {
		opts.Skew = DefaultRefreshSkew
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	return &Manager{
		config:     opts.Config,
		states:     opts.States,
		tokens:     opts.Tokens,
		usePKCE:    opts.UsePKCE,
		skew:       opts.Skew,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		now:        time.Now,
	}
}

// httpCtx injects the manager's HTTP client into the context so oauth2 uses it
// for exchange and refresh calls.
func (m *Manager) httpCtx(ctx context.Context) context.Context {
	if m.httpClient == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, m.httpClient)
}

// Begin starts a login for the session: creates a one-time CSRF state (and a
// PKCE verifier when enabled) and returns the authorize redirect URL.
func (m *Manager) Begin(sessionID string) (string, error) {
	if sessionID == "" {
		return "", fmt.Errorf("%w: session id required", shared.ErrInvalidArgument)
	}

	verifier := ""
	if m.usePKCE {
		v, err := GenerateVerifier(64)
		if err != nil {
			return "", err
		}
		verifier = v
	}

	state, err := m.states.Create(sessionID, verifier)
	if err != nil {
		return "", err
	}

	var opts []oauth2.AuthCodeOption
	if verifier != "" {
		opts = append(opts, oauth2.S256ChallengeOption(verifier))
	}

	return m.config.AuthCodeURL(state, opts...), nil
}

// Callback completes a login: redeems the state (single redemption) and
// exchanges the code for tokens in one attempt, storing the resulting record
// under the pending session id. Returns the session id that owns the tokens.
func (m *Manager) Callback(ctx context.Context, state, code string) (string, error) {
	pending, err := m.states.Redeem(state)
	if err != nil {
		return "", err
	}

	var opts []oauth2.AuthCodeOption
	if pending.Verifier != "" {
		opts = append(opts, oauth2.VerifierOption(pending.Verifier))
	}

	tok, err := m.config.Exchange(m.httpCtx(ctx), code, opts...)
	if err != nil {
		return "", fmt.Errorf("%w: %w", shared.ErrExchangeFailed, err)
	}
	if tok.AccessToken == "" || tok.RefreshToken == "" {
		return "", fmt.Errorf("%w: token response missing credentials", shared.ErrExchangeFailed)
	}

	rec := TokenRecord{
		SessionID:    pending.SessionID,
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    tok.Expiry,
	}
	if err := m.tokens.Put(rec); err != nil {
		return "", err
	}

	m.logger.Debug("stored tokens for session", "session", pending.SessionID, "expires_at", tok.Expiry)
	return pending.SessionID, nil
}

// EnsureAccessToken resolves a valid bearer token for the session.
//
// Returns [shared.ErrNotAuthenticated] when no session id or token record
// exists. When the stored token is within the expiry skew, performs exactly
// one synchronous refresh call; on refresh failure the stale record is left
// untouched and [shared.ErrRefreshFailed] is returned.
func (m *Manager) EnsureAccessToken(ctx context.Context, sessionID string) (string, error) {
	if sessionID == "" {
		return "", fmt.Errorf("%w: no session id", shared.ErrNotAuthenticated)
	}

	rec, err := m.tokens.Get(sessionID)
	if err != nil {
		return "", fmt.Errorf("%w: no token record for session", shared.ErrNotAuthenticated)
	}

	if m.now().Before(rec.ExpiresAt.Add(-m.skew)) {
		return rec.AccessToken, nil
	}

	m.logger.Debug("refreshing access token", "session", sessionID)
	tok, err := m.refresh(ctx, rec.RefreshToken)
	if err != nil {
		return "", fmt.Errorf("%w: %w", shared.ErrRefreshFailed, err)
	}

	rec.AccessToken = tok.AccessToken
	rec.ExpiresAt = tok.Expiry
	if tok.RefreshToken != "" {
		// issuer rotated the refresh token
		rec.RefreshToken = tok.RefreshToken
	}
	if err := m.tokens.Put(rec); err != nil {
		return "", err
	}

	return rec.AccessToken, nil
}

// refresh performs a single refresh-grant call against the token endpoint.
func (m *Manager) refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	if refreshToken == "" {
		return nil, shared.ErrNoRefreshToken
	}

	// A token source seeded with only a refresh token always hits the token
	// endpoint on the first Token call.
	src := m.config.TokenSource(m.httpCtx(ctx), &oauth2.Token{RefreshToken: refreshToken})
	return src.Token()
}

// Status reports whether the session holds a token that is valid within the
// expiry skew. Read-only: never triggers a refresh.
func (m *Manager) Status(sessionID string) bool {
	if sessionID == "" {
		return false
	}

	rec, err := m.tokens.Get(sessionID)
	if err != nil {
		return false
	}

	return m.now().Before(rec.ExpiresAt.Add(-m.skew))
}

// Logout deletes the session's token record. Idempotent.
func (m *Manager) Logout(sessionID string) error {
	if sessionID == "" {
		return nil
	}
	return m.tokens.Delete(sessionID)
}

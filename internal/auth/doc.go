// Package auth implements the OAuth session layer for the MusicShare backend.
//
// # Components
//
// [StateStore] holds short-lived CSRF state tokens created when a login begins.
// Each state maps to a [PendingLogin] (session id plus optional PKCE verifier)
// and can be redeemed at most once; a periodic sweep evicts stale entries.
//
// [TokenStore] maps session ids to [TokenRecord] values (access token, refresh
// token, absolute expiry). [MemoryTokenStore] is the default; [SQLiteTokenStore]
// persists records across restarts for deployments that want it. Both sit behind
// the same interface so handler logic never changes.
//
// [Manager] orchestrates the authorization-code dance:
//
//  1. Begin creates a state (and PKCE verifier when enabled) and builds the
//     authorize redirect URL.
//  2. Callback redeems the state and exchanges the code for tokens, storing a
//     TokenRecord keyed by the pending session id.
//  3. EnsureAccessToken resolves a valid bearer token for a session,
//     refreshing lazily when the stored token is within the expiry skew.
//
// Refresh is request-triggered only; there is no background refresh timer.
// Exchange and refresh are single-attempt with no retries, and upstream
// failures carry the token endpoint's status via [oauth2.RetrieveError].
//
// # Deployment constraint
//
// The in-memory stores are process-wide; a restart discards pending logins and
// sessions, and horizontal scaling requires an external keyed store behind the
// same interfaces.
package auth

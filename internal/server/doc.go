// Package server provides HTTP routing, middleware, and the handlers for the
// music-share backend.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first),
// following the standard Go pattern.
//
// The [BasicRouter] implementation uses [http.ServeMux] internally; route
// patterns may carry a method prefix and path wildcards.
//
// # Handlers
//
// Three handlers cover the backend surface:
//   - [AuthHandler] : the OAuth session endpoints (/auth/login, /auth/callback,
//     /auth/status, /auth/logout)
//   - [ProxyHandler] : verbatim Spotify passthrough (/search, /profile,
//     /spotify/top/{type})
//   - [RecommendHandler] : the aggregated /alternative-recommendations endpoint
//
// Each implements the [Handler] interface, which wraps the stdlib handler
// interface and adds routes, allowing handlers to register multiple routes to
// encapsulate route definitions within the implementation.
//
// # Sessions
//
// Browser identity travels in an HTTP-only, same-site cookie holding only an
// opaque session id. Tokens never reach the browser; every proxied request
// re-resolves its bearer token through the auth manager.
//
// # Errors
//
// Handlers translate failures into JSON bodies of the form {error, details}.
// CSRF state failures map to 400, missing authentication to 401, token
// endpoint failures to 500 with upstream details, and proxied upstream
// failures propagate the upstream status code.
package server

// Package services implements the Spotify Web API client used by the proxy
// endpoints and the recommendation aggregator.
//
// # Client
//
// [Client] is a thin, token-per-call wrapper over the Spotify Web API: the
// session layer resolves a bearer token for each inbound request and passes
// it to the call, so the client itself holds no credentials.
//
// Raw methods ([Client.Search], [Client.Me], [Client.TopItems]) return the
// upstream response unmodified in an [APIResponse] so proxy handlers can pass
// bodies and status codes through verbatim.
//
// Typed methods ([Client.TopArtists], [Client.SearchTracks],
// [Client.ArtistAlbums], [Client.AlbumTracks]) decode into the Spotify DTOs
// for the aggregator. Non-2xx responses surface as [*UpstreamError] carrying
// the upstream status and body, wrapping [shared.ErrAPIRequest].
//
// All calls pass through a [rate.Limiter] to bound load on the upstream API,
// and respect the caller's context for cancellation and timeouts.
//
// # API Mappings
//
// Response types follow https://developer.spotify.com/documentation/web-api/reference/
package services

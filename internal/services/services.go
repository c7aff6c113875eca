// package services defines the Spotify Web API surface used by the backend
package services

import (
	"context"

	"golang.org/x/oauth2"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"

	// DefaultBaseURL is the Spotify Web API root.
	DefaultBaseURL = "https://api.spotify.com/v1"
)

// loginScopes are the Spotify scopes the backend requests on login.
// user-top-read backs the top-items proxy and the recommendation aggregator.
var loginScopes = []string{
	"user-read-email",
	"user-read-private",
	"user-top-read",
}

// NewOAuthConfig builds the Spotify OAuth2 config for the backend's
// authorization-code flow.
func NewOAuthConfig(clientID, clientSecret, redirectURI string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURI,
		Scopes:       loginScopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  spotifyAuthURL,
			TokenURL: spotifyTokenURL,
		},
	}
}

// Catalog is the slice of the Spotify API the recommendation aggregator
// consumes. [Client] implements it; tests substitute fakes.
type Catalog interface {
	// TopArtists retrieves the caller's most listened artists for a time range.
	TopArtists(ctx context.Context, token, timeRange string, limit int) ([]SpotifyArtist, error)

	// SearchTracks searches the catalog for tracks matching a query.
	SearchTracks(ctx context.Context, token, query string, limit int) ([]SpotifyTrack, error)

	// ArtistAlbums retrieves an artist's albums.
	ArtistAlbums(ctx context.Context, token, artistID string, limit int) ([]SpotifyAlbum, error)

	// AlbumTracks retrieves the tracks on an album (simplified objects, no
	// album or popularity fields).
	AlbumTracks(ctx context.Context, token, albumID string, limit int) ([]SpotifyTrack, error)
}

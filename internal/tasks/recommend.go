package tasks

import (
	"context"
	"fmt"
	"sort"

	"github.com/charmbracelet/log"
	"github.com/musicshare/server/internal/services"
	"github.com/musicshare/server/internal/shared"
)

const (
	// MethodArtistCatalog names the aggregation strategy in responses.
	MethodArtistCatalog = "artist-catalog"

	topArtistWindow = "medium_term"
	topArtistFetch  = 5
	maxSeedArtists  = 3
	albumsPerArtist = 3
	tracksPerAlbum  = 5
	searchLimit     = 10

	albumTier  = 2.0
	searchTier = 1.0
)

// Recommendation is a scored track with the reason it was included.
type Recommendation struct {
	services.SpotifyTrack
	Reason string  `json:"recommendationReason"`
	Score  float64 `json:"score"`
}

// RecommendationSet is the result of one aggregation run. TotalFound counts
// unique tracks collected before truncation. Message is set only when the
// user has no listening history to seed from.
type RecommendationSet struct {
	Tracks     []Recommendation `json:"tracks"`
	Method     string           `json:"method,omitempty"`
	TotalFound int              `json:"totalFound,omitempty"`
	Message    string           `json:"message,omitempty"`
}

// RecommendEngine aggregates alternative listening suggestions from a
// user's top artists.
type RecommendEngine struct {
	catalog services.Catalog
	logger  *log.Logger
}

// NewRecommendEngine creates an engine over the given catalog.
func NewRecommendEngine(catalog services.Catalog, logger *log.Logger) *RecommendEngine {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &RecommendEngine{catalog: catalog, logger: logger}
}

// Alternatives builds up to limit scored recommendations seeded from the
// user's medium-term top artists. An empty listening history returns an
// empty set with an explanatory message rather than an error.
func (e *RecommendEngine) Alternatives(ctx context.Context, token string, limit int) (*RecommendationSet, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive", shared.ErrInvalidArgument)
	}

	artists, err := e.catalog.TopArtists(ctx, token, topArtistWindow, topArtistFetch)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch top artists: %w", err)
	}

	if len(artists) == 0 {
		return &RecommendationSet{
			Tracks:  []Recommendation{},
			Message: "No listening history found",
		}, nil
	}

	seeds := artists
	if len(seeds) > maxSeedArtists {
		seeds = seeds[:maxSeedArtists]
	}

	var collected []Recommendation
	for _, artist := range seeds {
		recs, err := e.collectForArtist(ctx, token, artist)
		if err != nil {
			e.logger.Warn("skipping artist after upstream failure", "artist", artist.Name, "error", err)
			continue
		}
		collected = append(collected, recs...)
	}

	unique := dedupeByTrackID(collected)
	sort.SliceStable(unique, func(i, j int) bool {
		return unique[i].Score > unique[j].Score
	})

	total := len(unique)
	if len(unique) > limit {
		unique = unique[:limit]
	}
	if unique == nil {
		unique = []Recommendation{}
	}

	return &RecommendationSet{
		Tracks:     unique,
		Method:     MethodArtistCatalog,
		TotalFound: total,
	}, nil
}

// collectForArtist gathers album-catalog tracks and search hits for one
// seed artist. Album tracks arrive as simplified objects, so the album
// metadata is copied onto them before scoring.
func (e *RecommendEngine) collectForArtist(ctx context.Context, token string, artist services.SpotifyArtist) ([]Recommendation, error) {
	var recs []Recommendation

	albums, err := e.catalog.ArtistAlbums(ctx, token, artist.ID, albumsPerArtist)
	if err != nil {
		return nil, fmt.Errorf("albums for %s: %w", artist.ID, err)
	}

	for _, album := range albums {
		tracks, err := e.catalog.AlbumTracks(ctx, token, album.ID, tracksPerAlbum)
		if err != nil {
			return nil, fmt.Errorf("tracks for album %s: %w", album.ID, err)
		}

		for _, track := range tracks {
			track.Album = album
			recs = append(recs, Recommendation{
				SpotifyTrack: track,
				Reason:       fmt.Sprintf("From %s by %s", album.Name, artist.Name),
				Score:        albumTier + float64(track.Popularity)/100,
			})
		}
	}

	hits, err := e.catalog.SearchTracks(ctx, token, fmt.Sprintf("artist:%q", artist.Name), searchLimit)
	if err != nil {
		return nil, fmt.Errorf("search for %s: %w", artist.Name, err)
	}

	for _, track := range hits {
		recs = append(recs, Recommendation{
			SpotifyTrack: track,
			Reason:       fmt.Sprintf("More from %s", artist.Name),
			Score:        searchTier + float64(track.Popularity)/100,
		})
	}

	return recs, nil
}

// dedupeByTrackID keeps the first occurrence of each track ID, preserving
// collection order.
func dedupeByTrackID(recs []Recommendation) []Recommendation {
	seen := make(map[string]struct{}, len(recs))
	out := recs[:0:0]
	for _, rec := range recs {
		if _, ok := seen[rec.ID]; ok {
			continue
		}
		seen[rec.ID] = struct{}{}
		out = append(out, rec)
	}
	return out
}

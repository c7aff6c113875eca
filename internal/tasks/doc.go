// Package tasks orchestrates multi-call Spotify workflows on top of the
// services client.
//
// # Recommendation Aggregation
//
// [RecommendEngine.Alternatives] builds an alternative-listening list from
// the user's recent history:
//
//  1. Fetches the user's top artists for the medium term
//  2. For the leading artists, walks their album catalog and searches the
//     wider track catalog
//  3. Scores, dedupes, and ranks the collected tracks
//
// Album-catalog tracks rank above plain search hits; within a tier, track
// popularity breaks ties. Scores are deterministic, so the same listening
// history always yields the same ordering.
//
// A failure against a single artist is logged and skipped rather than
// failing the whole aggregation. Only an empty top-artists response (or a
// failure fetching it) aborts the run.
//
// # Implementation
//
// [RecommendEngine] depends on [services.Catalog], the typed slice of the
// Spotify API it consumes. Tests substitute fakes.
package tasks

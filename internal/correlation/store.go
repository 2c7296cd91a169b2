// Package correlation maps enrichment job identifiers to the chat location
// awaiting their result.
//
// Entries are created after a successful enrichment submission and destroyed
// when the matching callback is consumed. Entries for jobs that never call
// back live for the process (or store) lifetime; that is accepted garbage,
// not a correctness violation. The in-memory backend loses all state on
// restart, which is an explicit contract: callbacks carrying direct channel
// and message identifiers still resolve without any store state.
package correlation

import "context"

// Entry links one outstanding enrichment job to the chat message awaiting it.
type Entry struct {
	// Key is the enrichment job identifier when the service supplied one at
	// submission time, otherwise FallbackKey(channel, placeholderTS).
	Key string `json:"key"`
	// Channel is the chat channel identifier.
	Channel string `json:"channel"`
	// ThreadAnchor is the message the placeholder is threaded under.
	ThreadAnchor string `json:"thread_anchor"`
	// PlaceholderTS identifies the message to overwrite with results.
	PlaceholderTS string `json:"placeholder_ts"`
	// SubjectURL is the extracted profile URL, carried through for display.
	SubjectURL string `json:"subject_url"`
}

// FallbackKey synthesizes a key for submissions that returned no job
// identifier. The placeholder timestamp makes it unique per placeholder.
func FallbackKey(channel, placeholderTS string) string {
	return channel + ":" + placeholderTS
}

// Store is the correlation mapping. Entries are created, read and deleted,
// never updated in place. FirstKey returns some currently-live key and exists
// only as the degraded single-outstanding-request fallback used when a
// callback carries neither direct identifiers nor a known job id.
type Store interface {
	Put(ctx context.Context, entry Entry) error
	Get(ctx context.Context, key string) (Entry, bool, error)
	Delete(ctx context.Context, key string) error
	FirstKey(ctx context.Context) (string, bool, error)
}

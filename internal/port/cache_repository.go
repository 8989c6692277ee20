package port

import "context"

type CacheRepository interface {
	// RecordCallbackOutcome remembers the redirect produced for a processed
	// callback so later duplicates replay the identical outcome. The first
	// write for a key wins; later writes are ignored.
	RecordCallbackOutcome(ctx context.Context, key, redirectURL string) error

	// CallbackOutcome returns the recorded redirect for the key, or ""
	// when none exists.
	CallbackOutcome(ctx context.Context, key string) (string, error)
}

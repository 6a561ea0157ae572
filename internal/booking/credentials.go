package booking

import (
	"context"
	"fmt"
	"log/slog"
)

// ValidateCredentials authenticates every distinct (username, password) pair
// found across the attempt lists, once each. It runs single-threaded before
// any job is scheduled so bad credentials fail the process at startup instead
// of a 6am firing.
func ValidateCredentials(ctx context.Context, newClient ClientFactory, log *slog.Logger, attemptLists ...[]Attempt) error {
	if log == nil {
		log = slog.Default()
	}
	type key struct{ username, password string }
	seen := make(map[key]struct{})
	for _, attempts := range attemptLists {
		for _, a := range attempts {
			k := key{a.Username, a.Password}
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}

			log.Info("validating credentials", "username", a.Username)
			if err := newClient(a.Username, a.Password).Authenticate(ctx); err != nil {
				return fmt.Errorf("credentials for %s: %w", a.Username, err)
			}
			log.Info("credentials valid", "username", a.Username)
		}
	}
	return nil
}

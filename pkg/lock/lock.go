// Package lock provides keyed mutual exclusion for check-then-write sequences.
package lock

import (
	"context"
	"errors"
	"sort"
)

// ErrNotAcquired is returned when a lock could not be taken before the
// context expired.
var ErrNotAcquired = errors.New("lock not acquired")

// Release frees previously acquired keys. It is safe to call more than once.
type Release func()

// Locker acquires a set of keys atomically with respect to other callers.
type Locker interface {
	Acquire(ctx context.Context, keys ...string) (Release, error)
}

// normalize sorts and de-duplicates keys so that overlapping key sets are
// always taken in the same order.
func normalize(keys []string) []string {
	out := make([]string, 0, len(keys))
	seen := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func chain(releases []func()) Release {
	done := false
	return func() {
		if done {
			return
		}
		done = true
		for i := len(releases) - 1; i >= 0; i-- {
			releases[i]()
		}
	}
}

package health

import (
	"context"
	"runtime"
	"runtime/debug"
	"sort"
	"time"

	"github.com/go-faster/errors"
)

// GoroutineCountCheck fails when more than threshold goroutines are running.
// Leaked lookups that never return show up here first.
func GoroutineCountCheck(threshold int) CheckFunc {
	return func(_ context.Context) error {
		if n := runtime.NumGoroutine(); n > threshold {
			return errors.Errorf("goroutine count %d exceeds threshold %d", n, threshold)
		}
		return nil
	}
}

// GCMaxPauseCheck fails when any recent stop-the-world GC pause exceeded
// threshold. Large inlined images can inflate the heap enough to trip it.
func GCMaxPauseCheck(threshold time.Duration) CheckFunc {
	return func(_ context.Context) error {
		var stats debug.GCStats
		debug.ReadGCStats(&stats)
		for _, p := range stats.Pause {
			if p > threshold {
				return errors.Errorf("GC pause %s exceeds threshold %s", p, threshold)
			}
		}
		return nil
	}
}

// NonEmptyCheck fails with a "<name> is not configured" error when any of the
// named values is empty. It guards against a server started without
// credentials.
func NonEmptyCheck(values map[string]string) CheckFunc {
	return func(_ context.Context) error {
		for _, name := range sortedKeys(values) {
			if values[name] == "" {
				return errors.Errorf("%s is not configured", name)
			}
		}
		return nil
	}
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

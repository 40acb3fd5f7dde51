// Package extract turns a loaded session into article records: it resolves
// opinion links from the listing page, then pulls title, body and cover image
// from each article.
package extract

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/andybalholm/cascadia"
)

// Strategy is one way of producing a list of values.
type Strategy[T any] struct {
	Name string
	Run  func(ctx context.Context) ([]T, error)
}

// FirstNonEmpty runs strategies in order and returns the first non-empty
// result. Errors are logged and count as empty.
func FirstNonEmpty[T any](ctx context.Context, strategies ...Strategy[T]) []T {
	for _, s := range strategies {
		out, err := s.Run(ctx)
		if err != nil {
			slog.Warn("extraction strategy failed", "strategy", s.Name, "error", err)
			continue
		}
		if len(out) > 0 {
			return out
		}
	}
	return nil
}

// unionSelector joins selectors into one group so matches come back in
// document order.
func unionSelector(selectors []string) string {
	return strings.Join(selectors, ", ")
}

// validateSelectors reports the first selector that does not compile.
func validateSelectors(selectors ...string) error {
	for _, s := range selectors {
		if _, err := cascadia.ParseGroup(s); err != nil {
			return fmt.Errorf("invalid selector %q: %w", s, err)
		}
	}
	return nil
}

// Package translate converts headlines between languages.
package translate

import (
	"context"
	"log/slog"
)

// Translator translates a single text.
type Translator interface {
	Translate(ctx context.Context, text, source, target string) (string, error)
}

// TranslateAll translates every text, keeping order. A text that fails to
// translate is returned unchanged.
func TranslateAll(ctx context.Context, tr Translator, texts []string, source, target string) []string {
	out := make([]string, len(texts))
	for i, text := range texts {
		translated, err := tr.Translate(ctx, text, source, target)
		if err != nil || translated == "" {
			if err != nil {
				slog.Warn("translation failed, keeping original", "text", text, "error", err)
			}
			out[i] = text
			continue
		}
		out[i] = translated
	}
	return out
}

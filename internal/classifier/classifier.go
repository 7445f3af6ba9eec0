// Package classifier detects the fashion brand a listing or wanted ad
// is about.
package classifier

import (
	"context"
	"fmt"
	"strings"

	"github.com/evcraddock/mela/internal/brand"
)

// SystemPrompt instructs the model to answer with a bare brand name.
const SystemPrompt = `You are a brand recognition expert. Extract the fashion brand name from the given text. Return only the brand name, nothing else. If no recognizable brand is found, return "UNKNOWN".`

// Content is the text a brand is detected from.
type Content struct {
	Title       string
	Description string
}

// Prompt renders the user message for c.
func (c Content) Prompt() string {
	return fmt.Sprintf("Title: %s\nDescription: %s", c.Title, c.Description)
}

// Detector extracts a brand from content. It returns brand.Unknown when
// nothing recognizable is found; errors are reserved for failures.
type Detector interface {
	DetectBrand(ctx context.Context, c Content) (string, error)
}

// DetectorFunc adapts a function to Detector.
type DetectorFunc func(ctx context.Context, c Content) (string, error)

// DetectBrand calls f.
func (f DetectorFunc) DetectBrand(ctx context.Context, c Content) (string, error) {
	return f(ctx, c)
}

// CleanResponse turns a raw model answer into a brand name. Only the
// first non-empty line counts; quotes, markdown emphasis, a "Brand:"
// label and trailing punctuation are stripped. Catalog brands come back
// in catalog spelling. Empty answers and any casing of UNKNOWN map to
// brand.Unknown.
func CleanResponse(raw string) string {
	var line string
	for _, l := range strings.Split(raw, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			line = l
			break
		}
	}

	line = strings.Trim(line, "\"'`*_ ")
	if i := strings.Index(line, ":"); i >= 0 && strings.EqualFold(strings.TrimSpace(line[:i]), "brand") {
		line = strings.Trim(strings.TrimSpace(line[i+1:]), "\"'`*_ ")
	}
	line = strings.TrimRight(line, ".!,;")
	line = strings.TrimSpace(line)

	if line == "" || strings.EqualFold(line, brand.Unknown) {
		return brand.Unknown
	}

	name, _ := brand.Canonical(line)
	return name
}

package vision

import (
	"strings"

	"go-design-analyzer/pkg/models"
)

// Compression policy constants. These are deliberate product decisions, not
// tuning parameters: downstream prompts and stored records depend on them.
const (
	maxElements      = 8
	maxTextFragments = 5
	minTextLength    = 3
	maxTextLength    = 20
	maxColors        = 3
	maxLabels        = 5

	defaultElements    = "interface elements"
	defaultTextSummary = "minimal text content"
	defaultColors      = "standard colors"
	defaultLabels      = "UI components"
)

// Compress deterministically reduces a raw vision response to the compact
// metadata passed into later stages. Identical input always yields identical
// output.
func Compress(raw *RawVisionResult) models.CompressedMetadata {
	if raw == nil {
		return DefaultMetadata()
	}

	return models.CompressedMetadata{
		Elements:      joinOrDefault(firstN(raw.Objects, maxElements), defaultElements),
		TextSummary:   joinOrDefault(compressText(raw.Text), defaultTextSummary),
		ColorPalette:  joinOrDefault(firstN(raw.Colors, maxColors), defaultColors),
		LabelsSummary: joinOrDefault(firstN(raw.Labels, maxLabels), defaultLabels),
		ObjectCount:   len(raw.Objects),
		TextCount:     len(raw.Text),
		FaceCount:     nonNegative(raw.Faces),
	}
}

// DefaultMetadata is the degraded stand-in used when no vision data exists.
func DefaultMetadata() models.CompressedMetadata {
	return models.CompressedMetadata{
		Elements:      defaultElements,
		TextSummary:   defaultTextSummary,
		ColorPalette:  defaultColors,
		LabelsSummary: defaultLabels,
	}
}

// compressText keeps the first maxTextFragments fragments longer than two
// characters, each truncated to maxTextLength characters. Lengths count
// runes, not bytes, so non-ASCII text is never cut mid-character.
func compressText(fragments []string) []string {
	kept := make([]string, 0, maxTextFragments)
	for _, fragment := range fragments {
		runes := []rune(fragment)
		if len(runes) < minTextLength {
			continue
		}
		if len(runes) > maxTextLength {
			fragment = string(runes[:maxTextLength])
		}
		kept = append(kept, fragment)
		if len(kept) == maxTextFragments {
			break
		}
	}
	return kept
}

func firstN(values []string, n int) []string {
	if len(values) > n {
		return values[:n]
	}
	return values
}

func joinOrDefault(values []string, defaultValue string) string {
	if len(values) == 0 {
		return defaultValue
	}
	return strings.Join(values, ", ")
}

func nonNegative(n int) int {
	if n < 0 {
		return 0
	}
	return n
}

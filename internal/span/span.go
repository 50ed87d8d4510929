// Package span turns raw extracted text into a bounded, ordered sequence of
// model-input chunks. Span order is reading order and must be preserved.
package span

import "strings"

const (
	DefaultMaxSpanLength = 800
	DefaultMaxSpans      = 3000
)

type Options struct {
	MaxSpanLength       int
	MaxSpans            int
	PrependPrompt       string
	NormalizeWhitespace bool
}

func DefaultOptions() Options {
	return Options{
		MaxSpanLength:       DefaultMaxSpanLength,
		MaxSpans:            DefaultMaxSpans,
		NormalizeWhitespace: true,
	}
}

// Build packs the input's lines greedily into spans of at most
// MaxSpanLength characters, preserving line order. A single line longer
// than the limit is hard-truncated, not split. At most MaxSpans spans are
// returned; PrependPrompt, if set, occupies the first slot.
func Build(text string, opts Options) []string {
	if opts.MaxSpanLength <= 0 {
		opts.MaxSpanLength = DefaultMaxSpanLength
	}
	if opts.MaxSpans <= 0 {
		opts.MaxSpans = DefaultMaxSpans
	}

	var lines []string
	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(strings.TrimSuffix(raw, "\r"))
		if line == "" {
			continue
		}
		if opts.NormalizeWhitespace {
			line = strings.Join(strings.Fields(line), " ")
		}
		lines = append(lines, line)
	}

	var spans []string
	var current string

	for _, line := range lines {
		if current == "" {
			current = truncate(line, opts.MaxSpanLength)
			continue
		}

		if len(current)+1+len(line) <= opts.MaxSpanLength {
			current += " " + line
		} else {
			spans = append(spans, current)
			current = truncate(line, opts.MaxSpanLength)
			if len(spans) >= opts.MaxSpans {
				current = ""
				break
			}
		}
	}
	if current != "" && len(spans) < opts.MaxSpans {
		spans = append(spans, current)
	}

	if opts.PrependPrompt != "" {
		spans = append(
			[]string{truncate(opts.PrependPrompt, opts.MaxSpanLength)},
			spans...,
		)
	}

	if len(spans) > opts.MaxSpans {
		spans = spans[:opts.MaxSpans]
	}
	return spans
}

// SplitText cuts text into fixed-size chunks with no line awareness.
func SplitText(text string, chunkSize int) []string {
	if chunkSize <= 0 || text == "" {
		return nil
	}
	var chunks []string
	for i := 0; i < len(text); i += chunkSize {
		end := i + chunkSize
		if end > len(text) {
			end = len(text)
		}
		chunks = append(chunks, text[i:end])
	}
	return chunks
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

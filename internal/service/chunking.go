package service

import (
	"strings"
	"unicode/utf8"

	"github.com/cloo-solutions/askdoc/internal/domain"
)

// DefaultSeparators are tried in order, coarsest first. The empty separator
// splits between characters.
var DefaultSeparators = []string{"\n\n", "\n", " ", ""}

// ChunkConfig controls page chunking. Sizes are measured in characters.
type ChunkConfig struct {
	MaxChars   int
	Overlap    int
	Separators []string
}

// DefaultChunkConfig provides the production chunk settings.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{
		MaxChars:   2000,
		Overlap:    200,
		Separators: DefaultSeparators,
	}
}

func (c ChunkConfig) normalized() ChunkConfig {
	def := DefaultChunkConfig()
	if c.MaxChars <= 0 {
		c.MaxChars = def.MaxChars
	}
	if c.Overlap < 0 {
		c.Overlap = 0
	}
	if c.Overlap >= c.MaxChars {
		c.Overlap = c.MaxChars / 2
	}
	if len(c.Separators) == 0 {
		c.Separators = def.Separators
	}
	return c
}

// SplitPages splits every page independently, so no chunk spans two pages.
// The result depends only on the input; chunk IDs are left empty.
func SplitPages(pages []domain.PageRecord, cfg ChunkConfig) []domain.Chunk {
	cfg = cfg.normalized()

	var chunks []domain.Chunk
	for _, page := range pages {
		meta := domain.ChunkMetadata{Page: page.PageNumber, Source: page.SourceName}

		texts := splitRecursive(page.Text, cfg.Separators, cfg)
		if len(texts) == 0 {
			texts = []string{domain.BlankPagePlaceholder}
		}
		for _, text := range texts {
			chunks = append(chunks, domain.Chunk{
				ChunkIndex: len(chunks),
				Text:       text,
				Metadata:   meta,
			})
		}
	}
	return chunks
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}

func splitRecursive(text string, separators []string, cfg ChunkConfig) []string {
	separator := separators[len(separators)-1]
	var rest []string
	for i, sep := range separators {
		if sep == "" || strings.Contains(text, sep) {
			separator = sep
			rest = separators[i+1:]
			break
		}
	}

	if separator == "" {
		return chunkText(text, cfg)
	}

	var out, good []string
	for _, piece := range strings.Split(text, separator) {
		if piece == "" {
			continue
		}
		if runeLen(piece) < cfg.MaxChars {
			good = append(good, piece)
			continue
		}
		if len(good) > 0 {
			out = append(out, mergeSplits(good, separator, cfg)...)
			good = nil
		}
		if len(rest) == 0 {
			if trimmed := strings.TrimSpace(piece); trimmed != "" {
				out = append(out, trimmed)
			}
			continue
		}
		out = append(out, splitRecursive(piece, rest, cfg)...)
	}
	if len(good) > 0 {
		out = append(out, mergeSplits(good, separator, cfg)...)
	}
	return out
}

// mergeSplits packs small pieces into chunks of at most MaxChars, carrying up
// to Overlap characters of trailing pieces into the next chunk.
func mergeSplits(splits []string, separator string, cfg ChunkConfig) []string {
	sepLen := runeLen(separator)

	var docs, current []string
	total := 0
	for _, piece := range splits {
		n := runeLen(piece)
		if total+n+joinCost(current, sepLen) > cfg.MaxChars && len(current) > 0 {
			if doc := strings.TrimSpace(strings.Join(current, separator)); doc != "" {
				docs = append(docs, doc)
			}
			for total > cfg.Overlap || (total > 0 && total+n+joinCost(current, sepLen) > cfg.MaxChars) {
				total -= runeLen(current[0])
				if len(current) > 1 {
					total -= sepLen
				}
				current = current[1:]
			}
		}
		current = append(current, piece)
		total += n
		if len(current) > 1 {
			total += sepLen
		}
	}
	if doc := strings.TrimSpace(strings.Join(current, separator)); doc != "" {
		docs = append(docs, doc)
	}
	return docs
}

func joinCost(current []string, sepLen int) int {
	if len(current) > 0 {
		return sepLen
	}
	return 0
}

// chunkText cuts text into windows of at most MaxChars characters, each
// starting Overlap characters before the previous one ended. Cuts prefer
// whitespace in the back half of a window.
func chunkText(text string, cfg ChunkConfig) []string {
	clean := strings.TrimSpace(text)
	if clean == "" {
		return nil
	}
	cfg = cfg.normalized()

	runes := []rune(clean)
	if len(runes) <= cfg.MaxChars {
		return []string{clean}
	}

	chunks := make([]string, 0, len(runes)/cfg.MaxChars+1)
	start := 0
	for start < len(runes) {
		end := start + cfg.MaxChars
		if end > len(runes) {
			end = len(runes)
		}

		if end < len(runes) {
			minCut := start + cfg.MaxChars/2
			for i := end; i > minCut; i-- {
				if isSpace(runes[i-1]) {
					end = i
					break
				}
			}
		}

		if chunk := strings.TrimSpace(string(runes[start:end])); chunk != "" {
			chunks = append(chunks, chunk)
		}

		if end >= len(runes) {
			break
		}

		next := end - cfg.Overlap
		if next <= start {
			next = end
		}
		start = next
	}

	return chunks
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\n' || r == '\t' || r == '\r'
}

package extract

import "strings"

// defaultWordTokenRate approximates tokens-per-word for content-budget
// purposes. No pack-provided formula exists for this; 0.75 tokens/word is
// used here as the default, so a MaxTokens budget holds MaxTokens/0.75
// words.
const defaultWordTokenRate = 0.75

// ChunkOptions configures merge-chunking of content before it is handed to
// an extraction Strategy, per spec.md §4.7's "merge-chunk ... approximated
// by words × word_token_rate". Generalizes
// pkg/extractor/config.go's TruncateContent into an overlapping splitter.
type ChunkOptions struct {
	// MaxTokens is the per-chunk token budget. 0 disables chunking
	// (content is returned as a single section).
	MaxTokens int

	// WordTokenRate approximates tokens per word. Defaults to
	// defaultWordTokenRate when <= 0.
	WordTokenRate float64

	// OverlapRate is the fraction of each chunk's words repeated at the
	// start of the following chunk, in [0, 1). Defaults to 0.
	OverlapRate float64
}

// Chunk splits content into word-based sections sized to MaxTokens, with
// OverlapRate-fraction overlap between consecutive chunks so that content
// spanning a chunk boundary is not lost to either side.
func Chunk(content string, opts ChunkOptions) []string {
	if opts.MaxTokens <= 0 {
		return []string{content}
	}

	rate := opts.WordTokenRate
	if rate <= 0 {
		rate = defaultWordTokenRate
	}
	wordsPerChunk := int(float64(opts.MaxTokens) / rate)
	if wordsPerChunk <= 0 {
		return []string{content}
	}

	overlap := opts.OverlapRate
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= 1 {
		overlap = 0.9
	}
	overlapWords := int(float64(wordsPerChunk) * overlap)

	words := strings.Fields(content)
	if len(words) <= wordsPerChunk {
		return []string{content}
	}

	step := wordsPerChunk - overlapWords
	if step <= 0 {
		step = wordsPerChunk
	}

	var chunks []string
	for start := 0; start < len(words); start += step {
		end := start + wordsPerChunk
		if end > len(words) {
			end = len(words)
		}
		chunks = append(chunks, strings.Join(words[start:end], " "))
		if end == len(words) {
			break
		}
	}
	return chunks
}

package loader

import (
	"strings"

	"github.com/pkoukk/tiktoken-go"

	"github.com/sanadlabs/sanad/pkg/textspan"
)

const tokenEncoder = "o200k_base"

// tokenCounter reports the token cost of a candidate chunk.
type tokenCounter func(string) int

// newTokenCounter builds the tiktoken-backed counter. Overridable in tests so
// chunking logic can be exercised without the encoder's dictionary.
var newTokenCounter = func() (tokenCounter, error) {
	enc, err := tiktoken.GetEncoding(tokenEncoder)
	if err != nil {
		return nil, err
	}
	return func(s string) int {
		return len(enc.Encode(s, nil, nil))
	}, nil
}

// ChunkText splits text into chunks of at most maxTokens tokens, breaking only
// on sentence boundaries. A single sentence over the budget becomes its own
// chunk rather than being cut mid-sentence.
func ChunkText(text string, maxTokens int) ([]string, error) {
	countTokens, err := newTokenCounter()
	if err != nil {
		return nil, err
	}
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	spans := textspan.Spans(text, 0)
	if len(spans) == 0 {
		return nil, nil
	}
	sentences := make([]string, 0, len(spans))
	for _, sp := range spans {
		sentences = append(sentences, sp.Text(text))
	}

	var chunks []string
	chunkStart := -1
	chunkEnd := -1

	flushChunk := func() {
		if chunkStart < 0 || chunkEnd <= chunkStart {
			return
		}
		chunk := strings.TrimSpace(strings.Join(sentences[chunkStart:chunkEnd], " "))
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
		chunkStart = -1
		chunkEnd = -1
	}

	for i := range sentences {
		if chunkStart < 0 {
			chunkStart = i
			chunkEnd = i + 1
			continue
		}

		testText := strings.Join(sentences[chunkStart:i+1], " ")
		if countTokens(testText) <= maxTokens {
			chunkEnd = i + 1
		} else {
			flushChunk()
			chunkStart = i
			chunkEnd = i + 1
		}
	}
	flushChunk()

	return chunks, nil
}

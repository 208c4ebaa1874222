package pipeline

import (
	"fmt"
	"unicode"

	"github.com/plainapi/plainapi/model"
)

// token is a whitespace-delimited word with its byte offsets in the
// source text.
type token struct {
	start int
	end   int
}

// tokenize splits text into whitespace-delimited tokens, keeping the
// byte offsets so chunk spans can be mapped back to the source.
func tokenize(text string) []token {
	var tokens []token
	start := -1
	for i, r := range text {
		if unicode.IsSpace(r) {
			if start >= 0 {
				tokens = append(tokens, token{start: start, end: i})
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		tokens = append(tokens, token{start: start, end: len(text)})
	}
	return tokens
}

// WindowChunker creates a chunker that slides a window of windowTokens
// tokens with overlapTokens tokens of overlap between consecutive
// chunks. Chunks break on whitespace only, so no word is ever split.
// A document shorter than the window yields a single chunk; a trailing
// remainder that would add no text beyond the overlap is folded into
// the previous chunk instead of becoming a degenerate tiny chunk.
// An empty document yields an empty sequence, not an error.
func WindowChunker(windowTokens int, overlapTokens int) ChunkFunc {
	return func(doc *model.Document) ([]*model.Chunk, error) {
		if windowTokens <= 0 {
			return nil, fmt.Errorf("window size must be positive, got %d", windowTokens)
		}
		if overlapTokens < 0 || overlapTokens >= windowTokens {
			return nil, fmt.Errorf("overlap must be in [0, window), got %d for window %d", overlapTokens, windowTokens)
		}

		tokens := tokenize(doc.Content)
		if len(tokens) == 0 {
			return []*model.Chunk{}, nil
		}

		step := windowTokens - overlapTokens
		var chunks []*model.Chunk

		for start := 0; start == 0 || start < len(tokens); start += step {
			// The previous window already covers up to start+overlap
			// tokens; a window starting here would contribute nothing
			// new if the document ends inside that overlap.
			if start > 0 && len(tokens)-start <= overlapTokens {
				break
			}

			end := min(start+windowTokens, len(tokens))
			startOffset := tokens[start].start
			endOffset := tokens[end-1].end

			chunks = append(chunks, &model.Chunk{
				ID:          model.NewChunkID(doc.ID, startOffset),
				DocumentID:  doc.ID,
				Text:        doc.Content[startOffset:endOffset],
				StartOffset: startOffset,
				EndOffset:   endOffset,
				TokenCount:  end - start,
				ChunkIndex:  len(chunks),
			})

			if end == len(tokens) {
				break
			}
		}

		return chunks, nil
	}
}

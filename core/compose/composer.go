// Package compose builds the grounded generation request from the
// retrieved passages and maps the response into an answered query with
// resolvable citations.
package compose

import (
	"context"
	"fmt"
	"strings"

	"github.com/plainapi/plainapi/generation"
	"github.com/plainapi/plainapi/helper"
	"github.com/plainapi/plainapi/model"
)

const systemPrompt = `You are an assistant answering questions about NASA's public APIs.
Answer using only the numbered documentation sources provided in the prompt.
Cite sources inline as [1], [2], etc., matching the source numbering.
If the sources do not contain the answer, say so instead of guessing.`

// ungroundedAnswer is returned when retrieval produced no passage
// above the relevance floor. No generation call is made on this path,
// so no citation can ever be fabricated for it.
const ungroundedAnswer = `I couldn't find anything relevant in the NASA API documentation for that question, so I can't give a grounded answer. Try asking about a specific NASA API, endpoint or parameter.`

// Default generation settings, matching the conservative settings the
// documentation assistant ships with.
const (
	DefaultMaxTokens   = 1024
	DefaultTemperature = 0.1
)

// Composer turns a question plus retrieved passages into an answered
// query.
type Composer struct {
	generator   generation.Generator
	maxTokens   int
	temperature float64
}

// NewComposer creates a new answer composer.
func NewComposer(generator generation.Generator) *Composer {
	return &Composer{
		generator:   generator,
		maxTokens:   DefaultMaxTokens,
		temperature: DefaultTemperature,
	}
}

// Compose builds the grounded prompt, invokes the generation service
// once and maps its response into an AnsweredQuery. Passages are
// presented in retriever rank order and citation indices match that
// order 1:1, so "[2]" in the answer always resolves to Citations[1].
// With no passages the answer is a disclaimer with grounded = false
// and an empty citation list.
func (c *Composer) Compose(ctx context.Context, question string, passages []*model.RetrievedPassage) (*model.AnsweredQuery, error) {
	if len(passages) == 0 {
		return &model.AnsweredQuery{
			Question:  question,
			Answer:    ungroundedAnswer,
			Grounded:  false,
			Citations: []model.Citation{},
		}, nil
	}

	answer, err := c.generator.Generate(ctx, systemPrompt, buildPrompt(question, passages), generation.Options{
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	})
	if err != nil {
		return nil, helper.NewError("generate answer", err)
	}

	citations := make([]model.Citation, len(passages))
	for i, passage := range passages {
		citations[i] = model.Citation{
			Index:       i + 1,
			DocumentID:  passage.Chunk.DocumentID,
			StartOffset: passage.Chunk.StartOffset,
			EndOffset:   passage.Chunk.EndOffset,
		}
	}

	return &model.AnsweredQuery{
		Question:  question,
		Answer:    strings.TrimSpace(answer),
		Grounded:  true,
		Passages:  passages,
		Citations: citations,
	}, nil
}

// buildPrompt renders the passages as numbered sources followed by the
// question.
func buildPrompt(question string, passages []*model.RetrievedPassage) string {
	var b strings.Builder
	for i, passage := range passages {
		fmt.Fprintf(&b, "Source [%d] (%s):\n%s\n\n", i+1, passage.Chunk.DocumentID, passage.Chunk.Text)
	}
	fmt.Fprintf(&b, "Question: %s\n", question)
	b.WriteString("Answer the question using only the sources above, citing them as [n].")
	return b.String()
}

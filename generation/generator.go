// Package generation defines the text generation contract used by the
// answer composer.
package generation

import "context"

// Options controls a single generation request.
type Options struct {
	MaxTokens   int
	Temperature float64
}

// Generator produces free-text completions for a prompt.
type Generator interface {
	// Generate returns the completion for the prompt. An empty prompt
	// or an unreachable service returns an error; a valid-but-empty
	// completion is returned as an empty string without error.
	Generate(ctx context.Context, system string, prompt string, opts Options) (string, error)
}

package model

// QueryConfig represents configuration for a retrieval query
type QueryConfig struct {
	// TopK is the number of nearest passages requested from the store.
	TopK int `json:"top_k"`
	// MinScore is the relevance floor: passages scoring below it are
	// dropped after the similarity search. Top-k alone can surface
	// irrelevant passages when the corpus has no good match.
	MinScore float64 `json:"min_score"`
}

// DefaultQueryConfig returns a sensible default configuration
func DefaultQueryConfig() QueryConfig {
	return QueryConfig{
		TopK:     5,
		MinScore: 0.30,
	}
}

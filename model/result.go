package model

// RetrievedPassage is a chunk returned by a similarity query, with its
// score and rank. Produced per-query, never persisted.
type RetrievedPassage struct {
	Chunk *Chunk  `json:"chunk"`
	Score float64 `json:"score"` // cosine similarity
	Rank  int     `json:"rank"`  // 0-based position in the retriever ordering
}

// Citation points a numbered source reference in an answer back to the
// exact span of the source document it was grounded on.
type Citation struct {
	Index       int    `json:"index"` // 1-based, matches [n] markers in the answer
	DocumentID  string `json:"document_id"`
	StartOffset int    `json:"start_offset"`
	EndOffset   int    `json:"end_offset"`
}

// AnsweredQuery is the result of answering one question: the generated
// answer plus the passages that grounded it. Grounded is false when no
// passage cleared the relevance floor, in which case Citations is
// empty and the answer is a disclaimer.
type AnsweredQuery struct {
	Question  string              `json:"question"`
	Answer    string              `json:"answer"`
	Grounded  bool                `json:"grounded"`
	Passages  []*RetrievedPassage `json:"passages,omitempty"`
	Citations []Citation          `json:"citations"`
}

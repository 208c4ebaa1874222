package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pgvector/pgvector-go"
	"github.com/plainapi/plainapi/helper"
	"github.com/plainapi/plainapi/model"
	loadSql "github.com/plainapi/plainapi/sql"
	"github.com/plainapi/plainapi/store"
)

// SQLSTATE codes raised by init_passages on configuration mismatch.
const (
	sqlstateDimensionMismatch = "PA001"
	sqlstateMetricMismatch    = "PA002"
)

// PassagesDBHandlerFunctions defines the interface for passage store
// database operations.
type PassagesDBHandlerFunctions interface {
	Build(ctx context.Context, chunks []*model.Chunk) error
	Search(ctx context.Context, queryVector []float32, k int) ([]*model.RetrievedPassage, error)
	Size(ctx context.Context) (int, error)
	Dimension() int
}

// PassagesDBHandler is the PostgreSQL/pgvector implementation of the
// vector store. Rebuilds go through a staging table swapped in with a
// single transaction, so concurrent searches see either the old or
// the new corpus in full.
type PassagesDBHandler struct {
	db           *helper.Database
	embeddingDim int
}

var _ store.VectorStore = (*PassagesDBHandler)(nil)

// NewPassagesDBHandler creates a new passages database handler.
// It loads the passage SQL functions and initializes the store tables,
// verifying that a pre-existing store was built with the same
// embedding dimension and metric. If force is true, the SQL functions
// are reloaded even if they already exist.
func NewPassagesDBHandler(db *helper.Database, embeddingDim int, force bool) (*PassagesDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}
	if embeddingDim <= 0 {
		return nil, helper.NewError("embedding dimension validation", fmt.Errorf("%w: dimension must be positive, got %d", model.ErrInvalidInput, embeddingDim))
	}

	handler := &PassagesDBHandler{
		db:           db,
		embeddingDim: embeddingDim,
	}

	err := loadSql.LoadPassagesSql(db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load passages sql", err)
	}

	err = handler.initTables()
	if err != nil {
		return nil, err
	}

	db.Logger.Info("Initialized PassagesDBHandler", slog.Int("embedding_dim", embeddingDim))

	return handler, nil
}

// initTables creates the store tables and validates the persisted
// dimension and metric against the configured ones.
func (h *PassagesDBHandler) initTables() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_passages($1, $2);`, h.embeddingDim, store.MetricCosine)
	if err != nil {
		switch sqlState(err) {
		case sqlstateDimensionMismatch:
			return helper.NewError("open passage store", fmt.Errorf("%w: %v", model.ErrDimensionMismatch, err))
		case sqlstateMetricMismatch:
			return helper.NewError("open passage store", fmt.Errorf("%w: %v", model.ErrStoreCorrupt, err))
		}
		return helper.NewError("initialize passages tables", err)
	}

	h.db.Logger.Info("Checked/created passage store tables")

	return nil
}

// Build replaces the stored corpus wholesale. Staging, inserts and the
// swap all run inside one transaction; any failure rolls back and
// leaves the previous corpus serving.
func (h *PassagesDBHandler) Build(ctx context.Context, chunks []*model.Chunk) error {
	for _, chunk := range chunks {
		if len(chunk.Embedding) != h.embeddingDim {
			return helper.NewError("build passage store", fmt.Errorf("%w: chunk %s has %d-dimensional embedding, store expects %d", model.ErrDimensionMismatch, chunk.ID, len(chunk.Embedding), h.embeddingDim))
		}
	}

	tx, err := h.db.Instance.BeginTx(ctx, nil)
	if err != nil {
		return helper.NewError("begin rebuild transaction", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `SELECT begin_passages_rebuild($1);`, h.embeddingDim); err != nil {
		return helper.NewError("begin rebuild", err)
	}

	stmt, err := tx.PrepareContext(ctx, `SELECT insert_passage_staging($1, $2, $3, $4, $5, $6, $7, $8, $9);`)
	if err != nil {
		return helper.NewError("prepare staging insert", err)
	}
	defer stmt.Close()

	for _, chunk := range chunks {
		metadata := chunk.Metadata
		if metadata == nil {
			metadata = model.Metadata{}
		}
		_, err := stmt.ExecContext(ctx,
			chunk.ID,
			chunk.DocumentID,
			chunk.Text,
			chunk.StartOffset,
			chunk.EndOffset,
			chunk.TokenCount,
			chunk.ChunkIndex,
			pgvector.NewVector(chunk.Embedding),
			metadata,
		)
		if err != nil {
			return helper.NewError(fmt.Sprintf("insert staging passage %s", chunk.ID), err)
		}
	}

	if _, err := tx.ExecContext(ctx, `SELECT commit_passages_rebuild($1, $2);`, h.embeddingDim, store.MetricCosine); err != nil {
		return helper.NewError("commit rebuild", err)
	}

	if err := tx.Commit(); err != nil {
		return helper.NewError("commit rebuild transaction", err)
	}

	h.db.Logger.Info("Rebuilt passage store", slog.Int("num_passages", len(chunks)))

	return nil
}

// Search returns the k most similar passages ordered descending by
// cosine similarity, ties broken by ascending passage id.
func (h *PassagesDBHandler) Search(ctx context.Context, queryVector []float32, k int) ([]*model.RetrievedPassage, error) {
	if k < 1 {
		return nil, helper.NewError("search passages", fmt.Errorf("%w: k must be >= 1, got %d", model.ErrInvalidInput, k))
	}
	if len(queryVector) != h.embeddingDim {
		return nil, helper.NewError("search passages", fmt.Errorf("%w: query vector has dimension %d, store expects %d", model.ErrDimensionMismatch, len(queryVector), h.embeddingDim))
	}

	rows, err := h.db.Instance.QueryContext(ctx,
		`SELECT * FROM select_passages_by_similarity($1, $2);`,
		pgvector.NewVector(queryVector),
		k,
	)
	if err != nil {
		return nil, helper.NewError("query passages by similarity", err)
	}
	defer rows.Close()

	var passages []*model.RetrievedPassage
	rank := 0
	for rows.Next() {
		chunk := &model.Chunk{}
		var similarity float64
		err := rows.Scan(
			&chunk.ID,
			&chunk.DocumentID,
			&chunk.Text,
			&chunk.StartOffset,
			&chunk.EndOffset,
			&chunk.TokenCount,
			&chunk.ChunkIndex,
			&chunk.Metadata,
			&chunk.CreatedAt,
			&similarity,
		)
		if err != nil {
			return nil, helper.NewError("scan passage row", err)
		}
		passages = append(passages, &model.RetrievedPassage{
			Chunk: chunk,
			Score: similarity,
			Rank:  rank,
		})
		rank++
	}
	if err := rows.Err(); err != nil {
		return nil, helper.NewError("iterate passage rows", err)
	}

	if passages == nil {
		passages = []*model.RetrievedPassage{}
	}
	return passages, nil
}

// Size returns the number of stored passages.
func (h *PassagesDBHandler) Size(ctx context.Context) (int, error) {
	var count int64
	err := h.db.Instance.QueryRowContext(ctx, `SELECT count_passages();`).Scan(&count)
	if err != nil {
		return 0, helper.NewError("count passages", err)
	}
	return int(count), nil
}

// Dimension returns the fixed embedding dimension.
func (h *PassagesDBHandler) Dimension() int {
	return h.embeddingDim
}

// StoreMeta returns the persisted dimension and metric of the store.
func (h *PassagesDBHandler) StoreMeta(ctx context.Context) (int, string, error) {
	var dimension int
	var metric string
	var builtAt sql.NullTime
	err := h.db.Instance.QueryRowContext(ctx, `SELECT * FROM select_store_meta();`).Scan(&dimension, &metric, &builtAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, "", helper.NewError("read store meta", fmt.Errorf("%w: store meta missing", model.ErrStoreCorrupt))
		}
		return 0, "", helper.NewError("read store meta", err)
	}
	return dimension, metric, nil
}

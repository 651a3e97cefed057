package database

import (
	"context"
	"fmt"
	"time"

	"github.com/siherrmann/halluguard/helper"
)

// ChangeIndexType switches the chunk embedding index between HNSW and IVFFlat.
// Supported params:
//   - hnsw: "m" (default 16), "ef_construction" (default 64)
//   - ivfflat: "lists" (default 100)
func (h *FilesDBHandler) ChangeIndexType(ctx context.Context, indexType string, params map[string]interface{}) error {
	var createIndexSQL string
	switch indexType {
	case "hnsw":
		m := intParam(params, "m", 16)
		efConstruction := intParam(params, "ef_construction", 64)
		createIndexSQL = fmt.Sprintf(
			`CREATE INDEX idx_file_chunks_embedding ON file_chunks USING hnsw (embedding vector_cosine_ops) WITH (m = %d, ef_construction = %d);`,
			m, efConstruction,
		)
	case "ivfflat":
		lists := intParam(params, "lists", 100)
		createIndexSQL = fmt.Sprintf(
			`CREATE INDEX idx_file_chunks_embedding ON file_chunks USING ivfflat (embedding vector_cosine_ops) WITH (lists = %d);`,
			lists,
		)
	default:
		return helper.NewError("change index type", fmt.Errorf("unsupported index type: %s (use 'hnsw' or 'ivfflat')", indexType))
	}

	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `DROP INDEX IF EXISTS idx_file_chunks_embedding;`)
	if err != nil {
		return helper.NewError("drop index", err)
	}

	h.db.Logger.Info("Dropped existing vector index")

	_, err = h.db.Instance.ExecContext(ctx, createIndexSQL)
	if err != nil {
		return helper.NewError("create index", err)
	}

	h.db.Logger.Info(fmt.Sprintf("Created %s index with params: %v", indexType, params))

	return nil
}

func intParam(params map[string]interface{}, key string, fallback int) int {
	if v, ok := params[key].(int); ok && v > 0 {
		return v
	}
	return fallback
}

package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"github.com/siherrmann/halluguard/helper"
	"github.com/siherrmann/halluguard/model"
	loadSql "github.com/siherrmann/halluguard/sql"
)

// FilesDBHandlerFunctions defines the interface for file database operations.
type FilesDBHandlerFunctions interface {
	InsertFile(file *model.ProcessedFile) error
	InsertFileChunk(chunk *model.Chunk) error
	SelectFile(rid uuid.UUID) (*model.ProcessedFile, error)
	SelectFileByFileID(fileID string) (*model.ProcessedFile, error)
	SelectFileChunks(fileRID uuid.UUID) ([]*model.Chunk, error)
	SelectFileChunksBySimilarity(embedding []float32, limit int) ([]*model.Chunk, error)
	DeleteFile(rid uuid.UUID) error
	StoreResult(ctx context.Context, result *model.FileProcessingResult, fileName string, filePath string) (*model.ProcessedFile, error)
}

// FilesDBHandler handles processed files and their chunks
type FilesDBHandler struct {
	db *helper.Database
}

// queryRower is implemented by *sql.DB and *sql.Tx
type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// NewFilesDBHandler creates a new files database handler.
// It loads the file related SQL functions and creates the tables.
// If force is true, it will reload the SQL functions even if they already exist.
func NewFilesDBHandler(db *helper.Database, embeddingDim int, force bool) (*FilesDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}

	filesDbHandler := &FilesDBHandler{
		db: db,
	}

	err := loadSql.LoadFilesSql(filesDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load files sql", err)
	}

	err = filesDbHandler.CreateTable(embeddingDim)
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized FilesDBHandler")

	return filesDbHandler, nil
}

// CreateTable creates the 'files' and 'file_chunks' tables if they do not exist
func (h *FilesDBHandler) CreateTable(embeddingDim int) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_files($1);`, embeddingDim)
	if err != nil {
		return helper.NewError("init files", err)
	}

	h.db.Logger.Info("Checked/created tables files and file_chunks")

	return nil
}

// InsertFile inserts a new file record
func (h *FilesDBHandler) InsertFile(file *model.ProcessedFile) error {
	return insertFile(context.Background(), h.db.Instance, file)
}

// InsertFileChunk inserts a chunk of the file chunk.FileID
func (h *FilesDBHandler) InsertFileChunk(chunk *model.Chunk) error {
	return insertFileChunk(context.Background(), h.db.Instance, chunk)
}

func insertFile(ctx context.Context, q queryRower, file *model.ProcessedFile) error {
	row := q.QueryRowContext(ctx,
		`SELECT * FROM insert_file($1, $2, $3, $4, $5)`,
		file.FileID,
		file.FileName,
		file.FilePath,
		pq.Array(file.Entities),
		file.Metadata,
	)

	err := scanFile(row, file)
	if err != nil {
		return helper.NewError("scan", err)
	}

	return nil
}

func insertFileChunk(ctx context.Context, q queryRower, chunk *model.Chunk) error {
	var embedding interface{}
	if chunk.Embedding != nil {
		embedding = pgvector.NewVector(chunk.Embedding)
	}

	row := q.QueryRowContext(ctx,
		`SELECT * FROM insert_file_chunk($1, $2, $3, $4, $5)`,
		chunk.FileID,
		chunk.ID,
		chunk.Text,
		pq.Array(chunk.Entities),
		embedding,
	)

	err := scanChunk(row, chunk)
	if err != nil {
		return helper.NewError("scan", err)
	}

	return nil
}

// SelectFile retrieves a file by its RID
func (h *FilesDBHandler) SelectFile(rid uuid.UUID) (*model.ProcessedFile, error) {
	row := h.db.Instance.QueryRow(
		`SELECT * FROM select_file($1)`,
		rid,
	)

	file := &model.ProcessedFile{}
	err := scanFile(row, file)
	if err != nil {
		return nil, helper.NewError("scan", err)
	}

	return file, nil
}

// SelectFileByFileID retrieves the latest file stored under the caller supplied file id
func (h *FilesDBHandler) SelectFileByFileID(fileID string) (*model.ProcessedFile, error) {
	row := h.db.Instance.QueryRow(
		`SELECT * FROM select_file_by_file_id($1)`,
		fileID,
	)

	file := &model.ProcessedFile{}
	err := scanFile(row, file)
	if err != nil {
		return nil, helper.NewError("scan", err)
	}

	return file, nil
}

// SelectFileChunks retrieves all chunks of a file ordered by chunk id
func (h *FilesDBHandler) SelectFileChunks(fileRID uuid.UUID) ([]*model.Chunk, error) {
	rows, err := h.db.Instance.Query(
		`SELECT * FROM select_file_chunks($1)`,
		fileRID,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	return scanChunks(rows)
}

// SelectFileChunksBySimilarity returns the chunks closest to embedding by cosine distance
func (h *FilesDBHandler) SelectFileChunksBySimilarity(embedding []float32, limit int) ([]*model.Chunk, error) {
	rows, err := h.db.Instance.Query(
		`SELECT * FROM select_file_chunks_by_similarity($1, $2)`,
		pgvector.NewVector(embedding),
		limit,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	return scanChunks(rows)
}

// DeleteFile deletes a file and its chunks
func (h *FilesDBHandler) DeleteFile(rid uuid.UUID) error {
	_, err := h.db.Instance.Exec(
		`SELECT delete_file($1)`,
		rid,
	)
	if err != nil {
		return helper.NewError("exec", err)
	}
	return nil
}

// StoreResult inserts a processing result with all its chunks in one transaction
func (h *FilesDBHandler) StoreResult(ctx context.Context, result *model.FileProcessingResult, fileName string, filePath string) (*model.ProcessedFile, error) {
	tx, err := h.db.Instance.BeginTx(ctx, nil)
	if err != nil {
		return nil, helper.NewError("begin transaction", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	file := model.NewProcessedFile(result, fileName, filePath)
	err = insertFile(ctx, tx, file)
	if err != nil {
		return nil, err
	}

	file.Chunks = make([]model.Chunk, 0, len(result.Chunks))
	for _, c := range result.Chunks {
		chunk := c.WithEntities(c.Entities)
		chunk.FileID = file.ID
		err = insertFileChunk(ctx, tx, &chunk)
		if err != nil {
			return nil, helper.NewError(fmt.Sprintf("insert chunk %d", c.ID), err)
		}
		file.Chunks = append(file.Chunks, chunk)
	}

	err = tx.Commit()
	if err != nil {
		return nil, helper.NewError("commit", err)
	}

	h.db.Logger.Debug("Stored file", "file_id", file.FileID, "rid", file.RID, "num_chunks", len(file.Chunks))

	return file, nil
}

func scanFile(row *sql.Row, file *model.ProcessedFile) error {
	return row.Scan(
		&file.ID,
		&file.RID,
		&file.FileID,
		&file.FileName,
		&file.FilePath,
		pq.Array(&file.Entities),
		&file.Metadata,
		&file.CreatedAt,
		&file.UpdatedAt,
	)
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanChunk(row scanner, chunk *model.Chunk) error {
	var embedding *pgvector.Vector
	err := row.Scan(
		&chunk.FileID,
		&chunk.FileRID,
		&chunk.ID,
		&chunk.Text,
		pq.Array(&chunk.Entities),
		&embedding,
		&chunk.CreatedAt,
	)
	if err != nil {
		return err
	}

	chunk.Embedding = nil
	if embedding != nil {
		chunk.Embedding = embedding.Slice()
	}
	if chunk.Entities == nil {
		chunk.Entities = []string{}
	}

	return nil
}

func scanChunks(rows *sql.Rows) ([]*model.Chunk, error) {
	chunks := []*model.Chunk{}
	for rows.Next() {
		chunk := &model.Chunk{}
		err := scanChunk(rows, chunk)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}
		chunks = append(chunks, chunk)
	}

	err := rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return chunks, nil
}

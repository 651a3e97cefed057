package server

import (
	"database/sql"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/siherrmann/halluguard/core/pipeline"
	"github.com/siherrmann/halluguard/core/service"
	"github.com/siherrmann/halluguard/helper"
	"github.com/siherrmann/halluguard/model"
)

type hallucinationCheckBody struct {
	Request     *string  `json:"request" validate:"required"`
	Response    *string  `json:"response" validate:"required"`
	EntityTypes []string `json:"entity_types"`
	// Legacy spelling
	EntitiesTypes []string `json:"entities_types"`
}

type fileProcessBody struct {
	File         string   `json:"file"`
	FileName     string   `json:"file_name" validate:"required"`
	FileID       string   `json:"file_id" validate:"required"`
	FilePath     string   `json:"file_path"`
	ChunkSize    int      `json:"chunk_size"`
	ChunkOverlap int      `json:"chunk_overlap"`
	EntityTypes  []string `json:"entity_types"`
}

type fileProcessResponse struct {
	FileID   string   `json:"file_id"`
	Entities []string `json:"entities"`
	// Field name kept for client compatibility
	Chanks []model.Chunk `json:"chanks"`
}

type textProcessBody struct {
	Text        *string  `json:"text" validate:"required"`
	EntityTypes []string `json:"entity_types"`
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// bindAndValidate answers malformed or incomplete bodies with 422
func bindAndValidate(c echo.Context, data any) error {
	if err := c.Bind(data); err != nil {
		detail := "Invalid request body"
		var httpErr *echo.HTTPError
		if errors.As(err, &httpErr) && httpErr.Internal != nil {
			detail += ": " + httpErr.Internal.Error()
		}
		return echo.NewHTTPError(http.StatusUnprocessableEntity, detail)
	}
	if err := c.Validate(data); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, validationDetail(err))
	}
	return nil
}

// validationMessage returns the message of a wrapped ValidationError
func validationMessage(err error) (string, bool) {
	var validationErr *helper.ValidationError
	if errors.As(err, &validationErr) {
		return validationErr.Message, true
	}
	return "", false
}

func (s *Server) checkHallucinations(c echo.Context) error {
	data := new(hallucinationCheckBody)
	if err := bindAndValidate(c, data); err != nil {
		return err
	}

	entityTypes := data.EntityTypes
	if entityTypes == nil {
		entityTypes = data.EntitiesTypes
	}
	if len(entityTypes) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "entity_types must be provided.")
	}

	result, err := s.services.Hallucination.Detect(c.Request().Context(), *data.Request, *data.Response, entityTypes)
	if err != nil {
		if message, ok := validationMessage(err); ok {
			return echo.NewHTTPError(http.StatusBadRequest, message)
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "Detection failed: "+err.Error())
	}

	return c.JSON(http.StatusOK, result)
}

func (s *Server) processFile(c echo.Context) error {
	data := &fileProcessBody{
		ChunkSize:    model.DefaultChunkSize,
		ChunkOverlap: model.DefaultChunkOverlap,
	}
	if err := bindAndValidate(c, data); err != nil {
		return err
	}

	if err := pipeline.ValidateChunkParams(data.ChunkSize, data.ChunkOverlap); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if strings.TrimSpace(data.File) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "file content cannot be empty")
	}

	result, err := s.services.File.Process(c.Request().Context(), model.FileProcessingRequest{
		File:         data.File,
		FileID:       data.FileID,
		FileName:     data.FileName,
		FilePath:     data.FilePath,
		ChunkSize:    data.ChunkSize,
		ChunkOverlap: data.ChunkOverlap,
		EntityTypes:  data.EntityTypes,
	})
	if err != nil {
		if message, ok := validationMessage(err); ok {
			return echo.NewHTTPError(http.StatusBadRequest, message)
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "Processing failed: "+err.Error())
	}

	return c.JSON(http.StatusOK, fileProcessResponse{
		FileID:   result.FileID,
		Entities: result.Entities,
		Chanks:   result.Chunks,
	})
}

func (s *Server) processText(c echo.Context) error {
	data := new(textProcessBody)
	if err := bindAndValidate(c, data); err != nil {
		return err
	}

	result, err := s.services.Text.Process(c.Request().Context(), *data.Text, data.EntityTypes)
	if err != nil {
		if message, ok := validationMessage(err); ok {
			return echo.NewHTTPError(http.StatusBadRequest, message)
		}
		if errors.Is(err, service.ErrEmbeddingFailed) {
			return echo.NewHTTPError(http.StatusInternalServerError, "Embedding generation failed: "+err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "Processing failed: "+err.Error())
	}

	return c.JSON(http.StatusOK, result)
}

func (s *Server) getFile(c echo.Context) error {
	fileID := c.Param("file_id")

	file, err := s.services.Files.SelectFileByFileID(fileID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return echo.NewHTTPError(http.StatusNotFound, "File "+fileID+" not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "Loading file failed: "+err.Error())
	}

	chunks, err := s.services.Files.SelectFileChunks(file.RID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Loading chunks failed: "+err.Error())
	}
	file.Chunks = make([]model.Chunk, 0, len(chunks))
	for _, chunk := range chunks {
		file.Chunks = append(file.Chunks, *chunk)
	}

	return c.JSON(http.StatusOK, file)
}

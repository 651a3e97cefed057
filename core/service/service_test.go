package service

import (
	"context"
	"errors"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"github.com/siherrmann/halluguard/core/pipeline"
	"github.com/siherrmann/halluguard/model"
)

// capitalizedWords is a fake extractor returning every capitalized word
var capitalizedWords = pipeline.ExtractorFunc(func(ctx context.Context, text string, entityTypes []string) ([]string, error) {
	mentions := []string{}
	for _, field := range strings.Fields(text) {
		word := strings.TrimFunc(field, unicode.IsPunct)
		if word != "" && unicode.IsUpper([]rune(word)[0]) {
			mentions = append(mentions, word)
		}
	}
	return mentions, nil
})

var errBackendDown = errors.New("backend down")

var failingExtractor = pipeline.ExtractorFunc(func(ctx context.Context, text string, entityTypes []string) ([]string, error) {
	return nil, errBackendDown
})

// lengthEmbedder embeds every text as its rune count
var lengthEmbedder = pipeline.EmbeddingGeneratorFunc(func(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		embeddings[i] = []float32{float32(len([]rune(text)))}
	}
	return embeddings, nil
})

// recordingExtractor records the entity types it was called with
type recordingExtractor struct {
	types [][]string
}

func (r *recordingExtractor) Extract(ctx context.Context, text string, entityTypes []string) ([]string, error) {
	r.types = append(r.types, entityTypes)
	return capitalizedWords(ctx, text, entityTypes)
}

// memoryStore keeps stored results in memory
type memoryStore struct {
	results []*model.FileProcessingResult
	err     error
}

func (m *memoryStore) StoreResult(ctx context.Context, result *model.FileProcessingResult, fileName string, filePath string) (*model.ProcessedFile, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.results = append(m.results, result)
	file := model.NewProcessedFile(result, fileName, filePath)
	file.RID = uuid.New()
	return file, nil
}

// allFailedComposite returns a composite whose only backend always fails
func allFailedComposite() pipeline.Extractor {
	composite, err := pipeline.NewCompositeExtractor(nil, failingExtractor)
	if err != nil {
		panic(err)
	}
	return composite
}

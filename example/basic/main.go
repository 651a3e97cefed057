package main

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/siherrmann/halluguard"
	"github.com/siherrmann/halluguard/helper"
	"github.com/siherrmann/halluguard/model"
)

const gazetteer = `
Person:
  - Ada Lovelace
  - Charles Babbage
Organization:
  - Royal Society
Location:
  - London
  - Paris
`

const prompt = `Summarize: Ada Lovelace worked with Charles Babbage in London
on the Analytical Engine. Her notes were published in 1843.`

const answer = `Ada Lovelace and Charles Babbage presented the Analytical Engine
to the Royal Society in Paris.`

func main() {
	// Write a small gazetteer so the example runs without downloading a model
	dir, err := os.MkdirTemp("", "halluguard-example")
	if err != nil {
		log.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(dir)

	gazetteerPath := filepath.Join(dir, "gazetteer.yaml")
	if err := os.WriteFile(gazetteerPath, []byte(gazetteer), 0o600); err != nil {
		log.Fatalf("Failed to write gazetteer: %v", err)
	}

	g, err := halluguard.NewGuard(halluguard.Config{
		Processing: model.DefaultProcessingConfig(),
		Extraction: &helper.ExtractionConfiguration{
			NEREnabled:       false,
			GazetteerPath:    gazetteerPath,
			SimilarityPolicy: helper.SimilarityPolicyNormalized,
		},
	})
	if err != nil {
		log.Fatalf("Failed to create guard: %v", err)
	}
	defer g.Close()

	ctx := context.Background()
	entityTypes := []string{"Person", "Organization", "Location"}

	fmt.Println("Checking answer for hallucinations...")
	diff, err := g.CheckHallucinations(ctx, prompt, answer, entityTypes)
	if err != nil {
		log.Fatalf("Failed to check hallucinations: %v", err)
	}
	fmt.Printf("Potential hallucinations: %v\n", diff.PotentialHallucinations)
	fmt.Printf("Missing entities: %v\n", diff.MissingEntities)

	// Process the prompt as a file split into small overlapping chunks
	result, err := g.ProcessFile(ctx, model.FileProcessingRequest{
		File:         base64.StdEncoding.EncodeToString([]byte(prompt)),
		FileID:       "prompt",
		FileName:     "prompt.txt",
		ChunkSize:    60,
		ChunkOverlap: 10,
		EntityTypes:  entityTypes,
	})
	if err != nil {
		log.Fatalf("Failed to process file: %v", err)
	}

	fmt.Printf("\nFile %s has %d chunks and entities %v\n", result.FileID, len(result.Chunks), result.Entities)
	for _, chunk := range result.Chunks {
		fmt.Printf("  [%d] %q -> %v\n", chunk.ID, chunk.Text, chunk.Entities)
	}
}

package main

import (
	"context"
	"flag"
	"log"
	"os"
	"path/filepath"
	"strings"

	"smarthire/internal/config"
	"smarthire/internal/services"
)

// Ingests job-description documents into the requirement collection so the
// evaluation pipeline can score resumes semantically.
//
//	go run ./cmd/ingest -role "Backend Engineer" ./job_descriptions/*.pdf
func main() {
	role := flag.String("role", "", "role the job descriptions describe")
	flag.Parse()

	paths := flag.Args()
	if *role == "" || len(paths) == 0 {
		log.Fatal("usage: ingest -role <role> <file.pdf|file.docx> ...")
	}

	log.Println("🚀 Starting requirement ingestion...")

	// Load configuration
	cfg := config.Load()
	if cfg.Qdrant.URL == "" {
		log.Fatal("❌ QDRANT_URL must be set for ingestion")
	}

	// Initialize services
	geminiService, err := services.NewGeminiService(
		cfg.Gemini.APIKey,
		cfg.Gemini.Model,
		cfg.Gemini.EmbedModel,
	)
	if err != nil {
		log.Fatalf("❌ Failed to initialize Gemini: %v", err)
	}

	vectorStore, err := services.NewQdrantStore(
		cfg.Qdrant.URL,
		cfg.Qdrant.APIKey,
		cfg.Qdrant.Collection,
	)
	if err != nil {
		log.Fatalf("❌ Failed to initialize Qdrant: %v", err)
	}

	if err := vectorStore.InitCollection(); err != nil {
		log.Fatalf("❌ Failed to initialize collection: %v", err)
	}

	chunker := services.NewTextChunker()

	ctx := context.Background()

	successCount := 0
	failCount := 0

	for _, path := range paths {
		log.Printf("\n📄 Processing: %s", path)

		if _, err := os.Stat(path); os.IsNotExist(err) {
			log.Printf("   ⚠️  File not found, skipping...")
			failCount++
			continue
		}

		text, err := readDocumentText(path)
		if err != nil {
			log.Printf("   ❌ Failed to extract text: %v", err)
			failCount++
			continue
		}
		log.Printf("   ✅ Extracted %d characters", len(text))

		chunks := chunker.ChunkText(text, 1000, 200)
		log.Printf("   ✂️  Created %d chunks", len(chunks))

		stored := 0
		for i, chunk := range chunks {
			embedding, err := geminiService.GenerateEmbedding(ctx, chunk)
			if err != nil {
				log.Printf("   ❌ Failed to embed chunk %d: %v", i+1, err)
				continue
			}

			if err := vectorStore.UpsertRequirement(ctx, *role, chunk, embedding); err != nil {
				log.Printf("   ❌ Failed to store chunk %d: %v", i+1, err)
				continue
			}
			stored++
		}
		log.Printf("   📊 Stored %d/%d chunks", stored, len(chunks))

		if stored == 0 {
			failCount++
			continue
		}
		successCount++
	}

	// Summary
	log.Println("\n" + strings.Repeat("=", 60))
	log.Printf("📊 Ingestion Summary:")
	log.Printf("   ✅ Successful: %d documents", successCount)
	log.Printf("   ❌ Failed: %d documents", failCount)
	log.Println(strings.Repeat("=", 60))

	if failCount > 0 {
		os.Exit(1)
	}

	log.Println("✅ All documents ingested successfully!")
}

// readDocumentText pulls the raw text out of a PDF or DOCX job description.
func readDocumentText(path string) (string, error) {
	mimeType := "application/pdf"
	if strings.ToLower(filepath.Ext(path)) == ".docx" {
		mimeType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	}
	return services.ExtractDocumentText(path, mimeType)
}

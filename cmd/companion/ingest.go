package main

import (
	"bufio"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/carebridge-ai/companion/config"
	"github.com/carebridge-ai/companion/internal/index"
	"github.com/carebridge-ai/companion/internal/index/embedded"
	"github.com/carebridge-ai/companion/internal/index/opensearch"
	"github.com/carebridge-ai/companion/internal/retrieval"
	"github.com/carebridge-ai/companion/models"
	"github.com/carebridge-ai/companion/provider"
)

func ingestCMD() *cobra.Command {
	var cfgPath string
	var filePath string
	var format string
	var dryRun bool
	var ingest = &cobra.Command{
		Use:   "ingest",
		Short: "Load knowledge documents from a CSV or JSONL file into the index",
		RunE: func(cmd *cobra.Command, args []string) error {
			if filePath == "" {
				return fmt.Errorf("--file is required")
			}
			cfg := config.LoadConfig(cfgPath)
			return runIngest(cmd.Context(), cfg, filePath, format, dryRun)
		},
	}
	ingest.Flags().StringVarP(&filePath, "file", "f", "", "path to a .csv or .jsonl document file")
	ingest.Flags().StringVar(&format, "format", "", "override format detection: csv or jsonl")
	ingest.Flags().BoolVar(&dryRun, "dry-run", false, "validate documents without indexing them")
	ingest.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")

	return ingest
}

func runIngest(ctx context.Context, cfg *config.Config, filePath, format string, dryRun bool) error {
	logger := log.New(os.Stderr, "[INGEST] ", log.LstdFlags)

	docs, skipped, err := loadDocuments(filePath, format, logger)
	if err != nil {
		return err
	}
	if dryRun {
		logger.Printf("dry run: %d valid documents, %d skipped", len(docs), skipped)
		return nil
	}

	embedder, err := provider.NewEmbedder(cfg.Providers)
	if err != nil {
		return err
	}
	var idx index.Index
	switch cfg.Index.Backend {
	case "opensearch":
		idx = opensearch.New(cfg.Index.OpenSearch, cfg.Index.Vectors && embedder != nil)
	default:
		idx, err = embedded.New()
		if err != nil {
			return err
		}
	}
	var retrEmbedder provider.Embedder
	if cfg.Index.Vectors {
		retrEmbedder = embedder
	}
	retriever := retrieval.New(idx, retrEmbedder)

	indexed := 0
	for _, doc := range docs {
		if retriever.Hybrid() {
			embedding, err := retriever.Embed(ctx, doc)
			if err != nil {
				logger.Printf("skipping %q: embedding failed: %v", doc.Title, err)
				skipped++
				continue
			}
			doc.Embedding = embedding
		}
		if _, err := idx.Index(ctx, doc); err != nil {
			logger.Printf("skipping %q: index failed: %v", doc.Title, err)
			skipped++
			continue
		}
		indexed++
	}
	logger.Printf("ingest complete: %d indexed, %d skipped", indexed, skipped)
	return nil
}

func loadDocuments(filePath, format string, logger *log.Logger) ([]models.KnowledgeDocument, int, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	if format == "" {
		format = strings.TrimPrefix(strings.ToLower(filepath.Ext(filePath)), ".")
	}
	switch format {
	case "csv":
		return readCSV(f, logger)
	case "jsonl", "ndjson":
		return readJSONL(f, logger)
	default:
		return nil, 0, fmt.Errorf("unsupported format %q (want csv or jsonl)", format)
	}
}

func readJSONL(r io.Reader, logger *log.Logger) ([]models.KnowledgeDocument, int, error) {
	var docs []models.KnowledgeDocument
	skipped := 0
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 1024*1024), 8*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var doc models.KnowledgeDocument
		if err := json.Unmarshal([]byte(text), &doc); err != nil {
			logger.Printf("line %d: invalid JSON: %v", line, err)
			skipped++
			continue
		}
		if reason := validateDocument(doc); reason != "" {
			logger.Printf("line %d: %s", line, reason)
			skipped++
			continue
		}
		docs = append(docs, doc)
	}
	return docs, skipped, scanner.Err()
}

func readCSV(r io.Reader, logger *log.Logger) ([]models.KnowledgeDocument, int, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err != nil {
		return nil, 0, fmt.Errorf("reading CSV header: %w", err)
	}
	col := map[string]int{}
	for i, name := range header {
		col[strings.TrimSpace(strings.ToLower(name))] = i
	}
	field := func(row []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var docs []models.KnowledgeDocument
	skipped := 0
	line := 1
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			logger.Printf("line %d: %v", line, err)
			skipped++
			continue
		}
		doc := models.KnowledgeDocument{
			Title:       field(row, "title"),
			Content:     field(row, "content"),
			ContentType: models.ContentType(field(row, "content_type")),
			Category:    models.QueryCategory(field(row, "category")),
			SourceURL:   field(row, "source_url"),
			Author:      field(row, "author"),
		}
		if tags := field(row, "tags"); tags != "" {
			doc.Tags = strings.Split(tags, ";")
		}
		if reason := validateDocument(doc); reason != "" {
			logger.Printf("line %d: %s", line, reason)
			skipped++
			continue
		}
		docs = append(docs, doc)
	}
	return docs, skipped, nil
}

func validateDocument(doc models.KnowledgeDocument) string {
	if doc.Title == "" || doc.Content == "" {
		return "missing title or content"
	}
	if !models.ValidContentType(string(doc.ContentType)) {
		return fmt.Sprintf("unknown content type %q", doc.ContentType)
	}
	if !models.ValidCategory(string(doc.Category)) {
		return fmt.Sprintf("unknown category %q", doc.Category)
	}
	return ""
}

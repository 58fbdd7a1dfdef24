// Command analyze runs pattern detection over a CSV export without touching
// the database. Useful for previewing what an upload would detect.
//
// Usage:
//
//	analyze -file transactions.csv [-rules rules.json]
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/spendlens/spendlens-backend/internal/api/dto"
	"github.com/spendlens/spendlens-backend/internal/application/service"
	"github.com/spendlens/spendlens-backend/internal/domain/merchant"
	"github.com/spendlens/spendlens-backend/internal/domain/pattern"
	"github.com/spendlens/spendlens-backend/internal/infrastructure/cache"
	"github.com/spendlens/spendlens-backend/internal/infrastructure/config"
	"github.com/spendlens/spendlens-backend/internal/infrastructure/logging"
	"github.com/spendlens/spendlens-backend/internal/ingest"
	"github.com/spendlens/spendlens-backend/internal/oracle"
)

// fileRules serves a static rule table loaded from a JSON file.
type fileRules struct {
	rules []merchant.Rule
}

func (f fileRules) ActiveRules(context.Context) ([]merchant.Rule, error) {
	return f.rules, nil
}

func loadRules(path string) ([]merchant.Rule, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var rules []merchant.Rule
	if err := json.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("failed to parse rules file: %w", err)
	}
	return rules, nil
}

func main() {
	filePath := flag.String("file", "", "CSV file with description,amount,date columns")
	rulesPath := flag.String("rules", "", "optional JSON file with normalization rules")
	flag.Parse()

	if *filePath == "" {
		fmt.Fprintln(os.Stderr, "usage: analyze -file transactions.csv [-rules rules.json]")
		os.Exit(2)
	}

	cfg := config.LoadOrEnv()
	logger := logging.NewLoggerWithSystem(cfg.Observability.Logging, "analyze")

	rules, err := loadRules(*rulesPath)
	if err != nil {
		logger.Error("failed to load rules", "path", *rulesPath, "error", err)
		os.Exit(1)
	}

	file, err := os.Open(*filePath)
	if err != nil {
		logger.Error("failed to open file", "path", *filePath, "error", err)
		os.Exit(1)
	}
	defer file.Close()

	parsed, err := ingest.Parse(file)
	if err != nil {
		logger.Error("failed to parse csv", "error", err)
		os.Exit(1)
	}
	for _, rowErr := range parsed.Errors {
		logger.Warn("skipped row", "error", rowErr.Error())
	}
	if len(parsed.Records) == 0 {
		logger.Error("no parseable rows in file")
		os.Exit(1)
	}

	chat := oracle.NewHTTPChatClient(cfg.OpenAI.APIKey)
	oracleClient := oracle.NewClient(chat, oracle.Config{
		Model:       cfg.OpenAI.Model,
		Temperature: cfg.OpenAI.Temperature,
	})

	resolver := merchant.NewResolver(fileRules{rules: rules}, oracleClient, cache.NewMemory(), logger)
	classifier := pattern.NewClassifier()
	if cfg.Analysis.ToleranceFraction > 0 {
		classifier.ToleranceFraction = cfg.Analysis.ToleranceFraction
	}
	analyzer := pattern.NewAnalyzer(oracleClient, classifier, logger)
	runner := service.NewAnalysisRunner(resolver, analyzer, logger)

	txns := make([]pattern.Transaction, 0, len(parsed.Records))
	for _, rec := range parsed.Records {
		txns = append(txns, pattern.Transaction{
			Description: rec.Description,
			Amount:      rec.Amount,
			Date:        rec.Date,
		})
	}

	detections, err := runner.Run(context.Background(), txns)
	if err != nil {
		logger.Error("analysis failed", "error", err)
		os.Exit(1)
	}

	out := make([]dto.DetectionResponse, 0, len(detections))
	for _, d := range detections {
		out = append(out, dto.ToDetectionResponse(d))
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(dto.AnalyzeResponse{DetectedPatterns: out}); err != nil {
		logger.Error("failed to encode output", "error", err)
		os.Exit(1)
	}
}

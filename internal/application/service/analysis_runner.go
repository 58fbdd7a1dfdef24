package service

import (
	"context"
	"log/slog"

	"github.com/spendlens/spendlens-backend/internal/domain/merchant"
	"github.com/spendlens/spendlens-backend/internal/domain/pattern"
)

// AnalysisRunner runs pattern detection without persistence. Groups are
// keyed by canonical merchant name rather than stored merchant id, so
// unknown merchants still get analyzed.
type AnalysisRunner struct {
	resolver *merchant.Resolver
	analyzer *pattern.Analyzer
	logger   *slog.Logger
}

func NewAnalysisRunner(resolver *merchant.Resolver, analyzer *pattern.Analyzer, logger *slog.Logger) *AnalysisRunner {
	if logger == nil {
		logger = slog.Default()
	}
	return &AnalysisRunner{resolver: resolver, analyzer: analyzer, logger: logger}
}

// Run resolves each description, groups by canonical merchant name and
// analyzes every group with at least two occurrences. Failed groups are
// skipped; Run errors only when every group failed.
func (a *AnalysisRunner) Run(ctx context.Context, txns []pattern.Transaction) ([]*pattern.Detection, error) {
	groups := make(map[string][]pattern.Transaction)
	for _, txn := range txns {
		resolved, err := a.resolver.Resolve(ctx, txn.Description)
		if err != nil {
			a.logger.Warn("skipping unresolvable transaction",
				"description", txn.Description,
				"error", err,
			)
			continue
		}
		groups[resolved.NormalizedName] = append(groups[resolved.NormalizedName], txn)
	}

	var detections []*pattern.Detection
	failedGroups := 0
	for name, group := range groups {
		if len(group) < 2 {
			continue
		}
		detection, err := a.analyzer.Analyze(ctx, name, group)
		if err != nil {
			failedGroups++
			a.logger.Error("analysis failed for merchant group",
				"merchant", name,
				"error", err,
			)
			continue
		}
		if detection != nil {
			detections = append(detections, detection)
		}
	}

	if failedGroups > 0 && len(detections) == 0 {
		return nil, ErrNoGroupsProcessed
	}
	return detections, nil
}

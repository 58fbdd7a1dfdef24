package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/spendlens/spendlens-backend/internal/domain/merchant"
	"github.com/spendlens/spendlens-backend/internal/domain/pattern"
	"github.com/spendlens/spendlens-backend/internal/events"
	"github.com/spendlens/spendlens-backend/internal/infrastructure/cache"
	"github.com/spendlens/spendlens-backend/internal/infrastructure/storage"
)

// PatternService runs batch pattern detection and serves pattern queries.
type PatternService struct {
	repo      storage.Repository
	cache     cache.Cache
	publisher events.Publisher
	grouper   *merchant.Grouper
	analyzer  *pattern.Analyzer
	logger    *slog.Logger
}

// NewPatternService wires the detection pipeline.
func NewPatternService(
	repo storage.Repository,
	c cache.Cache,
	publisher events.Publisher,
	grouper *merchant.Grouper,
	analyzer *pattern.Analyzer,
	logger *slog.Logger,
) *PatternService {
	if logger == nil {
		logger = slog.Default()
	}
	return &PatternService{
		repo:      repo,
		cache:     c,
		publisher: publisher,
		grouper:   grouper,
		analyzer:  analyzer,
		logger:    logger,
	}
}

// DetectPatterns groups the batch by merchant, analyzes each group and
// persists the detections.
//
// Failures are isolated per merchant group: a failed group is logged and
// skipped while the remaining groups still produce patterns. Only when not
// a single group could be processed does the call fail with
// ErrNoGroupsProcessed.
func (s *PatternService) DetectPatterns(ctx context.Context, txns []pattern.Transaction) ([]*storage.Pattern, error) {
	groups := s.grouper.Group(ctx, txns)
	if len(groups) == 0 {
		return nil, ErrNoGroupsProcessed
	}

	saved := make([]*storage.Pattern, 0, len(groups))
	attempted := 0
	for merchantID, group := range groups {
		if len(group) < 2 {
			// A single occurrence carries no recurrence evidence.
			continue
		}
		attempted++

		detection, err := s.analyzer.Analyze(ctx, merchantID, group)
		if err != nil {
			s.logger.Error("analysis failed for merchant group",
				"merchant_id", merchantID,
				"error", err,
			)
			continue
		}
		if detection == nil {
			continue
		}

		stored, err := s.savePattern(ctx, detection)
		if err != nil {
			s.logger.Error("failed to persist pattern",
				"merchant_id", merchantID,
				"error", err,
			)
			continue
		}
		saved = append(saved, stored)
	}

	if attempted > 0 && len(saved) == 0 {
		return nil, ErrNoGroupsProcessed
	}
	return saved, nil
}

// GetPatternsByMerchant returns a merchant's patterns, cache-aside.
func (s *PatternService) GetPatternsByMerchant(ctx context.Context, merchantID string) ([]*storage.Pattern, error) {
	key := cache.KeyPatternsByMerchant(merchantID)
	if raw, ok := s.cache.Get(ctx, key); ok {
		var patterns []*storage.Pattern
		if err := json.Unmarshal([]byte(raw), &patterns); err == nil {
			s.logger.Debug("cache hit for merchant patterns", "merchant_id", merchantID)
			return patterns, nil
		}
	}

	patterns, err := s.repo.ListPatternsByMerchant(ctx, merchantID)
	if err != nil {
		return nil, &PersistenceError{Op: "list patterns", Err: err}
	}

	s.cachePatterns(ctx, key, patterns)
	return patterns, nil
}

// GetAllPatterns returns every pattern, cache-aside.
func (s *PatternService) GetAllPatterns(ctx context.Context) ([]*storage.Pattern, error) {
	key := cache.KeyPatternsAll()
	if raw, ok := s.cache.Get(ctx, key); ok {
		var patterns []*storage.Pattern
		if err := json.Unmarshal([]byte(raw), &patterns); err == nil {
			s.logger.Debug("cache hit for all patterns")
			return patterns, nil
		}
	}

	patterns, err := s.repo.ListPatterns(ctx)
	if err != nil {
		return nil, &PersistenceError{Op: "list patterns", Err: err}
	}

	s.cachePatterns(ctx, key, patterns)
	return patterns, nil
}

// savePattern persists one detection, invalidates the merchant's cached
// pattern list after the committed write, and publishes pattern.detected.
func (s *PatternService) savePattern(ctx context.Context, d *pattern.Detection) (*storage.Pattern, error) {
	p := &storage.Pattern{
		ID:               uuid.NewString(),
		MerchantID:       d.MerchantID,
		Type:             string(d.Type),
		Amount:           d.Amount,
		Frequency:        string(d.Frequency),
		Confidence:       d.Confidence,
		NextExpectedDate: d.NextExpectedDate,
		Description:      d.Description,
		Metadata: &storage.PatternMetadata{
			AnalysisDate:     time.Now().UTC(),
			TransactionCount: d.TransactionCount,
			AverageInterval:  d.AverageInterval,
			FixedAmount:      d.FixedAmount,
		},
	}

	if err := s.repo.CreatePattern(ctx, p); err != nil {
		return nil, &PersistenceError{Op: "create pattern", Err: err}
	}

	// Invalidate only after the write committed so a reader can never see
	// a cold cache repopulated from pre-write state.
	if err := s.cache.Del(ctx, cache.KeyPatternsByMerchant(d.MerchantID), cache.KeyPatternsAll()); err != nil {
		s.logger.Debug("failed to invalidate pattern cache", "merchant_id", d.MerchantID, "error", err)
	}

	if s.publisher != nil {
		event := events.PatternEvent{
			PatternID:  p.ID,
			MerchantID: p.MerchantID,
			Type:       p.Type,
			Frequency:  p.Frequency,
			Confidence: p.Confidence,
			OccurredAt: time.Now().UTC(),
		}
		if err := s.publisher.Publish(ctx, events.ChannelPatternDetected, event); err != nil {
			s.logger.Warn("failed to publish pattern.detected", "pattern_id", p.ID, "error", err)
		}
	}

	return p, nil
}

func (s *PatternService) cachePatterns(ctx context.Context, key string, patterns []*storage.Pattern) {
	data, err := json.Marshal(patterns)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, string(data), cache.TTLLong); err != nil {
		s.logger.Debug("failed to cache patterns", "key", key, "error", err)
	}
}

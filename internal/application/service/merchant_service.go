package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/spendlens/spendlens-backend/internal/domain/merchant"
	"github.com/spendlens/spendlens-backend/internal/events"
	"github.com/spendlens/spendlens-backend/internal/infrastructure/cache"
	"github.com/spendlens/spendlens-backend/internal/infrastructure/storage"
)

// MerchantService owns merchant records and the normalization path. It also
// serves as the rule source and merchant lookup for the grouper.
type MerchantService struct {
	repo      storage.Repository
	cache     cache.Cache
	publisher events.Publisher
	resolver  *merchant.Resolver
	logger    *slog.Logger
}

// The grouper and resolver consume this service through narrow interfaces.
var (
	_ merchant.RuleSource = (*MerchantService)(nil)
	_ merchant.Finder     = (*MerchantService)(nil)
)

// NewMerchantService wires the merchant service. The resolver is created
// here so its rule source is this service's cached rule view.
func NewMerchantService(
	repo storage.Repository,
	c cache.Cache,
	publisher events.Publisher,
	oracle merchant.Classifier,
	logger *slog.Logger,
) *MerchantService {
	if logger == nil {
		logger = slog.Default()
	}
	s := &MerchantService{
		repo:      repo,
		cache:     c,
		publisher: publisher,
		logger:    logger,
	}
	s.resolver = merchant.NewResolver(s, oracle, c, logger)
	return s
}

// Resolver exposes the normalization path for other services.
func (s *MerchantService) Resolver() *merchant.Resolver {
	return s.resolver
}

// Normalize maps a raw description to its canonical classification
// (rules first, oracle fallback).
func (s *MerchantService) Normalize(ctx context.Context, description string) (*merchant.Classification, error) {
	return s.resolver.Resolve(ctx, description)
}

// Create inserts a new merchant and publishes merchant.created.
func (s *MerchantService) Create(ctx context.Context, m *storage.Merchant) (*storage.Merchant, error) {
	if m.NormalizedName == "" {
		return nil, &ValidationError{Field: "normalized_name", Value: "", Reason: "required"}
	}

	existing, err := s.repo.FindMerchantByNormalizedName(ctx, m.NormalizedName)
	if err != nil {
		return nil, &PersistenceError{Op: "find merchant", Err: err}
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: %s", ErrMerchantExists, m.NormalizedName)
	}

	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	m.IsActive = true
	if m.Flags == nil {
		m.Flags = []string{}
	}

	if err := s.repo.CreateMerchant(ctx, m); err != nil {
		return nil, &PersistenceError{Op: "create merchant", Err: err}
	}

	s.cacheMerchant(ctx, m)
	s.publish(ctx, events.ChannelMerchantCreated, events.MerchantEvent{
		MerchantID:     m.ID,
		NormalizedName: m.NormalizedName,
		Category:       m.Category,
		OccurredAt:     time.Now().UTC(),
	})

	return m, nil
}

// Get retrieves a merchant by id with cache-aside. Returns (nil, nil) when
// the merchant does not exist.
func (s *MerchantService) Get(ctx context.Context, id string) (*storage.Merchant, error) {
	key := cache.KeyMerchant(id)
	if raw, ok := s.cache.Get(ctx, key); ok {
		var m storage.Merchant
		if err := json.Unmarshal([]byte(raw), &m); err == nil {
			s.logger.Debug("cache hit for merchant", "merchant_id", id)
			return &m, nil
		}
	}

	m, err := s.repo.GetMerchant(ctx, id)
	if err != nil {
		return nil, &PersistenceError{Op: "get merchant", Err: err}
	}
	if m == nil {
		return nil, nil
	}

	s.cacheMerchant(ctx, m)
	return m, nil
}

// FindOrCreateByClassification returns the merchant for a classification,
// creating it from the raw description when no record exists yet.
func (s *MerchantService) FindOrCreateByClassification(ctx context.Context, originalName string, c *merchant.Classification) (*storage.Merchant, error) {
	existing, err := s.repo.FindMerchantByNormalizedName(ctx, c.NormalizedName)
	if err != nil {
		return nil, &PersistenceError{Op: "find merchant", Err: err}
	}
	if existing != nil {
		return existing, nil
	}

	m := &storage.Merchant{
		ID:             uuid.NewString(),
		OriginalName:   originalName,
		NormalizedName: c.NormalizedName,
		Category:       c.Category,
		SubCategory:    c.SubCategory,
		Confidence:     c.Confidence,
		IsActive:       true,
		Flags:          c.Flags,
	}
	if m.Flags == nil {
		m.Flags = []string{}
	}

	if err := s.repo.CreateMerchant(ctx, m); err != nil {
		return nil, &PersistenceError{Op: "create merchant", Err: err}
	}

	s.logger.Debug("new merchant created", "merchant_id", m.ID, "normalized_name", m.NormalizedName)
	s.publish(ctx, events.ChannelMerchantCreated, events.MerchantEvent{
		MerchantID:     m.ID,
		NormalizedName: m.NormalizedName,
		Category:       m.Category,
		OccurredAt:     time.Now().UTC(),
	})

	return m, nil
}

// Update persists merchant changes and invalidates dependent cache entries.
func (s *MerchantService) Update(ctx context.Context, m *storage.Merchant) error {
	if err := s.repo.UpdateMerchant(ctx, m); err != nil {
		return &PersistenceError{Op: "update merchant", Err: err}
	}

	s.cacheMerchant(ctx, m)
	s.invalidateNormalization(ctx, m.OriginalName)
	s.publish(ctx, events.ChannelMerchantUpdated, events.MerchantEvent{
		MerchantID:     m.ID,
		NormalizedName: m.NormalizedName,
		Category:       m.Category,
		OccurredAt:     time.Now().UTC(),
	})
	return nil
}

// Deactivate marks a merchant inactive and drops its cache entries.
func (s *MerchantService) Deactivate(ctx context.Context, id string) error {
	m, err := s.repo.GetMerchant(ctx, id)
	if err != nil {
		return &PersistenceError{Op: "get merchant", Err: err}
	}
	if m == nil {
		return fmt.Errorf("merchant not found: %s", id)
	}

	if err := s.repo.DeactivateMerchant(ctx, id); err != nil {
		return &PersistenceError{Op: "deactivate merchant", Err: err}
	}

	if err := s.cache.Del(ctx, cache.KeyMerchant(id)); err != nil {
		s.logger.Debug("failed to invalidate merchant cache", "merchant_id", id, "error", err)
	}
	s.invalidateNormalization(ctx, m.OriginalName)
	s.publish(ctx, events.ChannelMerchantDeactivated, events.MerchantEvent{
		MerchantID:     id,
		NormalizedName: m.NormalizedName,
		OccurredAt:     time.Now().UTC(),
	})

	s.logger.Info("merchant deactivated", "merchant_id", id)
	return nil
}

// CreateRule inserts an override rule and invalidates the cached rule table.
func (s *MerchantService) CreateRule(ctx context.Context, r *storage.MerchantRule) (*storage.MerchantRule, error) {
	if r.Pattern == "" {
		return nil, &ValidationError{Field: "pattern", Value: "", Reason: "required"}
	}
	if r.NormalizedName == "" {
		return nil, &ValidationError{Field: "normalized_name", Value: "", Reason: "required"}
	}

	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	r.IsActive = true

	if err := s.repo.CreateRule(ctx, r); err != nil {
		return nil, &PersistenceError{Op: "create rule", Err: err}
	}

	if err := s.cache.Del(ctx, cache.KeyRulesAll()); err != nil {
		s.logger.Debug("failed to invalidate rules cache", "error", err)
	}
	return r, nil
}

// ActiveRules returns the active rule table, priority descending, backed by
// a cached snapshot so hot batches do not hammer the store.
func (s *MerchantService) ActiveRules(ctx context.Context) ([]merchant.Rule, error) {
	key := cache.KeyRulesAll()
	if raw, ok := s.cache.Get(ctx, key); ok {
		var rules []merchant.Rule
		if err := json.Unmarshal([]byte(raw), &rules); err == nil {
			return rules, nil
		}
	}

	stored, err := s.repo.ListActiveRules(ctx)
	if err != nil {
		return nil, &PersistenceError{Op: "list rules", Err: err}
	}

	rules := make([]merchant.Rule, 0, len(stored))
	for _, r := range stored {
		rules = append(rules, merchant.Rule{
			ID:             r.ID,
			Pattern:        r.Pattern,
			NormalizedName: r.NormalizedName,
			Category:       r.Category,
			SubCategory:    r.SubCategory,
			Confidence:     r.Confidence,
			Priority:       r.Priority,
		})
	}

	if data, err := json.Marshal(rules); err == nil {
		if err := s.cache.Set(ctx, key, string(data), cache.TTLMedium); err != nil {
			s.logger.Debug("failed to cache rules", "error", err)
		}
	}
	return rules, nil
}

// ListRules returns the stored active rules for the API surface.
func (s *MerchantService) ListRules(ctx context.Context) ([]*storage.MerchantRule, error) {
	rules, err := s.repo.ListActiveRules(ctx)
	if err != nil {
		return nil, &PersistenceError{Op: "list rules", Err: err}
	}
	return rules, nil
}

// FindIDByNormalizedName implements merchant.Finder for the grouper.
func (s *MerchantService) FindIDByNormalizedName(ctx context.Context, name string) (string, bool, error) {
	m, err := s.repo.FindMerchantByNormalizedName(ctx, name)
	if err != nil {
		return "", false, err
	}
	if m == nil {
		return "", false, nil
	}
	return m.ID, true, nil
}

func (s *MerchantService) cacheMerchant(ctx context.Context, m *storage.Merchant) {
	data, err := json.Marshal(m)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, cache.KeyMerchant(m.ID), string(data), cache.TTLLong); err != nil {
		s.logger.Debug("failed to cache merchant", "merchant_id", m.ID, "error", err)
	}
}

func (s *MerchantService) invalidateNormalization(ctx context.Context, originalName string) {
	if err := s.cache.Del(ctx, cache.KeyMerchantNormalization(originalName)); err != nil {
		s.logger.Debug("failed to invalidate normalization cache", "error", err)
	}
}

func (s *MerchantService) publish(ctx context.Context, channel string, payload any) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, channel, payload); err != nil {
		s.logger.Warn("failed to publish event", "channel", channel, "error", err)
	}
}

package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/spendlens/spendlens-backend/internal/events"
	"github.com/spendlens/spendlens-backend/internal/infrastructure/cache"
	"github.com/spendlens/spendlens-backend/internal/infrastructure/storage"
)

// TransactionInput is an unvalidated transaction submission.
type TransactionInput struct {
	Description string
	Amount      float64
	Date        time.Time
}

// TransactionService persists transactions, resolving each description to a
// canonical merchant on the way in.
type TransactionService struct {
	repo      storage.Repository
	cache     cache.Cache
	publisher events.Publisher
	merchants *MerchantService
	logger    *slog.Logger
}

func NewTransactionService(
	repo storage.Repository,
	c cache.Cache,
	publisher events.Publisher,
	merchants *MerchantService,
	logger *slog.Logger,
) *TransactionService {
	if logger == nil {
		logger = slog.Default()
	}
	return &TransactionService{
		repo:      repo,
		cache:     c,
		publisher: publisher,
		merchants: merchants,
		logger:    logger,
	}
}

// Create validates the input, resolves its merchant (creating the merchant
// on first sight) and persists the transaction already analyzed.
func (s *TransactionService) Create(ctx context.Context, in TransactionInput) (*storage.Transaction, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}

	classification, err := s.merchants.Normalize(ctx, in.Description)
	if err != nil {
		return nil, err
	}

	m, err := s.merchants.FindOrCreateByClassification(ctx, in.Description, classification)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	t := &storage.Transaction{
		ID:          uuid.NewString(),
		MerchantID:  m.ID,
		Description: in.Description,
		Amount:      in.Amount,
		Date:        in.Date,
		Category:    classification.Category,
		SubCategory: classification.SubCategory,
		Confidence:  classification.Confidence,
		Flags:       classification.Flags,
		IsAnalyzed:  true,
		AnalyzedAt:  &now,
	}
	for _, flag := range classification.Flags {
		if flag == "subscription" {
			t.IsSubscription = true
		}
	}

	if err := s.repo.CreateTransaction(ctx, t); err != nil {
		return nil, &PersistenceError{Op: "create transaction", Err: err}
	}

	if s.publisher != nil {
		event := events.TransactionEvent{TransactionID: t.ID, OccurredAt: now}
		if err := s.publisher.Publish(ctx, events.ChannelTransactionCreated, event); err != nil {
			s.logger.Warn("failed to publish transaction.created", "transaction_id", t.ID, "error", err)
		}
	}

	return t, nil
}

// CreateBatch persists a batch row by row. Invalid rows are skipped with a
// warning; the call reports how many rows were stored and how many skipped.
func (s *TransactionService) CreateBatch(ctx context.Context, inputs []TransactionInput) (created []*storage.Transaction, skipped int, err error) {
	for i, in := range inputs {
		t, err := s.Create(ctx, in)
		if err != nil {
			var verr *ValidationError
			if errors.As(err, &verr) {
				skipped++
				s.logger.Warn("skipping invalid transaction",
					"row", i,
					"field", verr.Field,
					"reason", verr.Reason,
				)
				continue
			}
			return created, skipped, err
		}
		created = append(created, t)
	}
	return created, skipped, nil
}

// Get returns a transaction by id, cache-aside. Absent rows return (nil, nil).
func (s *TransactionService) Get(ctx context.Context, id string) (*storage.Transaction, error) {
	key := cache.KeyTransaction(id)
	if raw, ok := s.cache.Get(ctx, key); ok {
		var t storage.Transaction
		if err := json.Unmarshal([]byte(raw), &t); err == nil {
			s.logger.Debug("cache hit for transaction", "transaction_id", id)
			return &t, nil
		}
	}

	t, err := s.repo.GetTransaction(ctx, id)
	if err != nil {
		return nil, &PersistenceError{Op: "get transaction", Err: err}
	}
	if t == nil {
		return nil, nil
	}

	if data, err := json.Marshal(t); err == nil {
		if err := s.cache.Set(ctx, key, string(data), cache.TTLMedium); err != nil {
			s.logger.Debug("failed to cache transaction", "transaction_id", id, "error", err)
		}
	}
	return t, nil
}

// List returns transactions matching the filters.
func (s *TransactionService) List(ctx context.Context, filters storage.TransactionFilters) (*storage.TransactionList, error) {
	list, err := s.repo.ListTransactions(ctx, filters)
	if err != nil {
		return nil, &PersistenceError{Op: "list transactions", Err: err}
	}
	return list, nil
}

func validateInput(in TransactionInput) error {
	if strings.TrimSpace(in.Description) == "" {
		return &ValidationError{Field: "description", Value: in.Description, Reason: "must not be empty"}
	}
	if in.Date.IsZero() {
		return &ValidationError{Field: "date", Value: in.Date.String(), Reason: "must be a valid date"}
	}
	if in.Amount == 0 {
		return &ValidationError{Field: "amount", Value: fmt.Sprintf("%g", in.Amount), Reason: "must be non-zero"}
	}
	return nil
}

package merchant

import (
	"context"
	"log/slog"

	"github.com/spendlens/spendlens-backend/internal/domain/pattern"
)

// Finder locates a persisted merchant by its canonical name.
type Finder interface {
	// FindIDByNormalizedName returns the merchant id for a canonical name,
	// or ok=false when no merchant record exists.
	FindIDByNormalizedName(ctx context.Context, name string) (id string, ok bool, err error)
}

// Grouper partitions a transaction batch into per-merchant groups.
type Grouper struct {
	resolver *Resolver
	finder   Finder
	logger   *slog.Logger
}

// NewGrouper creates a grouper over the given resolver and merchant lookup.
func NewGrouper(resolver *Resolver, finder Finder, logger *slog.Logger) *Grouper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Grouper{
		resolver: resolver,
		finder:   finder,
		logger:   logger,
	}
}

// Group resolves each transaction to a merchant id and collects the
// transactions per merchant, preserving input order within a group.
//
// A transaction whose resolution fails, or whose canonical name has no
// persisted merchant record, is dropped with a warning; one bad row never
// aborts the batch.
func (g *Grouper) Group(ctx context.Context, txns []pattern.Transaction) map[string][]pattern.Transaction {
	groups := make(map[string][]pattern.Transaction)

	for _, txn := range txns {
		resolved, err := g.resolver.Resolve(ctx, txn.Description)
		if err != nil {
			g.logger.Warn("dropping transaction: merchant resolution failed",
				"description", txn.Description,
				"error", err,
			)
			continue
		}

		id, ok, err := g.finder.FindIDByNormalizedName(ctx, resolved.NormalizedName)
		if err != nil {
			g.logger.Warn("dropping transaction: merchant lookup failed",
				"normalized_name", resolved.NormalizedName,
				"error", err,
			)
			continue
		}
		if !ok {
			g.logger.Warn("dropping transaction: no merchant record",
				"normalized_name", resolved.NormalizedName,
			)
			continue
		}

		groups[id] = append(groups[id], txn)
	}

	return groups
}

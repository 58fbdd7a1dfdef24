package merchant_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/spendlens/spendlens-backend/internal/domain/merchant"
	"github.com/spendlens/spendlens-backend/internal/domain/pattern"
)

// mapFinder resolves canonical names to ids from a fixed map.
type mapFinder struct {
	ids map[string]string
	err error
}

func (m mapFinder) FindIDByNormalizedName(_ context.Context, name string) (string, bool, error) {
	if m.err != nil {
		return "", false, m.err
	}
	id, ok := m.ids[name]
	return id, ok, nil
}

func batchTxn(description string, daysAgo int) pattern.Transaction {
	return pattern.Transaction{
		Description: description,
		Amount:      -9.99,
		Date:        time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -daysAgo),
	}
}

func TestGrouper_Group(t *testing.T) {
	ctx := context.Background()

	rules := staticRules{rules: []merchant.Rule{
		{ID: "r1", Pattern: "^NETFLIX", NormalizedName: "Netflix", Priority: 10},
		{ID: "r2", Pattern: "^SPOTIFY", NormalizedName: "Spotify", Priority: 10},
	}}

	t.Run("groups transactions by merchant id", func(t *testing.T) {
		resolver := merchant.NewResolver(rules, &countingClassifier{}, nil, nil)
		finder := mapFinder{ids: map[string]string{"Netflix": "m-1", "Spotify": "m-2"}}
		g := merchant.NewGrouper(resolver, finder, nil)

		groups := g.Group(ctx, []pattern.Transaction{
			batchTxn("NETFLIX.COM", 60),
			batchTxn("SPOTIFY P1234", 45),
			batchTxn("NETFLIX.COM", 30),
		})

		assert.Len(t, groups, 2)
		assert.Len(t, groups["m-1"], 2)
		assert.Len(t, groups["m-2"], 1)
	})

	t.Run("unresolvable transactions are dropped, not fatal", func(t *testing.T) {
		resolver := merchant.NewResolver(rules, &countingClassifier{err: errors.New("oracle down")}, nil, nil)
		finder := mapFinder{ids: map[string]string{"Netflix": "m-1"}}
		g := merchant.NewGrouper(resolver, finder, nil)

		groups := g.Group(ctx, []pattern.Transaction{
			batchTxn("NETFLIX.COM", 30),
			batchTxn("MYSTERY VENDOR", 20),
		})

		assert.Len(t, groups, 1)
		assert.Len(t, groups["m-1"], 1)
	})

	t.Run("names without a merchant record are dropped", func(t *testing.T) {
		resolver := merchant.NewResolver(rules, &countingClassifier{}, nil, nil)
		finder := mapFinder{ids: map[string]string{"Netflix": "m-1"}}
		g := merchant.NewGrouper(resolver, finder, nil)

		groups := g.Group(ctx, []pattern.Transaction{
			batchTxn("NETFLIX.COM", 30),
			batchTxn("SPOTIFY P1234", 20),
		})

		assert.Len(t, groups, 1)
	})

	t.Run("lookup errors drop only the affected transactions", func(t *testing.T) {
		resolver := merchant.NewResolver(rules, &countingClassifier{}, nil, nil)
		g := merchant.NewGrouper(resolver, mapFinder{err: errors.New("db down")}, nil)

		groups := g.Group(ctx, []pattern.Transaction{batchTxn("NETFLIX.COM", 30)})

		assert.Empty(t, groups)
	})

	t.Run("input order is preserved within a group", func(t *testing.T) {
		resolver := merchant.NewResolver(rules, &countingClassifier{}, nil, nil)
		finder := mapFinder{ids: map[string]string{"Netflix": "m-1"}}
		g := merchant.NewGrouper(resolver, finder, nil)

		first := batchTxn("NETFLIX.COM", 60)
		second := batchTxn("NETFLIX.COM", 30)
		groups := g.Group(ctx, []pattern.Transaction{first, second})

		assert.Equal(t, []pattern.Transaction{first, second}, groups["m-1"])
	})
}

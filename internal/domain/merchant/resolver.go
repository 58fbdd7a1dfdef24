// Package merchant resolves raw transaction descriptions to canonical
// merchants. Resolution is rule-first: a priority-ordered table of regex
// overrides is consulted before the external classification oracle.
package merchant

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"time"
)

// Classification is the structured result of normalizing one description.
type Classification struct {
	NormalizedName string   `json:"normalized_name"`
	Category       string   `json:"category"`
	SubCategory    string   `json:"sub_category,omitempty"`
	Confidence     float64  `json:"confidence"`
	Flags          []string `json:"flags"`
}

// Classifier is the external classification oracle for merchant names.
// Implementations must fail with a typed error on unreachable or malformed
// responses; a silent empty result is never acceptable.
type Classifier interface {
	ClassifyMerchant(ctx context.Context, description string) (*Classification, error)
}

// Rule is one regex override entry. Rules are evaluated priority-descending
// and the first match wins, bypassing the oracle entirely.
type Rule struct {
	ID             string
	Pattern        string
	NormalizedName string
	Category       string
	SubCategory    string
	Confidence     float64
	Priority       int
}

// RuleSource provides the current active rule table. The table is read-only
// during one analysis pass; updates happen out-of-band and are picked up on
// the next fetch.
type RuleSource interface {
	ActiveRules(ctx context.Context) ([]Rule, error)
}

// Cache memoizes resolution results. It is an optimization layer only:
// misses and errors always fall through to rules and the oracle.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
}

const (
	ruleResultTTL   = time.Hour
	oracleResultTTL = time.Hour
)

// Resolver normalizes descriptions via rules, cache and oracle.
type Resolver struct {
	rules    RuleSource
	oracle   Classifier
	cache    Cache
	logger   *slog.Logger
}

// NewResolver wires a resolver. cache may be nil to disable memoization.
func NewResolver(rules RuleSource, oracle Classifier, cache Cache, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		rules:  rules,
		oracle: oracle,
		cache:  cache,
		logger: logger,
	}
}

// Resolve maps a description to its canonical classification.
//
// Order: cached result, then the rule table (priority descending, first
// match wins), then the oracle. A rule with an invalid regex is skipped
// with a warning and never aborts the scan. Only an oracle failure with no
// prior rule match is returned as an error.
func (r *Resolver) Resolve(ctx context.Context, description string) (*Classification, error) {
	cacheKey := "merchant:resolve:" + description
	if cached, ok := r.cachedResult(ctx, cacheKey); ok {
		return cached, nil
	}

	if match := r.applyRules(ctx, description); match != nil {
		r.cacheResult(ctx, cacheKey, match, ruleResultTTL)
		return match, nil
	}

	result, err := r.oracle.ClassifyMerchant(ctx, description)
	if err != nil {
		return nil, fmt.Errorf("classify %q: %w", description, err)
	}

	r.cacheResult(ctx, cacheKey, result, oracleResultTTL)
	return result, nil
}

// applyRules scans the rule table and returns the first match, or nil.
func (r *Resolver) applyRules(ctx context.Context, description string) *Classification {
	rules, err := r.rules.ActiveRules(ctx)
	if err != nil {
		// A broken rule source degrades to oracle-only resolution.
		r.logger.Warn("failed to load merchant rules", "error", err)
		return nil
	}

	sort.SliceStable(rules, func(i, j int) bool {
		return rules[i].Priority > rules[j].Priority
	})

	for _, rule := range rules {
		re, err := regexp.Compile("(?i)" + rule.Pattern)
		if err != nil {
			r.logger.Warn("skipping rule with invalid pattern",
				"rule_id", rule.ID,
				"pattern", rule.Pattern,
				"error", err,
			)
			continue
		}

		if re.MatchString(description) {
			return &Classification{
				NormalizedName: rule.NormalizedName,
				Category:       rule.Category,
				SubCategory:    rule.SubCategory,
				Confidence:     rule.Confidence,
				Flags:          []string{},
			}
		}
	}

	return nil
}

func (r *Resolver) cachedResult(ctx context.Context, key string) (*Classification, bool) {
	if r.cache == nil {
		return nil, false
	}
	raw, ok := r.cache.Get(ctx, key)
	if !ok {
		return nil, false
	}
	var c Classification
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return nil, false
	}
	return &c, true
}

func (r *Resolver) cacheResult(ctx context.Context, key string, c *Classification, ttl time.Duration) {
	if r.cache == nil {
		return
	}
	raw, err := json.Marshal(c)
	if err != nil {
		return
	}
	if err := r.cache.Set(ctx, key, string(raw), ttl); err != nil {
		r.logger.Debug("failed to cache merchant resolution", "key", key, "error", err)
	}
}

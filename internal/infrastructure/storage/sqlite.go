package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Storage provides SQLite database access for merchants, transactions,
// patterns and override rules. It implements the Repository interface.
type Storage struct {
	db *sql.DB
}

// Compile-time check that Storage implements Repository
var _ Repository = (*Storage)(nil)

// NewStorage creates a new storage instance with SQLite database
func NewStorage(dbPath string) (*Storage, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	// Enable foreign key constraints (SQLite-specific)
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s := &Storage{db: db}

	// Run all pending migrations
	if err := s.runMigrations(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return s, nil
}

// Close closes the database connection
func (s *Storage) Close() error {
	return s.db.Close()
}

// CreateMerchant inserts a new merchant row.
func (s *Storage) CreateMerchant(ctx context.Context, m *Merchant) error {
	now := time.Now().UTC()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	m.UpdatedAt = now

	query := `
	INSERT INTO merchants
	(id, original_name, normalized_name, category, sub_category, confidence,
	 is_active, flags_json, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		m.ID,
		m.OriginalName,
		m.NormalizedName,
		m.Category,
		m.SubCategory,
		m.Confidence,
		m.IsActive,
		encodeFlags(m.Flags),
		m.CreatedAt,
		m.UpdatedAt,
	)
	return err
}

// GetMerchant retrieves a merchant by id. Returns (nil, nil) when absent.
func (s *Storage) GetMerchant(ctx context.Context, id string) (*Merchant, error) {
	return s.queryMerchant(ctx, `WHERE id = ?`, id)
}

// FindMerchantByNormalizedName retrieves a merchant by canonical name.
// Returns (nil, nil) when absent.
func (s *Storage) FindMerchantByNormalizedName(ctx context.Context, name string) (*Merchant, error) {
	return s.queryMerchant(ctx, `WHERE normalized_name = ?`, name)
}

func (s *Storage) queryMerchant(ctx context.Context, where string, arg any) (*Merchant, error) {
	query := `
	SELECT id, original_name, normalized_name, category, sub_category, confidence,
	       is_active, flags_json, created_at, updated_at
	FROM merchants ` + where

	m := &Merchant{}
	var subCategory sql.NullString
	var flagsJSON string
	err := s.db.QueryRowContext(ctx, query, arg).Scan(
		&m.ID,
		&m.OriginalName,
		&m.NormalizedName,
		&m.Category,
		&subCategory,
		&m.Confidence,
		&m.IsActive,
		&flagsJSON,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	m.SubCategory = subCategory.String
	m.Flags = decodeFlags(flagsJSON)
	return m, nil
}

// UpdateMerchant persists changed merchant fields.
func (s *Storage) UpdateMerchant(ctx context.Context, m *Merchant) error {
	m.UpdatedAt = time.Now().UTC()

	query := `
	UPDATE merchants
	SET original_name = ?, normalized_name = ?, category = ?, sub_category = ?,
	    confidence = ?, is_active = ?, flags_json = ?, updated_at = ?
	WHERE id = ?
	`

	result, err := s.db.ExecContext(ctx, query,
		m.OriginalName,
		m.NormalizedName,
		m.Category,
		m.SubCategory,
		m.Confidence,
		m.IsActive,
		encodeFlags(m.Flags),
		m.UpdatedAt,
		m.ID,
	)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("merchant not found: %s", m.ID)
	}
	return nil
}

// DeactivateMerchant marks a merchant inactive.
func (s *Storage) DeactivateMerchant(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE merchants SET is_active = 0, updated_at = ? WHERE id = ?`,
		time.Now().UTC(), id,
	)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("merchant not found: %s", id)
	}
	return nil
}

// CreateTransaction inserts a new transaction row.
func (s *Storage) CreateTransaction(ctx context.Context, t *Transaction) error {
	now := time.Now().UTC()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now

	query := `
	INSERT INTO transactions
	(id, merchant_id, description, amount, date, category, sub_category,
	 confidence, is_subscription, flags_json, is_analyzed, analyzed_at,
	 created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		t.ID,
		t.MerchantID,
		t.Description,
		t.Amount,
		t.Date,
		t.Category,
		t.SubCategory,
		t.Confidence,
		t.IsSubscription,
		encodeFlags(t.Flags),
		t.IsAnalyzed,
		t.AnalyzedAt,
		t.CreatedAt,
		t.UpdatedAt,
	)
	return err
}

// GetTransaction retrieves a transaction by id. Returns (nil, nil) when absent.
func (s *Storage) GetTransaction(ctx context.Context, id string) (*Transaction, error) {
	query := `
	SELECT id, merchant_id, description, amount, date, category, sub_category,
	       confidence, is_subscription, flags_json, is_analyzed, analyzed_at,
	       created_at, updated_at
	FROM transactions WHERE id = ?
	`

	t := &Transaction{}
	var category, subCategory sql.NullString
	var analyzedAt sql.NullTime
	var flagsJSON string
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&t.ID,
		&t.MerchantID,
		&t.Description,
		&t.Amount,
		&t.Date,
		&category,
		&subCategory,
		&t.Confidence,
		&t.IsSubscription,
		&flagsJSON,
		&t.IsAnalyzed,
		&analyzedAt,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	t.Category = category.String
	t.SubCategory = subCategory.String
	t.Flags = decodeFlags(flagsJSON)
	if analyzedAt.Valid {
		t.AnalyzedAt = &analyzedAt.Time
	}
	return t, nil
}

// ListTransactions returns transactions matching the filters with pagination.
func (s *Storage) ListTransactions(ctx context.Context, filters TransactionFilters) (*TransactionList, error) {
	var conditions []string
	var args []any

	if filters.MerchantID != "" {
		conditions = append(conditions, "t.merchant_id = ?")
		args = append(args, filters.MerchantID)
	}
	if filters.Category != "" {
		conditions = append(conditions, "t.category = ?")
		args = append(args, filters.Category)
	}
	if filters.StartDate != nil {
		conditions = append(conditions, "t.date >= ?")
		args = append(args, *filters.StartDate)
	}
	if filters.EndDate != nil {
		conditions = append(conditions, "t.date <= ?")
		args = append(args, *filters.EndDate)
	}
	if filters.Search != "" {
		conditions = append(conditions, "(t.description LIKE ? OR m.normalized_name LIKE ?)")
		like := "%" + filters.Search + "%"
		args = append(args, like, like)
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	countQuery := `SELECT COUNT(*) FROM transactions t LEFT JOIN merchants m ON m.id = t.merchant_id` + where
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, err
	}

	limit := filters.Limit
	if limit <= 0 {
		limit = 50
	}

	orderColumn := "t.date"
	switch filters.OrderBy {
	case "amount":
		orderColumn = "t.amount"
	case "category":
		orderColumn = "t.category"
	}
	direction := "ASC"
	if filters.OrderDesc {
		direction = "DESC"
	}

	query := fmt.Sprintf(`
	SELECT t.id, t.merchant_id, t.description, t.amount, t.date, t.category,
	       t.sub_category, t.confidence, t.is_subscription, t.flags_json,
	       t.is_analyzed, t.analyzed_at, t.created_at, t.updated_at
	FROM transactions t
	LEFT JOIN merchants m ON m.id = t.merchant_id
	%s
	ORDER BY %s %s
	LIMIT ? OFFSET ?
	`, where, orderColumn, direction)

	args = append(args, limit, filters.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	result := &TransactionList{
		Items:      make([]*Transaction, 0),
		TotalCount: total,
		Limit:      limit,
		Offset:     filters.Offset,
	}

	for rows.Next() {
		t := &Transaction{}
		var category, subCategory sql.NullString
		var analyzedAt sql.NullTime
		var flagsJSON string
		err := rows.Scan(
			&t.ID,
			&t.MerchantID,
			&t.Description,
			&t.Amount,
			&t.Date,
			&category,
			&subCategory,
			&t.Confidence,
			&t.IsSubscription,
			&flagsJSON,
			&t.IsAnalyzed,
			&analyzedAt,
			&t.CreatedAt,
			&t.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		t.Category = category.String
		t.SubCategory = subCategory.String
		t.Flags = decodeFlags(flagsJSON)
		if analyzedAt.Valid {
			t.AnalyzedAt = &analyzedAt.Time
		}
		result.Items = append(result.Items, t)
	}

	return result, rows.Err()
}

// CreatePattern inserts a pattern row. The merchant existence check and the
// insert run in one transaction so a pattern can never land without its
// merchant, and callers can invalidate caches only after commit.
func (s *Storage) CreatePattern(ctx context.Context, p *Pattern) error {
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	if err := p.EncodeMetadata(); err != nil {
		return fmt.Errorf("failed to encode pattern metadata: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM merchants WHERE id = ?`, p.MerchantID).Scan(&exists)
	if err != nil {
		return err
	}
	if exists == 0 {
		return fmt.Errorf("merchant not found: %s", p.MerchantID)
	}

	query := `
	INSERT INTO patterns
	(id, merchant_id, type, amount, frequency, confidence, next_expected_date,
	 description, metadata_json, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = tx.ExecContext(ctx, query,
		p.ID,
		p.MerchantID,
		p.Type,
		p.Amount,
		p.Frequency,
		p.Confidence,
		p.NextExpectedDate,
		p.Description,
		p.MetadataJSON,
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		return err
	}

	return tx.Commit()
}

// ListPatternsByMerchant returns a merchant's patterns, confidence descending.
func (s *Storage) ListPatternsByMerchant(ctx context.Context, merchantID string) ([]*Pattern, error) {
	query := patternSelect + ` WHERE merchant_id = ? ORDER BY confidence DESC`
	return s.queryPatterns(ctx, query, merchantID)
}

// ListPatterns returns all patterns, confidence then recency descending.
func (s *Storage) ListPatterns(ctx context.Context) ([]*Pattern, error) {
	query := patternSelect + ` ORDER BY confidence DESC, created_at DESC`
	return s.queryPatterns(ctx, query)
}

const patternSelect = `
	SELECT id, merchant_id, type, amount, frequency, confidence,
	       next_expected_date, description, metadata_json, created_at, updated_at
	FROM patterns`

func (s *Storage) queryPatterns(ctx context.Context, query string, args ...any) ([]*Pattern, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var patterns []*Pattern
	for rows.Next() {
		p := &Pattern{}
		var nextExpected sql.NullTime
		var description sql.NullString
		err := rows.Scan(
			&p.ID,
			&p.MerchantID,
			&p.Type,
			&p.Amount,
			&p.Frequency,
			&p.Confidence,
			&nextExpected,
			&description,
			&p.MetadataJSON,
			&p.CreatedAt,
			&p.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		if nextExpected.Valid {
			p.NextExpectedDate = &nextExpected.Time
		}
		p.Description = description.String
		// Metadata decode errors are ignored; metadata is enrichment only
		_ = p.DecodeMetadata()
		patterns = append(patterns, p)
	}

	return patterns, rows.Err()
}

// CreateRule inserts a new merchant rule.
func (s *Storage) CreateRule(ctx context.Context, r *MerchantRule) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}

	query := `
	INSERT INTO merchant_rules
	(id, merchant_id, pattern, normalized_name, category, sub_category,
	 confidence, priority, is_active, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	var merchantID any
	if r.MerchantID != "" {
		merchantID = r.MerchantID
	}

	_, err := s.db.ExecContext(ctx, query,
		r.ID,
		merchantID,
		r.Pattern,
		r.NormalizedName,
		r.Category,
		r.SubCategory,
		r.Confidence,
		r.Priority,
		r.IsActive,
		r.CreatedAt,
	)
	return err
}

// ListActiveRules returns active rules, priority descending.
func (s *Storage) ListActiveRules(ctx context.Context) ([]*MerchantRule, error) {
	query := `
	SELECT id, merchant_id, pattern, normalized_name, category, sub_category,
	       confidence, priority, is_active, created_at
	FROM merchant_rules
	WHERE is_active = 1
	ORDER BY priority DESC
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var rules []*MerchantRule
	for rows.Next() {
		r := &MerchantRule{}
		var merchantID, subCategory sql.NullString
		err := rows.Scan(
			&r.ID,
			&merchantID,
			&r.Pattern,
			&r.NormalizedName,
			&r.Category,
			&subCategory,
			&r.Confidence,
			&r.Priority,
			&r.IsActive,
			&r.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		r.MerchantID = merchantID.String
		r.SubCategory = subCategory.String
		rules = append(rules, r)
	}

	return rules, rows.Err()
}

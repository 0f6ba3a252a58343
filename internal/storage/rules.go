package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// RuleStore provides CRUD and scoped listings for rules, bound to a
// single checked-out connection. It does not outlive that connection.
type RuleStore struct {
	db     *sql.DB
	sealer ContentSealer
}

// NewRuleStore binds a RuleStore to sqlDB. An optional ContentSealer
// transparently encrypts content at rest; omit it to leave content
// in plaintext.
func NewRuleStore(sqlDB *sql.DB, sealer ...ContentSealer) *RuleStore {
	s := &RuleStore{db: sqlDB}
	if len(sealer) > 0 {
		s.sealer = sealer[0]
	}
	return s
}

// Create inserts r, stamping CreatedAt == UpdatedAt == now. Callers that
// leave ID blank get one generated for them.
func (s *RuleStore) Create(ctx context.Context, r Rule) (Rule, error) {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	r.CreatedAt, r.UpdatedAt = now, now

	tagsJSON, err := marshalTags(r.Tags)
	if err != nil {
		return Rule{}, fmt.Errorf("storage: marshal tags: %w", err)
	}
	storedContent, err := sealContent(s.sealer, r.Content)
	if err != nil {
		return Rule{}, fmt.Errorf("storage: seal content: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO rules (id, content, tags, tier, metadata, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ID, storedContent, tagsJSON, r.Tier, nullableBytes(r.Metadata), r.CreatedAt, r.UpdatedAt,
	)
	if err != nil {
		return Rule{}, fmt.Errorf("storage: create rule: %w", err)
	}
	return r, nil
}

func nullableBytes(b []byte) any {
	if b == nil {
		return nil
	}
	return string(b)
}

func scanRule(row interface{ Scan(...any) error }, sealer ContentSealer) (Rule, error) {
	var r Rule
	var tags string
	var metadata sql.NullString
	if err := row.Scan(&r.ID, &r.Content, &tags, &r.Tier, &metadata, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return Rule{}, err
	}
	content, err := openContent(sealer, r.Content)
	if err != nil {
		return Rule{}, fmt.Errorf("storage: open content: %w", err)
	}
	r.Content = content
	parsedTags, err := unmarshalTags(tags)
	if err != nil {
		return Rule{}, fmt.Errorf("storage: unmarshal tags: %w", err)
	}
	r.Tags = parsedTags
	if metadata.Valid {
		r.Metadata = []byte(metadata.String)
	}
	return r, nil
}

const ruleColumns = "id, content, tags, tier, metadata, created_at, updated_at"

// FindByID returns the rule with the given id, or (_, false, nil) if absent.
func (s *RuleStore) FindByID(ctx context.Context, id string) (Rule, bool, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+ruleColumns+" FROM rules WHERE id = ?", id)
	r, err := scanRule(row, s.sealer)
	if err == sql.ErrNoRows {
		return Rule{}, false, nil
	}
	if err != nil {
		return Rule{}, false, fmt.Errorf("storage: find rule %s: %w", id, err)
	}
	return r, true, nil
}

// Update performs a read-modify-write: missing rows return (_, false,
// nil); otherwise the merged record is written back in one statement.
func (s *RuleStore) Update(ctx context.Context, id string, u RuleUpdate) (Rule, bool, error) {
	existing, ok, err := s.FindByID(ctx, id)
	if err != nil || !ok {
		return Rule{}, ok, err
	}

	if u.Content != nil {
		existing.Content = *u.Content
	}
	if u.Tags != nil {
		existing.Tags = u.Tags
	}
	if u.Tier != nil {
		existing.Tier = *u.Tier
	}
	if u.Metadata != nil {
		existing.Metadata = u.Metadata
	}
	existing.UpdatedAt = time.Now().UTC()

	tagsJSON, err := marshalTags(existing.Tags)
	if err != nil {
		return Rule{}, false, fmt.Errorf("storage: marshal tags: %w", err)
	}
	storedContent, err := sealContent(s.sealer, existing.Content)
	if err != nil {
		return Rule{}, false, fmt.Errorf("storage: seal content: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE rules SET content = ?, tags = ?, tier = ?, metadata = ?, updated_at = ? WHERE id = ?`,
		storedContent, tagsJSON, existing.Tier, nullableBytes(existing.Metadata), existing.UpdatedAt, id,
	)
	if err != nil {
		return Rule{}, false, fmt.Errorf("storage: update rule %s: %w", id, err)
	}
	return existing, true, nil
}

// Delete removes the rule with the given id and reports whether a row
// was actually removed.
func (s *RuleStore) Delete(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM rules WHERE id = ?", id)
	if err != nil {
		return false, fmt.Errorf("storage: delete rule %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("storage: delete rule %s: %w", id, err)
	}
	return n > 0, nil
}

// List returns rules ordered by updated_at DESC, paginated per opts.
func (s *RuleStore) List(ctx context.Context, opts ListOptions) ([]Rule, error) {
	opts = opts.Normalize()
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+ruleColumns+" FROM rules ORDER BY updated_at DESC LIMIT ? OFFSET ?",
		opts.Limit, opts.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: list rules: %w", err)
	}
	defer rows.Close()
	return scanRules(rows, s.sealer)
}

func scanRules(rows *sql.Rows, sealer ContentSealer) ([]Rule, error) {
	var out []Rule
	for rows.Next() {
		r, err := scanRule(rows, sealer)
		if err != nil {
			return nil, fmt.Errorf("storage: scan rule: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// FindByTier returns rules with the given tier, same paging/ordering as List.
func (s *RuleStore) FindByTier(ctx context.Context, tier int, opts ListOptions) ([]Rule, error) {
	opts = opts.Normalize()
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+ruleColumns+" FROM rules WHERE tier = ? ORDER BY updated_at DESC LIMIT ? OFFSET ?",
		tier, opts.Limit, opts.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: find rules by tier %d: %w", tier, err)
	}
	defer rows.Close()
	return scanRules(rows, s.sealer)
}

// FindByTags returns rules whose JSON-encoded tags contain any of the
// given tag literals: a substring match on the encoded form `"tag"`,
// OR-ed across tags. An empty tags list returns nil.
func (s *RuleStore) FindByTags(ctx context.Context, tags []string, opts ListOptions) ([]Rule, error) {
	opts = opts.Normalize()
	if len(tags) == 0 {
		return nil, nil
	}
	clauses := make([]string, len(tags))
	args := make([]any, 0, len(tags)+2)
	for i, tag := range tags {
		clauses[i] = "tags LIKE ?"
		args = append(args, "%\""+tag+"\"%")
	}
	args = append(args, opts.Limit, opts.Offset)

	query := fmt.Sprintf(
		"SELECT %s FROM rules WHERE %s ORDER BY updated_at DESC LIMIT ? OFFSET ?",
		ruleColumns, strings.Join(clauses, " OR "),
	)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("storage: find rules by tags: %w", err)
	}
	defer rows.Close()
	return scanRules(rows, s.sealer)
}

// Count returns the total number of rules.
func (s *RuleStore) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM rules").Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("storage: count rules: %w", err)
	}
	return n, nil
}

package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RefStore provides CRUD and scoped listings for refs, bound to a single
// checked-out connection.
type RefStore struct {
	db     *sql.DB
	sealer ContentSealer
}

// NewRefStore binds a RefStore to sqlDB. An optional ContentSealer
// transparently encrypts content at rest.
func NewRefStore(sqlDB *sql.DB, sealer ...ContentSealer) *RefStore {
	s := &RefStore{db: sqlDB}
	if len(sealer) > 0 {
		s.sealer = sealer[0]
	}
	return s
}

const refColumns = "id, name, content, channel_id, metadata, created_at, updated_at"

// Create inserts ref, stamping CreatedAt == UpdatedAt == now. Callers
// that leave ID blank get one generated for them.
func (s *RefStore) Create(ctx context.Context, ref Ref) (Ref, error) {
	if ref.ID == "" {
		ref.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	ref.CreatedAt, ref.UpdatedAt = now, now

	storedContent, err := sealContent(s.sealer, ref.Content)
	if err != nil {
		return Ref{}, fmt.Errorf("storage: seal content: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO refs (id, name, content, channel_id, metadata, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ref.ID, ref.Name, storedContent, nullableString(ref.ChannelID), nullableBytes(ref.Metadata), ref.CreatedAt, ref.UpdatedAt,
	)
	if err != nil {
		return Ref{}, fmt.Errorf("storage: create ref: %w", err)
	}
	return ref, nil
}

func scanRef(row interface{ Scan(...any) error }, sealer ContentSealer) (Ref, error) {
	var r Ref
	var channelID sql.NullString
	var metadata sql.NullString
	if err := row.Scan(&r.ID, &r.Name, &r.Content, &channelID, &metadata, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return Ref{}, err
	}
	content, err := openContent(sealer, r.Content)
	if err != nil {
		return Ref{}, fmt.Errorf("storage: open content: %w", err)
	}
	r.Content = content
	if channelID.Valid {
		v := channelID.String
		r.ChannelID = &v
	}
	if metadata.Valid {
		r.Metadata = []byte(metadata.String)
	}
	return r, nil
}

// FindByID returns the ref with the given id, or (_, false, nil) if absent.
func (s *RefStore) FindByID(ctx context.Context, id string) (Ref, bool, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+refColumns+" FROM refs WHERE id = ?", id)
	r, err := scanRef(row, s.sealer)
	if err == sql.ErrNoRows {
		return Ref{}, false, nil
	}
	if err != nil {
		return Ref{}, false, fmt.Errorf("storage: find ref %s: %w", id, err)
	}
	return r, true, nil
}

// FindByName returns the first ref matching name, ordered by updated_at
// DESC. The schema does not enforce uniqueness on name; callers relying
// on a single match should ensure uniqueness by discipline.
func (s *RefStore) FindByName(ctx context.Context, name string) (Ref, bool, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+refColumns+" FROM refs WHERE name = ? ORDER BY updated_at DESC LIMIT 1", name)
	r, err := scanRef(row, s.sealer)
	if err == sql.ErrNoRows {
		return Ref{}, false, nil
	}
	if err != nil {
		return Ref{}, false, fmt.Errorf("storage: find ref by name %s: %w", name, err)
	}
	return r, true, nil
}

// Update performs a read-modify-write; missing rows return (_, false, nil).
func (s *RefStore) Update(ctx context.Context, id string, u RefUpdate) (Ref, bool, error) {
	existing, ok, err := s.FindByID(ctx, id)
	if err != nil || !ok {
		return Ref{}, ok, err
	}

	if u.Name != nil {
		existing.Name = *u.Name
	}
	if u.Content != nil {
		existing.Content = *u.Content
	}
	if u.ChannelID != nil {
		existing.ChannelID = u.ChannelID
	}
	if u.Metadata != nil {
		existing.Metadata = u.Metadata
	}
	existing.UpdatedAt = time.Now().UTC()

	storedContent, err := sealContent(s.sealer, existing.Content)
	if err != nil {
		return Ref{}, false, fmt.Errorf("storage: seal content: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE refs SET name = ?, content = ?, channel_id = ?, metadata = ?, updated_at = ? WHERE id = ?`,
		existing.Name, storedContent, nullableString(existing.ChannelID), nullableBytes(existing.Metadata), existing.UpdatedAt, id,
	)
	if err != nil {
		return Ref{}, false, fmt.Errorf("storage: update ref %s: %w", id, err)
	}
	return existing, true, nil
}

// Delete removes the ref with the given id.
func (s *RefStore) Delete(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM refs WHERE id = ?", id)
	if err != nil {
		return false, fmt.Errorf("storage: delete ref %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("storage: delete ref %s: %w", id, err)
	}
	return n > 0, nil
}

// List returns refs ordered by updated_at DESC, paginated per opts.
func (s *RefStore) List(ctx context.Context, opts ListOptions) ([]Ref, error) {
	opts = opts.Normalize()
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+refColumns+" FROM refs ORDER BY updated_at DESC LIMIT ? OFFSET ?",
		opts.Limit, opts.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: list refs: %w", err)
	}
	defer rows.Close()
	return scanRefs(rows, s.sealer)
}

func scanRefs(rows *sql.Rows, sealer ContentSealer) ([]Ref, error) {
	var out []Ref
	for rows.Next() {
		r, err := scanRef(rows, sealer)
		if err != nil {
			return nil, fmt.Errorf("storage: scan ref: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// FindByChannelID returns refs scoped to the given channel, same
// paging/ordering as List.
func (s *RefStore) FindByChannelID(ctx context.Context, channelID string, opts ListOptions) ([]Ref, error) {
	opts = opts.Normalize()
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+refColumns+" FROM refs WHERE channel_id = ? ORDER BY updated_at DESC LIMIT ? OFFSET ?",
		channelID, opts.Limit, opts.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: find refs by channel %s: %w", channelID, err)
	}
	defer rows.Close()
	return scanRefs(rows, s.sealer)
}

// Count returns the total number of refs.
func (s *RefStore) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM refs").Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("storage: count refs: %w", err)
	}
	return n, nil
}

package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ProjectDocStore provides CRUD and scoped listings for project docs,
// bound to a single checked-out connection.
type ProjectDocStore struct {
	db     *sql.DB
	sealer ContentSealer
}

// NewProjectDocStore binds a ProjectDocStore to sqlDB. An optional
// ContentSealer transparently encrypts content at rest.
func NewProjectDocStore(sqlDB *sql.DB, sealer ...ContentSealer) *ProjectDocStore {
	s := &ProjectDocStore{db: sqlDB}
	if len(sealer) > 0 {
		s.sealer = sealer[0]
	}
	return s
}

const docColumns = "id, project_id, title, content, file_path, tags, metadata, created_at, updated_at"

// Create inserts d, stamping CreatedAt == UpdatedAt == now. Callers that
// leave ID blank get one generated for them.
func (s *ProjectDocStore) Create(ctx context.Context, d ProjectDoc) (ProjectDoc, error) {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	d.CreatedAt, d.UpdatedAt = now, now

	tagsJSON, err := marshalTags(d.Tags)
	if err != nil {
		return ProjectDoc{}, fmt.Errorf("storage: marshal tags: %w", err)
	}
	storedContent, err := sealContent(s.sealer, d.Content)
	if err != nil {
		return ProjectDoc{}, fmt.Errorf("storage: seal content: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO project_docs (id, project_id, title, content, file_path, tags, metadata, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.ProjectID, d.Title, storedContent, nullableString(d.FilePath), tagsJSON,
		nullableBytes(d.Metadata), d.CreatedAt, d.UpdatedAt,
	)
	if err != nil {
		return ProjectDoc{}, fmt.Errorf("storage: create project doc: %w", err)
	}
	return d, nil
}

func nullableString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func scanProjectDoc(row interface{ Scan(...any) error }, sealer ContentSealer) (ProjectDoc, error) {
	var d ProjectDoc
	var filePath sql.NullString
	var tags string
	var metadata sql.NullString
	if err := row.Scan(&d.ID, &d.ProjectID, &d.Title, &d.Content, &filePath, &tags, &metadata, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return ProjectDoc{}, err
	}
	content, err := openContent(sealer, d.Content)
	if err != nil {
		return ProjectDoc{}, fmt.Errorf("storage: open content: %w", err)
	}
	d.Content = content
	if filePath.Valid {
		v := filePath.String
		d.FilePath = &v
	}
	parsedTags, err := unmarshalTags(tags)
	if err != nil {
		return ProjectDoc{}, fmt.Errorf("storage: unmarshal tags: %w", err)
	}
	d.Tags = parsedTags
	if metadata.Valid {
		d.Metadata = []byte(metadata.String)
	}
	return d, nil
}

// FindByID returns the doc with the given id, or (_, false, nil) if absent.
func (s *ProjectDocStore) FindByID(ctx context.Context, id string) (ProjectDoc, bool, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+docColumns+" FROM project_docs WHERE id = ?", id)
	d, err := scanProjectDoc(row, s.sealer)
	if err == sql.ErrNoRows {
		return ProjectDoc{}, false, nil
	}
	if err != nil {
		return ProjectDoc{}, false, fmt.Errorf("storage: find project doc %s: %w", id, err)
	}
	return d, true, nil
}

// Update performs a read-modify-write; missing rows return (_, false, nil).
func (s *ProjectDocStore) Update(ctx context.Context, id string, u ProjectDocUpdate) (ProjectDoc, bool, error) {
	existing, ok, err := s.FindByID(ctx, id)
	if err != nil || !ok {
		return ProjectDoc{}, ok, err
	}

	if u.Title != nil {
		existing.Title = *u.Title
	}
	if u.Content != nil {
		existing.Content = *u.Content
	}
	if u.FilePath != nil {
		existing.FilePath = u.FilePath
	}
	if u.Tags != nil {
		existing.Tags = u.Tags
	}
	if u.Metadata != nil {
		existing.Metadata = u.Metadata
	}
	existing.UpdatedAt = time.Now().UTC()

	tagsJSON, err := marshalTags(existing.Tags)
	if err != nil {
		return ProjectDoc{}, false, fmt.Errorf("storage: marshal tags: %w", err)
	}
	storedContent, err := sealContent(s.sealer, existing.Content)
	if err != nil {
		return ProjectDoc{}, false, fmt.Errorf("storage: seal content: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE project_docs SET title = ?, content = ?, file_path = ?, tags = ?, metadata = ?, updated_at = ? WHERE id = ?`,
		existing.Title, storedContent, nullableString(existing.FilePath), tagsJSON,
		nullableBytes(existing.Metadata), existing.UpdatedAt, id,
	)
	if err != nil {
		return ProjectDoc{}, false, fmt.Errorf("storage: update project doc %s: %w", id, err)
	}
	return existing, true, nil
}

// Delete removes the doc with the given id.
func (s *ProjectDocStore) Delete(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM project_docs WHERE id = ?", id)
	if err != nil {
		return false, fmt.Errorf("storage: delete project doc %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("storage: delete project doc %s: %w", id, err)
	}
	return n > 0, nil
}

// List returns docs ordered by updated_at DESC, paginated per opts.
func (s *ProjectDocStore) List(ctx context.Context, opts ListOptions) ([]ProjectDoc, error) {
	opts = opts.Normalize()
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+docColumns+" FROM project_docs ORDER BY updated_at DESC LIMIT ? OFFSET ?",
		opts.Limit, opts.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: list project docs: %w", err)
	}
	defer rows.Close()
	return scanProjectDocs(rows, s.sealer)
}

func scanProjectDocs(rows *sql.Rows, sealer ContentSealer) ([]ProjectDoc, error) {
	var out []ProjectDoc
	for rows.Next() {
		d, err := scanProjectDoc(rows, sealer)
		if err != nil {
			return nil, fmt.Errorf("storage: scan project doc: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// FindByProjectID returns docs for the given project, same paging/ordering as List.
func (s *ProjectDocStore) FindByProjectID(ctx context.Context, projectID string, opts ListOptions) ([]ProjectDoc, error) {
	opts = opts.Normalize()
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+docColumns+" FROM project_docs WHERE project_id = ? ORDER BY updated_at DESC LIMIT ? OFFSET ?",
		projectID, opts.Limit, opts.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: find project docs by project %s: %w", projectID, err)
	}
	defer rows.Close()
	return scanProjectDocs(rows, s.sealer)
}

// Count returns the total number of project docs.
func (s *ProjectDocStore) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM project_docs").Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("storage: count project docs: %w", err)
	}
	return n, nil
}

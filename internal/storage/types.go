// Package storage implements the per-kind row CRUD and scoped listings
// (C5) for rules, project docs, and refs. It is agnostic to embeddings:
// vectors live on the row but are written and read by internal/vectorindex.
package storage

import (
	"time"

	goccyjson "github.com/goccy/go-json"
)

// Rule is a tier-classified, unscoped policy statement.
type Rule struct {
	ID        string
	Content   string
	Tags      []string
	Tier      int
	Metadata  []byte // raw JSON, nil if absent
	CreatedAt time.Time
	UpdatedAt time.Time
}

// RuleUpdate carries the mutable fields of a partial update; nil fields
// are left unchanged.
type RuleUpdate struct {
	Content  *string
	Tags     []string
	Tier     *int
	Metadata []byte
}

// ProjectDoc is a document grouped by ProjectID.
type ProjectDoc struct {
	ID        string
	ProjectID string
	Title     string
	Content   string
	FilePath  *string
	Tags      []string
	Metadata  []byte
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ProjectDocUpdate carries the mutable fields of a partial update.
type ProjectDocUpdate struct {
	Title    *string
	Content  *string
	FilePath *string
	Tags     []string
	Metadata []byte
}

// Ref is a named lookup, optionally scoped by ChannelID.
type Ref struct {
	ID        string
	Name      string
	Content   string
	ChannelID *string
	Metadata  []byte
	CreatedAt time.Time
	UpdatedAt time.Time
}

// RefUpdate carries the mutable fields of a partial update.
type RefUpdate struct {
	Name      *string
	Content   *string
	ChannelID *string
	Metadata  []byte
}

// ListOptions paginates and orders scoped listings. All list/find
// operations default to Limit=50, Offset=0, ordered by updated_at DESC.
type ListOptions struct {
	Limit  int
	Offset int
}

// Normalize applies default paging values to zero-valued fields.
func (o ListOptions) Normalize() ListOptions {
	if o.Limit <= 0 {
		o.Limit = 50
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
	return o
}

func marshalTags(tags []string) (string, error) {
	if tags == nil {
		tags = []string{}
	}
	b, err := goccyjson.Marshal(tags)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func unmarshalTags(raw string) ([]string, error) {
	if raw == "" {
		return []string{}, nil
	}
	var tags []string
	if err := goccyjson.Unmarshal([]byte(raw), &tags); err != nil {
		return nil, err
	}
	return tags, nil
}

package tags

import (
	"context"
	"errors"
	"fmt"

	"github.com/noah-isme/funroad-api/internal/common"
	"github.com/noah-isme/funroad-api/internal/db"
)

type queryProvider interface {
	ListTags(ctx context.Context, limit, offset int) ([]db.Tag, error)
	CountTags(ctx context.Context) (int64, error)
}

// Service serves the tag vocabulary used by product filters.
type Service struct {
	Q            queryProvider
	DefaultLimit int
}

// Tag is the API view of a tag.
type Tag struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// List returns one page of tags, alphabetically.
func (s *Service) List(ctx context.Context, page, limit int) (common.Page[Tag], error) {
	if s == nil || s.Q == nil {
		return common.Page[Tag]{}, errors.New("tags service not configured")
	}
	if limit < 1 {
		limit = s.DefaultLimit
	}
	if limit < 1 {
		limit = 50
	}
	if page < 1 {
		page = 1
	}
	rows, err := s.Q.ListTags(ctx, limit, common.Offset(page, limit))
	if err != nil {
		return common.Page[Tag]{}, fmt.Errorf("list tags: %w", err)
	}
	total, err := s.Q.CountTags(ctx)
	if err != nil {
		return common.Page[Tag]{}, fmt.Errorf("count tags: %w", err)
	}
	docs := make([]Tag, 0, len(rows))
	for _, row := range rows {
		docs = append(docs, Tag{ID: db.UUIDString(row.ID), Name: row.Name})
	}
	return common.NewPage(docs, total, page, limit), nil
}

package reads

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultTTL keeps a visitor's read set around for the length of a campaign.
const DefaultTTL = 60 * 24 * time.Hour

var (
	ErrEmptySlug    = errors.New("reads: empty article slug")
	ErrEmptyVisitor = errors.New("reads: empty visitor id")
)

// Store keeps each visitor's set of read article slugs in a Redis set.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

func NewStore(client *redis.Client, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{client: client, ttl: ttl}
}

func key(visitorID string) string {
	return "storydraw:reads:" + visitorID
}

// MarkRead adds slug to the visitor's set. added is false for a repeat read.
func (s *Store) MarkRead(ctx context.Context, visitorID, slug string) (bool, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return false, ErrEmptySlug
	}
	if visitorID == "" {
		return false, ErrEmptyVisitor
	}

	k := key(visitorID)
	var added *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		added = p.SAdd(ctx, k, slug)
		p.Expire(ctx, k, s.ttl)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("mark read: %w", err)
	}
	return added.Val() == 1, nil
}

// Slugs returns the visitor's read set in sorted order.
func (s *Store) Slugs(ctx context.Context, visitorID string) ([]string, error) {
	if visitorID == "" {
		return nil, ErrEmptyVisitor
	}
	out, err := s.client.SMembers(ctx, key(visitorID)).Result()
	if err != nil {
		return nil, fmt.Errorf("list reads: %w", err)
	}
	sort.Strings(out)
	return out, nil
}

func (s *Store) Count(ctx context.Context, visitorID string) (int, error) {
	if visitorID == "" {
		return 0, ErrEmptyVisitor
	}
	n, err := s.client.SCard(ctx, key(visitorID)).Result()
	if err != nil {
		return 0, fmt.Errorf("count reads: %w", err)
	}
	return int(n), nil
}

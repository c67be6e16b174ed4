// Package catalog is the read-only product lookup the checkout core consumes.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/Sammyalade/Jumia-backend/apperr"
	"github.com/Sammyalade/Jumia-backend/cache"
	"github.com/Sammyalade/Jumia-backend/models"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
)

type Store interface {
	Product(ctx context.Context, id uint) (*models.Product, error)
}

// GormStore reads products from the database with an optional redis cache in
// front. Concurrent misses for the same product share one database read.
type GormStore struct {
	db    *gorm.DB
	cache cache.Cache
	ttl   time.Duration
	group singleflight.Group
}

// NewStore builds a Store; c may be nil to disable caching.
func NewStore(db *gorm.DB, c cache.Cache, ttl time.Duration) *GormStore {
	return &GormStore{db: db, cache: c, ttl: ttl}
}

func (s *GormStore) Product(ctx context.Context, id uint) (*models.Product, error) {
	if s.cache == nil {
		return s.load(ctx, id)
	}

	key := s.cache.GenerateKey("product", strconv.FormatUint(uint64(id), 10))
	if raw, err := s.cache.Get(ctx, key); err != nil {
		slog.WarnContext(ctx, "catalog cache read failed", "key", key, "error", err)
	} else if raw != "" {
		var p models.Product
		if err := json.Unmarshal([]byte(raw), &p); err == nil {
			return &p, nil
		}
		slog.WarnContext(ctx, "catalog cache entry corrupt", "key", key)
	}

	v, err, _ := s.group.Do(key, func() (interface{}, error) {
		p, err := s.load(ctx, id)
		if err != nil {
			return nil, err
		}
		if data, err := json.Marshal(p); err == nil {
			if err := s.cache.Set(ctx, key, string(data), s.ttl); err != nil {
				slog.WarnContext(ctx, "catalog cache write failed", "key", key, "error", err)
			}
		}
		return p, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.Product), nil
}

func (s *GormStore) load(ctx context.Context, id uint) (*models.Product, error) {
	var p models.Product
	if err := s.db.WithContext(ctx).First(&p, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound(fmt.Sprintf("product %d not found", id))
		}
		return nil, fmt.Errorf("load product %d: %w", id, err)
	}
	return &p, nil
}

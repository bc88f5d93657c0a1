package app

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/oakline/banking-service/internal/domain"
	"github.com/oakline/banking-service/internal/store"
	"github.com/redis/go-redis/v9"
)

const bankDetailsCacheKey = "oakline:bank_details"

// BankDetailsService serves the institution profile through a Redis cache.
type BankDetailsService struct {
	repo  store.Repository
	cache redis.UniversalClient
	ttl   time.Duration
}

// NewBankDetailsService creates the service. cache may be nil.
func NewBankDetailsService(repo store.Repository, cache redis.UniversalClient, ttl time.Duration) *BankDetailsService {
	return &BankDetailsService{repo: repo, cache: cache, ttl: ttl}
}

func (s *BankDetailsService) Get(ctx context.Context) (*domain.BankDetails, error) {
	if s.cache != nil {
		raw, err := s.cache.Get(ctx, bankDetailsCacheKey).Bytes()
		switch {
		case err == nil:
			var cached domain.BankDetails
			if jsonErr := json.Unmarshal(raw, &cached); jsonErr == nil {
				return &cached, nil
			}
			log.Printf("level=warn component=bank_details msg=\"discarding corrupt cache entry\"")
		case !errors.Is(err, redis.Nil):
			log.Printf("level=warn component=bank_details msg=\"cache read failed\" err=%v", err)
		}
	}

	details, err := s.repo.GetBankDetails(ctx)
	if err != nil {
		return nil, err
	}

	if s.cache != nil && s.ttl > 0 {
		if payload, err := json.Marshal(details); err == nil {
			if err := s.cache.Set(ctx, bankDetailsCacheKey, payload, s.ttl).Err(); err != nil {
				log.Printf("level=warn component=bank_details msg=\"cache write failed\" err=%v", err)
			}
		}
	}
	return details, nil
}

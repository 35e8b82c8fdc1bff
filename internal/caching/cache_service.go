package caching

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"afyapay/internal/models"
	"afyapay/utils"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type CacheService interface {
	// Invoice caching
	GetInvoice(ctx context.Context, invoiceID uuid.UUID) (*models.Invoice, error)
	SetInvoice(ctx context.Context, invoice *models.Invoice, ttl time.Duration) error
	DeleteInvoice(ctx context.Context, invoiceID uuid.UUID) error

	// Wallet balance caching
	GetBalance(ctx context.Context, userID uuid.UUID) (float64, bool, error)
	SetBalance(ctx context.Context, userID uuid.UUID, balance float64, ttl time.Duration) error
	DeleteBalance(ctx context.Context, userID uuid.UUID) error

	// Rate limiting
	IsRateLimited(ctx context.Context, key string, limit int, window time.Duration) (bool, error)

	// Generic string operations for gateway token management
	SetString(ctx context.Context, key string, value string, ttl time.Duration) error
	GetString(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error

	Ping(ctx context.Context) error
}

type redisCacheService struct {
	client *redis.Client
}

func NewRedisCacheService(addr, password string, db int) CacheService {
	// Accept redis://host:port URLs as well as bare host:port
	parsedAddr := addr
	if strings.HasPrefix(addr, "redis://") || strings.HasPrefix(addr, "rediss://") {
		if hostPort := strings.TrimPrefix(strings.TrimPrefix(addr, "redis://"), "rediss://"); hostPort != addr {
			parsedAddr = hostPort
		}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     parsedAddr,
		Password: password,
		DB:       db,
	})

	if pingErr := client.Ping(context.Background()).Err(); pingErr != nil {
		utils.GetLogger().Warn("redis ping failed on initialization",
			zap.String("addr", parsedAddr), zap.Error(pingErr))
	}

	return &redisCacheService{client: client}
}

func (r *redisCacheService) GetInvoice(ctx context.Context, invoiceID uuid.UUID) (*models.Invoice, error) {
	key := fmt.Sprintf("afyapay:invoice:%s", invoiceID.String())
	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil // cache miss
		}
		return nil, err
	}

	var invoice models.Invoice
	if err := json.Unmarshal(data, &invoice); err != nil {
		return nil, err
	}
	return &invoice, nil
}

func (r *redisCacheService) SetInvoice(ctx context.Context, invoice *models.Invoice, ttl time.Duration) error {
	key := fmt.Sprintf("afyapay:invoice:%s", invoice.ID.String())
	data, err := json.Marshal(invoice)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, key, data, ttl).Err()
}

func (r *redisCacheService) DeleteInvoice(ctx context.Context, invoiceID uuid.UUID) error {
	key := fmt.Sprintf("afyapay:invoice:%s", invoiceID.String())
	return r.client.Del(ctx, key).Err()
}

func (r *redisCacheService) GetBalance(ctx context.Context, userID uuid.UUID) (float64, bool, error) {
	key := fmt.Sprintf("afyapay:balance:%s", userID.String())
	val, err := r.client.Get(ctx, key).Float64()
	if err != nil {
		if err == redis.Nil {
			return 0, false, nil // cache miss
		}
		return 0, false, err
	}
	return val, true, nil
}

func (r *redisCacheService) SetBalance(ctx context.Context, userID uuid.UUID, balance float64, ttl time.Duration) error {
	key := fmt.Sprintf("afyapay:balance:%s", userID.String())
	return r.client.Set(ctx, key, balance, ttl).Err()
}

func (r *redisCacheService) DeleteBalance(ctx context.Context, userID uuid.UUID) error {
	key := fmt.Sprintf("afyapay:balance:%s", userID.String())
	return r.client.Del(ctx, key).Err()
}

func (r *redisCacheService) IsRateLimited(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	cacheKey := fmt.Sprintf("afyapay:ratelimit:%s", key)
	count, err := r.client.Incr(ctx, cacheKey).Result()
	if err != nil {
		return true, err
	}

	// Set expiry on first request
	if count == 1 {
		r.client.Expire(ctx, cacheKey, window)
	}

	return count > int64(limit), nil
}

func (r *redisCacheService) SetString(ctx context.Context, key string, value string, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}

func (r *redisCacheService) GetString(ctx context.Context, key string) (string, error) {
	val, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return "", nil // cache miss
		}
		return "", err
	}
	return val, nil
}

func (r *redisCacheService) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}

func (r *redisCacheService) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

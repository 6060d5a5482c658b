// Package cache stores recent verdicts so identical submissions skip the
// reasoning call.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"factcheck/backend/internal/factcheck"
)

const (
	keyPrefix         = "factcheck:verdict:"
	connectionTimeout = 5 * time.Second
)

var ErrEmptyAddress = errors.New("redis address is required")

type Cache interface {
	Get(ctx context.Context, key string) (factcheck.Verdict, bool, error)
	Set(ctx context.Context, key string, v factcheck.Verdict) error
}

// Key identifies a submission. Text is whitespace-collapsed so trivially
// different pastes share an entry; model is part of the key because
// verdicts differ across models.
func Key(req factcheck.ContentRequest, model string) string {
	payload := strings.TrimSpace(req.Payload)
	if req.Kind == factcheck.KindText {
		payload = strings.Join(strings.Fields(payload), " ")
	}
	sum := sha256.Sum256([]byte(string(req.Kind) + "\x00" + model + "\x00" + payload))
	return keyPrefix + hex.EncodeToString(sum[:])
}

type RedisConfig struct {
	Address  string
	Password string
	DB       int
	TTL      time.Duration
}

type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis connects and pings once so a bad address fails at startup.
func NewRedis(cfg RedisConfig) (*Redis, error) {
	if strings.TrimSpace(cfg.Address) == "" {
		return nil, ErrEmptyAddress
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), connectionTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &Redis{client: client, ttl: cfg.TTL}, nil
}

func (r *Redis) Get(ctx context.Context, key string) (factcheck.Verdict, bool, error) {
	raw, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return factcheck.Verdict{}, false, nil
	}
	if err != nil {
		return factcheck.Verdict{}, false, fmt.Errorf("redis get: %w", err)
	}
	var v factcheck.Verdict
	if err := json.Unmarshal(raw, &v); err != nil {
		return factcheck.Verdict{}, false, fmt.Errorf("decode cached verdict: %w", err)
	}
	return v, true, nil
}

func (r *Redis) Set(ctx context.Context, key string, v factcheck.Verdict) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode verdict: %w", err)
	}
	if err := r.client.Set(ctx, key, raw, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *Redis) Close() error {
	return r.client.Close()
}

// Nop is used when REDIS_ADDRESS is unset.
type Nop struct{}

func (Nop) Get(context.Context, string) (factcheck.Verdict, bool, error) {
	return factcheck.Verdict{}, false, nil
}

func (Nop) Set(context.Context, string, factcheck.Verdict) error {
	return nil
}

package redis

import (
	"context"
	"time"

	"billing/internal/repository"
	"billing/internal/service"
)

// IdempotencyStoreInterface defines the interface for cached operator responses.
type IdempotencyStoreInterface interface {
	Get(ctx context.Context, key string) (*CachedResponse, error)
	Set(ctx context.Context, key string, response *CachedResponse, ttl time.Duration) error
}

// Ensure concrete types implement interfaces.
var (
	_ repository.AuditLog       = (*AuditLog)(nil)
	_ service.SummaryRecorder   = (*PassStore)(nil)
	_ service.PassHistory       = (*PassStore)(nil)
	_ IdempotencyStoreInterface = (*IdempotencyStore)(nil)
)

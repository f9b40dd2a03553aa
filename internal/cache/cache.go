package cache

import (
	"context"
	"fmt"
	"time"
)

// ReportCache stores computed report payloads. Keys embed the owning
// process epoch and its state revision, so entries never need explicit
// invalidation.
type ReportCache interface {
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
}

// ReportKey scopes revision to epoch. Revisions restart at zero in every
// process, so two processes sharing a cache must never share an epoch.
func ReportKey(name string, epoch string, revision uint64, params ...string) string {
	key := fmt.Sprintf("report:%s:%s:r%d", name, epoch, revision)
	for _, p := range params {
		key += ":" + p
	}
	return key
}

type NoopReportCache struct{}

func (NoopReportCache) Get(_ context.Context, _ string, _ any) (bool, error) {
	return false, nil
}

func (NoopReportCache) Set(_ context.Context, _ string, _ any, _ time.Duration) error {
	return nil
}

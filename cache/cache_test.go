package cache

import (
	"context"
	"testing"
	"time"

	"github.com/giygas/medcheck-api/interfaces"
	"github.com/giygas/medcheck-api/logging"
	"github.com/giygas/medcheck-api/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	goredis "github.com/redis/go-redis/v9"
)

func TestSearchKey(t *testing.T) {
	a := SearchKey("v1", " Aspirin ", 10)
	b := SearchKey("v1", "aspirin", 10)
	if a != b {
		t.Errorf("keys should ignore case and padding: %q vs %q", a, b)
	}

	if SearchKey("v2", "aspirin", 10) == b {
		t.Error("a new catalog version must change the key")
	}
	if SearchKey("v1", "aspirin", 5) == b {
		t.Error("the limit must be part of the key")
	}
}

func TestNoop(t *testing.T) {
	var c interfaces.SearchCache = Noop{}
	c.Set(context.Background(), "k", []interfaces.SearchHit{{Code: "ASPIRIN"}})

	if hits, ok := c.Get(context.Background(), "k"); ok || hits != nil {
		t.Errorf("Noop should always miss, got %v %v", hits, ok)
	}
}

func unreachableClient() *goredis.Client {
	return goredis.NewClient(&goredis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
}

func TestRedisFailuresAreMisses(t *testing.T) {
	logging.InitLogger("")

	rdb := unreachableClient()
	defer rdb.Close()
	c := NewRedisWithClient(rdb, time.Minute)

	before := testutil.ToFloat64(metrics.SearchCacheRequests.WithLabelValues("error"))

	c.Set(context.Background(), "k", []interfaces.SearchHit{{Code: "ASPIRIN"}})
	hits, ok := c.Get(context.Background(), "k")
	if ok || hits != nil {
		t.Errorf("an unreachable server should be a miss, got %v %v", hits, ok)
	}

	after := testutil.ToFloat64(metrics.SearchCacheRequests.WithLabelValues("error"))
	if after != before+1 {
		t.Errorf("expected the error counter to grow by 1, got %v -> %v", before, after)
	}
}

func TestNewRedisPingFailure(t *testing.T) {
	if _, err := NewRedis("127.0.0.1:1", time.Minute); err == nil {
		t.Error("expected a ping error for an unreachable server")
	}
}

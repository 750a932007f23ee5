package ratelimit_test

import (
	"context"
	"testing"
	"time"

	"visit-tracker/internal/ratelimit"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

const redisPrefix = "rl:submit:"

func newRedisLimiter(t *testing.T, limit int) (*ratelimit.RedisLimiter, *miniredis.Miniredis) {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr(), Protocol: 2, DisableIdentity: true})
	t.Cleanup(func() { client.Close() })
	return ratelimit.NewRedisLimiter(client, redisPrefix, limit, time.Minute), srv
}

func TestRedisLimiterWindow(t *testing.T) {
	const ip = "203.0.113.7"
	key := redisPrefix + ip

	cases := []struct {
		name    string
		prepare func(srv *miniredis.Miniredis)
		hits    int
		want    ratelimit.Result
		wantTTL time.Duration
	}{
		{
			name:    "first hit opens window",
			hits:    1,
			want:    ratelimit.Result{Allowed: true, Limit: 3, Remaining: 2, ResetIn: time.Minute},
			wantTTL: time.Minute,
		},
		{
			name:    "last allowed hit",
			hits:    3,
			want:    ratelimit.Result{Allowed: true, Limit: 3, Remaining: 0, ResetIn: time.Minute},
			wantTTL: time.Minute,
		},
		{
			name:    "over limit",
			hits:    4,
			want:    ratelimit.Result{Allowed: false, Limit: 3, Remaining: 0, ResetIn: time.Minute},
			wantTTL: time.Minute,
		},
		{
			name: "reports time left in window",
			prepare: func(srv *miniredis.Miniredis) {
				srv.Set(key, "1")
				srv.SetTTL(key, 20*time.Second)
			},
			hits:    1,
			want:    ratelimit.Result{Allowed: true, Limit: 3, Remaining: 1, ResetIn: 20 * time.Second},
			wantTTL: 20 * time.Second,
		},
		{
			name: "counter without expiry gets one",
			prepare: func(srv *miniredis.Miniredis) {
				srv.Set(key, "5")
			},
			hits:    1,
			want:    ratelimit.Result{Allowed: false, Limit: 3, Remaining: 0, ResetIn: time.Minute},
			wantTTL: time.Minute,
		},
		{
			name: "expired window starts over",
			prepare: func(srv *miniredis.Miniredis) {
				srv.Set(key, "9")
				srv.SetTTL(key, time.Second)
				srv.FastForward(2 * time.Second)
			},
			hits:    1,
			want:    ratelimit.Result{Allowed: true, Limit: 3, Remaining: 2, ResetIn: time.Minute},
			wantTTL: time.Minute,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			l, srv := newRedisLimiter(t, 3)
			if tc.prepare != nil {
				tc.prepare(srv)
			}

			var res ratelimit.Result
			for i := 0; i < tc.hits; i++ {
				var err error
				if res, err = l.Allow(context.Background(), ip); err != nil {
					t.Fatalf("hit %d: %v", i+1, err)
				}
			}
			if res != tc.want {
				t.Fatalf("expected %+v, got %+v", tc.want, res)
			}
			if ttl := srv.TTL(key); ttl != tc.wantTTL {
				t.Fatalf("expected key ttl %s, got %s", tc.wantTTL, ttl)
			}
		})
	}
}

func TestRedisLimiterKeysAreIndependent(t *testing.T) {
	l, _ := newRedisLimiter(t, 1)
	ctx := context.Background()

	if res, err := l.Allow(ctx, "1.2.3.4"); err != nil || !res.Allowed {
		t.Fatalf("first key: %+v %v", res, err)
	}
	if res, _ := l.Allow(ctx, "1.2.3.4"); res.Allowed {
		t.Fatal("expected second hit on the same key to be refused")
	}
	if res, err := l.Allow(ctx, "5.6.7.8"); err != nil || !res.Allowed {
		t.Fatalf("keys must not share a window: %+v %v", res, err)
	}
}

func TestRedisLimiterBackendDown(t *testing.T) {
	l, srv := newRedisLimiter(t, 3)
	srv.Close()

	if _, err := l.Allow(context.Background(), "1.2.3.4"); err == nil {
		t.Fatal("expected an error when redis is unreachable")
	}
}

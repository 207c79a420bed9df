package persistence

import (
	"context"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/shieldfi/shieldfi/internal/logging"
)

func setupRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return mr, client
}

func TestRedisMirrorRoundTrip(t *testing.T) {
	mr, client := setupRedis(t)
	ctx := context.Background()
	mirror := NewMirror(NewRedisBackend(client), DefaultKey, logging.Discard())
	want := sampleSession()

	if err := mirror.Save(ctx, want); err != nil {
		t.Fatalf("save: %v", err)
	}
	if !mr.Exists(DefaultKey) {
		t.Fatal("expected key to be written")
	}
	if got := mirror.Load(ctx); !want.Equal(got) {
		t.Fatalf("expected %+v, got %+v", want, got)
	}

	if err := mirror.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if mr.Exists(DefaultKey) {
		t.Fatal("expected key to be removed")
	}
}

func TestRedisMirrorCorruptValueIsCleared(t *testing.T) {
	mr, client := setupRedis(t)
	if err := mr.Set(DefaultKey, "not-json"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	mirror := NewMirror(NewRedisBackend(client), DefaultKey, logging.Discard())

	if got := mirror.Load(context.Background()); got != nil {
		t.Fatalf("expected nil session, got %+v", got)
	}
	if mr.Exists(DefaultKey) {
		t.Fatal("expected corrupt key to be deleted")
	}
}

func TestRedisMirrorUnavailableIsColdStart(t *testing.T) {
	mr, client := setupRedis(t)
	mr.Close()
	mirror := NewMirror(NewRedisBackend(client), DefaultKey, logging.Discard())

	if got := mirror.Load(context.Background()); got != nil {
		t.Fatalf("expected nil session, got %+v", got)
	}
}

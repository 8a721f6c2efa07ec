package session

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRedisStore_KeysAndTTL(t *testing.T) {
	kv := newFakeKV()
	s := NewRedisStore(kv, "rc:", 48*time.Hour)

	if _, err := s.Create(context.Background(), "abc", t0); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, ok := kv.data["rc:session:abc"]; !ok {
		t.Fatalf("expected key rc:session:abc, have %v", kv.data)
	}
	if ttl := kv.ttls["rc:session:abc"]; ttl != 48*time.Hour {
		t.Errorf("ttl = %v, want 48h", ttl)
	}
}

func TestRedisStore_DefaultTTL(t *testing.T) {
	kv := newFakeKV()
	s := NewRedisStore(kv, "", 0)
	if _, err := s.Create(context.Background(), "a", t0); err != nil {
		t.Fatal(err)
	}
	if ttl := kv.ttls["session:a"]; ttl != 30*24*time.Hour {
		t.Errorf("ttl = %v, want 30 days", ttl)
	}
}

func TestRedisStore_StatsSkipsVanishedKeys(t *testing.T) {
	kv := newFakeKV()
	kv.vanish = []string{"t:session:gone"}
	s := NewRedisStore(kv, "t:", time.Hour)
	if _, err := s.Create(context.Background(), "a", t0); err != nil {
		t.Fatal(err)
	}

	stats, err := s.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Total != 1 || stats.InProgress != 1 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestRedisStore_CorruptValue(t *testing.T) {
	kv := newFakeKV()
	kv.data["t:session:bad"] = []byte("{not json")
	s := NewRedisStore(kv, "t:", time.Hour)

	if _, err := s.Get(context.Background(), "bad"); err == nil {
		t.Error("expected decode error")
	}
}

func TestRedisStore_Ping(t *testing.T) {
	kv := newFakeKV()
	kv.pingErr = errors.New("down")
	if err := NewRedisStore(kv, "", 0).Ping(context.Background()); err == nil {
		t.Error("expected ping error")
	}
}

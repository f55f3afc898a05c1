package utils

import (
	"context"
	"testing"
	"time"
)

func TestWindowScriptInitialized(t *testing.T) {
	if windowIncrScript == nil {
		t.Fatalf("expected script to be initialized")
	}
}

func TestIncrWindow_RejectsBadArguments(t *testing.T) {
	ctx := context.Background()
	if _, err := IncrWindow(ctx, nil, "k", 1, time.Second); err == nil {
		t.Fatalf("expected error for nil client")
	}
}

func TestOpenRedis_RequiresAddr(t *testing.T) {
	if _, err := OpenRedis(context.Background(), RedisConfig{}); err == nil {
		t.Fatalf("expected error for empty addr")
	}
}

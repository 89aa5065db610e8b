package config

import (
	"testing"
	"time"
)

func TestLoadDefaultsAndEnvOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "from-env")
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_PORT", "6543")
	t.Setenv("REDIS_SERVICE_HOST", "redis.internal")
	t.Setenv("REDIS_SERVICE_PORT", "not-a-port")

	cfg := Load()

	if cfg.JWT.Secret != "from-env" || cfg.JWT.Issuer != "tablet-tracker" {
		t.Fatalf("jwt = %+v", cfg.JWT)
	}
	if cfg.Database.Host != "db.internal" || cfg.Database.Port != 6543 {
		t.Fatalf("database = %s:%d", cfg.Database.Host, cfg.Database.Port)
	}
	if cfg.Redis.Host != "redis.internal" || cfg.Redis.Port != 6379 {
		t.Fatalf("redis = %s:%d", cfg.Redis.Host, cfg.Redis.Port)
	}
	if cfg.Redis.TTL != 10*time.Minute {
		t.Fatalf("redis ttl = %s", cfg.Redis.TTL)
	}
	if cfg.Reconcile.Tolerance != 5 || cfg.Reconcile.MaxTxAttempts != 3 {
		t.Fatalf("reconcile = %+v", cfg.Reconcile)
	}
	if cfg.Reconcile.RetryBackoff() != 50*time.Millisecond {
		t.Fatalf("retry backoff = %s", cfg.Reconcile.RetryBackoff())
	}
}

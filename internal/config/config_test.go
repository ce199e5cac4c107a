package config

import (
	"reflect"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "")
	t.Setenv("PORT", "")
	t.Setenv("CORS_ALLOWED_ORIGINS", "")
	t.Setenv("AUTH_SECRET", "")
	t.Setenv("ACCESS_TOKEN_TTL_MINUTES", "")
	t.Setenv("LOW_STOCK_THRESHOLD", "")
	t.Setenv("UNPAID_ORDER_AGE_MINUTES", "")

	cfg := Load()
	if cfg.AppEnv != "development" {
		t.Fatalf("AppEnv = %q", cfg.AppEnv)
	}
	if cfg.Address() != ":8080" {
		t.Fatalf("Address = %q", cfg.Address())
	}
	if cfg.AuthSecret != "" {
		t.Fatalf("expected empty AUTH_SECRET when unset, got %q", cfg.AuthSecret)
	}
	if cfg.AccessTokenTTLMinutes != 480 {
		t.Fatalf("token TTL = %d", cfg.AccessTokenTTLMinutes)
	}
	if cfg.LowStockThreshold != 5 {
		t.Fatalf("low stock threshold = %d", cfg.LowStockThreshold)
	}
	if cfg.UnpaidOrderAgeMinutes != 60 {
		t.Fatalf("unpaid order age = %d", cfg.UnpaidOrderAgeMinutes)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("LOW_STOCK_THRESHOLD", "12")
	t.Setenv("ACCESS_TOKEN_TTL_MINUTES", "bogus")

	cfg := Load()
	if cfg.Port != "9090" {
		t.Fatalf("Port = %q", cfg.Port)
	}
	if cfg.LowStockThreshold != 12 {
		t.Fatalf("low stock threshold = %d", cfg.LowStockThreshold)
	}
	// Unparseable numbers fall back to the default.
	if cfg.AccessTokenTTLMinutes != 480 {
		t.Fatalf("token TTL = %d", cfg.AccessTokenTTLMinutes)
	}
}

func TestSplitOrigins(t *testing.T) {
	got := splitOrigins(" http://a.example , ,http://b.example")
	want := []string{"http://a.example", "http://b.example"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("splitOrigins = %v, want %v", got, want)
	}
}

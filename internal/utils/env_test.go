package utils

import (
	"os"
	"testing"
)

func TestEnvOrDefault(t *testing.T) {
	const key = "AURUM_TEST_ENV_OR_DEFAULT"
	os.Unsetenv(key)
	clearEnvCache(key)
	if got := EnvOrDefault(key, "fallback"); got != "fallback" {
		t.Fatalf("expected fallback, got %q", got)
	}
	os.Setenv(key, "value")
	clearEnvCache(key)
	if got := EnvOrDefault(key, "fallback"); got != "value" {
		t.Fatalf("expected value, got %q", got)
	}
}

func TestEnvOrDefaultInt(t *testing.T) {
	const key = "AURUM_TEST_ENV_OR_DEFAULT_INT"
	os.Setenv(key, "42")
	clearEnvCache(key)
	if got := EnvOrDefaultInt(key, 0); got != 42 {
		t.Fatalf("expected 42, got %d", got)
	}
	os.Setenv(key, "not-a-number")
	clearEnvCache(key)
	if got := EnvOrDefaultInt(key, 7); got != 7 {
		t.Fatalf("expected fallback 7, got %d", got)
	}
}

func TestWrap(t *testing.T) {
	if Wrap(nil, "context") != nil {
		t.Fatalf("expected nil error to stay nil")
	}
	err := Wrap(os.ErrNotExist, "loading config")
	if err == nil {
		t.Fatal("expected wrapped error")
	}
	if got := err.Error(); got != "loading config: file does not exist" {
		t.Fatalf("unexpected wrapped message: %q", got)
	}
}

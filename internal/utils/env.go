// Package utils provides shared helpers used across the node.
package utils

import (
	"os"
	"strconv"
	"sync"
)

// envCache stores previously fetched non-empty environment variable values
// so repeat lookups avoid the relatively expensive syscall interaction.
var envCache sync.Map // map[string]string

// EnvOrDefault returns the value of the environment variable identified by
// key or the provided fallback if the variable is unset or empty.
func EnvOrDefault(key, fallback string) string {
	if v, ok := envCache.Load(key); ok {
		return v.(string)
	}
	if v, ok := os.LookupEnv(key); ok && v != "" {
		envCache.Store(key, v)
		return v
	}
	return fallback
}

// EnvOrDefaultInt returns the integer value of the environment variable
// identified by key or the provided fallback if unset, empty, or not a
// valid integer.
func EnvOrDefaultInt(key string, fallback int) int {
	if v := EnvOrDefault(key, ""); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

// EnvOrDefaultUint64 returns the uint64 value of the environment variable
// identified by key or the provided fallback if unset, empty, or not a
// valid unsigned integer.
func EnvOrDefaultUint64(key string, fallback uint64) uint64 {
	if v := EnvOrDefault(key, ""); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

// clearEnvCache removes any cached value for key. Used in tests where
// environment variables are modified between calls.
func clearEnvCache(key string) {
	envCache.Delete(key)
}

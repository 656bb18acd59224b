// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package cacheutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/apex/log"
)

const (
	envDir = "TENNISBET_CACHE_DIR"
	dbFile = "tennisbet.db"
)

// Dir resolves the base cache directory.
// Precedence:
//  1. TENNISBET_CACHE_DIR, if set and non-empty
//  2. os.UserCacheDir()/tennisbet
//
// Returns ("", false) if a base cannot be resolved.
func Dir() (string, bool) {
	if c, ok := os.LookupEnv(envDir); ok && c != "" {
		return c, true
	}
	if dir, err := os.UserCacheDir(); err == nil && dir != "" {
		return filepath.Join(dir, "tennisbet"), true
	}
	return "", false
}

// EnsureBaseDir creates the base cache directory if a base path can be
// resolved. Returns the path, whether it is usable, and an error if creation
// failed. The directory is created even when caching is disabled because
// recomputed tables are still written.
func EnsureBaseDir() (string, bool, error) {
	base, ok := Dir()
	if !ok {
		return "", false, nil
	}
	if err := os.MkdirAll(base, 0o755); err != nil { //nolint:mnd
		return base, false, fmt.Errorf("failed to create cache base directory: %w", err)
	}
	return base, true, nil
}

// DefaultDSN is the sqlite database inside the cache directory, or "" when no
// directory can be resolved.
func DefaultDSN() string {
	base, ok := Dir()
	if !ok {
		log.Debug("no cache directory, no default store")
		return ""
	}
	return filepath.Join(base, dbFile)
}

// ResolveDSN picks the first non-empty of the explicit candidates (flag,
// environment, config) and falls back to DefaultDSN.
func ResolveDSN(candidates ...string) string {
	for _, c := range candidates {
		if c = strings.TrimSpace(c); c != "" {
			return c
		}
	}
	return DefaultDSN()
}

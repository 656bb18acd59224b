// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0
// no-cloc

package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/staranto/tennisbet/internal/config"
)

func TestMangleArguments(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "tennisbet.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`
odds:
  defaults:
    - --sort odds_1 -t
  cheap:
    - --filter odds_1<1.3
`), 0o600))
	t.Setenv(config.EnvConfigFile, cfgPath)
	prev := config.Config
	config.Config = config.Type{}
	t.Cleanup(func() { config.Config = prev })
	_, err := config.Load()
	require.NoError(t, err)

	tests := []struct {
		name string
		args []string
		want []string
	}{
		{
			name: "defaults inserted before user flags",
			args: []string{"tennisbet", "odds", "-o", "json"},
			want: []string{"tennisbet", "odds", "--sort", "odds_1", "-t", "-o", "json"},
		},
		{
			name: "named set replaces defaults",
			args: []string{"tennisbet", "odds", "@cheap", "-F"},
			want: []string{"tennisbet", "odds", "--filter", "odds_1<1.3", "-F"},
		},
		{
			name: "unknown set adds nothing",
			args: []string{"tennisbet", "odds", "@nope"},
			want: []string{"tennisbet", "odds"},
		},
		{
			name: "command without presets",
			args: []string{"tennisbet", "players", "-o", "yaml"},
			want: []string{"tennisbet", "players", "-o", "yaml"},
		},
		{
			name: "help short-circuits",
			args: []string{"tennisbet", "odds", "-F", "--help"},
			want: []string{"tennisbet", "odds", "--help"},
		},
		{
			name: "root flags untouched",
			args: []string{"tennisbet", "--version"},
			want: []string{"tennisbet", "--version"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, mangleArguments(tt.args))
		})
	}
}

func TestPrepareCacheDir(t *testing.T) {
	prev := ensureBaseDir
	t.Cleanup(func() { ensureBaseDir = prev })

	ensureBaseDir = func() (string, bool, error) {
		return "/nowhere/tennisbet", false, errors.New("failed to create cache base directory: permission denied")
	}
	var buf bytes.Buffer
	prepareCacheDir(&buf)
	assert.Equal(t, "failed to create cache base directory: permission denied\n", buf.String())

	ensureBaseDir = func() (string, bool, error) { return "", false, nil }
	buf.Reset()
	prepareCacheDir(&buf)
	assert.Empty(t, buf.String())
}

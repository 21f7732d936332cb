package cli

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_PositionalTopologyPath(t *testing.T) {
	var out bytes.Buffer
	cfg, exit, err := Parse([]string{"deployments/abtest.hcl"}, &out)
	require.NoError(t, err)
	require.False(t, exit)

	assert.Equal(t, "deployments/abtest.hcl", cfg.TopologyPath)
	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 10*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 5*time.Second, cfg.NodeCallTimeout)
}

func TestParse_AllFlags(t *testing.T) {
	var out bytes.Buffer
	cfg, exit, err := Parse([]string{
		"-topology", "graph.hcl",
		"-listen", ":9090",
		"-log-format", "text",
		"-log-level", "debug",
		"-request-timeout", "30s",
		"-node-call-timeout", "2s",
		"-max-depth", "10",
	}, &out)
	require.NoError(t, err)
	require.False(t, exit)

	assert.Equal(t, "graph.hcl", cfg.TopologyPath)
	assert.Equal(t, ":9090", cfg.ListenAddr)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 2*time.Second, cfg.NodeCallTimeout)
	assert.Equal(t, 10, cfg.MaxDepth)
}

func TestParse_ShorthandFlag(t *testing.T) {
	var out bytes.Buffer
	cfg, exit, err := Parse([]string{"-t", "graph.hcl"}, &out)
	require.NoError(t, err)
	require.False(t, exit)
	assert.Equal(t, "graph.hcl", cfg.TopologyPath)
}

func TestParse_NoTopologyShowsUsage(t *testing.T) {
	var out bytes.Buffer
	cfg, exit, err := Parse(nil, &out)
	require.NoError(t, err)
	assert.True(t, exit)
	assert.Nil(t, cfg)
	assert.Contains(t, out.String(), "Usage:")
}

func TestParse_Help(t *testing.T) {
	var out bytes.Buffer
	cfg, exit, err := Parse([]string{"-h"}, &out)
	require.NoError(t, err)
	assert.True(t, exit)
	assert.Nil(t, cfg)
}

func TestParse_InvalidValues(t *testing.T) {
	cases := []struct {
		name string
		args []string
	}{
		{"unknown flag", []string{"-bogus", "graph.hcl"}},
		{"bad log format", []string{"-log-format", "xml", "graph.hcl"}},
		{"bad log level", []string{"-log-level", "loud", "graph.hcl"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var out bytes.Buffer
			_, _, err := Parse(tc.args, &out)
			require.Error(t, err)

			var exitErr *ExitError
			require.ErrorAs(t, err, &exitErr)
			assert.Equal(t, 2, exitErr.Code)
		})
	}
}

package mcp

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func boolp(v bool) *bool { return &v }

func TestBuildEnvSuppressOutputDefaultsOn(t *testing.T) {
	c := NewClient(ServerConfig{Name: "fs", Command: "fs-server"})

	assert.Contains(t, c.buildEnv(), suppressOutputEnv)
}

func TestBuildEnvSuppressOutputDisabled(t *testing.T) {
	c := NewClient(ServerConfig{Name: "fs", Command: "fs-server", SuppressOutput: boolp(false)})

	assert.NotContains(t, c.buildEnv(), suppressOutputEnv)
}

func TestBuildEnvIncludesConfiguredVars(t *testing.T) {
	c := NewClient(ServerConfig{
		Name:    "fs",
		Command: "fs-server",
		Env:     map[string]string{"FS_ROOT": "/data"},
	})

	env := c.buildEnv()
	assert.Contains(t, env, "FS_ROOT=/data")
	assert.Contains(t, env, suppressOutputEnv)
}

func TestServerConfigSuppressOutputFromJSON(t *testing.T) {
	var omitted ServerConfig
	require.NoError(t, json.Unmarshal([]byte(`{"command": "fs-server"}`), &omitted))
	assert.True(t, omitted.suppressOutput())

	var disabled ServerConfig
	require.NoError(t, json.Unmarshal([]byte(`{"command": "fs-server", "suppress_output": false}`), &disabled))
	assert.False(t, disabled.suppressOutput())
}

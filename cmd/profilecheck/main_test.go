package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/v0xg/profilecheck/internal/config"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	configFile, list, grep, verbose = "", false, "", false

	cmd := newRootCmd(config.NewViper())
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestListScenarios(t *testing.T) {
	out, err := execute(t, "--list")
	require.NoError(t, err)
	assert.Contains(t, out, "CP-01 successful profile update with valid data")
	assert.Contains(t, out, "Total: 5 scenarios")
}

func TestListWithFilters(t *testing.T) {
	out, err := execute(t, "--list", "--grep", "required", "CP-03", "CP-04")
	require.NoError(t, err)
	assert.Contains(t, out, "CP-03")
	assert.NotContains(t, out, "CP-04")
	assert.Contains(t, out, "Total: 1 scenarios")
}

func TestUnknownScenario(t *testing.T) {
	_, err := execute(t, "--list", "CP-42")
	assert.EqualError(t, err, "unknown scenario CP-42")
}

func TestMissingCredentials(t *testing.T) {
	t.Setenv("PROFILECHECK_USERNAME", "")
	t.Setenv("PROFILECHECK_PASSWORD", "")
	_, err := execute(t, "CP-01")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "username and password are required")
}

func TestFlagsOverrideConfig(t *testing.T) {
	v := config.NewViper()
	cmd := newRootCmd(v)
	require.NoError(t, cmd.ParseFlags([]string{"--workers", "3", "--trace", "always", "--headless=false"}))

	assert.Equal(t, 3, v.GetInt("workers"))
	assert.Equal(t, config.TraceAlways, v.GetString("trace"))
	assert.False(t, v.GetBool("browser.headless"))
	assert.Equal(t, "https://buggy.justtestit.org", v.GetString("base_url"))
}

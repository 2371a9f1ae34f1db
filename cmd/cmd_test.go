package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deploymenttheory/go-its/internal/types"
)

const testConfigYAML = `flash:
  kind: file
  size: 0x10000
  sector_size: 0x1000
  program_unit: 4
its:
  area_offset: 0
  area_size: 0x4000
  sectors_per_block: 2
  max_asset_size: 512
  num_assets: 10
  create_layout: false
log:
  level: error
`

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestCommands_AssetRoundTrip(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "its-config.yaml")
	image := filepath.Join(dir, "flash.img")
	require.NoError(t, os.WriteFile(cfgPath, []byte(testConfigYAML), 0o600))

	common := []string{"--config", cfgPath, "--image", image}

	_, err := execute(t, append([]string{"format", "--yes"}, common...)...)
	require.NoError(t, err)

	_, err = execute(t, append([]string{"set", "5", "--data", "hello flash"}, common...)...)
	require.NoError(t, err)

	out, err := execute(t, append([]string{"get", "5", "--offset", "6"}, common...)...)
	require.NoError(t, err)
	assert.Equal(t, "flash", out)

	out, err = execute(t, append([]string{"info", "5", "-o", "json"}, common...)...)
	require.NoError(t, err)
	var info struct {
		Size  uint32 `json:"size"`
		Store string `json:"store"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, uint32(11), info.Size)
	assert.Equal(t, "its", info.Store)

	_, err = execute(t, append([]string{"remove", "5", "-o", "table"}, common...)...)
	require.NoError(t, err)

	_, err = execute(t, append([]string{"info", "5"}, common...)...)
	assert.ErrorIs(t, err, types.ErrDoesNotExist)
}

func TestParseTarget(t *testing.T) {
	target, err := parseTarget(-3, "0x10")
	require.NoError(t, err)
	assert.Equal(t, int32(-3), target.Owner)
	assert.Equal(t, uint64(16), target.UID)

	_, err = parseTarget(1, "uid")
	assert.Error(t, err)
}

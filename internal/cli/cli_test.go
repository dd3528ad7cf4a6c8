package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/varscore/internal/config"
	"github.com/ppiankov/varscore/internal/pipeline"
)

func TestWriteDefaultConfig_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	require.NoError(t, writeDefaultConfig(path))

	v := viper.New()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	cfg, err := config.Load(v)
	require.NoError(t, err)
	assert.Equal(t, config.Default().MinInterval, cfg.MinInterval)
	assert.Equal(t, config.Default().EnabledSources, cfg.EnabledSources)
	assert.Equal(t, config.Default().Server.Addr, cfg.Server.Addr)

	assert.ErrorContains(t, writeDefaultConfig(path), "already exists")
}

func TestSampleCommand(t *testing.T) {
	dir := t.TempDir()
	variants := filepath.Join(dir, "variants.csv")
	positionsPath := filepath.Join(dir, "positions.csv")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"sample", "--out", variants, "--positions", positionsPath})
	t.Cleanup(func() { rootCmd.SetArgs(nil); rootCmd.SetOut(nil) })

	require.NoError(t, Execute())
	assert.Contains(t, out.String(), "Wrote 5 sample variants")

	f, err := os.Open(positionsPath)
	require.NoError(t, err)
	defer f.Close()

	df, err := pipeline.ReadTable(f)
	require.NoError(t, err)
	inputs, err := pipeline.PositionInputs(df)
	require.NoError(t, err)
	assert.Equal(t, "chr1:g.12345A>G", inputs[0])
}

func TestIsCSV(t *testing.T) {
	assert.True(t, isCSV("in/variants.CSV"))
	assert.False(t, isCSV("variants.txt"))
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"version"})
	t.Cleanup(func() { rootCmd.SetArgs(nil); rootCmd.SetOut(nil) })

	require.NoError(t, Execute())
	assert.Equal(t, "varscore v"+Version+"\n", out.String())
}

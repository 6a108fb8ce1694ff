package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/insar-tools/ddphase/phase"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parsedFlags(t *testing.T, args ...string) (*cobra.Command, cliFlags, []string) {
	t.Helper()
	var f cliFlags
	cmd := &cobra.Command{Use: "ddphase"}
	bindFlags(cmd, &f)
	require.NoError(t, cmd.ParseFlags(args))
	return cmd, f, cmd.Flags().Args()
}

func writeParamFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "params.json5")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestBuildParamsPrecedence(t *testing.T) {
	envDir := t.TempDir()
	t.Setenv(dataDirEnv, envDir)
	params := writeParamFile(t, `{
		reference: "fileA",
		secondary: "fileB",
		outdir: "from_file",
		difference_mode: "subtract",
		filter_window_pixels: 7,
	}`)

	// File values override the environment and defaults.
	cmd, f, args := parsedFlags(t, "-p", params)
	p, data, err := buildParams(cmd, args, f)
	require.NoError(t, err)
	assert.NotEmpty(t, data)
	assert.Equal(t, envDir, p.Directory)
	assert.Equal(t, "from_file", p.OutDir)
	assert.Equal(t, "fileA", p.Reference)
	assert.Equal(t, phase.ModeSubtract, p.DifferenceMode)
	assert.Equal(t, 7, p.FilterWindowPixels)

	// Explicit flags override the file and positional arguments override both.
	flagDir := t.TempDir()
	cmd, f, args = parsedFlags(t, "-p", params, "-D", flagDir, "-O", "from_flag",
		"--mode", "conjugate", "--filter", "0", "argA", "argB")
	p, _, err = buildParams(cmd, args, f)
	require.NoError(t, err)
	assert.Equal(t, flagDir, p.Directory)
	assert.Equal(t, "from_flag", p.OutDir)
	assert.Equal(t, phase.ModeConjugate, p.DifferenceMode)
	assert.Equal(t, 0, p.FilterWindowPixels)
	assert.Equal(t, "argA", p.Reference)
	assert.Equal(t, "argB", p.Secondary)
}

func TestBuildParamsDefaults(t *testing.T) {
	t.Setenv(dataDirEnv, "")
	cmd, f, args := parsedFlags(t, "--show", "a", "b")
	p, data, err := buildParams(cmd, args, f)
	require.NoError(t, err)
	assert.Nil(t, data)
	assert.Equal(t, defaultDataDirectory, p.Directory)
	assert.Equal(t, "output_test", p.OutDir)
	assert.Equal(t, 1200, p.WindowSizePixels)
}

func TestBuildParamsErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		code int
	}{
		{"missing file", []string{"-p", filepath.Join(t.TempDir(), "nope.json5"), "a", "b"}, exitParamRead},
		{"bad syntax", []string{"-p", writeParamFile(t, `{reference: `), "a", "b"}, exitParamFormat},
		{"bad type", []string{"-p", writeParamFile(t, `{"name_length": "x"}`), "a", "b"}, exitParamInvalid},
		{"bad range", []string{"--filter=-3", "a", "b"}, exitParamInvalid},
		{"bad mode", []string{"--mode", "divide", "a", "b"}, exitUsage},
		{"no inputs", []string{}, exitUsage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, f, args := parsedFlags(t, tt.args...)
			_, _, err := buildParams(cmd, args, f)
			require.Error(t, err)
			assert.Equal(t, tt.code, exitCode(err))
		})
	}
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	assert.NoError(t, loadEnvFile(filepath.Join(dir, ".env")))

	const key = "DDPHASE_TEST_ENV_VALUE"
	t.Setenv(key, "")
	require.NoError(t, os.Unsetenv(key))
	path := filepath.Join(dir, "valid.env")
	require.NoError(t, os.WriteFile(path, []byte(key+"=from_file\n"), 0o644))
	require.NoError(t, loadEnvFile(path))
	assert.Equal(t, "from_file", os.Getenv(key))

	// A directory in place of the file cannot be read.
	bad := filepath.Join(dir, "bad.env")
	require.NoError(t, os.Mkdir(bad, 0o755))
	assert.Error(t, loadEnvFile(bad))
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	got, err := expandPath("~/data")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "data"), got)

	got, err = expandPath("/abs/dir")
	require.NoError(t, err)
	assert.Equal(t, "/abs/dir", got)
}

func TestRunExitCodes(t *testing.T) {
	assert.Equal(t, exitUsage, run([]string{"only-one"}))
	assert.Equal(t, exitUsage, run([]string{"--no-such-flag"}))
	assert.Equal(t, exitUsage, run([]string{"--log-level", "error"}))
	assert.Equal(t, exitInput, run([]string{"-D", t.TempDir(), "--log-level", "error", "a", "b"}))
}

func TestRunEndToEnd(t *testing.T) {
	p := testParams(t)
	params := writeParamFile(t, `{
		file_prefix: "ICEYE-phase_geo-",
		name_length: 10,
		figure: {width_in: 9, height_in: 3, dpi: 30, format: "png"},
		log_level: "warn",
	}`)

	code := run([]string{"-D", p.Directory, "-O", "results", "-p", params, p.Reference, p.Secondary})
	require.Equal(t, 0, code)

	base := filepath.Join(p.Directory, "results", "20230601_A-20230613_B")
	assert.FileExists(t, base+".png")
	assert.FileExists(t, base+".tif")
	assert.FileExists(t, base+"_summary.json")
}

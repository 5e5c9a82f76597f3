package cli

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesmistry/breadlog/internal/cache"
)

func run(t *testing.T, args ...string) error {
	t.Helper()
	cmd := NewRootCommand("test")
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	return cmd.Execute()
}

// writeProject lays out a config file and a source tree in a temp dir and
// returns the config file path.
func writeProject(t *testing.T, useCache bool, sources map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	srcDir := filepath.Join(dir, "src")
	require.NoError(t, os.MkdirAll(srcDir, 0o755))

	for name, contents := range sources {
		path := filepath.Join(srcDir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	}

	configText := "source_dir: " + srcDir + "\n"
	if useCache {
		configText += "use_cache: true\n"
	}
	configText += `rust:
  log_macros:
    - module: log
      name: info
`
	configPath := filepath.Join(dir, "breadlog.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(configText), 0o644))
	return configPath
}

func TestRootCommandRequiresConfigFlag(t *testing.T) {
	assert.Error(t, run(t))
}

func TestRootCommandMissingConfigFile(t *testing.T) {
	err := run(t, "--config", filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestRootCommandInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "breadlog.yaml")
	require.NoError(t, os.WriteFile(path, []byte("use_cache: true\n"), 0o644))

	err := run(t, "--config", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "source_dir")
}

func TestCheckModePasses(t *testing.T) {
	configPath := writeProject(t, false, map[string]string{
		"main.rs": "info!(\"[ref: 1] started\");\n",
	})

	assert.NoError(t, run(t, "--config", configPath, "--check"))
}

func TestCheckModeFailsOnMissingReference(t *testing.T) {
	configPath := writeProject(t, false, map[string]string{
		"main.rs": "info!(\"started\");\n",
	})

	err := run(t, "--config", configPath, "--check")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "check failed")
}

func TestCheckModeDoesNotWriteCache(t *testing.T) {
	configPath := writeProject(t, true, map[string]string{
		"main.rs": "info!(\"[ref: 1] started\");\n",
	})

	require.NoError(t, run(t, "--config", configPath, "--check"))

	_, err := os.Stat(filepath.Join(filepath.Dir(configPath), cache.LockFileName))
	assert.True(t, os.IsNotExist(err))
}

func TestGenerateModeInsertsReferences(t *testing.T) {
	configPath := writeProject(t, false, map[string]string{
		"main.rs": "info!(\"started\");\n",
	})

	require.NoError(t, run(t, "--config", configPath))

	srcPath := filepath.Join(filepath.Dir(configPath), "src", "main.rs")
	data, err := os.ReadFile(srcPath)
	require.NoError(t, err)
	assert.Equal(t, "info!(\"[ref: 1] started\");\n", string(data))

	// Generated code now satisfies check mode.
	assert.NoError(t, run(t, "--config", configPath, "--check"))
}

func TestGenerateModeWritesCacheNextToConfig(t *testing.T) {
	configPath := writeProject(t, true, map[string]string{
		"main.rs": "info!(\"started\");\n",
	})

	require.NoError(t, run(t, "--config", configPath))

	next, ok := cache.Read(filepath.Dir(configPath))
	require.True(t, ok)
	assert.Equal(t, uint32(3), next)
}

func TestGenerateModeSeedsFromCache(t *testing.T) {
	configPath := writeProject(t, true, map[string]string{
		"main.rs": "info!(\"started\");\n",
	})
	require.NoError(t, cache.Write(filepath.Dir(configPath), 50))

	require.NoError(t, run(t, "--config", configPath))

	srcPath := filepath.Join(filepath.Dir(configPath), "src", "main.rs")
	data, err := os.ReadFile(srcPath)
	require.NoError(t, err)
	assert.Equal(t, "info!(\"[ref: 50] started\");\n", string(data))
}

func TestExecuteExitCodes(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		configPath := writeProject(t, false, map[string]string{
			"main.rs": "info!(\"[ref: 1] started\");\n",
		})
		assert.Equal(t, 0, exitCode(run(t, "--config", configPath, "--check")))
	})

	t.Run("setup failure", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nope.yaml")
		assert.Equal(t, 1, exitCode(run(t, "--config", path)))
	})

	t.Run("check failure", func(t *testing.T) {
		configPath := writeProject(t, false, map[string]string{
			"main.rs": "info!(\"started\");\n",
		})
		assert.Equal(t, 2, exitCode(run(t, "--config", configPath, "--check")))
	})

	t.Run("generate failure", func(t *testing.T) {
		configPath := writeProject(t, false, nil)
		assert.Equal(t, 2, exitCode(run(t, "--config", configPath)))
	})
}

func TestVersionCommand(t *testing.T) {
	cmd := NewRootCommand("1.2.3")
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"version"})
	assert.NoError(t, cmd.Execute())
}

func TestVersionCommandRegistered(t *testing.T) {
	cmd := NewRootCommand("1.2.3")
	var found *cobra.Command
	for _, sub := range cmd.Commands() {
		if sub.Use == "version" {
			found = sub
		}
	}
	require.NotNil(t, found)
}

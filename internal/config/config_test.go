package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestValidate checks required fields and default filling.
func TestValidate(t *testing.T) {
	t.Parallel()

	require.Error(t, Validate(nil))

	settings := Default()
	settings.SaveFile = " "
	require.ErrorIs(t, Validate(settings), errSaveFileRequired)

	settings = Default()
	settings.MapSettings = ""
	require.ErrorIs(t, Validate(settings), errMapFilesRequired)

	settings = Default()
	settings.LogLevel = "loud"
	require.ErrorIs(t, Validate(settings), errUnknownLogLevel)

	settings = Default()
	settings.Command = []string{"", "--start-server"}
	require.ErrorIs(t, Validate(settings), errEmptyCommandBinary)

	settings = Default()
	settings.Timeout = 0
	settings.User = " factorio "
	require.NoError(t, Validate(settings))
	require.Equal(t, DefaultTimeout, settings.Timeout)
	require.Equal(t, "factorio", settings.User)
}

// TestLoad reads a partial file and keeps defaults for the rest.
func TestLoad(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "factorio-up.yaml")
	contents := `
init_map: true
user: factorio
exe_path: /opt/factorio/bin/factorio
command: ["/opt/factorio/bin/factorio", "--start-server", "server-default.zip"]
timeout: 10s
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	settings, err := Load(path)
	require.NoError(t, err)
	require.True(t, settings.InitMap)
	require.Equal(t, "factorio", settings.User)
	require.Equal(t, "/opt/factorio/bin/factorio", settings.ExePath)
	require.Empty(t, settings.DataDir)
	require.Equal(t, DefaultSaveFile, settings.SaveFile)
	require.Equal(t, DefaultMapGenSettings, settings.MapGenSettings)
	require.Equal(t, 10*time.Second, settings.Timeout)
	require.Len(t, settings.Command, 3)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

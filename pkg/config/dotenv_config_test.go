package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMustLoadFromDotenvInstallsPackageConfiger(t *testing.T) {
	orig := GetConfig()
	defer SetConfig(orig)

	dotenv := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(dotenv, []byte("SNAPIFY_DOTENV_TEST_KEY=loaded\n"), 0o600))
	t.Setenv("SNAPIFY_DOTENV", dotenv)

	c := MustLoadFromDotenv()

	// Keys resolve both through the returned instance and through the
	// package-level facade every other package uses.
	assert.Equal(t, "loaded", c.GetKey("SNAPIFY_DOTENV_TEST_KEY"))
	assert.Equal(t, "loaded", GetKey("SNAPIFY_DOTENV_TEST_KEY"))
	assert.Same(t, c, GetConfig())
}

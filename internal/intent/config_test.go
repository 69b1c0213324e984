package intent

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigPartialOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "classifier.yaml")
	body := `scopes:
  - keyword: banner
    path: src/Banner.vue
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, []ScopeEntry{{Keyword: "banner", Path: "src/Banner.vue"}}, cfg.Scopes)
	assert.Equal(t, DefaultConfig().DefaultScope, cfg.DefaultScope)
	assert.Equal(t, DefaultConfig().RepoOverrides, cfg.RepoOverrides)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

package composer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeComposer(t *testing.T, dir, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "composer.json"), []byte(content), 0644))
}

func TestResolveBasic(t *testing.T) {
	dir := t.TempDir()
	writeComposer(t, dir, `{
		"autoload": {"psr-4": {"App\\": "src/"}},
		"autoload-dev": {"psr-4": {"App\\Tests\\": "tests/"}}
	}`)

	r, err := Load(dir)
	require.NoError(t, err)
	require.True(t, r.Loaded())

	tests := []struct {
		path string
		want string
		ok   bool
	}{
		{"src/User.php", "App", true},
		{"src/Services/Mailer.php", "App\\Services", true},
		{"src/Services/Deep/Queue.php", "App\\Services\\Deep", true},
		{"tests/Unit/MailerTest.php", "App\\Tests\\Unit", true},
		{"lib/Other.php", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, ok := r.Resolve(filepath.Join(dir, filepath.FromSlash(tt.path)))
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveLongestPrefixWins(t *testing.T) {
	dir := t.TempDir()
	writeComposer(t, dir, `{
		"autoload": {"psr-4": {
			"App\\": "src/",
			"App\\Special\\": "src/Services"
		}}
	}`)

	r, err := Load(dir)
	require.NoError(t, err)

	ns, ok := r.Resolve(filepath.Join(dir, "src", "Services", "X.php"))
	require.True(t, ok)
	assert.Equal(t, "App\\Special", ns)
}

func TestResolveArrayDirs(t *testing.T) {
	dir := t.TempDir()
	writeComposer(t, dir, `{"autoload": {"psr-4": {"App\\": ["src/", "lib/"]}}}`)

	r, err := Load(dir)
	require.NoError(t, err)

	ns, ok := r.Resolve(filepath.Join(dir, "lib", "Helpers", "Str.php"))
	require.True(t, ok)
	assert.Equal(t, "App\\Helpers", ns)
}

func TestFileForFQN(t *testing.T) {
	dir := t.TempDir()
	writeComposer(t, dir, `{"autoload": {"psr-4": {"App\\": "src/"}}}`)

	r, err := Load(dir)
	require.NoError(t, err)

	path, ok := r.FileForFQN("App\\Services\\Mailer")
	require.True(t, ok)
	assert.Equal(t, filepath.Join(dir, "src", "Services", "Mailer.php"), path)

	path, ok = r.FileForFQN("\\App\\User")
	require.True(t, ok)
	assert.Equal(t, filepath.Join(dir, "src", "User.php"), path)

	_, ok = r.FileForFQN("Vendor\\Thing")
	assert.False(t, ok)
}

func TestMissingComposerDegrades(t *testing.T) {
	r, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.False(t, r.Loaded())

	_, ok := r.Resolve("/anywhere/src/X.php")
	assert.False(t, ok)
}

func TestUnparseableComposerDegrades(t *testing.T) {
	dir := t.TempDir()
	writeComposer(t, dir, `{not json`)

	r, err := Load(dir)
	require.NoError(t, err)
	assert.False(t, r.Loaded())
}

package refactor

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/phpref/internal/core"
	"github.com/standardbeagle/phpref/internal/types"
)

func TestRenderPreview(t *testing.T) {
	files := core.NewFileService()
	files.SetContent("/p/src/A.php", []byte("<?php\nclass A {\n    public function handle(): void {}\n}\n"))

	edits := []types.EditOperation{{
		FilePath: "/p/src/A.php",
		Span: types.Span{
			Start: types.Position{Line: 3, Column: 20},
			End:   types.Position{Line: 3, Column: 26},
		},
		NewText: "process",
	}}

	out, err := RenderPreview(files, "/p", edits)
	require.NoError(t, err)
	assert.Contains(t, out, "--- a/src/A.php")
	assert.Contains(t, out, "+++ b/src/A.php")
	assert.Contains(t, out, "@@ ")
	assert.Contains(t, out, "-    public function handle(): void {}")
	assert.Contains(t, out, "+    public function process(): void {}")
}

func TestRenderPreviewSkipsUnchangedFiles(t *testing.T) {
	files := core.NewFileService()
	files.SetContent("/p/a.php", []byte("<?php\n"))

	// Replacing a token with itself produces no diff.
	edits := []types.EditOperation{{
		FilePath: "/p/a.php",
		Span: types.Span{
			Start: types.Position{Line: 1, Column: 0},
			End:   types.Position{Line: 1, Column: 5},
		},
		NewText: "<?php",
	}}

	out, err := RenderPreview(files, "/p", edits)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestRenderPreviewOrdersFiles(t *testing.T) {
	files := core.NewFileService()
	files.SetContent("/p/b.php", []byte("old\n"))
	files.SetContent("/p/a.php", []byte("old\n"))

	replace := func(path string) types.EditOperation {
		return types.EditOperation{
			FilePath: path,
			Span: types.Span{
				Start: types.Position{Line: 1, Column: 0},
				End:   types.Position{Line: 1, Column: 3},
			},
			NewText: "new",
		}
	}

	out, err := RenderPreview(files, "/p", []types.EditOperation{replace("/p/b.php"), replace("/p/a.php")})
	require.NoError(t, err)
	assert.Less(t, strings.Index(out, "a/a.php"), strings.Index(out, "a/b.php"))
}

func TestRenderPreviewUnreadableFile(t *testing.T) {
	files := core.NewFileService()
	edits := []types.EditOperation{{
		FilePath: "/does/not/exist.php",
		Span: types.Span{
			Start: types.Position{Line: 1, Column: 0},
			End:   types.Position{Line: 1, Column: 1},
		},
		NewText: "x",
	}}

	_, err := RenderPreview(files, "/", edits)
	assert.Error(t, err)
}

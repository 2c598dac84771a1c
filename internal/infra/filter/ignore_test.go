package filter

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIgnoreFilter_ShouldIgnore(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, ".gitignore"), []byte("# drafts\ndrafts/\r\n\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".gpsragignore"), []byte("*-internal.pdf\n"), 0o644))

	f, err := NewIgnoreFilter(root)
	require.NoError(t, err)

	tests := []struct {
		name string
		path string
		want bool
	}{
		{name: "通常の PDF", path: "manuals/neo-m8.pdf", want: false},
		{name: "テキスト", path: "notes/ubx.txt", want: false},
		{name: ".gitignore のディレクトリ", path: "drafts/zed-f9p.pdf", want: true},
		{name: ".gpsragignore のパターン", path: "manuals/zed-f9p-internal.pdf", want: true},
		{name: "デフォルトパターン", path: ".git/HEAD", want: true},
		{name: "機密ファイル", path: ".env", want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, f.ShouldIgnore(tt.path))
		})
	}
}

func TestNewIgnoreFilter_NoIgnoreFiles(t *testing.T) {
	f, err := NewIgnoreFilter(t.TempDir())
	require.NoError(t, err)

	assert.False(t, f.ShouldIgnore("manual.pdf"))
	assert.True(t, f.ShouldIgnore("node_modules/x.txt"))
}

func TestIgnoreFilter_Nil(t *testing.T) {
	var f *IgnoreFilter
	assert.False(t, f.ShouldIgnore("anything.pdf"))
}

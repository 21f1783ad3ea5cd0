package security

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPathValidator(t *testing.T) {
	_, err := NewPathValidator("")
	assert.Error(t, err)

	v, err := NewPathValidator("/non/existent/path")
	require.NoError(t, err, "missing directories are allowed")
	assert.Equal(t, filepath.Clean("/non/existent/path"), v.Root())
}

func TestPathValidator_Resolve(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "cases"), 0o755))

	v, err := NewPathValidator(root)
	require.NoError(t, err)

	tests := []struct {
		name    string
		id      string
		want    string
		wantErr bool
	}{
		{name: "plain file", id: "complaint.pdf", want: filepath.Join(root, "complaint.pdf")},
		{name: "nested file", id: "cases/complaint.pdf", want: filepath.Join(root, "cases", "complaint.pdf")},
		{name: "inner traversal stays inside", id: "cases/../complaint.pdf", want: filepath.Join(root, "complaint.pdf")},
		{name: "parent traversal", id: "../secret.pdf", wantErr: true},
		{name: "deep traversal", id: "cases/../../secret.pdf", wantErr: true},
		{name: "absolute path", id: "/etc/passwd", wantErr: true},
		{name: "empty", id: "", wantErr: true},
		{name: "null bytes only", id: "\x00", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := v.Resolve(tt.id)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPathValidator_SymlinkEscape(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()
	target := filepath.Join(outside, "secret.pdf")
	require.NoError(t, os.WriteFile(target, []byte("%PDF-1.4"), 0o644))

	if err := os.Symlink(target, filepath.Join(root, "link.pdf")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}
	require.NoError(t, os.WriteFile(filepath.Join(root, "real.pdf"), []byte("%PDF-1.4"), 0o644))
	require.NoError(t, os.Symlink(filepath.Join(root, "real.pdf"), filepath.Join(root, "alias.pdf")))

	v, err := NewPathValidator(root)
	require.NoError(t, err)

	_, err = v.Resolve("link.pdf")
	assert.Error(t, err)

	_, err = v.Resolve("alias.pdf")
	assert.NoError(t, err)
}

func TestPathValidator_Contains(t *testing.T) {
	root := t.TempDir()
	v, err := NewPathValidator(root)
	require.NoError(t, err)

	assert.True(t, v.Contains(filepath.Join(root, "a.pdf")))
	assert.True(t, v.Contains(root))
	assert.False(t, v.Contains(filepath.Dir(root)))
	assert.False(t, v.Contains(root+"-sibling"))
}

func TestStatFile(t *testing.T) {
	root := t.TempDir()
	file := filepath.Join(root, "a.pdf")
	require.NoError(t, os.WriteFile(file, []byte("data"), 0o644))

	info, err := StatFile(file)
	require.NoError(t, err)
	assert.Equal(t, int64(4), info.Size())

	_, err = StatFile(root)
	assert.Error(t, err)

	_, err = StatFile(filepath.Join(root, "missing.pdf"))
	assert.True(t, os.IsNotExist(err))
}

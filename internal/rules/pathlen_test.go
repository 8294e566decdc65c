package rules

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDepth(t *testing.T) {
	root := filepath.Join(string(filepath.Separator), "very", "long", "absolute", "root")

	assert.Equal(t, 0, Depth(root, root))
	assert.Equal(t, 0, Depth(root, filepath.Join(root, "file.txt")))

	p := root
	for level := 1; level <= 30; level++ {
		p = filepath.Join(p, "sub")
		assert.Equal(t, level, Depth(root, filepath.Join(p, "leaf.txt")))
	}

	// Depth does not depend on how long the root itself is
	short := filepath.Join(string(filepath.Separator), "r")
	assert.Equal(t, Depth(short, filepath.Join(short, "a", "b")), Depth(root, filepath.Join(root, "a", "b")))

	assert.Equal(t, 0, Depth(root, filepath.Join(string(filepath.Separator), "other", "x")))
}

func TestRelPath(t *testing.T) {
	root := filepath.Join(string(filepath.Separator), "scan")

	rel, err := RelPath(root, filepath.Join(root, "a", "b.txt"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("a", "b.txt"), rel)

	_, err = RelPath(root, filepath.Join(string(filepath.Separator), "scanner", "x"))
	assert.Error(t, err)
}

func TestProjectDestination(t *testing.T) {
	root := filepath.Join(string(filepath.Separator), "scan")
	base := LibraryBase("https://contoso.sharepoint.com/sites/HR/", "Shared Documents")
	assert.Equal(t, "https://contoso.sharepoint.com/sites/HR/Shared%20Documents", base)

	tests := []struct {
		name string
		rel  string
		want string
	}{
		{"Plain", "a/b.txt", base + "/a/b.txt"},
		{"Spaces and hashes", "Q1 #2/50% off.txt", base + "/Q1%20%232/50%25%20off.txt"},
		{"Unicode", "Über/naïve.txt", base + "/%C3%9Cber/na%C3%AFve.txt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ProjectDestination(base, root, filepath.Join(root, filepath.FromSlash(tt.rel)))
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
			assert.False(t, strings.Contains(got, `\`))
		})
	}

	t.Run("No base", func(t *testing.T) {
		_, ok := ProjectDestination("", root, filepath.Join(root, "a"))
		assert.False(t, ok)
	})

	t.Run("Outside root", func(t *testing.T) {
		_, ok := ProjectDestination(base, root, filepath.Join(string(filepath.Separator), "tmp", "a"))
		assert.False(t, ok)
	})
}

func TestIsReservedName(t *testing.T) {
	reserved := []string{"CON", "con.txt", "Nul.gz", "COM9", "lpt1.log", ".lock", "DESKTOP.INI", "~$report.docx", "my_vti_folder"}
	allowed := []string{"CONSOLE.txt", "icon.png", "COM10", "file.lock", "desktop.ini.bak", "a~$b", "vti"}

	for _, name := range reserved {
		assert.True(t, IsReservedName(name), name)
	}
	for _, name := range allowed {
		assert.False(t, IsReservedName(name), name)
	}
}

package report

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spo-preflight/internal/models"
)

func readReport(t *testing.T, path string) (bom bool, rows [][]string) {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(data)
	bom = strings.HasPrefix(content, utf8BOM)
	rows, err = csv.NewReader(strings.NewReader(strings.TrimPrefix(content, utf8BOM))).ReadAll()
	require.NoError(t, err)
	return bom, rows
}

func sampleIssue() models.Issue {
	return models.Issue{
		ItemType:     models.ItemFile,
		FullPath:     "/scan/CON.txt",
		Kind:         models.KindReservedName,
		CurrentValue: "CON.txt",
		SuggestedFix: "CON_file.txt",
		NameLength:   7,
		PathLength:   13,
		FileSizeMB:   "0.00",
		FolderDepth:  0,
	}
}

func TestWriterHeaderAndRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "report.csv")
	w, err := Open(path, Options{})
	require.NoError(t, err)

	require.NoError(t, w.Write(sampleIssue()))

	// rows are visible before Close
	_, rows := readReport(t, path)
	require.Len(t, rows, 2)

	require.NoError(t, w.Close())
	require.NoError(t, w.Close())

	bom, rows := readReport(t, path)
	assert.True(t, bom)
	assert.Equal(t, []string{
		"ItemType", "FullPath", "IssueType", "CurrentValue", "SuggestedFix",
		"CharacterCount", "CharacterCountPath", "FileSizeMB", "FolderDepth",
	}, rows[0])
	assert.Equal(t, []string{
		"File", "/scan/CON.txt", "Reserved device name (Windows)", "CON.txt", "CON_file.txt",
		"7", "13", "0.00", "0",
	}, rows[1])
	assert.EqualValues(t, 1, w.Rows())

	// the lock file is left in place, unlocked
	assert.FileExists(t, path+".lock")
}

func TestWriterDestinationColumns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.csv")
	dest := &models.Destination{Type: models.DestinationSharePoint, Base: "https://contoso.sharepoint.com/sites/x/Shared%20Documents"}
	w, err := Open(path, Options{Destination: dest})
	require.NoError(t, err)

	withDest := sampleIssue()
	withDest.DestinationLength = 70
	withDest.DestinationPath = dest.Base + "/CON.txt"
	folder := models.Issue{ItemType: models.ItemFolder, FullPath: "/scan", Kind: models.KindExcessiveDepth, CurrentValue: "21"}

	require.NoError(t, w.Write(withDest))
	require.NoError(t, w.Write(folder))
	require.NoError(t, w.Close())

	_, rows := readReport(t, path)
	require.Len(t, rows, 3)
	assert.Equal(t, Header(true), rows[0])
	assert.Equal(t, "DestinationCharacterCount", rows[0][7])
	assert.Equal(t, "70", rows[1][7])
	assert.Equal(t, withDest.DestinationPath, rows[1][8])

	// inapplicable fields are empty
	assert.Equal(t, "", rows[2][7])
	assert.Equal(t, "", rows[2][8])
	assert.Equal(t, "", rows[2][9])
}

func TestWriterAnonymizes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.csv")
	an := NewAnonymizer("0123456789abcdef0123456789abcdef")
	w, err := Open(path, Options{Anonymizer: an})
	require.NoError(t, err)
	require.NoError(t, w.Write(sampleIssue()))
	require.NoError(t, w.Close())

	_, rows := readReport(t, path)
	require.Len(t, rows, 2)
	assert.Equal(t, an.Path("/scan/CON.txt"), rows[1][1])
	assert.NotContains(t, rows[1][1], "CON")
	assert.NotContains(t, rows[1][3], "CON")
	assert.NotContains(t, rows[1][4], "CON")
}

func TestWriterLocked(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.csv")
	first, err := Open(path, Options{})
	require.NoError(t, err)
	defer first.Close()

	_, err = Open(path, Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrReportLocked)
	assert.True(t, models.IsOutput(err))
}

func TestWriterAfterClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.csv")
	w, err := Open(path, Options{})
	require.NoError(t, err)
	require.NoError(t, w.Close())

	err = w.Write(sampleIssue())
	assert.ErrorIs(t, err, os.ErrClosed)
}

func TestWriterConcurrentWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.csv")
	w, err := Open(path, Options{})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				assert.NoError(t, w.Write(sampleIssue()))
			}
		}()
	}
	wg.Wait()
	require.NoError(t, w.Close())

	_, rows := readReport(t, path)
	assert.Len(t, rows, 1+8*50)
	for _, row := range rows[1:] {
		assert.Len(t, row, 9)
	}
}

func TestWriterLockFileReused(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.csv")
	first, err := Open(path, Options{})
	require.NoError(t, err)
	require.NoError(t, first.Close())
	require.FileExists(t, path+".lock")

	// the leftover lock file is locked again, not replaced
	second, err := Open(path, Options{})
	require.NoError(t, err)
	defer second.Close()

	_, err = Open(path, Options{})
	assert.ErrorIs(t, err, ErrReportLocked)
}

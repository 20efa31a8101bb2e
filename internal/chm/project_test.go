package chm

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeberg.org/snonux/chmtrans/internal/apperr"
	"codeberg.org/snonux/chmtrans/internal/testutil"
)

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestEnsureProjectGenerates(t *testing.T) {
	src := testutil.CreateHelpTree(t)
	out := filepath.Join(t.TempDir(), "manual_zh-cn.chm")

	path, err := EnsureProject(src, out, Project{Name: "manual", Title: "手册", Language: "zh-CN"})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(src, "manual.hhp"), path)

	hhp := readFile(t, path)
	assert.Contains(t, hhp, "Compiled file="+out+"\r\n")
	assert.Contains(t, hhp, "Contents file=contents.hhc\r\n")
	assert.Contains(t, hhp, "Default topic=index.html\r\n")
	assert.Contains(t, hhp, "Language=0x804 ")
	assert.Contains(t, hhp, "Title=手册\r\n")
	assert.Contains(t, hhp, "[FILES]\r\nindex.html\r\ntopics\\settings.htm\r\n")
	assert.NotContains(t, hhp, "Index file=")

	// Pages without a table of contents get a generated one
	hhc := readFile(t, filepath.Join(src, "contents.hhc"))
	assert.Contains(t, hhc, `<param name="Name" value="Welcome">`)
	assert.Contains(t, hhc, `<param name="Local" value="topics\settings.htm">`)
	assert.Contains(t, hhc, `<param name="Name" value="settings">`)
}

func TestEnsureProjectUsesExistingContents(t *testing.T) {
	src := t.TempDir()
	testutil.CreateTestTree(t, src, map[string]string{
		"a.htm":                 "<p>A</p>",
		"b.htm":                 "<p>B</p>",
		"Table of Contents.hhc": "<UL></UL>",
		"Index.hhk":             "<UL></UL>",
	})

	path, err := EnsureProject(src, "/tmp/out.chm", Project{Language: "ja"})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(src, "project.hhp"), path)

	hhp := readFile(t, path)
	assert.Contains(t, hhp, "Contents file=Table of Contents.hhc\r\n")
	assert.Contains(t, hhp, "Index file=Index.hhk\r\n")
	assert.Contains(t, hhp, "Default topic=a.htm\r\n")
	assert.Contains(t, hhp, "Language=0x411 ")
	testutil.AssertFileNotExists(t, filepath.Join(src, "contents.hhc"))
}

func TestEnsureProjectPatchesExisting(t *testing.T) {
	src := t.TempDir()
	original := "[OPTIONS]\r\n" +
		"Compatibility=1.1 or later\r\n" +
		"Compiled file=old.chm\r\n" +
		"Title=Old title\r\n" +
		"Default topic=start.htm\r\n" +
		"\r\n" +
		"[FILES]\r\n" +
		"start.htm\r\n"
	testutil.CreateTestTree(t, src, map[string]string{
		"old.hhp":   original,
		"start.htm": "<p>Start</p>",
	})

	path, err := EnsureProject(src, "/work/new.chm", Project{Title: "New title", Language: "de"})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(src, "old.hhp"), path)

	hhp := readFile(t, path)
	assert.NotContains(t, hhp, "old.chm")
	assert.NotContains(t, hhp, "Old title")
	assert.Equal(t, 1, strings.Count(hhp, "Compiled file="))
	assert.Contains(t, hhp, "Compiled file=/work/new.chm\r\n")
	assert.Contains(t, hhp, "Title=New title\r\n")
	assert.Contains(t, hhp, "Default topic=start.htm\r\n")
	assert.Contains(t, hhp, "[FILES]\r\nstart.htm\r\n")

	// The missing Language option lands inside [OPTIONS]
	lang := strings.Index(hhp, "Language=0x407 ")
	require.GreaterOrEqual(t, lang, 0)
	assert.Less(t, lang, strings.Index(hhp, "[FILES]"))
}

func TestPatchProjectWithoutOptions(t *testing.T) {
	out := string(patchProject([]byte("[FILES]\na.htm\n"), map[string]string{
		"Compiled file": "x.chm",
		"Language":      "0x409 English",
	}))
	assert.Equal(t, "[OPTIONS]\r\nCompiled file=x.chm\r\nLanguage=0x409 English\r\n\r\n[FILES]\r\na.htm\r\n", out)
}

func TestEnsureProjectNoPages(t *testing.T) {
	src := t.TempDir()
	testutil.CreateTestFile(t, filepath.Join(src, "logo.gif"), []byte("GIF89a"))

	_, err := EnsureProject(src, "/tmp/out.chm", Project{Language: "de"})
	assert.True(t, apperr.Is(err, apperr.CodeValidation))
}

func TestLanguageValue(t *testing.T) {
	tests := []struct {
		code   string
		prefix string
	}{
		{"zh-CN", "0x804 "},
		{"zh-TW", "0x404 "},
		{"pt-BR", "0x416 "},
		{"de-AT", "0x407 "},
		{"ko", "0x412 "},
		{"tlh", "0x409 "},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.True(t, strings.HasPrefix(LanguageValue(tt.code), tt.prefix), LanguageValue(tt.code))
		})
	}
}

package chm

import (
	"bufio"
	"bytes"
	"fmt"
	"html"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	xhtml "golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"codeberg.org/snonux/chmtrans/internal/apperr"
)

// Project describes the help file to build
type Project struct {
	Name     string // base name of a generated .hhp file
	Title    string
	Language string // BCP-47 code
}

// projectFiles is what EnsureProject finds in a source tree. Paths are
// relative to the tree root and use forward slashes.
type projectFiles struct {
	projects []string
	contents []string
	indexes  []string
	pages    []string
}

func scanProject(dir string) (projectFiles, error) {
	var files projectFiles
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		switch strings.ToLower(filepath.Ext(rel)) {
		case ".hhp":
			files.projects = append(files.projects, rel)
		case ".hhc":
			files.contents = append(files.contents, rel)
		case ".hhk":
			files.indexes = append(files.indexes, rel)
		case ".htm", ".html":
			files.pages = append(files.pages, rel)
		}
		return nil
	})
	if err != nil {
		return files, fmt.Errorf("failed to scan %s: %w", dir, err)
	}

	for _, list := range [][]string{files.projects, files.contents, files.indexes, files.pages} {
		sort.Slice(list, func(i, j int) bool { return lessPath(list[i], list[j]) })
	}
	return files, nil
}

// lessPath orders shallower paths first, then lexically
func lessPath(a, b string) bool {
	da, db := strings.Count(a, "/"), strings.Count(b, "/")
	if da != db {
		return da < db
	}
	return a < b
}

// EnsureProject makes sure dir holds a project file that compiles to
// outPath and returns its path. An existing .hhp has its output, title and
// language options rewritten. Otherwise a project listing every page is
// generated, together with a table of contents when the tree has none.
func EnsureProject(dir, outPath string, p Project) (string, error) {
	files, err := scanProject(dir)
	if err != nil {
		return "", err
	}

	options := map[string]string{
		"Compiled file": outPath,
		"Language":      LanguageValue(p.Language),
	}
	if p.Title != "" {
		options["Title"] = p.Title
	}

	if len(files.projects) > 0 {
		path := filepath.Join(dir, filepath.FromSlash(files.projects[0]))
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("failed to read project file: %w", err)
		}
		if err := os.WriteFile(path, patchProject(data, options), 0644); err != nil {
			return "", fmt.Errorf("failed to write project file: %w", err)
		}
		return path, nil
	}

	if len(files.pages) == 0 {
		return "", apperr.Newf(apperr.CodeValidation, "no HTML pages found in %s", dir)
	}

	if len(files.contents) == 0 {
		if err := writeContents(dir, files.pages); err != nil {
			return "", err
		}
		files.contents = []string{generatedContents}
	}

	name := p.Name
	if name == "" {
		name = "project"
	}
	path := filepath.Join(dir, name+".hhp")
	if err := os.WriteFile(path, generateProject(files, options), 0644); err != nil {
		return "", fmt.Errorf("failed to write project file: %w", err)
	}
	return path, nil
}

// option keys patched in an existing project, in output order
var patchedOptions = []string{"Compiled file", "Title", "Language"}

// patchProject rewrites options in the [OPTIONS] section of an .hhp file,
// appending those that are missing. Other lines are kept as they are.
func patchProject(data []byte, options map[string]string) []byte {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	var out []string
	written := make(map[string]bool)
	inOptions, sawOptions := false, false

	// flush adds missing options ahead of the blank lines closing a section
	flush := func() {
		end := len(out)
		for end > 0 && strings.TrimSpace(out[end-1]) == "" {
			end--
		}
		tail := append([]string(nil), out[end:]...)
		out = out[:end]
		for _, key := range patchedOptions {
			if v, ok := options[key]; ok && !written[key] {
				out = append(out, key+"="+v)
				written[key] = true
			}
		}
		out = append(out, tail...)
	}

	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		trimmed := strings.TrimSpace(line)

		if strings.HasPrefix(trimmed, "[") && strings.HasSuffix(trimmed, "]") {
			if inOptions {
				flush()
			}
			inOptions = strings.EqualFold(trimmed, "[OPTIONS]")
			sawOptions = sawOptions || inOptions
			out = append(out, line)
			continue
		}

		if inOptions {
			if key, _, ok := strings.Cut(trimmed, "="); ok {
				if canonical, patched := patchedKey(key); patched {
					if v, ok := options[canonical]; ok {
						if !written[canonical] {
							out = append(out, canonical+"="+v)
							written[canonical] = true
						}
						continue
					}
				}
			}
		}
		out = append(out, line)
	}

	if inOptions {
		flush()
	}
	if !sawOptions {
		head := []string{"[OPTIONS]"}
		for _, key := range patchedOptions {
			if v, ok := options[key]; ok {
				head = append(head, key+"="+v)
			}
		}
		out = append(append(head, ""), out...)
	}

	return []byte(strings.Join(out, "\r\n") + "\r\n")
}

func patchedKey(key string) (string, bool) {
	key = strings.TrimSpace(key)
	for _, k := range patchedOptions {
		if strings.EqualFold(k, key) {
			return k, true
		}
	}
	return "", false
}

// generateProject renders a new .hhp file
func generateProject(files projectFiles, options map[string]string) []byte {
	var b strings.Builder
	line := func(format string, args ...interface{}) {
		fmt.Fprintf(&b, format+"\r\n", args...)
	}

	line("[OPTIONS]")
	line("Compatibility=1.1 or later")
	line("Compiled file=%s", options["Compiled file"])
	line("Contents file=%s", windowsPath(files.contents[0]))
	if len(files.indexes) > 0 {
		line("Index file=%s", windowsPath(files.indexes[0]))
	}
	line("Default topic=%s", windowsPath(defaultTopic(files.pages)))
	line("Display compile progress=No")
	line("Full-text search=Yes")
	line("Language=%s", options["Language"])
	if title, ok := options["Title"]; ok {
		line("Title=%s", title)
	}
	line("")
	line("[FILES]")
	for _, page := range files.pages {
		line("%s", windowsPath(page))
	}

	return []byte(b.String())
}

// defaultTopic picks index.htm(l) at the root, or the first page
func defaultTopic(pages []string) string {
	for _, candidate := range []string{"index.htm", "index.html", "default.htm", "default.html"} {
		for _, page := range pages {
			if strings.EqualFold(page, candidate) {
				return page
			}
		}
	}
	return pages[0]
}

func windowsPath(rel string) string {
	return strings.ReplaceAll(rel, "/", `\`)
}

const generatedContents = "contents.hhc"

// writeContents generates a flat table of contents with one entry per page
func writeContents(dir string, pages []string) error {
	var b strings.Builder
	b.WriteString("<!DOCTYPE HTML PUBLIC \"-//IETF//DTD HTML//EN\">\r\n")
	b.WriteString("<HTML>\r\n<HEAD>\r\n<!-- Sitemap 1.0 -->\r\n</HEAD>\r\n<BODY>\r\n")
	b.WriteString("<OBJECT type=\"text/site properties\">\r\n")
	b.WriteString("\t<param name=\"Window Styles\" value=\"0x227\">\r\n")
	b.WriteString("</OBJECT>\r\n<UL>\r\n")

	for _, page := range pages {
		title := pageTitle(filepath.Join(dir, filepath.FromSlash(page)))
		if title == "" {
			title = strings.TrimSuffix(filepath.Base(page), filepath.Ext(page))
		}
		fmt.Fprintf(&b, "\t<LI> <OBJECT type=\"text/sitemap\">\r\n")
		fmt.Fprintf(&b, "\t\t<param name=\"Name\" value=\"%s\">\r\n", html.EscapeString(title))
		fmt.Fprintf(&b, "\t\t<param name=\"Local\" value=\"%s\">\r\n", html.EscapeString(windowsPath(page)))
		fmt.Fprintf(&b, "\t\t</OBJECT>\r\n")
	}
	b.WriteString("</UL>\r\n</BODY>\r\n</HTML>\r\n")

	path := filepath.Join(dir, generatedContents)
	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		return fmt.Errorf("failed to write table of contents: %w", err)
	}
	return nil
}

// pageTitle returns the text of the first <title> element of an HTML file
func pageTitle(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()

	z := xhtml.NewTokenizer(f)
	inTitle := false
	for {
		switch z.Next() {
		case xhtml.ErrorToken:
			return ""
		case xhtml.StartTagToken:
			name, _ := z.TagName()
			inTitle = atom.Lookup(name) == atom.Title
		case xhtml.EndTagToken:
			inTitle = false
		case xhtml.TextToken:
			if inTitle {
				return strings.Join(strings.Fields(string(z.Text())), " ")
			}
		}
	}
}

// Windows locale ids used by the HTML Help compiler
var lcids = map[string]uint16{
	"ar":      0x401,
	"cs":      0x405,
	"da":      0x406,
	"de":      0x407,
	"el":      0x408,
	"en":      0x409,
	"en-us":   0x409,
	"en-gb":   0x809,
	"es":      0xc0a,
	"fi":      0x40b,
	"fr":      0x40c,
	"he":      0x40d,
	"hu":      0x40e,
	"id":      0x421,
	"it":      0x410,
	"ja":      0x411,
	"ko":      0x412,
	"nb":      0x414,
	"nl":      0x413,
	"no":      0x414,
	"pl":      0x415,
	"pt":      0x816,
	"pt-br":   0x416,
	"pt-pt":   0x816,
	"ru":      0x419,
	"sv":      0x41d,
	"th":      0x41e,
	"tr":      0x41f,
	"uk":      0x422,
	"vi":      0x42a,
	"zh":      0x804,
	"zh-cn":   0x804,
	"zh-hans": 0x804,
	"zh-sg":   0x1004,
	"zh-tw":   0x404,
	"zh-hant": 0x404,
	"zh-hk":   0xc04,
}

// LanguageValue renders the Language= option for a BCP-47 code, e.g.
// "0x804 Chinese (China)". Unknown languages fall back to US English.
func LanguageValue(code string) string {
	lower := strings.ToLower(strings.TrimSpace(code))
	id, ok := lcids[lower]
	if !ok {
		base, _, _ := strings.Cut(lower, "-")
		id, ok = lcids[base]
	}
	if !ok {
		id, code = 0x409, "en-US"
	}

	name := code
	if tag, err := language.Parse(code); err == nil {
		if n := display.English.Tags().Name(tag); n != "" {
			name = n
		}
	}
	return fmt.Sprintf("0x%x %s", id, name)
}

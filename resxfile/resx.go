// Package resxfile implements reading and writing of .NET .resx resource files.
//
// Only the subset of the format used for string localization is handled:
// <data name="..." xml:space="preserve"><value>...</value></data> entries
// plus the four fixed <resheader> metadata entries. A single XML comment
// before the root element carries the human-readable language name
// ("Русский", "中文 (简体)", ...) and is preserved across rewrites.
//
// Files are never patched in place: Marshal regenerates the whole document
// with stable 4-space indentation, so writing the same data twice produces
// byte-identical output.
package resxfile

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// ---------------------------------------------------------------------------
// Data model
// ---------------------------------------------------------------------------

// Entry is a single named string resource.
type Entry struct {
	// Name is the resource key (attribute name="…"). Unique within a file.
	Name string
	// Value is the resource text. May be empty, may contain placeholder
	// tokens ({0}, {1}) and escape sequences that are preserved verbatim.
	Value string
}

// File holds the entries of a parsed .resx file in document order.
type File struct {
	// Entries in document order.
	Entries []*Entry
	// byName maps resource name to index in Entries.
	byName map[string]int
}

// resheader metadata emitted into every written file. The reader/writer
// strings identify the WinForms resx serializer and are required by
// consumers of the format; they are unrelated to translation.
var resHeaders = []Entry{
	{Name: "resmimetype", Value: "text/microsoft-resx"},
	{Name: "version", Value: "1.3"},
	{Name: "reader", Value: "System.Resources.ResXResourceReader, System.Windows.Forms, Version=2.0.0.0, Culture=neutral, PublicKeyToken=b77a5c561934e089"},
	{Name: "writer", Value: "System.Resources.ResXResourceWriter, System.Windows.Forms, Version=2.0.0.0, Culture=neutral, PublicKeyToken=b77a5c561934e089"},
}

// ---------------------------------------------------------------------------
// Parsing
// ---------------------------------------------------------------------------

// ParseFile reads and parses a .resx file.
func ParseFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", filepath.Base(path), err)
	}
	return f, nil
}

// xmlDocument mirrors the subset of the resx schema we read. A <data>
// element without a <value> child is skipped, matching the format's
// reference reader.
type xmlDocument struct {
	XMLName xml.Name  `xml:"root"`
	Data    []xmlData `xml:"data"`
}

type xmlData struct {
	Name  string  `xml:"name,attr"`
	Value *string `xml:"value"`
}

// Parse parses .resx XML data into an ordered File.
func Parse(data []byte) (*File, error) {
	var doc xmlDocument
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}

	f := &File{byName: make(map[string]int)}
	for _, d := range doc.Data {
		if d.Name == "" || d.Value == nil {
			continue
		}
		if _, dup := f.byName[d.Name]; dup {
			continue // first occurrence wins
		}
		f.byName[d.Name] = len(f.Entries)
		f.Entries = append(f.Entries, &Entry{Name: d.Name, Value: *d.Value})
	}
	return f, nil
}

// ---------------------------------------------------------------------------
// Accessors
// ---------------------------------------------------------------------------

// Keys returns all resource names in document order.
func (f *File) Keys() []string {
	keys := make([]string, 0, len(f.Entries))
	for _, e := range f.Entries {
		keys = append(keys, e.Name)
	}
	return keys
}

// Get returns the value for a resource name.
func (f *File) Get(name string) (string, bool) {
	idx, ok := f.byName[name]
	if !ok {
		return "", false
	}
	return f.Entries[idx].Value, true
}

// Map returns a name→value map of all entries. Mutating the map does not
// affect the File.
func (f *File) Map() map[string]string {
	m := make(map[string]string, len(f.Entries))
	for _, e := range f.Entries {
		m[e.Name] = e.Value
	}
	return m
}

// ---------------------------------------------------------------------------
// Language label
// ---------------------------------------------------------------------------

// labelRe matches the language-name comment near the top of a file.
var labelRe = regexp.MustCompile(`<!--\s*(.+?)\s*-->`)

// labelScanLimit bounds how far into the file the label comment is searched;
// the comment sits on the line after the XML declaration.
const labelScanLimit = 256

// Label extracts the language label from the XML comment at the top of the
// file. Returns "" if the file is missing or carries no label.
func Label(path string) string {
	fh, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer fh.Close()

	buf := make([]byte, labelScanLimit)
	n, _ := fh.Read(buf)
	if m := labelRe.FindSubmatch(buf[:n]); m != nil {
		return strings.TrimSpace(string(m[1]))
	}
	return ""
}

// ---------------------------------------------------------------------------
// Writing
// ---------------------------------------------------------------------------

// Marshal produces a complete .resx document: XML declaration, optional
// language-label comment, resheader metadata, then one <data> entry per key
// in order that has a value. Keys in order without a value are omitted —
// this is how retired keys are dropped on rewrite. Keys in values but not
// in order are never emitted: order is the sole ordering authority.
func Marshal(values map[string]string, order []string, label string) []byte {
	var b strings.Builder
	b.WriteString("<?xml version=\"1.0\" encoding=\"utf-8\"?>\n")
	if label != "" {
		b.WriteString("<!-- " + label + " -->\n")
	}
	b.WriteString("<root>\n")

	for _, h := range resHeaders {
		b.WriteString(`    <resheader name="` + h.Name + "\">\n")
		b.WriteString("        <value>" + xmlEscape(h.Value) + "</value>\n")
		b.WriteString("    </resheader>\n")
	}

	for _, name := range order {
		value, ok := values[name]
		if !ok {
			continue
		}
		b.WriteString(`    <data name="` + xmlEscapeAttr(name) + `" xml:space="preserve">` + "\n")
		b.WriteString("        <value>" + xmlEscape(value) + "</value>\n")
		b.WriteString("    </data>\n")
	}

	b.WriteString("</root>\n")
	return []byte(b.String())
}

// WriteFile atomically rewrites path with the marshaled document, writing to
// a temp file in the same directory and renaming over the target so a crash
// never leaves a truncated file behind.
func WriteFile(path string, values map[string]string, order []string, label string) error {
	data := Marshal(values, order, label)

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("creating temp file in %s: %w", dir, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing %s: %w", tmpName, err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing %s: %w", path, err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// xmlEscape escapes text content. Placeholders like {0} and literal escape
// sequences (\n, \r) pass through untouched.
func xmlEscape(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	return s
}

// xmlEscapeAttr escapes an attribute value (text escaping plus quotes).
func xmlEscapeAttr(s string) string {
	s = xmlEscape(s)
	return strings.ReplaceAll(s, `"`, "&quot;")
}

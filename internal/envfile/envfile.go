// Package envfile implements an ordered key/value view over KEY=VALUE text
// blobs, with the quoting and escaping rules of shell-style .env files.
package envfile

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// EnvFile holds the raw line sequence of an environment file. The mapping
// view is derived on demand; mutation rewrites lines in place so insertion
// order, comments and blank lines survive Set and Unset.
type EnvFile struct {
	lines []string
}

func New() *EnvFile {
	return &EnvFile{}
}

// Parse builds an EnvFile from raw text. All lines are kept, including the
// ones the mapping view ignores.
func Parse(data []byte) *EnvFile {
	text := strings.TrimSuffix(string(data), "\n")
	if text == "" {
		return &EnvFile{}
	}
	return &EnvFile{lines: strings.Split(text, "\n")}
}

// ParseVar splits one KEY=VALUE declaration. Keys and values are trimmed; a
// value wrapped in matching single or double quotes is unwrapped and its
// backslash escapes decoded, so "\n" inside quotes becomes a real newline.
// Lines without a "=" report ok=false.
func ParseVar(line string) (key, value string, ok bool) {
	key, value, ok = strings.Cut(line, "=")
	if !ok {
		return "", "", false
	}
	key = strings.TrimSpace(key)
	value = strings.TrimSpace(value)
	if len(value) >= 2 && (value[0] == '\'' || value[0] == '"') && value[len(value)-1] == value[0] {
		value = decodeEscapes(value[1 : len(value)-1])
	}
	return key, value, true
}

// eligible reports whether a line contributes to the mapping view. Blank
// lines, comments and lines without "=" are ignored entirely.
func eligible(line string) bool {
	trimmed := strings.TrimSpace(line)
	return trimmed != "" && !strings.HasPrefix(trimmed, "#") && strings.Contains(trimmed, "=")
}

// AsMap applies the parse rule to every eligible line. Later declarations of
// the same key win.
func (f *EnvFile) AsMap() map[string]string {
	vars := make(map[string]string)
	for _, line := range f.lines {
		if !eligible(line) {
			continue
		}
		if key, value, ok := ParseVar(line); ok {
			vars[key] = value
		}
	}
	return vars
}

// Set parses assignment as one KEY=VALUE pair and replaces the first line
// declaring that key, preserving its position. When no line matches, the
// declaration is appended. Comment and blank lines are preserved verbatim.
func (f *EnvFile) Set(assignment string) error {
	key, value, ok := ParseVar(assignment)
	if !ok || key == "" {
		return fmt.Errorf("invalid variable assignment %q", assignment)
	}

	rendered := renderVar(key, value)
	for i, line := range f.lines {
		if !eligible(line) {
			continue
		}
		if existing, _, ok := ParseVar(line); ok && existing == key {
			f.lines[i] = rendered
			return nil
		}
	}
	f.lines = append(f.lines, rendered)
	return nil
}

// Unset removes the first line declaring key. A missing key is not an
// error: it is logged and the file is left untouched.
func (f *EnvFile) Unset(key string) bool {
	for i, line := range f.lines {
		if !eligible(line) {
			continue
		}
		if existing, _, ok := ParseVar(line); ok && existing == key {
			f.lines = append(f.lines[:i], f.lines[i+1:]...)
			return true
		}
	}
	slog.Info("key not found in environment file, doing nothing", "key", key)
	return false
}

// FromMap replaces the whole file content with one declaration per entry,
// in key order.
func (f *EnvFile) FromMap(vars map[string]string) {
	keys := make([]string, 0, len(vars))
	for key := range vars {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	f.lines = f.lines[:0]
	for _, key := range keys {
		f.lines = append(f.lines, renderVar(key, vars[key]))
	}
}

// Update merges the other file's variables over this one. The result is in
// mapping form: comments do not survive a merge.
func (f *EnvFile) Update(other *EnvFile) {
	vars := f.AsMap()
	for key, value := range other.AsMap() {
		vars[key] = value
	}
	f.FromMap(vars)
}

// Serialize renders the file back to text. Parse(Serialize(f)) yields the
// same line sequence.
func (f *EnvFile) Serialize() []byte {
	if len(f.lines) == 0 {
		return nil
	}
	return []byte(strings.Join(f.lines, "\n") + "\n")
}

// Diff returns a unified diff from this file to other. By convention this
// file is labeled the remote side.
func (f *EnvFile) Diff(other *EnvFile, fromLabel, toLabel string) (string, error) {
	return DiffBytes(f.Serialize(), other.Serialize(), fromLabel, toLabel)
}

// DiffBytes is a line-based unified diff between two text blobs.
func DiffBytes(from, to []byte, fromLabel, toLabel string) (string, error) {
	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(from)),
		B:        difflib.SplitLines(string(to)),
		FromFile: fromLabel,
		ToFile:   toLabel,
		Context:  3,
	})
	if err != nil {
		return "", fmt.Errorf("diff: %w", err)
	}
	return diff, nil
}

// renderVar formats a declaration, quoting the value when it contains
// characters that would break the line-oriented format.
func renderVar(key, value string) string {
	if strings.ContainsAny(value, "\n\"'") {
		return key + "=" + quote(value)
	}
	return key + "=" + value
}

func quote(value string) string {
	replacer := strings.NewReplacer(
		"\\", "\\\\",
		"\"", "\\\"",
		"\n", "\\n",
		"\r", "\\r",
		"\t", "\\t",
	)
	return "\"" + replacer.Replace(value) + "\""
}

// decodeEscapes decodes the backslash escapes understood inside quoted
// values. Unknown escapes are kept literally.
func decodeEscapes(s string) string {
	if !strings.Contains(s, "\\") {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i == len(s)-1 {
			b.WriteByte(c)
			continue
		}
		i++
		switch s[i] {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		case 'f':
			b.WriteByte('\f')
		case 'v':
			b.WriteByte('\v')
		case 'a':
			b.WriteByte('\a')
		case 'b':
			b.WriteByte('\b')
		case '0':
			b.WriteByte(0)
		case '\\', '\'', '"':
			b.WriteByte(s[i])
		case 'x':
			if i+2 < len(s) {
				if r, ok := hexRune(s[i+1 : i+3]); ok {
					b.WriteRune(r)
					i += 2
					continue
				}
			}
			b.WriteString(`\x`)
		case 'u':
			if i+4 < len(s) {
				if r, ok := hexRune(s[i+1 : i+5]); ok {
					b.WriteRune(r)
					i += 4
					continue
				}
			}
			b.WriteString(`\u`)
		default:
			b.WriteByte('\\')
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

func hexRune(s string) (rune, bool) {
	var r rune
	for _, c := range s {
		var v rune
		switch {
		case c >= '0' && c <= '9':
			v = c - '0'
		case c >= 'a' && c <= 'f':
			v = c - 'a' + 10
		case c >= 'A' && c <= 'F':
			v = c - 'A' + 10
		default:
			return 0, false
		}
		r = r<<4 | v
	}
	return r, true
}

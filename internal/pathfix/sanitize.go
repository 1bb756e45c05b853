package pathfix

import (
	"path/filepath"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// MaxComponentRunes bounds a sanitized path component.
const MaxComponentRunes = 244

const (
	enDash      = '–'
	numeroSign  = '№'
	cyrillicYo  = 'Ё'
	cyrillicYoL = 'ё'
)

// allowedPunct is the punctuation kept verbatim.
const allowedPunct = " !#$%&()+,-.;=@[]^_`"

// IsAllowed reports whether r survives sanitization unchanged.
func IsAllowed(r rune) bool {
	switch {
	case r >= '0' && r <= '9':
		return true
	case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z':
		return true
	case r >= 'А' && r <= 'я':
		return true
	case r == cyrillicYo || r == cyrillicYoL:
		return true
	}
	return strings.ContainsRune(allowedPunct, r)
}

// Sanitize maps one path component onto the allowed character set.
//
// Input is NFC-normalized so decomposed Cyrillic letters are kept, truncated
// to MaxComponentRunes, and every disallowed rune becomes a space (en dash
// becomes "-", numero sign becomes "No"). Runs of spaces collapse and
// leading or trailing spaces and dots are stripped. Sanitize is idempotent.
func Sanitize(component string) string {
	component = norm.NFC.String(component)
	component = truncateRunes(component, MaxComponentRunes)

	var b strings.Builder
	b.Grow(len(component))
	for _, r := range component {
		switch {
		case IsAllowed(r):
			b.WriteRune(r)
		case r == enDash:
			b.WriteByte('-')
		case r == numeroSign:
			b.WriteString("No")
		default:
			b.WriteByte(' ')
		}
	}

	out := trimEdges(strings.Join(strings.Fields(b.String()), " "))
	// "No" expansion can push a full-length component past the bound.
	if utf8.RuneCountInString(out) > MaxComponentRunes {
		out = trimEdges(truncateRunes(out, MaxComponentRunes))
	}
	return out
}

// SanitizePath sanitizes each component of p. The volume and root anchor are
// kept as-is, the final extension is re-appended unchanged and components
// that sanitize to nothing are dropped.
func SanitizePath(p string) string {
	if p == "" {
		return ""
	}
	anchor := filepath.VolumeName(p)
	rest := p[len(anchor):]
	if strings.HasPrefix(rest, string(filepath.Separator)) {
		anchor += string(filepath.Separator)
		rest = strings.TrimLeft(rest, string(filepath.Separator))
	}

	parts := strings.Split(rest, string(filepath.Separator))
	suffix := ""
	if last := len(parts) - 1; last >= 0 {
		var stem string
		stem, suffix = splitSuffix(parts[last])
		parts[last] = stem
	}

	kept := make([]string, 0, len(parts))
	for _, part := range parts {
		if clean := Sanitize(part); clean != "" {
			kept = append(kept, clean)
		}
	}
	return anchor + strings.Join(kept, string(filepath.Separator)) + suffix
}

// splitSuffix separates a trailing extension. A leading or trailing dot does
// not start an extension.
func splitSuffix(name string) (string, string) {
	i := strings.LastIndexByte(name, '.')
	if i <= 0 || i == len(name)-1 {
		return name, ""
	}
	return name[:i], name[i:]
}

func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	count := 0
	for i := range s {
		if count == limit {
			return s[:i]
		}
		count++
	}
	return s
}

func trimEdges(s string) string {
	return strings.Trim(s, ". ")
}

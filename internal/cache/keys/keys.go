// Package keys builds the cache and storage keys used by the service.
package keys

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"
)

const maxSegmentLen = 64

// Content identifies a validated batch by the bytes it was parsed from and
// the settings that shaped the parse. Identical uploads share a key.
func Content(format, csvMode string, data []byte) string {
	return fmt.Sprintf("parse:%s:%s:%016x", sanitize(format), sanitize(csvMode), xxhash.Sum64(data))
}

// Dataset is the hash holding one stored dataset and its metadata.
func Dataset(prefix, id string) string {
	return fmt.Sprintf("%s:dataset:%s", sanitize(strings.TrimSpace(prefix)), sanitize(id))
}

// OwnerIndex is the sorted set of an owner's dataset ids, scored by save
// time. The readable part is truncated and lossy so the raw owner hash
// keeps distinct owners apart.
func OwnerIndex(prefix, owner string) string {
	safe := sanitize(strings.TrimSpace(owner))
	if len(safe) > maxSegmentLen {
		safe = safe[:maxSegmentLen]
	}
	return fmt.Sprintf("%s:owner:%s:o=%016x:datasets", sanitize(strings.TrimSpace(prefix)), safe, xxhash.Sum64String(owner))
}

func sanitize(s string) string {
	if s == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(s))

	var prev rune
	for _, r := range s {
		out := rune(0)
		switch {
		case r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\v' || r == '\f':
			out = '_'
		case isAlphaNum(r) || r == '_' || r == '-' || r == '.':
			out = r
		default:
			// ':' included, so a value can never forge an extra key segment
			out = '-'
		}
		if (out == '_' || out == '-') && out == prev {
			continue
		}
		b.WriteRune(out)
		prev = out
	}
	return b.String()
}

func isAlphaNum(r rune) bool {
	return (r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z') ||
		(r < unicode.MaxASCII && unicode.IsDigit(r))
}

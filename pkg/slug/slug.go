// Copyright (c) 2026 Lectern. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package slug turns document titles into ASCII file names.
//
// The server uses it for the Content-Disposition filename of a served PDF and
// the reader host for the names of rendered page images, e.g. "Cà Phê Sữa"
// becomes "ca-phe-sua".
package slug

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// fallbackName is used when a title has no ASCII-representable characters.
const fallbackName = "document"

// foldLetters spells out letters that NFD does not decompose.
var foldLetters = strings.NewReplacer("đ", "d", "Đ", "d", "ø", "o", "Ø", "o", "ß", "ss", "æ", "ae", "Æ", "ae")

// From lowercases s, strips accents and joins the remaining ASCII letters and
// digits with single hyphens. It returns "" when nothing survives.
func From(s string) string {
	stripAccents := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	plain, _, err := transform.String(stripAccents, foldLetters.Replace(s))
	if err != nil {
		plain = s
	}

	var builder strings.Builder
	pendingHyphen := false
	for _, r := range strings.ToLower(plain) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			if pendingHyphen && builder.Len() > 0 {
				builder.WriteByte('-')
			}
			builder.WriteRune(r)
			pendingHyphen = false
			continue
		}
		pendingHyphen = true
	}

	return builder.String()
}

// Filename builds a header-safe filename from a title and an extension
// (without the dot). Titles that reduce to nothing fall back to "document".
func Filename(title, extension string) string {
	base := From(title)
	if base == "" {
		base = fallbackName
	}

	if extension == "" {
		return base
	}

	return base + "." + extension
}

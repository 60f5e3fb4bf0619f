// Package dsname derives rrd data source names from sample coordinates.
//
// rrdtool caps data source names at 19 characters, while the metrics being
// written carry arbitrary type-name groups, attribute names and sub-keys.
// Derive compresses long attribute names to their camel-case initials and
// appends an MD5 digest of the full key, then truncates the result:
//
//	Derive("", "HeapMemoryUsage", "used")  // "HeapMemoryUsage" + md5[:4]
//	Derive("", "CollectionTimeMillis", "") // "CTM" + md5[:16]
//
// The truncation keeps only the leading characters of the digest, so two
// keys whose readable prefixes match and whose digests agree on the kept
// characters collide. With a full 15-character prefix only 4 hex digits
// (16 bits) of digest survive. Names are kept bit-for-bit stable because
// existing databases were created with them; collisions are detected by
// the writer instead.
//
// Lengths, splitting and truncation work on UTF-16 code units, and every
// code unit is classified by its own general category, so names outside
// the Basic Multilingual Plane derive the same identifiers as before.
// A surrogate pair cut by truncation or initials decodes to U+FFFD.
// Category tables come from the Go unicode package and may disagree with
// older Unicode versions for recently assigned code points.
package dsname

import (
	"crypto/md5"
	"encoding/hex"
	"strings"
	"unicode"
	"unicode/utf16"
)

const (
	// MaxLength is the longest identifier Derive returns.
	MaxLength = 19

	// CompressThreshold is the longest metric name kept verbatim.
	CompressThreshold = 15
)

// Derive returns the data source name for one sample.
// seriesGroup may be empty.
func Derive(seriesGroup, metricName, subKey string) string {
	raw := seriesGroup + metricName + subKey

	sum := md5.Sum([]byte(raw))
	id := Compress(metricName) + hex.EncodeToString(sum[:])

	return left(id, MaxLength)
}

// Compress returns metricName unchanged when it is at most
// CompressThreshold code units long, and its camel-case initials otherwise.
func Compress(metricName string) string {
	if Length(metricName) <= CompressThreshold {
		return metricName
	}
	return Initials(strings.Join(SplitCamelCase(metricName), "."))
}

// Length returns the length of s in UTF-16 code units.
func Length(s string) int {
	n := 0
	for _, r := range s {
		n += utf16.RuneLen(r)
	}
	return n
}

// Initials returns the first code unit of every segment of s, where
// segments are separated by runs of spaces or dots.
func Initials(s string) string {
	var out []uint16
	gap := true
	for _, c := range utf16.Encode([]rune(s)) {
		switch {
		case c == ' ' || c == '.':
			gap = true
		case gap:
			out = append(out, c)
			gap = false
		}
	}
	return string(utf16.Decode(out))
}

// SplitCamelCase splits s into runs of code units of the same character
// type. An upper-case run followed by a lower-case letter gives up its
// last letter to the lower-case run, so "ASFRules" splits into "ASF" and
// "Rules".
func SplitCamelCase(s string) []string {
	if s == "" {
		return nil
	}

	units := utf16.Encode([]rune(s))
	var tokens []string

	start := 0
	current := charType(units[0])
	for pos := 1; pos < len(units); pos++ {
		typ := charType(units[pos])
		if typ == current {
			continue
		}
		if typ == lower && current == upper {
			split := pos - 1
			if split != start {
				tokens = append(tokens, string(utf16.Decode(units[start:split])))
				start = split
			}
		} else {
			tokens = append(tokens, string(utf16.Decode(units[start:pos])))
			start = pos
		}
		current = typ
	}

	return append(tokens, string(utf16.Decode(units[start:])))
}

// left returns at most n leading code units of s.
func left(s string, n int) string {
	units := utf16.Encode([]rune(s))
	if len(units) <= n {
		return s
	}
	return string(utf16.Decode(units[:n]))
}

// Character classes, one per Unicode general category. Unassigned code
// points fall into unassigned.
const (
	unassigned = iota
	upper
	lower
	title
	modifierLetter
	otherLetter
	nonSpacingMark
	enclosingMark
	combiningMark
	digit
	letterNumber
	otherNumber
	space
	lineSeparator
	paragraphSeparator
	control
	format
	privateUse
	surrogate
	dash
	openPunct
	closePunct
	connector
	otherPunct
	math
	currency
	modifierSymbol
	otherSymbol
	initialQuote
	finalQuote
)

var categories = []struct {
	table *unicode.RangeTable
	class int
}{
	{unicode.Lu, upper},
	{unicode.Ll, lower},
	{unicode.Lt, title},
	{unicode.Lm, modifierLetter},
	{unicode.Lo, otherLetter},
	{unicode.Mn, nonSpacingMark},
	{unicode.Me, enclosingMark},
	{unicode.Mc, combiningMark},
	{unicode.Nd, digit},
	{unicode.Nl, letterNumber},
	{unicode.No, otherNumber},
	{unicode.Zs, space},
	{unicode.Zl, lineSeparator},
	{unicode.Zp, paragraphSeparator},
	{unicode.Cc, control},
	{unicode.Cf, format},
	{unicode.Co, privateUse},
	{unicode.Cs, surrogate},
	{unicode.Pd, dash},
	{unicode.Ps, openPunct},
	{unicode.Pe, closePunct},
	{unicode.Pc, connector},
	{unicode.Po, otherPunct},
	{unicode.Sm, math},
	{unicode.Sc, currency},
	{unicode.Sk, modifierSymbol},
	{unicode.So, otherSymbol},
	{unicode.Pi, initialQuote},
	{unicode.Pf, finalQuote},
}

// charType classifies a single UTF-16 code unit. Surrogate halves are
// classified as surrogate, never by the character they encode.
func charType(c uint16) int {
	r := rune(c)
	for _, cat := range categories {
		if unicode.Is(cat.table, r) {
			return cat.class
		}
	}
	return unassigned
}

package mood

import (
	"strings"
	"unicode"

	"github.com/rivo/uniseg"
)

// pictographs approximates the Unicode Extended_Pictographic property,
// which the unicode package does not export.
var pictographs = &unicode.RangeTable{
	R16: []unicode.Range16{
		{Lo: 0x00a9, Hi: 0x00a9, Stride: 1},
		{Lo: 0x00ae, Hi: 0x00ae, Stride: 1},
		{Lo: 0x203c, Hi: 0x203c, Stride: 1},
		{Lo: 0x2049, Hi: 0x2049, Stride: 1},
		{Lo: 0x2122, Hi: 0x2122, Stride: 1},
		{Lo: 0x2139, Hi: 0x2139, Stride: 1},
		{Lo: 0x2194, Hi: 0x21aa, Stride: 1},
		{Lo: 0x231a, Hi: 0x23ff, Stride: 1},
		{Lo: 0x24c2, Hi: 0x24c2, Stride: 1},
		{Lo: 0x25aa, Hi: 0x25fe, Stride: 1},
		{Lo: 0x2600, Hi: 0x27bf, Stride: 1},
		{Lo: 0x2934, Hi: 0x2935, Stride: 1},
		{Lo: 0x2b05, Hi: 0x2b55, Stride: 1},
		{Lo: 0x3030, Hi: 0x3030, Stride: 1},
		{Lo: 0x303d, Hi: 0x303d, Stride: 1},
		{Lo: 0x3297, Hi: 0x3299, Stride: 1},
	},
	R32: []unicode.Range32{
		{Lo: 0x1f000, Hi: 0x1faff, Stride: 1},
	},
}

// IsPictograph reports whether s holds a real emoji glyph rather than a word
// such as "joyful". Pure ASCII never qualifies.
func IsPictograph(s string) bool {
	for _, r := range s {
		if unicode.Is(pictographs, r) {
			return true
		}
	}
	return false
}

// FirstPictograph returns the first user-perceived character of s that is a
// pictograph, keeping modifiers and ZWJ sequences intact. A reply such as
// "rabbit 🐇" yields "🐇"; "rabbit" yields "".
func FirstPictograph(s string) string {
	rest := strings.TrimSpace(s)
	state := -1
	var cluster string
	for rest != "" {
		cluster, rest, _, state = uniseg.FirstGraphemeClusterInString(rest, state)
		if IsPictograph(cluster) {
			return cluster
		}
	}
	return ""
}

// NormalizeEmoji returns the first pictograph in s, or fallback when s has none.
func NormalizeEmoji(s, fallback string) string {
	if g := FirstPictograph(s); g != "" {
		return g
	}
	return fallback
}

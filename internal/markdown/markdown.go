package markdown

import "strings"

// Taken from https://core.telegram.org/bots/api#markdownv2-style.
const mdV2SpecialChars = `_*[]()~` + "`" + `>#+-=|{}.!\`

var mdV2Lookup = func() [256]bool {
	var m [256]bool
	for _, c := range []byte(mdV2SpecialChars) {
		m[c] = true
	}
	return m
}()

func EscapeV2(input string) string {
	specials := 0
	for i := range len(input) {
		if mdV2Lookup[input[i]] {
			specials++
		}
	}
	if specials == 0 {
		return input
	}

	var b strings.Builder
	b.Grow(len(input) + specials)

	for i := range len(input) {
		if mdV2Lookup[input[i]] {
			b.WriteByte('\\')
		}
		b.WriteByte(input[i])
	}

	return b.String()
}

func Bold(text string) string {
	return "*" + EscapeV2(text) + "*"
}

// Code wraps text in inline code, where only ` and \ need escaping.
func Code(text string) string {
	text = strings.ReplaceAll(text, `\`, `\\`)
	text = strings.ReplaceAll(text, "`", "\\`")
	return "`" + text + "`"
}

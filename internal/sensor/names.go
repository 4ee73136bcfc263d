package sensor

import (
	"strings"
	"unicode"
)

// currencyEmoji are the markers YNAB users put in front of cash account names.
var currencyEmoji = []string{"💰", "💵", "💸", "🪙"}

func isAlnum(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsNumber(r)
}

// leadingRun returns the prefix of s up to the first alphanumeric or space
// character. When there is none the whole string is returned.
func leadingRun(s string) string {
	for i, r := range s {
		if isAlnum(r) || unicode.IsSpace(r) {
			return s[:i]
		}
	}
	return s
}

// AccountName renders an account name. Only the currency emoji are treated as
// a prefix; a kept prefix is separated from the rest by one space.
func AccountName(name string, includeEmoji bool) string {
	var prefix string
	for _, e := range currencyEmoji {
		if strings.HasPrefix(name, e) {
			prefix = leadingRun(name)
			break
		}
	}
	if prefix == "" {
		return name
	}
	rest := strings.TrimSpace(name[len(prefix):])
	if includeEmoji {
		return prefix + " " + rest
	}
	return rest
}

// AssetName renders an asset name. Any leading run of symbols counts as the
// prefix.
func AssetName(name string, includeEmoji bool) string {
	if name == "" {
		return name
	}
	first := []rune(name)[0]
	if isAlnum(first) || unicode.IsSpace(first) {
		return name
	}
	prefix := leadingRun(name)
	rest := strings.TrimSpace(name[len(prefix):])
	if !includeEmoji {
		return rest
	}
	if rest == "" {
		return prefix
	}
	return prefix + " " + rest
}

// ShortPrefixName renders liability and card names: when the first character
// is not alphanumeric the first two characters are the prefix, kept verbatim
// or dropped.
func ShortPrefixName(name string, includeEmoji bool) string {
	runes := []rune(name)
	if len(runes) <= 1 || isAlnum(runes[0]) {
		return name
	}
	if includeEmoji {
		return name
	}
	return strings.TrimSpace(string(runes[2:]))
}

func withBank(bank, name string, include bool) string {
	if include && bank != "" {
		return bank + " " + name
	}
	return name
}

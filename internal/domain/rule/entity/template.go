package entity

import (
	"regexp"
	"strings"
	"unicode"
)

var placeholderRe = regexp.MustCompile(`\{([a-z_]+)\}`)

// Attributes returns the placeholder values available for a target
func (t Target) Attributes() map[string]string {
	return map[string]string{
		"first_name": t.FirstName,
		"last_name":  t.LastName,
		"name":       t.DisplayName(),
		"headline":   t.Headline,
		"company":    t.Company,
		"industry":   t.Industry,
		"location":   t.Location,
	}
}

// Render substitutes {placeholder} tokens with target attributes.
// Unknown placeholders and empty attributes render as "".
func Render(template string, t Target) string {
	if template == "" {
		return ""
	}
	attrs := t.Attributes()
	out := placeholderRe.ReplaceAllStringFunc(template, func(token string) string {
		return attrs[token[1:len(token)-1]]
	})
	return strings.TrimSpace(out)
}

// IsSenior reports whether the headline holds a decision-maker title as a
// whole word, so "Doctor" does not count as a CTO
func (t Target) IsSenior() bool {
	words := strings.FieldsFunc(strings.ToLower(t.Headline), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		if _, ok := seniorTitles[w]; ok {
			return true
		}
	}
	return false
}

var seniorTitles = map[string]struct{}{
	"ceo":       {},
	"founder":   {},
	"cofounder": {},
	"cto":       {},
	"vp":        {},
	"director":  {},
	"partner":   {},
}

package ocr

import (
	"regexp"
	"strings"
)

var (
	reCRLF       = regexp.MustCompile(`\r\n?`)
	reTabs       = regexp.MustCompile(`\t+`)
	reMultiSpace = regexp.MustCompile(` {2,}`)
	reMultiBlank = regexp.MustCompile(`\n{3,}`)
	// blank answer lines on printed forms: "________" or "-------"
	reRuleLine = regexp.MustCompile(`(?m)^\s*[_\-=.]{3,}\s*$`)
	reRuleRun  = regexp.MustCompile(`_{3,}`)
)

// StripFormRules removes underscore/hyphen answer lines that tesseract reads off
// printed forms and collapses the whitespace left behind. Characters inside
// values are never rewritten.
func StripFormRules(s string) string {
	if s == "" {
		return s
	}
	s = reCRLF.ReplaceAllString(s, "\n")
	s = reRuleLine.ReplaceAllString(s, "")
	s = reRuleRun.ReplaceAllString(s, " ")
	s = reTabs.ReplaceAllString(s, " ")
	s = reMultiSpace.ReplaceAllString(s, " ")
	lines := strings.Split(s, "\n")
	for i := range lines {
		lines[i] = strings.TrimRight(lines[i], " ")
	}
	s = strings.Join(lines, "\n")
	s = reMultiBlank.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

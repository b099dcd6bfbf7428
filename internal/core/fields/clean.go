package fields

import "strings"

// CleanValue collapses whitespace runs to one space and trims spaces, commas,
// semicolons, colons and hyphens from both ends.
func CleanValue(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	return strings.Trim(s, " ,;:-")
}

package fields

import (
	"regexp"

	"github.com/joseph-ayodele/formscan/constants"
)

var (
	reHeurName  = regexp.MustCompile(`(?i)Name[:\s]+([A-Za-z][A-Za-z\s.'-]{1,40})`)
	reHeurDOB   = regexp.MustCompile(`(?i)DOB[:\s]+([0-9]{1,2}[\-/][0-9]{1,2}[\-/][0-9]{2,4})`)
	reEmail     = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)
	reHeurPhone = regexp.MustCompile(`(?i)Phone[:\s#]*([+\d][\d\s()\-]{7,20})`)
)

// Heuristic extracts name, dob, email and phone with fixed patterns. Keys
// without a match are omitted. Only the first match of each pattern counts.
func Heuristic(text string) map[string]string {
	out := make(map[string]string, 4)
	if m := reHeurName.FindStringSubmatch(text); m != nil {
		out[constants.FieldName] = CleanValue(m[1])
	}
	if m := reHeurDOB.FindStringSubmatch(text); m != nil {
		out[constants.FieldDOB] = CleanValue(m[1])
	}
	if m := reEmail.FindString(text); m != "" {
		out[constants.FieldEmail] = CleanValue(m)
	}
	if m := reHeurPhone.FindStringSubmatch(text); m != nil {
		out[constants.FieldPhone] = CleanValue(m[1])
	}
	return out
}

package fields

import (
	"regexp"
	"strings"

	"github.com/joseph-ayodele/formscan/constants"
)

var (
	reNameDisallowed = regexp.MustCompile(`[^A-Za-z .'-]`)
	reNameDOBToken   = regexp.MustCompile(`(?i)\bDOB\b`)
	reDateDisallowed = regexp.MustCompile(`[^0-9/-]`)
	rePhoneDisallow  = regexp.MustCompile(`[^0-9+]`)
	reNonDigit       = regexp.MustCompile(`[^0-9]`)
)

// Enforce applies the per-field format rules and returns a new set. Empty
// values and raw_extraction are left alone. Enforce never fails and
// Enforce(Enforce(x)) == Enforce(x).
func Enforce(in FieldSet) FieldSet {
	out := in.Clone()

	if v := out[constants.FieldName]; v != "" {
		out[constants.FieldName] = enforceName(v)
	}
	for _, k := range []string{constants.FieldDOB, constants.FieldDate} {
		if v := out[k]; v != "" {
			out[k] = enforceDate(v)
		}
	}
	for _, k := range []string{constants.FieldPhone, constants.FieldEmergencyContactPhone} {
		if v := out[k]; v != "" {
			out[k] = enforcePhone(v)
		}
	}
	if v := out[constants.FieldZip]; v != "" {
		out[constants.FieldZip] = reNonDigit.ReplaceAllString(v, "")
	}
	if v := out[constants.FieldEmail]; v != "" {
		out[constants.FieldEmail] = reEmail.FindString(strings.ToLower(v))
	}
	return out
}

func enforceName(v string) string {
	v = reNameDisallowed.ReplaceAllString(v, "")
	if loc := reNameDOBToken.FindStringIndex(v); loc != nil {
		v = v[:loc[0]]
	}
	return strings.TrimSpace(v)
}

func enforceDate(v string) string {
	v = reDateDisallowed.ReplaceAllString(v, "")
	return strings.Trim(v, "-/")
}

// enforcePhone keeps digits and a single leading plus sign.
func enforcePhone(v string) string {
	v = rePhoneDisallow.ReplaceAllString(v, "")
	lead := strings.HasPrefix(v, "+")
	v = strings.ReplaceAll(v, "+", "")
	if lead {
		return "+" + v
	}
	return v
}

// ValidEmail reports whether v fully matches the accepted email shape.
func ValidEmail(v string) bool {
	loc := reEmail.FindStringIndex(v)
	return loc != nil && loc[0] == 0 && loc[1] == len(v)
}

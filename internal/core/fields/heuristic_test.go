package fields

import (
	"testing"

	"github.com/joseph-ayodele/formscan/constants"
)

func TestHeuristic_FormLine(t *testing.T) {
	got := Heuristic("Name: Jane A. Doe DOB 04/12/1990 john@x.com Phone: 555-1234")

	if got[constants.FieldName] != "Jane A. Doe DOB" {
		t.Errorf("name: got %q", got[constants.FieldName])
	}
	if got[constants.FieldDOB] != "04/12/1990" {
		t.Errorf("dob: got %q", got[constants.FieldDOB])
	}
	if got[constants.FieldEmail] != "john@x.com" {
		t.Errorf("email: got %q", got[constants.FieldEmail])
	}
	if got[constants.FieldPhone] != "555-1234" {
		t.Errorf("phone: got %q", got[constants.FieldPhone])
	}
}

func TestHeuristic_NoMatches(t *testing.T) {
	if got := Heuristic("nothing useful here"); len(got) != 0 {
		t.Errorf("expected no keys, got %v", got)
	}
}

func TestCleanValue(t *testing.T) {
	cases := map[string]string{
		"  Jane \t\n Doe ; ": "Jane Doe",
		"-: 555-1234,":       "555-1234",
		"":                   "",
		" ,;:- ":             "",
	}
	for in, want := range cases {
		if got := CleanValue(in); got != want {
			t.Errorf("CleanValue(%q) = %q, want %q", in, got, want)
		}
	}
}

package fields

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/joseph-ayodele/formscan/constants"
)

func TestNew_HasEverySchemaKey(t *testing.T) {
	fs := New()
	if len(fs) != len(constants.FieldNames()) {
		t.Fatalf("expected %d keys, got %d", len(constants.FieldNames()), len(fs))
	}
	for _, k := range constants.FieldNames() {
		if v, ok := fs[k]; !ok || v != "" {
			t.Errorf("key %s missing or non-empty", k)
		}
	}
}

func TestFieldSet_StringIsOrderedAndStable(t *testing.T) {
	fs := New()
	fs[constants.FieldName] = "O'Neil"
	fs[constants.FieldRawExtraction] = "raw"

	s := fs.String()
	if !strings.HasPrefix(s, `{'name': 'O\'Neil', 'dob': '', 'address': ''`) {
		t.Errorf("unexpected prefix: %s", s)
	}
	if !strings.HasSuffix(s, `'date': '', 'raw_extraction': 'raw'}`) {
		t.Errorf("unexpected suffix: %s", s)
	}
	if s != fs.Clone().String() {
		t.Errorf("String must be deterministic")
	}
}

func TestFieldSet_MarshalJSONOrder(t *testing.T) {
	fs := New()
	fs[constants.FieldDate] = "01/01/2024"
	b, err := json.Marshal(fs)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(b), `{"name":"","dob":""`) {
		t.Errorf("expected schema order, got %s", b)
	}

	var back FieldSet
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatal(err)
	}
	if back[constants.FieldDate] != "01/01/2024" {
		t.Errorf("lost date on decode: %v", back)
	}
}

func TestDraft_ModelWinsOverHeuristic(t *testing.T) {
	d := NewDraft()
	d.SetModel(constants.FieldName, " Alice ")
	d.SetModel("unknown_key", "x")
	filled := d.FillHeuristic(map[string]string{
		constants.FieldName:  "Bob",
		constants.FieldEmail: "bob@x.com",
	})

	fs := d.FieldSet()
	if fs[constants.FieldName] != "Alice" {
		t.Errorf("expected model value, got %q", fs[constants.FieldName])
	}
	if fs[constants.FieldEmail] != "bob@x.com" {
		t.Errorf("expected heuristic fill, got %q", fs[constants.FieldEmail])
	}
	if _, ok := fs["unknown_key"]; ok {
		t.Errorf("unknown key leaked into field set")
	}
	if len(filled) != 1 || filled[0] != constants.FieldEmail {
		t.Errorf("unexpected filled keys: %v", filled)
	}

	prov := d.Provenance()
	if prov[constants.FieldName] != SourceModel || prov[constants.FieldEmail] != SourceHeuristic || prov[constants.FieldCity] != SourceAbsent {
		t.Errorf("unexpected provenance: %v", prov)
	}
}

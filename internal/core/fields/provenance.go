package fields

import "github.com/joseph-ayodele/formscan/constants"

// Source records where a field value came from.
type Source string

const (
	SourceAbsent    Source = "absent"
	SourceModel     Source = "model"
	SourceHeuristic Source = "heuristic"
)

type sourced struct {
	value  string
	source Source
}

// Draft accumulates field values with their provenance before they are
// collapsed into a FieldSet. Model values always take precedence; heuristic
// values only fill keys the model left empty.
type Draft struct {
	values map[string]sourced
	raw    *string
}

func NewDraft() *Draft {
	d := &Draft{values: make(map[string]sourced, len(constants.FieldNames()))}
	for _, k := range constants.FieldNames() {
		d.values[k] = sourced{source: SourceAbsent}
	}
	return d
}

// SetModel records a cleaned model value for a schema key. Unknown keys and
// empty values are ignored.
func (d *Draft) SetModel(key, value string) {
	if !constants.IsField(key) {
		return
	}
	value = CleanValue(value)
	if value == "" {
		return
	}
	d.values[key] = sourced{value: value, source: SourceModel}
}

// SetRawExtraction stores the unparsed model text.
func (d *Draft) SetRawExtraction(raw string) {
	d.raw = &raw
}

// FillHeuristic copies heuristic values into keys that are still absent and
// returns the keys it filled.
func (d *Draft) FillHeuristic(h map[string]string) []string {
	var filled []string
	for _, k := range constants.FieldNames() {
		v, ok := h[k]
		if !ok || v == "" {
			continue
		}
		if d.values[k].source != SourceAbsent {
			continue
		}
		d.values[k] = sourced{value: v, source: SourceHeuristic}
		filled = append(filled, k)
	}
	return filled
}

// Provenance returns the source of every schema key.
func (d *Draft) Provenance() map[string]Source {
	out := make(map[string]Source, len(d.values))
	for k, v := range d.values {
		out[k] = v.source
	}
	return out
}

// FieldSet collapses the draft into plain strings.
func (d *Draft) FieldSet() FieldSet {
	fs := New()
	for k, v := range d.values {
		fs[k] = v.value
	}
	if d.raw != nil {
		fs[constants.FieldRawExtraction] = *d.raw
	}
	return fs
}

// Package fields holds the form field schema, the deterministic heuristic
// extractor and the format rules applied to every extracted value.
package fields

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/joseph-ayodele/formscan/constants"
)

// FieldSet maps schema keys to extracted values. Sets built by New or by
// Draft.FieldSet always carry every schema key; the only other key that may
// appear is constants.FieldRawExtraction.
type FieldSet map[string]string

// New returns a FieldSet with every schema key set to "".
func New() FieldSet {
	fs := make(FieldSet, len(constants.FieldNames())+1)
	for _, k := range constants.FieldNames() {
		fs[k] = ""
	}
	return fs
}

// Get returns the value for key or "".
func (f FieldSet) Get(key string) string { return f[key] }

// RawExtraction returns the unparsed model output when extraction fell back.
func (f FieldSet) RawExtraction() (string, bool) {
	v, ok := f[constants.FieldRawExtraction]
	return v, ok
}

// Clone returns an independent copy.
func (f FieldSet) Clone() FieldSet {
	out := make(FieldSet, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// Pair is one key/value in canonical order.
type Pair struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Ordered lists schema keys in canonical order, followed by raw_extraction when present.
func (f FieldSet) Ordered() []Pair {
	names := constants.FieldNames()
	out := make([]Pair, 0, len(names)+1)
	for _, k := range names {
		out = append(out, Pair{Key: k, Value: f[k]})
	}
	if raw, ok := f.RawExtraction(); ok {
		out = append(out, Pair{Key: constants.FieldRawExtraction, Value: raw})
	}
	return out
}

// String renders the set as a single-quoted mapping literal in canonical order,
// e.g. {'name': 'Jane', 'dob': ''}. The qa context embeds this rendering, so it
// must stay stable for identical inputs.
func (f FieldSet) String() string {
	var b strings.Builder
	b.WriteByte('{')
	for i, p := range f.Ordered() {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(quote(p.Key))
		b.WriteString(": ")
		b.WriteString(quote(p.Value))
	}
	b.WriteByte('}')
	return b.String()
}

func quote(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`, "\n", `\n`, "\r", `\r`, "\t", `\t`)
	return "'" + r.Replace(s) + "'"
}

// MarshalJSON writes keys in canonical order instead of Go's sorted map order.
func (f FieldSet) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, p := range f.Ordered() {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(p.Key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(p.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Normalize returns a copy that carries every schema key, dropping unknown keys.
// Used when loading sets persisted by older rows.
func (f FieldSet) Normalize() FieldSet {
	out := New()
	for _, k := range constants.FieldNames() {
		out[k] = f[k]
	}
	if raw, ok := f.RawExtraction(); ok {
		out[constants.FieldRawExtraction] = raw
	}
	return out
}

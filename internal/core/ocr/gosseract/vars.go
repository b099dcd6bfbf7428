package gosseract

import (
	"fmt"
	"sort"
	"strings"
)

// variables pulls "-c key=value" pairs out of the extra tesseract flags.
// Other flags have no libtesseract equivalent and are ignored.
func variables(extra string) map[string]string {
	out := map[string]string{}
	f := strings.Fields(extra)
	for i := 0; i < len(f); i++ {
		kv := ""
		switch {
		case f[i] == "-c" && i+1 < len(f):
			i++
			kv = f[i]
		case strings.HasPrefix(f[i], "-c") && len(f[i]) > 2:
			kv = f[i][2:]
		default:
			continue
		}
		if k, v, ok := strings.Cut(kv, "="); ok && k != "" {
			out[k] = v
		}
	}
	return out
}

// appliedConfig renders the settings libtesseract actually received. OEM is
// fixed when the client initializes, so it never appears here.
func appliedConfig(psm int, vars map[string]string) string {
	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	fmt.Fprintf(&b, "--psm %d", psm)
	for _, k := range keys {
		fmt.Fprintf(&b, " -c %s=%s", k, vars[k])
	}
	return b.String()
}

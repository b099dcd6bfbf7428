package llm

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"

	"github.com/joseph-ayodele/formscan/internal/common"
)

var codeBlockRe = regexp.MustCompile("(?s)^```(?:json)?\\s*(.*?)\\s*```$")

// stripCodeBlock removes a single markdown fence wrapped around the whole reply.
func stripCodeBlock(s string) string {
	s = strings.TrimSpace(s)
	if m := codeBlockRe.FindStringSubmatch(s); len(m) > 1 {
		return m[1]
	}
	return s
}

// parseObject decodes a model reply that should be one JSON object.
func parseObject(text string) (map[string]any, error) {
	var v any
	if err := json.Unmarshal([]byte(stripCodeBlock(text)), &v); err != nil {
		return nil, common.NewAppError(common.CodeParse, "model output is not json", errors.Join(common.ErrParse, err))
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, common.NewAppError(common.CodeParse, "model output is not a json object", common.ErrParse)
	}
	return obj, nil
}

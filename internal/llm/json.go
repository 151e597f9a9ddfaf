package llm

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"

	"github.com/titanous/json5"
)

// ErrNoObject is returned when a response holds no JSON object.
var ErrNoObject = errors.New("no json object in response")

var fenced = regexp.MustCompile("(?s)```(?:json|JSON|json5)?\\s*\\n?(.*?)```")

// StripFences returns the body of the first fenced block, or text unchanged.
func StripFences(text string) string {
	if m := fenced.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(text)
}

// ExtractObject returns the outermost {...} span of text after removing fences.
func ExtractObject(text string) (string, error) {
	body := StripFences(text)
	start := strings.Index(body, "{")
	end := strings.LastIndex(body, "}")
	if start < 0 || end <= start {
		return "", ErrNoObject
	}
	return body[start : end+1], nil
}

// DecodeObject parses the JSON object inside text. Strict JSON is tried first,
// then JSON5 to absorb trailing commas, comments and single quotes.
func DecodeObject(text string) (map[string]any, error) {
	obj, err := ExtractObject(text)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if jerr := json.Unmarshal([]byte(obj), &out); jerr == nil {
		return out, nil
	}
	if err := json5.Unmarshal([]byte(obj), &out); err != nil {
		return nil, err
	}
	return out, nil
}

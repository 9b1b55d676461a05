package ai

import (
	"encoding/json"
	"errors"
	"regexp"
)

// jsonObjectPattern spans from the first "{" to the last "}" so code fences
// and chatter around the object are ignored.
var jsonObjectPattern = regexp.MustCompile(`(?s)\{.*\}`)

// ErrNoJSON is returned when a reply holds no JSON object.
var ErrNoJSON = errors.New("reply contains no json object")

// DecodeJSONObject finds the JSON object embedded in a model reply and
// decodes it into out.
func DecodeJSONObject(text string, out any) error {
	raw := jsonObjectPattern.FindString(text)
	if raw == "" {
		return ErrNoJSON
	}
	return json.Unmarshal([]byte(raw), out)
}

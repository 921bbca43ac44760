package wire

import (
	"encoding/json"
	"fmt"
)

// ParseProfile decodes a brew profile document. Unlike telemetry
// transformers this can fail: profiles come from files and uploads, and a
// broken document must be reported rather than silently defaulted.
func ParseProfile(payload []byte) (Profile, error) {
	var p Profile
	if err := json.Unmarshal(payload, &p); err != nil {
		return Profile{}, fmt.Errorf("failed to parse profile document: %w", err)
	}
	if p.Title == "" {
		return Profile{}, fmt.Errorf("profile document has no title")
	}
	if len(p.Steps) == 0 {
		return Profile{}, fmt.Errorf("profile %q has no steps", p.Title)
	}
	return p, nil
}

// EncodeProfile renders a profile back into the JSON document shape the
// controller accepts on upload.
func EncodeProfile(p Profile) ([]byte, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to encode profile %q: %w", p.Title, err)
	}
	return data, nil
}

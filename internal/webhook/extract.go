// Package webhook turns voice-agent call reports into appointments.
package webhook

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"unicode/utf8"

	simdjson "github.com/minio/simdjson-go"
)

// DefaultHospitalName is used when the call carries no hospital_name variable.
const DefaultHospitalName = "Unknown Hospital"

// maxTranscript is the number of characters of transcript kept.
const maxTranscript = 500

// Call is what a call report tells us about a booking. Every field is
// optional in the payload.
type Call struct {
	Transcript   *string // truncated, nil when absent or empty
	HospitalName string
	RecordingURL *string
}

var errNotObject = errors.New("payload is not a JSON object")

// Extract pulls the booking details out of a raw call report. Missing keys
// fall back to defaults; an unparseable payload or metadata that is present
// but not an object is an error.
func Extract(body []byte) (Call, error) {
	if simdjson.SupportedCPU() {
		if call, ok := extractSimd(body); ok {
			return call, nil
		}
	}
	return extractStd(body)
}

// extractSimd handles the well-formed case. ok is false when the payload
// needs the slower path, either for a failure or an error message.
func extractSimd(body []byte) (Call, bool) {
	if !isObject(body) {
		return Call{}, false
	}
	pj, err := simdjson.Parse(body, nil)
	if err != nil {
		return Call{}, false
	}

	var call Call
	ok, seen := false, false
	pj.ForEach(func(i simdjson.Iter) error {
		if seen {
			ok = false // more than one document
			return nil
		}
		seen = true
		call, ok = extractSimdObject(i)
		return nil
	})
	return call, ok
}

func extractSimdObject(i simdjson.Iter) (Call, bool) {
	call := Call{HospitalName: DefaultHospitalName}

	if e, err := i.FindElement(nil, "transcript"); err == nil {
		text, truthy, ok := simdText(&e.Iter)
		if !ok {
			return Call{}, false
		}
		if truthy {
			call.Transcript = truncate(text)
		}
	}

	if meta, err := i.FindElement(nil, "conversation_initiation_metadata"); err == nil {
		if meta.Type != simdjson.TypeObject {
			return Call{}, false
		}
		if vars, err := meta.Iter.FindElement(nil, "dynamic_variables"); err == nil {
			if vars.Type != simdjson.TypeObject {
				return Call{}, false
			}
			if name, err := vars.Iter.FindElement(nil, "hospital_name"); err == nil && name.Type == simdjson.TypeString {
				call.HospitalName, _ = name.Iter.String()
			}
		}
	}

	if e, err := i.FindElement(nil, "recording_url"); err == nil && e.Type == simdjson.TypeString {
		if url, err := e.Iter.String(); err == nil {
			call.RecordingURL = &url
		}
	}
	return call, true
}

// simdText renders a string, bool or null as transcript text and reports
// its truthiness. Numbers and containers report !ok: the tape does not keep
// their source literal, which encoding/json's path preserves.
func simdText(i *simdjson.Iter) (text string, truthy, ok bool) {
	switch i.Type() {
	case simdjson.TypeNull:
		return "", false, true
	case simdjson.TypeString:
		s, err := i.String()
		return s, s != "", err == nil
	case simdjson.TypeBool:
		b, err := i.Bool()
		return fmt.Sprint(b), b, err == nil
	}
	return "", false, false
}

type payload struct {
	Transcript   json.RawMessage `json:"transcript"`
	Metadata     json.RawMessage `json:"conversation_initiation_metadata"`
	RecordingURL json.RawMessage `json:"recording_url"`
}

type initiationMetadata struct {
	DynamicVariables json.RawMessage `json:"dynamic_variables"`
}

type dynamicVariables struct {
	HospitalName json.RawMessage `json:"hospital_name"`
}

func extractStd(body []byte) (Call, error) {
	if !json.Valid(body) {
		return Call{}, errors.New("invalid JSON payload")
	}
	if !isObject(body) {
		return Call{}, errNotObject
	}
	var p payload
	if err := json.Unmarshal(body, &p); err != nil {
		return Call{}, fmt.Errorf("decoding payload: %w", err)
	}

	call := Call{HospitalName: DefaultHospitalName}

	if len(p.Transcript) > 0 {
		text, truthy := stdText(p.Transcript)
		if truthy {
			call.Transcript = truncate(text)
		}
	}

	if len(p.Metadata) > 0 {
		if !isObject(p.Metadata) {
			return Call{}, errors.New("conversation_initiation_metadata is not an object")
		}
		var meta initiationMetadata
		if err := json.Unmarshal(p.Metadata, &meta); err != nil {
			return Call{}, fmt.Errorf("decoding conversation_initiation_metadata: %w", err)
		}
		if len(meta.DynamicVariables) > 0 {
			if !isObject(meta.DynamicVariables) {
				return Call{}, errors.New("dynamic_variables is not an object")
			}
			var vars dynamicVariables
			if err := json.Unmarshal(meta.DynamicVariables, &vars); err != nil {
				return Call{}, fmt.Errorf("decoding dynamic_variables: %w", err)
			}
			var name string
			if json.Unmarshal(vars.HospitalName, &name) == nil && isString(vars.HospitalName) {
				call.HospitalName = name
			}
		}
	}

	var url string
	if isString(p.RecordingURL) && json.Unmarshal(p.RecordingURL, &url) == nil {
		call.RecordingURL = &url
	}
	return call, nil
}

// stdText renders raw as transcript text and reports its truthiness.
func stdText(raw json.RawMessage) (string, bool) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", false
	}
	switch x := v.(type) {
	case nil:
		return "", false
	case string:
		return x, x != ""
	case bool:
		return fmt.Sprint(x), x
	case float64:
		return compact(raw), x != 0
	case []any:
		return compact(raw), len(x) > 0
	case map[string]any:
		return compact(raw), len(x) > 0
	}
	return "", false
}

func compact(raw json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}

func isObject(raw []byte) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '{'
}

func isString(raw []byte) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '"'
}

// truncate keeps the first maxTranscript characters of s.
func truncate(s string) *string {
	if utf8.RuneCountInString(s) > maxTranscript {
		runes := []rune(s)
		s = string(runes[:maxTranscript])
	}
	return &s
}

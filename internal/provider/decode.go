package provider

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// rawProvider mirrors the on-disk record. Pointers distinguish absent required
// fields from zero values.
type rawProvider struct {
	ID           json.RawMessage         `json:"id"`
	NPI          json.RawMessage         `json:"npi"`
	Name         *string                 `json:"name"`
	Address      *string                 `json:"address"`
	Type         string                  `json:"type"`
	Phone        string                  `json:"phone"`
	Website      string                  `json:"website"`
	Hours        string                  `json:"hours"`
	Logo         *string                 `json:"logo"`
	Lat          *float64                `json:"lat"`
	Lng          *float64                `json:"lng"`
	Capabilities []string                `json:"capabilities"`
	Doctors      []json.RawMessage       `json:"doctors"`
	Networks     json.RawMessage         `json:"networks"`
}

// Decode reads a JSON array of provider records from r and validates that
// every record carries an id, name, address and coordinates.
func Decode(r io.Reader) ([]Provider, error) {
	var raws []rawProvider
	if err := json.NewDecoder(r).Decode(&raws); err != nil {
		return nil, fmt.Errorf("decoding providers: %w", err)
	}

	providers := make([]Provider, 0, len(raws))
	for i, raw := range raws {
		p, err := raw.toProvider()
		if err != nil {
			return nil, fmt.Errorf("provider at index %d: %w", i, err)
		}
		providers = append(providers, p)
	}
	return providers, nil
}

func (r rawProvider) toProvider() (Provider, error) {
	id, err := scalarString(r.ID)
	if err != nil {
		return Provider{}, fmt.Errorf("id: %w", err)
	}
	if id == "" {
		return Provider{}, fmt.Errorf("missing id")
	}
	switch {
	case r.Name == nil:
		return Provider{}, fmt.Errorf("provider %s: missing name", id)
	case r.Address == nil:
		return Provider{}, fmt.Errorf("provider %s: missing address", id)
	case r.Lat == nil || r.Lng == nil:
		return Provider{}, fmt.Errorf("provider %s: missing coordinates", id)
	}

	npi, err := scalarString(r.NPI)
	if err != nil {
		return Provider{}, fmt.Errorf("provider %s: npi: %w", id, err)
	}

	return Provider{
		ID:           id,
		NPI:          npi,
		Name:         *r.Name,
		Address:      *r.Address,
		Type:         r.Type,
		Phone:        r.Phone,
		Website:      r.Website,
		Hours:        r.Hours,
		Logo:         r.Logo,
		Lat:          *r.Lat,
		Lng:          *r.Lng,
		Capabilities: r.Capabilities,
		Doctors:      r.Doctors,
		Networks:     decodeNetworks(r.Networks),
	}, nil
}

// decodeNetworks reads the carrier map. A value that is not an object means
// the provider lists no carriers.
func decodeNetworks(raw json.RawMessage) map[string]NetworkEntry {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return nil
	}
	var networks map[string]NetworkEntry
	if err := json.Unmarshal(raw, &networks); err != nil {
		return nil
	}
	return networks
}

// scalarString renders a JSON string or number as a string. Numbers keep their
// literal text so 7 becomes "7". Absent and null values yield "".
func scalarString(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return s, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return "", err
	}
	n, ok := v.(json.Number)
	if !ok {
		return "", fmt.Errorf("expected string or number, got %s", raw)
	}
	return n.String(), nil
}

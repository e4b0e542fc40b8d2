package provider

import (
	"encoding/json"
	"errors"
)

// ErrNotFound is returned when no provider in the catalog has the requested id.
var ErrNotFound = errors.New("provider not found")

// Insurance confidence levels reported for a provider/carrier pair.
const (
	InsuranceVerified     = "verified"
	InsuranceOutOfNetwork = "out_of_network"
	InsuranceLikely       = "likely"
	InsuranceUnknown      = "unknown"
)

// Network status values.
const (
	NetworkIn      = "in_network"
	NetworkOut     = "out_of_network"
	NetworkUnknown = "unknown"
)

// Cost confidence levels.
const (
	CostHigh   = "high"
	CostMedium = "medium"
	CostLow    = "low"
)

// Provider is a catalog entry as stored in the providers file. Required fields
// are checked by Decode; optional ones carry their zero value when absent.
type Provider struct {
	ID           string
	NPI          string
	Name         string
	Address      string
	Type         string
	Phone        string
	Website      string
	Hours        string
	Logo         *string
	Lat          float64
	Lng          float64
	Capabilities []string
	Doctors      []json.RawMessage
	Networks     map[string]NetworkEntry
}

// NetworkEntry describes a provider's relationship with one insurance carrier.
type NetworkEntry struct {
	InNetwork bool
	CopayMin  *float64
	CopayMax  *float64
}

// UnmarshalJSON decodes a network entry leniently: an entry that is not an
// object becomes the zero entry, in_network follows JSON truthiness, and copay
// bounds that are not numbers are treated as absent.
func (n *NetworkEntry) UnmarshalJSON(data []byte) error {
	*n = NetworkEntry{}

	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil
	}

	n.InNetwork = truthy(fields["in_network"])
	n.CopayMin = number(fields["copay_min"])
	n.CopayMax = number(fields["copay_max"])
	return nil
}

func truthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case float64:
		return t != 0
	case string:
		return t != ""
	case []any:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	}
	return false
}

func number(v any) *float64 {
	f, ok := v.(float64)
	if !ok {
		return nil
	}
	return &f
}

// Copay is an estimated copay range in dollars.
type Copay struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Hospital is the normalized provider record returned by the API.
type Hospital struct {
	ID                  string            `json:"id"`
	Name                string            `json:"name"`
	Address             string            `json:"address"`
	Lat                 float64           `json:"lat"`
	Lng                 float64           `json:"lng"`
	DistanceMiles       *float64          `json:"distanceMiles"`
	ETAMinutes          *int              `json:"etaMinutes"`
	Capabilities        []string          `json:"capabilities"`
	InsuranceConfidence string            `json:"insuranceConfidence"`
	CostEstimateMin     *float64          `json:"costEstimateMin"`
	CostEstimateMax     *float64          `json:"costEstimateMax"`
	CostConfidence      string            `json:"costConfidence"`
	Phone               string            `json:"phone"`
	Website             string            `json:"website"`
	Type                string            `json:"type"`
	Hours               string            `json:"hours"`
	NetworkStatus       string            `json:"networkStatus"`
	EstimatedCopay      *Copay            `json:"estimatedCopay"`
	Logo                *string           `json:"logo"`
	Doctors             []json.RawMessage `json:"doctors"`
}

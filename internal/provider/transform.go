// Package provider matches catalog providers against a patient's insurance
// carrier and location and renders them in the API's hospital format.
package provider

import (
	"encoding/json"
	"strings"

	"github.com/gyeh/carenet/internal/geo"
)

// NormalizeCarrier lowercases and trims a carrier identifier such as " Aetna ".
func NormalizeCarrier(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Transform renders p for a patient with the given carrier (already
// normalized, "" for none) and optional location.
func Transform(p Provider, carrier string, loc *geo.Point) Hospital {
	h := Hospital{
		ID:                  p.ID,
		Name:                p.Name,
		Address:             p.Address,
		Lat:                 p.Lat,
		Lng:                 p.Lng,
		Capabilities:        p.Capabilities,
		InsuranceConfidence: InsuranceUnknown,
		CostConfidence:      CostLow,
		Phone:               p.Phone,
		Website:             p.Website,
		Type:                p.Type,
		Hours:               p.Hours,
		NetworkStatus:       NetworkUnknown,
		Logo:                p.Logo,
		Doctors:             p.Doctors,
	}
	if h.Capabilities == nil {
		h.Capabilities = []string{}
	}
	if h.Doctors == nil {
		h.Doctors = []json.RawMessage{}
	}

	if carrier != "" {
		applyNetwork(&h, p.Networks, carrier)
	}

	if loc != nil {
		miles := geo.DistanceMiles(*loc, geo.Point{Lat: p.Lat, Lng: p.Lng})
		eta := geo.ETAMinutes(miles)
		h.DistanceMiles = &miles
		h.ETAMinutes = &eta
	}

	return h
}

func applyNetwork(h *Hospital, networks map[string]NetworkEntry, carrier string) {
	entry, ok := networks[carrier]
	if !ok {
		// Carrier not in our data: most providers accept major carriers.
		h.InsuranceConfidence = InsuranceLikely
		h.CostConfidence = CostMedium
		return
	}

	h.CostEstimateMin = entry.CopayMin
	h.CostEstimateMax = entry.CopayMax
	if entry.CopayMin != nil && entry.CopayMax != nil {
		h.EstimatedCopay = &Copay{Min: *entry.CopayMin, Max: *entry.CopayMax}
	}

	if entry.InNetwork {
		h.InsuranceConfidence = InsuranceVerified
		h.NetworkStatus = NetworkIn
		h.CostConfidence = CostHigh
		return
	}
	h.InsuranceConfidence = InsuranceOutOfNetwork
	h.NetworkStatus = NetworkOut
	h.CostConfidence = CostMedium
}

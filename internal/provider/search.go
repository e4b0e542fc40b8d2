package provider

import (
	"fmt"
	"sort"

	"github.com/gyeh/carenet/internal/geo"
)

// Query selects and annotates providers for a listing.
type Query struct {
	Carrier       string     // normalized carrier key, "" for none
	Type          string     // exact match on the raw provider type, "" for all
	Location      *geo.Point // patient location, nil when unknown
	InNetworkOnly bool       // honored only when Carrier is set
}

// Search filters, transforms and orders providers. With a location, results
// are ordered by ascending distance; otherwise by name, compared byte-wise
// (case-sensitive, Unicode code point order). Both sorts are stable.
func Search(providers []Provider, q Query) []Hospital {
	results := make([]Hospital, 0, len(providers))
	for _, p := range providers {
		if q.Type != "" && p.Type != q.Type {
			continue
		}
		h := Transform(p, q.Carrier, q.Location)
		if q.InNetworkOnly && q.Carrier != "" && h.InsuranceConfidence != InsuranceVerified {
			continue
		}
		results = append(results, h)
	}

	if q.Location != nil {
		sort.SliceStable(results, func(i, j int) bool {
			return closer(results[i].DistanceMiles, results[j].DistanceMiles)
		})
	} else {
		sort.SliceStable(results, func(i, j int) bool {
			return results[i].Name < results[j].Name
		})
	}
	return results
}

// closer orders known distances ascending with unknown distances last.
func closer(a, b *float64) bool {
	switch {
	case a == nil:
		return false
	case b == nil:
		return true
	}
	return *a < *b
}

// Find returns the first provider whose id equals id.
func Find(providers []Provider, id string) (Provider, error) {
	for _, p := range providers {
		if p.ID == id {
			return p, nil
		}
	}
	return Provider{}, fmt.Errorf("provider %q: %w", id, ErrNotFound)
}

package catalog

import (
	"sort"

	"github.com/gyeh/carenet/internal/provider"
)

// Summary counts what a catalog contains.
type Summary struct {
	Providers int            `json:"providers"`
	WithNPI   int            `json:"withNpi"`
	Types     map[string]int `json:"types"`
	// Carriers maps each carrier key to the number of providers in network.
	Carriers map[string]int `json:"carriers"`
}

// Summarize builds a Summary for providers.
func Summarize(providers []provider.Provider) Summary {
	s := Summary{
		Providers: len(providers),
		Types:     make(map[string]int),
		Carriers:  make(map[string]int),
	}
	for _, p := range providers {
		if p.NPI != "" {
			s.WithNPI++
		}
		typ := p.Type
		if typ == "" {
			typ = "(none)"
		}
		s.Types[typ]++
		for carrier, entry := range p.Networks {
			if _, ok := s.Carriers[carrier]; !ok {
				s.Carriers[carrier] = 0
			}
			if entry.InNetwork {
				s.Carriers[carrier]++
			}
		}
	}
	return s
}

// CarrierNames returns the carrier keys in sorted order.
func (s Summary) CarrierNames() []string {
	names := make([]string, 0, len(s.Carriers))
	for name := range s.Carriers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// TypeNames returns the provider types in sorted order.
func (s Summary) TypeNames() []string {
	names := make([]string, 0, len(s.Types))
	for name := range s.Types {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

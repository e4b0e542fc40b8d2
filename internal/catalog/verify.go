package catalog

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/gyeh/carenet/internal/npi"
	"github.com/gyeh/carenet/internal/provider"
)

// NPIRegistry looks up many NPIs at once.
type NPIRegistry interface {
	LookupAll(ctx context.Context, numbers []string, limit int) ([]*npi.ProviderInfo, []error)
}

// NPIFinding is one problem found while checking catalog NPIs.
type NPIFinding struct {
	ProviderID string `json:"providerId"`
	NPI        string `json:"npi"`
	Problem    string `json:"problem"`
}

// VerifyNPIs checks every provider that carries an NPI against the registry
// and reports malformed, unknown and inactive numbers plus name and phone
// mismatches. Providers without an NPI are skipped.
func VerifyNPIs(ctx context.Context, providers []provider.Provider, registry NPIRegistry, concurrency int) (checked int, findings []NPIFinding) {
	var toLookup []provider.Provider
	for _, p := range providers {
		if p.NPI == "" {
			continue
		}
		checked++
		if !npi.Valid(p.NPI) {
			findings = append(findings, NPIFinding{p.ID, p.NPI, "malformed NPI (expected 10 digits with a valid check digit)"})
			continue
		}
		toLookup = append(toLookup, p)
	}

	numbers := make([]string, len(toLookup))
	for i, p := range toLookup {
		numbers[i] = p.NPI
	}
	infos, errs := registry.LookupAll(ctx, numbers, concurrency)

	for i, p := range toLookup {
		info, err := infos[i], errs[i]
		switch {
		case err != nil:
			findings = append(findings, NPIFinding{p.ID, p.NPI, fmt.Sprintf("lookup failed: %v", err)})
		case info == nil:
			findings = append(findings, NPIFinding{p.ID, p.NPI, "not found in NPPES registry"})
		default:
			findings = append(findings, compare(p, info)...)
		}
	}
	return checked, findings
}

func compare(p provider.Provider, info *npi.ProviderInfo) []NPIFinding {
	var out []NPIFinding
	if info.Status != "" && info.Status != "A" {
		out = append(out, NPIFinding{p.ID, p.NPI, fmt.Sprintf("registry status %q is not active", info.Status)})
	}
	if a, b := nameKey(p.Name), nameKey(info.Name); a != "" && b != "" && !strings.Contains(a, b) && !strings.Contains(b, a) {
		out = append(out, NPIFinding{p.ID, p.NPI, fmt.Sprintf("name mismatch: catalog %q, registry %q", p.Name, info.Name)})
	}
	if a, b := phoneKey(p.Phone), phoneKey(info.PracticePhone); a != "" && b != "" && a != b {
		out = append(out, NPIFinding{p.ID, p.NPI, fmt.Sprintf("phone mismatch: catalog %q, registry %q", p.Phone, info.PracticePhone)})
	}
	return out
}

// nameKey lowercases s and keeps only letters and digits.
func nameKey(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// phoneKey returns the last ten digits of s, or "" when it has fewer.
func phoneKey(s string) string {
	var digits []rune
	for _, r := range s {
		if r >= '0' && r <= '9' {
			digits = append(digits, r)
		}
	}
	if len(digits) < 10 {
		return ""
	}
	return string(digits[len(digits)-10:])
}

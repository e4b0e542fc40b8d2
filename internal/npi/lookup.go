package npi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// RegistryURL is the NPPES NPI Registry API endpoint.
const RegistryURL = "https://npiregistry.cms.hhs.gov/api/"

var defaultHTTPClient = &http.Client{Timeout: 10 * time.Second}

// ProviderInfo holds the key details returned by the NPPES NPI Registry.
type ProviderInfo struct {
	NPI             string
	Name            string // "LAST, FIRST MIDDLE" for individuals, org name for organizations
	Type            string // "Individual" or "Organization"
	PrimaryTaxonomy string // e.g. "Urgent Care"
	PracticeAddress string // city, state
	PracticePhone   string
	Status          string // "A" = active
}

type apiResponse struct {
	ResultCount int         `json:"result_count"`
	Results     []apiResult `json:"results"`
}

type apiResult struct {
	Number          string        `json:"number"`
	EnumerationType string        `json:"enumeration_type"`
	Basic           apiBasic      `json:"basic"`
	Addresses       []apiAddress  `json:"addresses"`
	Taxonomies      []apiTaxonomy `json:"taxonomies"`
}

type apiBasic struct {
	// Individual fields
	FirstName  string `json:"first_name"`
	MiddleName string `json:"middle_name"`
	LastName   string `json:"last_name"`

	// Organization fields
	OrganizationName string `json:"organization_name"`

	Status string `json:"status"`
}

type apiAddress struct {
	City           string `json:"city"`
	State          string `json:"state"`
	PostalCode     string `json:"postal_code"`
	AddressPurpose string `json:"address_purpose"` // "LOCATION" or "MAILING"
	Phone          string `json:"telephone_number"`
}

type apiTaxonomy struct {
	Desc    string `json:"desc"`
	Primary bool   `json:"primary"`
}

// Client queries the NPPES registry. The zero value uses RegistryURL.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// Lookup queries the registry for a single NPI number.
// Returns nil if the NPI is not found.
func (c *Client) Lookup(ctx context.Context, number string) (*ProviderInfo, error) {
	base := c.BaseURL
	if base == "" {
		base = RegistryURL
	}
	httpClient := c.HTTP
	if httpClient == nil {
		httpClient = defaultHTTPClient
	}

	q := url.Values{"version": {"2.1"}, "number": {number}}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("querying NPI registry: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("NPI registry returned HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var apiResp apiResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, fmt.Errorf("parsing NPI registry response: %w", err)
	}

	if apiResp.ResultCount == 0 || len(apiResp.Results) == 0 {
		return nil, nil
	}

	return resultToProviderInfo(apiResp.Results[0]), nil
}

// LookupAll queries the registry for several NPIs, at most limit at a time.
// Results are in input order; missing NPIs have nil entries.
func (c *Client) LookupAll(ctx context.Context, numbers []string, limit int) ([]*ProviderInfo, []error) {
	if limit < 1 {
		limit = 1
	}
	results := make([]*ProviderInfo, len(numbers))
	errs := make([]error, len(numbers))

	sem := make(chan struct{}, limit)
	var wg sync.WaitGroup
	for i, n := range numbers {
		wg.Add(1)
		sem <- struct{}{}
		go func(idx int, number string) {
			defer wg.Done()
			defer func() { <-sem }()
			results[idx], errs[idx] = c.Lookup(ctx, number)
		}(i, n)
	}
	wg.Wait()

	return results, errs
}

func resultToProviderInfo(r apiResult) *ProviderInfo {
	info := &ProviderInfo{
		NPI:    r.Number,
		Status: r.Basic.Status,
	}

	if r.EnumerationType == "NPI-1" {
		info.Type = "Individual"
		info.Name = formatIndividualName(r.Basic)
	} else {
		info.Type = "Organization"
		info.Name = r.Basic.OrganizationName
	}

	for _, t := range r.Taxonomies {
		if t.Primary {
			info.PrimaryTaxonomy = t.Desc
			break
		}
	}
	if info.PrimaryTaxonomy == "" && len(r.Taxonomies) > 0 {
		info.PrimaryTaxonomy = r.Taxonomies[0].Desc
	}

	// Practice location address
	for _, addr := range r.Addresses {
		if addr.AddressPurpose == "LOCATION" {
			info.PracticeAddress = formatAddress(addr)
			info.PracticePhone = formatPhone(addr.Phone)
			break
		}
	}
	if info.PracticeAddress == "" && len(r.Addresses) > 0 {
		info.PracticeAddress = formatAddress(r.Addresses[0])
		info.PracticePhone = formatPhone(r.Addresses[0].Phone)
	}

	return info
}

// Valid reports whether s is a 10-digit NPI with a correct Luhn check digit
// (computed over the "80840" card-issuer prefix).
func Valid(s string) bool {
	if len(s) != 10 {
		return false
	}
	sum := 24 // contribution of the 80840 prefix
	for i := 0; i < 10; i++ {
		c := s[i]
		if c < '0' || c > '9' {
			return false
		}
		d := int(c - '0')
		if i%2 == 0 && i < 9 {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
	}
	return sum%10 == 0
}

func formatIndividualName(b apiBasic) string {
	parts := []string{cleanField(b.LastName)}
	if first := cleanField(b.FirstName); first != "" {
		parts = append(parts, first)
	}
	name := strings.Join(parts, ", ")
	if middle := cleanField(b.MiddleName); middle != "" {
		name += " " + middle
	}
	return name
}

func formatAddress(a apiAddress) string {
	parts := []string{}
	if a.City != "" {
		parts = append(parts, a.City)
	}
	if a.State != "" {
		parts = append(parts, a.State)
	}
	loc := strings.Join(parts, ", ")
	if a.PostalCode != "" {
		zip := a.PostalCode
		if len(zip) > 5 {
			zip = zip[:5]
		}
		loc += " " + zip
	}
	return loc
}

func formatPhone(phone string) string {
	p := strings.ReplaceAll(phone, "-", "")
	p = strings.TrimSpace(p)
	if len(p) == 10 {
		return fmt.Sprintf("(%s) %s-%s", p[:3], p[3:6], p[6:])
	}
	return phone
}

func cleanField(s string) string {
	s = strings.TrimSpace(s)
	if s == "--" || s == "" {
		return ""
	}
	return s
}

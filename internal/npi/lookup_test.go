package npi

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"
)

const orgResponse = `{
  "result_count": 1,
  "results": [{
    "number": "1234567893",
    "enumeration_type": "NPI-2",
    "basic": {"organization_name": "BELLEVUE HOSPITAL CENTER", "status": "A"},
    "addresses": [
      {"city": "NEW YORK", "state": "NY", "postal_code": "100160000", "address_purpose": "MAILING", "telephone_number": "212-555-0000"},
      {"city": "NEW YORK", "state": "NY", "postal_code": "100164000", "address_purpose": "LOCATION", "telephone_number": "212-562-4141"}
    ],
    "taxonomies": [
      {"desc": "Clinic/Center", "primary": false},
      {"desc": "General Acute Care Hospital", "primary": true}
    ]
  }]
}`

func newRegistry(t *testing.T, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls != nil {
			calls.Add(1)
		}
		if r.URL.Query().Get("version") != "2.1" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		switch r.URL.Query().Get("number") {
		case "1234567893":
			fmt.Fprint(w, orgResponse)
		case "1245319599":
			fmt.Fprint(w, `{"result_count": 1, "results": [{"number": "1245319599", "enumeration_type": "NPI-1",
				"basic": {"first_name": "ANA", "middle_name": "--", "last_name": "RUIZ", "status": "A"},
				"addresses": [{"city": "BROOKLYN", "state": "NY", "postal_code": "11211", "telephone_number": "7185550101"}],
				"taxonomies": [{"desc": "Emergency Medicine"}]}]}`)
		case "9999999999":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			fmt.Fprint(w, `{"result_count": 0, "results": []}`)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestLookupOrganization(t *testing.T) {
	srv := newRegistry(t, nil)
	c := &Client{BaseURL: srv.URL, HTTP: srv.Client()}

	info, err := c.Lookup(context.Background(), "1234567893")
	if err != nil {
		t.Fatal(err)
	}
	want := &ProviderInfo{
		NPI:             "1234567893",
		Name:            "BELLEVUE HOSPITAL CENTER",
		Type:            "Organization",
		PrimaryTaxonomy: "General Acute Care Hospital",
		PracticeAddress: "NEW YORK, NY 10016",
		PracticePhone:   "(212) 562-4141",
		Status:          "A",
	}
	if diff := cmp.Diff(want, info); diff != "" {
		t.Errorf("info mismatch (-want +got):\n%s", diff)
	}
}

func TestLookupIndividual(t *testing.T) {
	srv := newRegistry(t, nil)
	c := &Client{BaseURL: srv.URL, HTTP: srv.Client()}

	info, err := c.Lookup(context.Background(), "1245319599")
	if err != nil {
		t.Fatal(err)
	}
	if info.Name != "RUIZ, ANA" || info.Type != "Individual" || info.PrimaryTaxonomy != "Emergency Medicine" {
		t.Errorf("unexpected info: %+v", info)
	}
	if info.PracticeAddress != "BROOKLYN, NY 11211" || info.PracticePhone != "(718) 555-0101" {
		t.Errorf("unexpected address: %+v", info)
	}
}

func TestLookupMissingAndErrors(t *testing.T) {
	srv := newRegistry(t, nil)
	c := &Client{BaseURL: srv.URL, HTTP: srv.Client()}

	info, err := c.Lookup(context.Background(), "1111111112")
	if err != nil || info != nil {
		t.Errorf("expected nil, nil for unknown NPI; got %+v, %v", info, err)
	}

	if _, err := c.Lookup(context.Background(), "9999999999"); err == nil {
		t.Error("expected error for HTTP 500")
	}
}

func TestLookupAllKeepsOrder(t *testing.T) {
	var calls atomic.Int32
	srv := newRegistry(t, &calls)
	c := &Client{BaseURL: srv.URL, HTTP: srv.Client()}

	numbers := []string{"1245319599", "1111111112", "1234567893", "9999999999"}
	results, errs := c.LookupAll(context.Background(), numbers, 2)

	if calls.Load() != 4 {
		t.Errorf("expected 4 registry calls, got %d", calls.Load())
	}
	if results[0] == nil || results[0].NPI != "1245319599" {
		t.Errorf("expected first result for 1245319599, got %+v", results[0])
	}
	if results[1] != nil || errs[1] != nil {
		t.Errorf("expected missing second NPI, got %+v %v", results[1], errs[1])
	}
	if results[2] == nil || results[2].NPI != "1234567893" {
		t.Errorf("expected third result for 1234567893, got %+v", results[2])
	}
	if errs[3] == nil {
		t.Error("expected error for fourth NPI")
	}
}

func TestValid(t *testing.T) {
	tests := []struct {
		npi  string
		want bool
	}{
		{"1234567893", true},
		{"1245319599", true},
		{"1234567890", false},
		{"123456789", false},
		{"12345678931", false},
		{"12345a7893", false},
	}
	for _, tt := range tests {
		if got := Valid(tt.npi); got != tt.want {
			t.Errorf("Valid(%q): expected %v, got %v", tt.npi, tt.want, got)
		}
	}
}

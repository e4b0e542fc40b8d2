package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/gyeh/carenet/internal/appointment"
	"github.com/gyeh/carenet/internal/catalog"
	"github.com/gyeh/carenet/internal/logging"
	"github.com/gyeh/carenet/internal/metrics"
	"github.com/gyeh/carenet/internal/provider"
	"github.com/gyeh/carenet/internal/webhook"
)

const providersJSON = `[
  {"id": 1, "name": "NYU Langone Urgent Care", "address": "345 E 37th St", "type": "urgent_care",
   "lat": 40.7454, "lng": -73.9719, "capabilities": ["x-ray"],
   "networks": {"aetna": {"in_network": true, "copay_min": 25, "copay_max": 75},
                "cigna": {"in_network": false, "copay_min": 150, "copay_max": 300}}},
  {"id": "bellevue", "name": "Bellevue Hospital ER", "address": "462 1st Ave", "type": "hospital_er",
   "lat": 40.7394, "lng": -73.9754,
   "networks": {"aetna": {"in_network": true, "copay_min": 100, "copay_max": 250}}},
  {"id": "3", "name": "CityMD Williamsburg", "address": "Williamsburg", "type": "urgent_care",
   "lat": 40.7146, "lng": -73.9614},
  {"id": "5", "name": "midtown walk-in", "address": "W 42nd St", "type": "primary_care",
   "lat": 40.7549, "lng": -73.9840}
]`

type testServer struct {
	*httptest.Server
	dir     string
	metrics *metrics.Metrics
}

func writeTestFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func newTestServer(t *testing.T, store appointment.Store) *testServer {
	t.Helper()
	dir := t.TempDir()
	writeTestFile(t, dir, "providers.json", providersJSON)
	if store == nil {
		store = appointment.NewFileStore(filepath.Join(dir, "appointments.json"))
	}
	m := metrics.New()
	logger := logging.Discard()
	srv := New(Options{
		Catalog: catalog.FileSource{Path: filepath.Join(dir, "providers.json")},
		Store:   store,
		Webhook: webhook.NewProcessor(store, logger,
			webhook.WithClock(func() time.Time { return time.Date(2025, 3, 1, 15, 4, 5, 0, time.Local) }),
			webhook.WithIDGenerator(func() string { return "wh-1" }),
		),
		Logger:         logger,
		Metrics:        m,
		AllowedOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
	})
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)
	return &testServer{Server: ts, dir: dir, metrics: m}
}

func (ts *testServer) get(t *testing.T, path string) (int, []byte) {
	t.Helper()
	resp, err := http.Get(ts.URL + path)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return resp.StatusCode, body
}

func (ts *testServer) post(t *testing.T, path, body string) (int, []byte) {
	t.Helper()
	resp, err := http.Post(ts.URL+path, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return resp.StatusCode, data
}

func decode[T any](t *testing.T, body []byte) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(body, &v); err != nil {
		t.Fatalf("decoding %s: %v", body, err)
	}
	return v
}

func names(hs []provider.Hospital) []string {
	out := make([]string, len(hs))
	for i, h := range hs {
		out[i] = h.Name
	}
	return out
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, nil)
	status, body := ts.get(t, "/")
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if string(body) != `{"status":"ok"}` {
		t.Errorf("unexpected body: %s", body)
	}
}

func TestListProvidersSortedByName(t *testing.T) {
	ts := newTestServer(t, nil)
	status, body := ts.get(t, "/providers")
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", status, body)
	}
	got := decode[[]provider.Hospital](t, body)
	want := []string{"Bellevue Hospital ER", "CityMD Williamsburg", "NYU Langone Urgent Care", "midtown walk-in"}
	if diff := cmp.Diff(want, names(got)); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
	for _, h := range got {
		if h.InsuranceConfidence != "unknown" || h.CostConfidence != "low" || h.DistanceMiles != nil {
			t.Errorf("%s: unexpected annotations %+v", h.Name, h)
		}
	}
	if got[2].ID != "1" {
		t.Errorf("expected numeric id rendered as \"1\", got %q", got[2].ID)
	}
}

func TestListProvidersSortedByDistance(t *testing.T) {
	ts := newTestServer(t, nil)
	status, body := ts.get(t, "/providers?lat=40.7146&lng=-73.9614")
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", status, body)
	}
	got := decode[[]provider.Hospital](t, body)
	want := []string{"CityMD Williamsburg", "Bellevue Hospital ER", "NYU Langone Urgent Care", "midtown walk-in"}
	if diff := cmp.Diff(want, names(got)); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
	var miles []float64
	var etas []int
	for _, h := range got {
		miles = append(miles, *h.DistanceMiles)
		etas = append(etas, *h.ETAMinutes)
	}
	if diff := cmp.Diff([]float64{0, 1.9, 2.2, 3.0}, miles); diff != "" {
		t.Errorf("distance mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{0, 8, 9, 12}, etas); diff != "" {
		t.Errorf("eta mismatch (-want +got):\n%s", diff)
	}
}

func TestListProvidersOnlyLatIgnoresLocation(t *testing.T) {
	ts := newTestServer(t, nil)
	_, body := ts.get(t, "/providers?lat=40.7146")
	got := decode[[]provider.Hospital](t, body)
	if got[0].Name != "Bellevue Hospital ER" || got[0].DistanceMiles != nil {
		t.Errorf("expected name order without distances, got %+v", got[0])
	}
}

func TestListProvidersCarrierAndFilters(t *testing.T) {
	ts := newTestServer(t, nil)

	_, body := ts.get(t, "/providers?provider=%20AETNA%20&in_network_only=true")
	got := decode[[]provider.Hospital](t, body)
	if diff := cmp.Diff([]string{"Bellevue Hospital ER", "NYU Langone Urgent Care"}, names(got)); diff != "" {
		t.Errorf("in-network mismatch (-want +got):\n%s", diff)
	}
	nyu := got[1]
	if nyu.InsuranceConfidence != "verified" || nyu.NetworkStatus != "in_network" || nyu.CostConfidence != "high" {
		t.Errorf("unexpected annotations: %+v", nyu)
	}
	if diff := cmp.Diff(&provider.Copay{Min: 25, Max: 75}, nyu.EstimatedCopay); diff != "" {
		t.Errorf("copay mismatch (-want +got):\n%s", diff)
	}

	_, body = ts.get(t, "/providers?type=urgent_care&provider=united")
	got = decode[[]provider.Hospital](t, body)
	if diff := cmp.Diff([]string{"CityMD Williamsburg", "NYU Langone Urgent Care"}, names(got)); diff != "" {
		t.Errorf("type filter mismatch (-want +got):\n%s", diff)
	}
	for _, h := range got {
		if h.InsuranceConfidence != "likely" || h.CostEstimateMin != nil || h.EstimatedCopay != nil {
			t.Errorf("%s: expected likely without costs, got %+v", h.Name, h)
		}
	}

	// in_network_only without a carrier keeps everything.
	_, body = ts.get(t, "/providers?in_network_only=1")
	if got := decode[[]provider.Hospital](t, body); len(got) != 4 {
		t.Errorf("expected 4 providers, got %d", len(got))
	}
}

func TestListProvidersBadParams(t *testing.T) {
	ts := newTestServer(t, nil)
	tests := []struct {
		query  string
		detail string
	}{
		{"lat=north&lng=1", `invalid lat: "north"`},
		{"lat=1&lng=NaN", `invalid lng: "NaN"`},
		{"in_network_only=maybe", `invalid in_network_only: "maybe"`},
	}
	for _, tt := range tests {
		status, body := ts.get(t, "/providers?"+tt.query)
		if status != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", tt.query, status)
		}
		if got := decode[map[string]string](t, body)["detail"]; got != tt.detail {
			t.Errorf("%s: expected detail %q, got %q", tt.query, tt.detail, got)
		}
	}
}

func TestGetProvider(t *testing.T) {
	ts := newTestServer(t, nil)
	status, body := ts.get(t, "/providers/bellevue?insurance=Aetna&lat=40.7146&lng=-73.9614")
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", status, body)
	}
	h := decode[provider.Hospital](t, body)
	if h.ID != "bellevue" || h.InsuranceConfidence != "verified" || *h.DistanceMiles != 1.9 {
		t.Errorf("unexpected provider: %+v", h)
	}

	status, body = ts.get(t, "/providers/1?insurance=cigna")
	h = decode[provider.Hospital](t, body)
	if status != http.StatusOK || h.InsuranceConfidence != "out_of_network" || *h.CostEstimateMax != 300 {
		t.Errorf("unexpected provider (%d): %+v", status, h)
	}
}

func TestGetProviderNotFound(t *testing.T) {
	ts := newTestServer(t, nil)
	status, body := ts.get(t, "/providers/doesnotexist")
	if status != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", status)
	}
	if string(body) != `{"detail":"Provider 'doesnotexist' not found"}` {
		t.Errorf("unexpected body: %s", body)
	}
}

func TestCatalogUnavailable(t *testing.T) {
	ts := newTestServer(t, nil)
	writeTestFile(t, ts.dir, "providers.json", `[{"id": "1"`)

	for _, path := range []string{"/providers", "/providers/1"} {
		status, body := ts.get(t, path)
		if status != http.StatusInternalServerError {
			t.Errorf("%s: expected 500, got %d", path, status)
		}
		if string(body) != `{"detail":"provider catalog unavailable"}` {
			t.Errorf("%s: unexpected body: %s", path, body)
		}
	}
}

const appointmentBody = `{"id": "appt-1", "hospitalId": "bellevue", "hospitalName": "Bellevue Hospital ER", "date": "2025-03-02T10:00:00"}`

func TestCreateAppointment(t *testing.T) {
	ts := newTestServer(t, nil)

	status, body := ts.post(t, "/appointments", appointmentBody)
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", status, body)
	}
	want := `{"id":"appt-1","hospitalId":"bellevue","hospitalName":"Bellevue Hospital ER","date":"2025-03-02T10:00:00","status":"confirmed","notes":null,"transcript":null,"audioUrl":null}`
	if string(body) != want {
		t.Errorf("unexpected echo:\n got %s\nwant %s", body, want)
	}

	status, body = ts.get(t, "/appointments/appt-1")
	if status != http.StatusOK || !bytes.Equal(body, []byte(want)) {
		t.Errorf("unexpected get (%d): %s", status, body)
	}
}

func TestCreateAppointmentDuplicate(t *testing.T) {
	ts := newTestServer(t, nil)

	if status, body := ts.post(t, "/appointments", appointmentBody); status != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", status, body)
	}
	status, body := ts.post(t, "/appointments", appointmentBody)
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", status)
	}
	if string(body) != `{"detail":"Appointment ID already exists"}` {
		t.Errorf("unexpected body: %s", body)
	}

	_, body = ts.get(t, "/appointments")
	if got := decode[[]appointment.Appointment](t, body); len(got) != 1 {
		t.Errorf("expected collection of 1, got %d", len(got))
	}
}

func TestCreateAppointmentInvalid(t *testing.T) {
	ts := newTestServer(t, nil)
	tests := []struct {
		name string
		body string
	}{
		{"not json", `{"id": `},
		{"array", `[]`},
		{"missing date", `{"id": "a", "hospitalId": "b", "hospitalName": "c"}`},
		{"empty id", `{"id": "", "hospitalId": "b", "hospitalName": "c", "date": "d"}`},
		{"wrong type", `{"id": 5, "hospitalId": "b", "hospitalName": "c", "date": "d"}`},
	}
	for _, tt := range tests {
		status, body := ts.post(t, "/appointments", tt.body)
		if status != http.StatusUnprocessableEntity {
			t.Errorf("%s: expected 422, got %d: %s", tt.name, status, body)
		}
	}
	_, body := ts.get(t, "/appointments")
	if string(body) != `[]` {
		t.Errorf("expected empty collection, got %s", body)
	}
}

func TestListAppointmentsCorruptFile(t *testing.T) {
	ts := newTestServer(t, nil)
	writeTestFile(t, ts.dir, "appointments.json", "{{ not json")

	status, body := ts.get(t, "/appointments")
	if status != http.StatusOK || string(body) != `[]` {
		t.Errorf("expected 200 [], got %d %s", status, body)
	}
}

func TestGetAppointmentNotFound(t *testing.T) {
	ts := newTestServer(t, nil)
	status, body := ts.get(t, "/appointments/nope")
	if status != http.StatusNotFound || string(body) != `{"detail":"Appointment 'nope' not found"}` {
		t.Errorf("unexpected response %d %s", status, body)
	}
}

func TestWebhook(t *testing.T) {
	ts := newTestServer(t, nil)
	payload := `{
		"transcript": "Agent: Hello. User: Hi, I'd like to book an appointment.",
		"conversation_initiation_metadata": {"dynamic_variables": {"hospital_name": "Mount Sinai Hospital"}},
		"recording_url": "https://api.elevenlabs.io/v1/history/123/audio"
	}`
	status, body := ts.post(t, "/webhook/elevenlabs", payload)
	if status != http.StatusOK || string(body) != `{"status":"processed","appointmentId":"wh-1"}` {
		t.Fatalf("unexpected response %d %s", status, body)
	}

	_, body = ts.get(t, "/appointments/wh-1")
	got := decode[appointment.Appointment](t, body)
	notes := "Booked via ElevenLabs Agent"
	transcript := "Agent: Hello. User: Hi, I'd like to book an appointment."
	audio := "https://api.elevenlabs.io/v1/history/123/audio"
	want := appointment.Appointment{
		ID:           "wh-1",
		HospitalID:   "unknown",
		HospitalName: "Mount Sinai Hospital",
		Date:         "2025-03-02T10:00:00",
		Status:       "confirmed",
		Notes:        &notes,
		Transcript:   &transcript,
		AudioURL:     &audio,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("appointment mismatch (-want +got):\n%s", diff)
	}
}

func TestWebhookSoftErrors(t *testing.T) {
	ts := newTestServer(t, nil)
	tests := []struct {
		name   string
		body   string
		detail string
	}{
		{"invalid json", `{"transcript": `, "invalid JSON payload"},
		{"not an object", `["a"]`, "payload is not a JSON object"},
		{"metadata not an object", `{"conversation_initiation_metadata": "x"}`, "conversation_initiation_metadata is not an object"},
	}
	for _, tt := range tests {
		status, body := ts.post(t, "/webhook/elevenlabs", tt.body)
		if status != http.StatusOK {
			t.Errorf("%s: expected 200, got %d", tt.name, status)
		}
		got := decode[map[string]string](t, body)
		if got["status"] != "error" || got["detail"] != tt.detail {
			t.Errorf("%s: unexpected body %s", tt.name, body)
		}
	}
}

func TestWebhookStoreConflictIsSoft(t *testing.T) {
	ts := newTestServer(t, nil)
	if status, _ := ts.post(t, "/webhook/elevenlabs", `{}`); status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	// The fixed id generator makes the second call collide.
	status, body := ts.post(t, "/webhook/elevenlabs", `{}`)
	got := decode[map[string]string](t, body)
	if status != http.StatusOK || got["status"] != "error" || !strings.Contains(got["detail"], "already exists") {
		t.Errorf("unexpected response %d %s", status, body)
	}
}

func TestUnknownRouteAndMethod(t *testing.T) {
	ts := newTestServer(t, nil)
	status, body := ts.get(t, "/nope")
	if status != http.StatusNotFound || string(body) != `{"detail":"Not Found"}` {
		t.Errorf("unexpected 404 response %d %s", status, body)
	}

	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/appointments", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusMethodNotAllowed || string(data) != `{"detail":"Method Not Allowed"}` {
		t.Errorf("unexpected 405 response %d %s", resp.StatusCode, data)
	}
}

func TestCORS(t *testing.T) {
	ts := newTestServer(t, nil)

	req, _ := http.NewRequest(http.MethodOptions, ts.URL+"/appointments", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", "POST")
	req.Header.Set("Access-Control-Request-Headers", "content-type")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Errorf("expected allowed origin echoed, got %q", got)
	}
	if got := resp.Header.Get("Access-Control-Allow-Credentials"); got != "true" {
		t.Errorf("expected credentials allowed, got %q", got)
	}

	req, _ = http.NewRequest(http.MethodGet, ts.URL+"/", nil)
	req.Header.Set("Origin", "http://evil.example")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("expected no CORS header for unknown origin, got %q", got)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.get(t, "/providers/doesnotexist")
	ts.post(t, "/appointments", appointmentBody)
	ts.post(t, "/webhook/elevenlabs", `{}`)

	_, body := ts.get(t, "/metrics")
	for _, want := range []string{
		`carenet_http_requests_total{code="404",method="GET",route="/providers/{id}"} 1`,
		`carenet_appointments_created_total{source="api"} 1`,
		`carenet_appointments_created_total{source="webhook"} 1`,
		`carenet_webhook_events_total{status="processed"} 1`,
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("expected metrics to contain %q", want)
		}
	}
}

func TestPanicRecovery(t *testing.T) {
	m := metrics.New()
	s := New(Options{
		Catalog: panicSource{},
		Store:   appointment.NewMemoryStore(),
		Logger:  logging.Discard(),
		Metrics: m,
	})
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/providers", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rec.Code)
	}
	if rec.Body.String() != `{"detail":"Internal Server Error"}` {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}
}

type panicSource struct{}

func (panicSource) Load(ctx context.Context) ([]provider.Provider, error) {
	panic("catalog exploded")
}

func TestSQLiteBackedServer(t *testing.T) {
	store, err := appointment.OpenSQLiteStore(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	ts := newTestServer(t, store)

	ts.post(t, "/appointments", appointmentBody)
	status, _ := ts.post(t, "/appointments", appointmentBody)
	if status != http.StatusBadRequest {
		t.Errorf("expected 400 on duplicate, got %d", status)
	}
	_, body := ts.get(t, "/appointments")
	if got := decode[[]appointment.Appointment](t, body); len(got) != 1 || got[0].ID != "appt-1" {
		t.Errorf("unexpected collection: %s", body)
	}
}

package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/gyeh/carenet/internal/appointment"
	"github.com/gyeh/carenet/internal/geo"
	"github.com/gyeh/carenet/internal/metrics"
	"github.com/gyeh/carenet/internal/provider"
)

// maxBodyBytes bounds request bodies for appointment creation and webhooks.
const maxBodyBytes = 1 << 20

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) loadCatalog(w http.ResponseWriter, r *http.Request) ([]provider.Provider, bool) {
	providers, err := s.catalog.Load(r.Context())
	if err != nil {
		s.logger.ErrorContext(r.Context(), "loading provider catalog", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "provider catalog unavailable")
		return nil, false
	}
	return providers, true
}

func (s *Server) listProviders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	loc, err := parseLocation(q)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	inNetworkOnly, err := parseBool(q.Get("in_network_only"))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid in_network_only: %q", q.Get("in_network_only")))
		return
	}

	providers, ok := s.loadCatalog(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, provider.Search(providers, provider.Query{
		Carrier:       provider.NormalizeCarrier(q.Get("provider")),
		Type:          q.Get("type"),
		Location:      loc,
		InNetworkOnly: inNetworkOnly,
	}))
}

func (s *Server) getProvider(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	q := r.URL.Query()
	loc, err := parseLocation(q)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	providers, ok := s.loadCatalog(w, r)
	if !ok {
		return
	}
	p, err := provider.Find(providers, id)
	if errors.Is(err, provider.ErrNotFound) {
		writeError(w, http.StatusNotFound, fmt.Sprintf("Provider '%s' not found", id))
		return
	}
	writeJSON(w, http.StatusOK, provider.Transform(p, provider.NormalizeCarrier(q.Get("insurance")), loc))
}

func (s *Server) listAppointments(w http.ResponseWriter, r *http.Request) {
	appts, err := s.store.Load(r.Context())
	if err != nil {
		s.logger.ErrorContext(r.Context(), "loading appointments", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "appointment store unavailable")
		return
	}
	writeJSON(w, http.StatusOK, appts)
}

func (s *Server) getAppointment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	appt, err := s.store.Get(r.Context(), id)
	switch {
	case errors.Is(err, appointment.ErrNotFound):
		writeError(w, http.StatusNotFound, fmt.Sprintf("Appointment '%s' not found", id))
	case err != nil:
		s.logger.ErrorContext(r.Context(), "loading appointment", slog.String("id", id), slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "appointment store unavailable")
	default:
		writeJSON(w, http.StatusOK, appt)
	}
}

func (s *Server) createAppointment(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}
	if !isJSONObject(body) {
		writeError(w, http.StatusUnprocessableEntity, "request body must be a JSON object")
		return
	}
	var appt appointment.Appointment
	if err := json.Unmarshal(body, &appt); err != nil {
		writeError(w, http.StatusUnprocessableEntity, fmt.Sprintf("invalid appointment: %v", err))
		return
	}
	if appt.Status == "" {
		appt.Status = appointment.DefaultStatus
	}
	if err := appt.Validate(); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	err = s.store.Create(r.Context(), appt)
	switch {
	case errors.Is(err, appointment.ErrConflict):
		writeError(w, http.StatusBadRequest, "Appointment ID already exists")
	case err != nil:
		s.logger.ErrorContext(r.Context(), "creating appointment", slog.String("id", appt.ID), slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "appointment store unavailable")
	default:
		s.metrics.AppointmentsCreated.WithLabelValues(metrics.SourceAPI).Inc()
		writeJSON(w, http.StatusOK, appt)
	}
}

type webhookResponse struct {
	Status        string `json:"status"`
	AppointmentID string `json:"appointmentId,omitempty"`
	Detail        string `json:"detail,omitempty"`
}

// elevenLabsWebhook always answers 200 so the voice platform does not retry;
// failures are reported in the body.
func (s *Server) elevenLabsWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		s.webhookFailed(w, r, fmt.Errorf("reading payload: %w", err))
		return
	}
	appt, err := s.webhook.Process(r.Context(), body)
	if err != nil {
		s.webhookFailed(w, r, err)
		return
	}
	s.metrics.WebhookEvents.WithLabelValues("processed").Inc()
	s.metrics.AppointmentsCreated.WithLabelValues(metrics.SourceWebhook).Inc()
	writeJSON(w, http.StatusOK, webhookResponse{Status: "processed", AppointmentID: appt.ID})
}

func (s *Server) webhookFailed(w http.ResponseWriter, r *http.Request, err error) {
	s.logger.WarnContext(r.Context(), "processing webhook", slog.Any("error", err))
	s.metrics.WebhookEvents.WithLabelValues("error").Inc()
	writeJSON(w, http.StatusOK, webhookResponse{Status: "error", Detail: err.Error()})
}

// parseLocation returns the patient location when both lat and lng are set.
func parseLocation(q url.Values) (*geo.Point, error) {
	lat, hasLat, err := parseCoord(q, "lat")
	if err != nil {
		return nil, err
	}
	lng, hasLng, err := parseCoord(q, "lng")
	if err != nil {
		return nil, err
	}
	if !hasLat || !hasLng {
		return nil, nil
	}
	return &geo.Point{Lat: lat, Lng: lng}, nil
}

func parseCoord(q url.Values, name string) (float64, bool, error) {
	raw := strings.TrimSpace(q.Get(name))
	if raw == "" {
		return 0, false, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false, fmt.Errorf("invalid %s: %q", name, raw)
	}
	return v, true, nil
}

func parseBool(raw string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return false, nil
	case "yes", "on":
		return true, nil
	case "no", "off":
		return false, nil
	}
	return strconv.ParseBool(strings.TrimSpace(raw))
}

func isJSONObject(body []byte) bool {
	for _, b := range body {
		switch b {
		case ' ', '\t', '\n', '\r':
			continue
		}
		return b == '{'
	}
	return false
}

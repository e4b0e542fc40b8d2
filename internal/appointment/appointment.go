// Package appointment persists booked appointments behind a swappable Store.
package appointment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// DefaultStatus is applied when an appointment is created without a status.
const DefaultStatus = "confirmed"

var (
	// ErrConflict is returned by Create when the id is already taken.
	ErrConflict = errors.New("appointment id already exists")
	// ErrNotFound is returned by Get when no appointment has the id.
	ErrNotFound = errors.New("appointment not found")
)

// Appointment is one booked visit. Optional fields are written as null when
// unset.
type Appointment struct {
	ID           string  `json:"id"`
	HospitalID   string  `json:"hospitalId"`
	HospitalName string  `json:"hospitalName"`
	Date         string  `json:"date"` // local time, 2006-01-02T15:04:05
	Status       string  `json:"status"`
	Notes        *string `json:"notes"`
	Transcript   *string `json:"transcript"`
	AudioURL     *string `json:"audioUrl"`
}

// Validate reports the first required field that is empty.
func (a Appointment) Validate() error {
	switch {
	case a.ID == "":
		return errors.New("id is required")
	case a.HospitalID == "":
		return errors.New("hospitalId is required")
	case a.HospitalName == "":
		return errors.New("hospitalName is required")
	case a.Date == "":
		return errors.New("date is required")
	}
	return nil
}

// Store loads and persists the appointment collection in insertion order.
type Store interface {
	// Load returns every appointment. Absent data or data that is not a
	// JSON array yields an empty collection; malformed elements are skipped.
	Load(ctx context.Context) ([]Appointment, error)
	// Save replaces the stored collection.
	Save(ctx context.Context, appts []Appointment) error
	// Create appends a and persists, or returns ErrConflict.
	Create(ctx context.Context, a Appointment) error
	// Get returns the appointment with id, or ErrNotFound.
	Get(ctx context.Context, id string) (Appointment, error)
}

// decodeLenient parses a JSON array of appointments. Data that is not an
// array is treated as an empty collection; elements that do not decode as an
// appointment are skipped so the rest survive the next Save.
func decodeLenient(data []byte) []Appointment {
	var records []json.RawMessage
	if err := json.Unmarshal(data, &records); err != nil {
		return []Appointment{}
	}
	appts := make([]Appointment, 0, len(records))
	for _, rec := range records {
		if !isObject(rec) {
			continue
		}
		var a Appointment
		if err := json.Unmarshal(rec, &a); err != nil {
			continue
		}
		appts = append(appts, a)
	}
	return appts
}

func isObject(raw []byte) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '{'
}

// loadSaveCreate implements Create for stores that rewrite the whole
// collection. Concurrent calls may both pass the duplicate check; the later
// Save wins.
func loadSaveCreate(ctx context.Context, s Store, a Appointment) error {
	appts, err := s.Load(ctx)
	if err != nil {
		return err
	}
	for _, existing := range appts {
		if existing.ID == a.ID {
			return fmt.Errorf("creating %s: %w", a.ID, ErrConflict)
		}
	}
	return s.Save(ctx, append(appts, a))
}

func find(appts []Appointment, id string) (Appointment, error) {
	for _, a := range appts {
		if a.ID == id {
			return a, nil
		}
	}
	return Appointment{}, fmt.Errorf("appointment %q: %w", id, ErrNotFound)
}

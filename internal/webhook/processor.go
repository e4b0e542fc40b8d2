package webhook

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/gyeh/carenet/internal/appointment"
)

// Placeholder values written on synthesized appointments. The call report
// does not carry a provider id or a parsed visit time.
const (
	UnknownHospitalID = "unknown"
	BookingNotes      = "Booked via ElevenLabs Agent"
	dateLayout        = "2006-01-02T15:04:05"
)

// Synthesize builds the appointment for call: tomorrow at 10:00:00 in now's
// location with no fractional seconds, status confirmed.
func Synthesize(call Call, now time.Time, id string) appointment.Appointment {
	date := time.Date(now.Year(), now.Month(), now.Day()+1, 10, 0, 0, 0, now.Location())
	notes := BookingNotes
	return appointment.Appointment{
		ID:           id,
		HospitalID:   UnknownHospitalID,
		HospitalName: call.HospitalName,
		Date:         date.Format(dateLayout),
		Status:       appointment.DefaultStatus,
		Notes:        &notes,
		Transcript:   call.Transcript,
		AudioURL:     call.RecordingURL,
	}
}

// Processor records call reports as appointments.
type Processor struct {
	store  appointment.Store
	logger *slog.Logger
	now    func() time.Time
	newID  func() string
}

// Option configures a Processor.
type Option func(*Processor)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(p *Processor) { p.now = now }
}

// WithIDGenerator overrides uuid.NewString.
func WithIDGenerator(newID func() string) Option {
	return func(p *Processor) { p.newID = newID }
}

// NewProcessor returns a Processor appending to store.
func NewProcessor(store appointment.Store, logger *slog.Logger, opts ...Option) *Processor {
	p := &Processor{
		store:  store,
		logger: logger,
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process extracts a booking from body and stores it.
func (p *Processor) Process(ctx context.Context, body []byte) (appointment.Appointment, error) {
	p.logger.DebugContext(ctx, "received webhook payload", slog.String("payload", string(body)))

	call, err := Extract(body)
	if err != nil {
		return appointment.Appointment{}, err
	}

	appt := Synthesize(call, p.now(), p.newID())
	if err := p.store.Create(ctx, appt); err != nil {
		return appointment.Appointment{}, fmt.Errorf("storing appointment: %w", err)
	}
	p.logger.InfoContext(ctx, "webhook appointment created",
		slog.String("id", appt.ID),
		slog.String("hospital", appt.HospitalName),
	)
	return appt, nil
}

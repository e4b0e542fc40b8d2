package appointment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const schema = `CREATE TABLE IF NOT EXISTS appointments (
	id TEXT PRIMARY KEY,
	seq INTEGER NOT NULL,
	hospital_id TEXT NOT NULL,
	hospital_name TEXT NOT NULL,
	date TEXT NOT NULL,
	status TEXT NOT NULL,
	notes TEXT,
	transcript TEXT,
	audio_url TEXT
);`

const insertAppointment = `INSERT INTO appointments
	(id, seq, hospital_id, hospital_name, date, status, notes, transcript, audio_url)
	VALUES (?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM appointments), ?, ?, ?, ?, ?, ?, ?)`

const selectAppointments = `SELECT id, hospital_id, hospital_name, date, status, notes, transcript, audio_url
	FROM appointments`

// SQLiteStore keeps appointments in a SQLite table ordered by insertion.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLiteStore opens (or creates) the database at path. Use ":memory:"
// for a throwaway database.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	// A single connection keeps ":memory:" databases shared across calls.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close releases the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Load(ctx context.Context) ([]Appointment, error) {
	rows, err := s.db.QueryContext(ctx, selectAppointments+" ORDER BY seq")
	if err != nil {
		return nil, fmt.Errorf("querying appointments: %w", err)
	}
	defer rows.Close()

	appts := []Appointment{}
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		appts = append(appts, a)
	}
	return appts, rows.Err()
}

// Save replaces every row in one transaction.
func (s *SQLiteStore) Save(ctx context.Context, appts []Appointment) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM appointments"); err != nil {
		return fmt.Errorf("clearing appointments: %w", err)
	}
	for _, a := range appts {
		if err := insert(ctx, tx, a); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) Create(ctx context.Context, a Appointment) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := insert(ctx, tx, a); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (Appointment, error) {
	row := s.db.QueryRowContext(ctx, selectAppointments+" WHERE id = ?", id)
	a, err := scanAppointment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Appointment{}, fmt.Errorf("appointment %q: %w", id, ErrNotFound)
	}
	return a, err
}

func insert(ctx context.Context, tx *sql.Tx, a Appointment) error {
	var exists int
	err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM appointments WHERE id = ?", a.ID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("checking %s: %w", a.ID, err)
	}
	if exists > 0 {
		return fmt.Errorf("creating %s: %w", a.ID, ErrConflict)
	}
	_, err = tx.ExecContext(ctx, insertAppointment,
		a.ID, a.HospitalID, a.HospitalName, a.Date, a.Status,
		nullString(a.Notes), nullString(a.Transcript), nullString(a.AudioURL),
	)
	if err != nil {
		return fmt.Errorf("inserting %s: %w", a.ID, err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAppointment(row scanner) (Appointment, error) {
	var a Appointment
	var notes, transcript, audio sql.NullString
	if err := row.Scan(&a.ID, &a.HospitalID, &a.HospitalName, &a.Date, &a.Status, &notes, &transcript, &audio); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Appointment{}, err
		}
		return Appointment{}, fmt.Errorf("scanning appointment: %w", err)
	}
	a.Notes = stringPtr(notes)
	a.Transcript = stringPtr(transcript)
	a.AudioURL = stringPtr(audio)
	return a, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}

var _ Store = (*SQLiteStore)(nil)

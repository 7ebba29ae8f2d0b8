package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/kilianp07/ers/core/model"
	corestore "github.com/kilianp07/ers/core/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS incidents (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	id TEXT NOT NULL UNIQUE,
	status TEXT NOT NULL,
	record TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS incidents_status ON incidents(status);
CREATE TABLE IF NOT EXISTS vehicles (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	id TEXT NOT NULL UNIQUE,
	status TEXT NOT NULL,
	record TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS vehicles_status ON vehicles(status);
CREATE TABLE IF NOT EXISTS hospitals (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	id TEXT NOT NULL UNIQUE,
	load INTEGER NOT NULL,
	record TEXT NOT NULL
);`

// SQLiteStore persists records as JSON documents in SQLite. A single
// connection is used so transactions never contend for the write lock.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates the database at path and ensures schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		if cerr := db.Close(); cerr != nil {
			return nil, fmt.Errorf("close db: %v (schema err: %w)", cerr, err)
		}
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// View runs fn inside a transaction that is always rolled back.
func (s *SQLiteStore) View(ctx context.Context, fn func(corestore.Reader) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	return fn(&sqlTx{ctx: ctx, tx: tx})
}

// Update runs fn inside a transaction committed when fn returns nil.
func (s *SQLiteStore) Update(ctx context.Context, fn func(corestore.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(&sqlTx{ctx: ctx, tx: tx}); err != nil {
		if rerr := tx.Rollback(); rerr != nil {
			return fmt.Errorf("rollback: %v (cause: %w)", rerr, err)
		}
		return err
	}
	return tx.Commit()
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error { return s.db.Close() }

type sqlTx struct {
	ctx context.Context
	tx  *sql.Tx
}

func statusClause[S ~string](statuses []S) (string, []any) {
	if len(statuses) == 0 {
		return "", nil
	}
	marks := make([]string, len(statuses))
	args := make([]any, len(statuses))
	for i, s := range statuses {
		marks[i] = "?"
		args[i] = string(s)
	}
	return " WHERE status IN (" + strings.Join(marks, ",") + ")", args
}

func getDoc[T any](t *sqlTx, query, id string, notFound error) (T, error) {
	var (
		v    T
		data string
	)
	err := t.tx.QueryRowContext(t.ctx, query, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return v, model.NotFound(notFound, id)
	}
	if err != nil {
		return v, err
	}
	if err := json.Unmarshal([]byte(data), &v); err != nil {
		return v, fmt.Errorf("unmarshal %s: %w", id, err)
	}
	return v, nil
}

func listDocs[T any](t *sqlTx, query string, args ...any) ([]T, error) {
	rows, err := t.tx.QueryContext(t.ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var res []T
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var v T
		if err := json.Unmarshal([]byte(data), &v); err != nil {
			return nil, fmt.Errorf("unmarshal record: %w", err)
		}
		res = append(res, v)
	}
	return res, rows.Err()
}

func (t *sqlTx) Incident(id string) (model.Incident, error) {
	return getDoc[model.Incident](t, `SELECT record FROM incidents WHERE id = ?`, id, model.ErrIncidentNotFound)
}

func (t *sqlTx) Incidents(f corestore.IncidentFilter) ([]model.Incident, error) {
	where, args := statusClause(f.Statuses)
	return listDocs[model.Incident](t, `SELECT record FROM incidents`+where+` ORDER BY seq`, args...)
}

func (t *sqlTx) Vehicle(id string) (model.Vehicle, error) {
	return getDoc[model.Vehicle](t, `SELECT record FROM vehicles WHERE id = ?`, id, model.ErrVehicleNotFound)
}

func (t *sqlTx) Vehicles(f corestore.VehicleFilter) ([]model.Vehicle, error) {
	where, args := statusClause(f.Statuses)
	return listDocs[model.Vehicle](t, `SELECT record FROM vehicles`+where+` ORDER BY seq`, args...)
}

func (t *sqlTx) Hospital(id string) (model.Hospital, error) {
	var (
		load int
		data string
	)
	err := t.tx.QueryRowContext(t.ctx, `SELECT load, record FROM hospitals WHERE id = ?`, id).Scan(&load, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Hospital{}, model.NotFound(model.ErrHospitalNotFound, id)
	}
	if err != nil {
		return model.Hospital{}, err
	}
	return decodeHospital(load, data)
}

func (t *sqlTx) Hospitals() ([]model.Hospital, error) {
	rows, err := t.tx.QueryContext(t.ctx, `SELECT load, record FROM hospitals ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var res []model.Hospital
	for rows.Next() {
		var (
			load int
			data string
		)
		if err := rows.Scan(&load, &data); err != nil {
			return nil, err
		}
		h, err := decodeHospital(load, data)
		if err != nil {
			return nil, err
		}
		res = append(res, h)
	}
	return res, rows.Err()
}

func decodeHospital(load int, data string) (model.Hospital, error) {
	var h model.Hospital
	if err := json.Unmarshal([]byte(data), &h); err != nil {
		return h, fmt.Errorf("unmarshal hospital: %w", err)
	}
	h.Load = load
	return h, nil
}

func (t *sqlTx) PutIncident(inc model.Incident) error {
	if inc.ID == "" {
		return model.Validation("incident id is empty")
	}
	b, err := json.Marshal(inc)
	if err != nil {
		return err
	}
	_, err = t.tx.ExecContext(t.ctx, `INSERT INTO incidents (id, status, record) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET status = excluded.status, record = excluded.record`,
		inc.ID, string(inc.Status), string(b))
	return err
}

func (t *sqlTx) PutVehicle(v model.Vehicle) error {
	if v.ID == "" {
		return model.Validation("vehicle id is empty")
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = t.tx.ExecContext(t.ctx, `INSERT INTO vehicles (id, status, record) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET status = excluded.status, record = excluded.record`,
		v.ID, string(v.Status), string(b))
	return err
}

func (t *sqlTx) PutHospital(h model.Hospital) error {
	if h.ID == "" {
		return model.Validation("hospital id is empty")
	}
	b, err := json.Marshal(h)
	if err != nil {
		return err
	}
	_, err = t.tx.ExecContext(t.ctx, `INSERT INTO hospitals (id, load, record) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET load = excluded.load, record = excluded.record`,
		h.ID, h.Load, string(b))
	return err
}

func (t *sqlTx) AdjustHospitalLoad(id string, delta, max int) (int, int, error) {
	var current int
	err := t.tx.QueryRowContext(t.ctx, `SELECT load FROM hospitals WHERE id = ?`, id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, 0, model.NotFound(model.ErrHospitalNotFound, id)
	}
	if err != nil {
		return 0, 0, err
	}
	load := model.ClampLoad(current+delta, max)
	if _, err := t.tx.ExecContext(t.ctx, `UPDATE hospitals SET load = ? WHERE id = ?`, load, id); err != nil {
		return 0, 0, err
	}
	return load - current, load, nil
}

func (t *sqlTx) DeleteIncidents(f corestore.IncidentFilter) (int, error) {
	where, args := statusClause(f.Statuses)
	res, err := t.tx.ExecContext(t.ctx, `DELETE FROM incidents`+where, args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

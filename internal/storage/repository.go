package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"casebook/internal/core"
	"casebook/internal/log"
	"casebook/internal/serial"
	"casebook/internal/store"
)

var (
	_ store.CaseStore      = (*SQLiteRepository)(nil)
	_ store.HospitalLister = (*SQLiteRepository)(nil)
)

type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One writer at a time keeps the serial read and the insert in the
	// same critical section.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db, now: time.Now}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database answers.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return classify(err)
	}
	return nil
}

func (r *SQLiteRepository) List(ctx context.Context, ownerID string, limit int) ([]core.CaseEntry, error) {
	rows, err := r.db.QueryContext(ctx, listCasesSQL, ownerID, store.ClampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list cases: %w", classify(err))
	}
	defer rows.Close()

	cases := make([]core.CaseEntry, 0)
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, fmt.Errorf("scan case: %w", classify(err))
		}
		cases = append(cases, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list cases: %w", classify(err))
	}
	return cases, nil
}

func (r *SQLiteRepository) Create(ctx context.Context, ownerID string, f core.CaseFields) (core.CaseEntry, error) {
	if ownerID == "" {
		return core.CaseEntry{}, core.ErrNoOwner
	}
	f, err := store.PrepareFields(f)
	if err != nil {
		return core.CaseEntry{}, err
	}

	var created core.CaseEntry
	for attempt := 1; attempt <= serial.MaxRetries; attempt++ {
		created, err = r.insert(ctx, ownerID, f)
		if err == nil {
			break
		}
		if !isUniqueViolation(err) {
			return core.CaseEntry{}, fmt.Errorf("create case: %w", classify(err))
		}
		slog.WarnContext(ctx, "Serial number taken, retrying",
			log.FieldOwnerID, ownerID,
			log.FieldDate, f.Date,
			"attempt", attempt)
	}
	if err != nil {
		return core.CaseEntry{}, fmt.Errorf("create case: %w: %v", core.ErrStoreUnavailable, err)
	}

	slog.InfoContext(ctx, "Case saved to SQLite",
		log.FieldCaseID, created.ID,
		log.FieldOwnerID, created.OwnerID,
		log.FieldDate, created.Date,
		log.FieldSerial, created.SerialNumber)
	return created, nil
}

func (r *SQLiteRepository) insert(ctx context.Context, ownerID string, f core.CaseFields) (core.CaseEntry, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.CaseEntry{}, err
	}
	defer tx.Rollback()

	sn, err := serial.Next(ctx, txSource{tx}, ownerID, f.Date)
	if err != nil {
		return core.CaseEntry{}, err
	}

	now := r.now().UTC()
	c := core.CaseEntry{
		ID:           uuid.NewString(),
		OwnerID:      ownerID,
		SerialNumber: sn,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	c.Apply(f)

	_, err = tx.ExecContext(ctx, insertCaseSQL,
		c.ID, c.OwnerID, c.SerialNumber, c.Date, c.Hospital, c.PatientName, nullableAge(c.Age), string(c.Sex),
		c.Diagnosis, c.Anesthesia, c.Procedure, c.StartTime, c.EndTime, c.Duration,
		string(c.PaymentMode), string(c.PaymentStatus), c.SurgeonName, c.Amount.String(), c.Remarks,
		now.Format(timeLayout), now.Format(timeLayout),
	)
	if err != nil {
		return core.CaseEntry{}, err
	}
	if err := tx.Commit(); err != nil {
		return core.CaseEntry{}, err
	}
	return c, nil
}

func (r *SQLiteRepository) Update(ctx context.Context, ownerID, id string, f core.CaseFields) (core.CaseEntry, error) {
	f, err := store.PrepareFields(f)
	if err != nil {
		return core.CaseEntry{}, err
	}

	var updated core.CaseEntry
	for attempt := 1; attempt <= serial.MaxRetries; attempt++ {
		updated, err = r.update(ctx, ownerID, id, f)
		if err == nil || !isUniqueViolation(err) {
			break
		}
	}
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return core.CaseEntry{}, err
		}
		return core.CaseEntry{}, fmt.Errorf("update case %s: %w", id, classify(err))
	}

	slog.InfoContext(ctx, "Case updated in SQLite",
		log.FieldCaseID, updated.ID,
		log.FieldOwnerID, updated.OwnerID,
		log.FieldDate, updated.Date,
		log.FieldSerial, updated.SerialNumber)
	return updated, nil
}

func (r *SQLiteRepository) update(ctx context.Context, ownerID, id string, f core.CaseFields) (core.CaseEntry, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.CaseEntry{}, err
	}
	defer tx.Rollback()

	existing, err := scanCase(tx.QueryRowContext(ctx, getCaseSQL, id, ownerID))
	if errors.Is(err, sql.ErrNoRows) {
		return core.CaseEntry{}, core.ErrNotFound
	}
	if err != nil {
		return core.CaseEntry{}, err
	}

	sn, err := serial.ForUpdate(ctx, txSource{tx}, existing, f.Date)
	if err != nil {
		return core.CaseEntry{}, err
	}
	c := existing
	c.Apply(f)
	c.SerialNumber = sn
	c.UpdatedAt = r.now().UTC()

	res, err := tx.ExecContext(ctx, updateCaseSQL,
		c.SerialNumber, c.Date, c.Hospital, c.PatientName, nullableAge(c.Age), string(c.Sex),
		c.Diagnosis, c.Anesthesia, c.Procedure, c.StartTime, c.EndTime,
		c.Duration, string(c.PaymentMode), string(c.PaymentStatus), c.SurgeonName, c.Amount.String(),
		c.Remarks, c.UpdatedAt.Format(timeLayout),
		id, ownerID,
	)
	if err != nil {
		return core.CaseEntry{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.CaseEntry{}, core.ErrNotFound
	}
	if err := tx.Commit(); err != nil {
		return core.CaseEntry{}, err
	}
	return c, nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, ownerID, id string) error {
	res, err := r.db.ExecContext(ctx, deleteCaseSQL, id, ownerID)
	if err != nil {
		return fmt.Errorf("delete case %s: %w", id, classify(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete case %s: %w", id, classify(err))
	}
	if n == 0 {
		return core.ErrNotFound
	}

	slog.InfoContext(ctx, "Case deleted from SQLite",
		log.FieldCaseID, id,
		log.FieldOwnerID, ownerID)
	return nil
}

// Hospitals implements store.HospitalLister
func (r *SQLiteRepository) Hospitals(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, listHospitalsSQL)
	if err != nil {
		return nil, fmt.Errorf("list hospitals: %w", classify(err))
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan hospital: %w", classify(err))
		}
		names = append(names, name)
	}
	return names, classify(rows.Err())
}

// txSource reads the serial partition inside an open transaction.
type txSource struct{ tx *sql.Tx }

func (s txSource) MaxSerial(ctx context.Context, ownerID, date string) (int, bool, error) {
	var max sql.NullInt64
	if err := s.tx.QueryRowContext(ctx, maxSerialSQL, ownerID, date).Scan(&max); err != nil {
		return 0, false, classify(err)
	}
	return int(max.Int64), max.Valid, nil
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		return se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE || se.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return false
}

// classify maps driver errors onto the core error set. Errors that already
// carry a core sentinel pass through.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, core.ErrStoreUnavailable), errors.Is(err, core.ErrNotFound),
		errors.Is(err, core.ErrValidation), errors.Is(err, core.ErrNoOwner):
		return err
	case errors.Is(err, sql.ErrNoRows):
		return core.ErrNotFound
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	}
	// Closed pools, bad connections and I/O failures all mean the store
	// cannot serve the request.
	return fmt.Errorf("%w: %v", core.ErrStoreUnavailable, err)
}

package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"casebook/internal/core"
	"casebook/internal/log"
	"casebook/internal/serial"
	"casebook/internal/store"
)

var (
	_ store.CaseStore      = (*CaseRepoPG)(nil)
	_ store.HospitalLister = (*CaseRepoPG)(nil)
)

const uniqueViolation = "23505"

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type CaseRepoPG struct{ pool *pgxpool.Pool }

func NewCaseRepoPG(pool *pgxpool.Pool) *CaseRepoPG {
	return &CaseRepoPG{pool: pool}
}

// Ping reports whether the pool can reach the server.
func (r *CaseRepoPG) Ping(ctx context.Context) error {
	if err := r.pool.Ping(ctx); err != nil {
		return classify(err)
	}
	return nil
}

func (r *CaseRepoPG) Close() error {
	r.pool.Close()
	return nil
}

const caseCols = `id::text, owner_id, serial_number, to_char(date, 'YYYY-MM-DD'), hospital, patient_name,
	age, sex, diagnosis, anesthesia, procedure_name, start_time, end_time, duration,
	payment_mode, payment_status, surgeon_name, amount::text, remarks, created_at, updated_at`

func scanCase(row pgx.Row) (core.CaseEntry, error) {
	var (
		c                 core.CaseEntry
		amount            string
		sex, mode, status string
	)
	err := row.Scan(&c.ID, &c.OwnerID, &c.SerialNumber, &c.Date, &c.Hospital, &c.PatientName,
		&c.Age, &sex, &c.Diagnosis, &c.Anesthesia, &c.Procedure, &c.StartTime, &c.EndTime, &c.Duration,
		&mode, &status, &c.SurgeonName, &amount, &c.Remarks, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return core.CaseEntry{}, err
	}
	c.Sex = core.Sex(sex)
	c.PaymentMode = core.PaymentMode(mode)
	c.PaymentStatus = core.PaymentStatus(status)
	if c.Amount, err = decimal.NewFromString(amount); err != nil {
		return core.CaseEntry{}, fmt.Errorf("parse amount of case %s: %w", c.ID, err)
	}
	return c, nil
}

func (r *CaseRepoPG) List(ctx context.Context, ownerID string, limit int) ([]core.CaseEntry, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+caseCols+` FROM cases
		WHERE owner_id = $1
		ORDER BY date DESC, serial_number DESC
		LIMIT $2`, ownerID, store.ClampLimit(limit))
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

func (r *CaseRepoPG) Create(ctx context.Context, ownerID string, f core.CaseFields) (core.CaseEntry, error) {
	if ownerID == "" {
		return core.CaseEntry{}, core.ErrNoOwner
	}
	f, err := store.PrepareFields(f)
	if err != nil {
		return core.CaseEntry{}, err
	}

	var c core.CaseEntry
	for attempt := 1; attempt <= serial.MaxRetries; attempt++ {
		c, err = r.insert(ctx, ownerID, f)
		if !isUniqueViolation(err) {
			break
		}
		slog.WarnContext(ctx, "Serial number taken, retrying",
			log.FieldOwnerID, ownerID,
			log.FieldDate, f.Date,
			"attempt", attempt)
	}
	if err != nil {
		return core.CaseEntry{}, fmt.Errorf("create case: %w", classify(err))
	}

	slog.InfoContext(ctx, "Case saved to PostgreSQL",
		log.FieldCaseID, c.ID,
		log.FieldOwnerID, c.OwnerID,
		log.FieldDate, c.Date,
		log.FieldSerial, c.SerialNumber)
	return c, nil
}

func (r *CaseRepoPG) insert(ctx context.Context, ownerID string, f core.CaseFields) (core.CaseEntry, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return core.CaseEntry{}, err
	}
	defer tx.Rollback(ctx)

	if err := lockPartition(ctx, tx, ownerID, f.Date); err != nil {
		return core.CaseEntry{}, err
	}
	sn, err := serial.Next(ctx, source{tx}, ownerID, f.Date)
	if err != nil {
		return core.CaseEntry{}, err
	}

	c := core.CaseEntry{ID: uuid.New().String(), OwnerID: ownerID, SerialNumber: sn}
	c.Apply(f)
	err = tx.QueryRow(ctx, `
		INSERT INTO cases (id, owner_id, serial_number, date, hospital, patient_name, age, sex,
			diagnosis, anesthesia, procedure_name, start_time, end_time, duration,
			payment_mode, payment_status, surgeon_name, amount, remarks)
		VALUES ($1::text::uuid, $2, $3, $4::text::date, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
			$15, $16, $17, $18::text::numeric, $19)
		RETURNING created_at, updated_at`,
		c.ID, c.OwnerID, c.SerialNumber, c.Date, c.Hospital, c.PatientName, c.Age, string(c.Sex),
		c.Diagnosis, c.Anesthesia, c.Procedure, c.StartTime, c.EndTime, c.Duration,
		string(c.PaymentMode), string(c.PaymentStatus), c.SurgeonName, c.Amount.String(), c.Remarks,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return core.CaseEntry{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return core.CaseEntry{}, err
	}
	return c, nil
}

func (r *CaseRepoPG) Update(ctx context.Context, ownerID, id string, f core.CaseFields) (core.CaseEntry, error) {
	f, err := store.PrepareFields(f)
	if err != nil {
		return core.CaseEntry{}, err
	}
	if _, perr := uuid.Parse(id); perr != nil {
		return core.CaseEntry{}, core.ErrNotFound
	}

	var c core.CaseEntry
	for attempt := 1; attempt <= serial.MaxRetries; attempt++ {
		c, err = r.update(ctx, ownerID, id, f)
		if !isUniqueViolation(err) {
			break
		}
	}
	if err != nil {
		return core.CaseEntry{}, fmt.Errorf("update case %s: %w", id, classify(err))
	}

	slog.InfoContext(ctx, "Case updated in PostgreSQL",
		log.FieldCaseID, c.ID,
		log.FieldOwnerID, c.OwnerID,
		log.FieldDate, c.Date,
		log.FieldSerial, c.SerialNumber)
	return c, nil
}

func (r *CaseRepoPG) update(ctx context.Context, ownerID, id string, f core.CaseFields) (core.CaseEntry, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return core.CaseEntry{}, err
	}
	defer tx.Rollback(ctx)

	existing, err := scanCase(tx.QueryRow(ctx,
		`SELECT `+caseCols+` FROM cases WHERE id = $1::text::uuid AND owner_id = $2 FOR UPDATE`, id, ownerID))
	if err != nil {
		return core.CaseEntry{}, err
	}
	if existing.Date != f.Date {
		if err := lockPartition(ctx, tx, ownerID, f.Date); err != nil {
			return core.CaseEntry{}, err
		}
	}
	sn, err := serial.ForUpdate(ctx, source{tx}, existing, f.Date)
	if err != nil {
		return core.CaseEntry{}, err
	}

	c := existing
	c.Apply(f)
	c.SerialNumber = sn
	c, err = scanCase(tx.QueryRow(ctx, `
		UPDATE cases SET serial_number = $3, date = $4::text::date, hospital = $5, patient_name = $6,
			age = $7, sex = $8, diagnosis = $9, anesthesia = $10, procedure_name = $11,
			start_time = $12, end_time = $13, duration = $14, payment_mode = $15,
			payment_status = $16, surgeon_name = $17, amount = $18::text::numeric, remarks = $19,
			updated_at = NOW()
		WHERE id = $1::text::uuid AND owner_id = $2
		RETURNING `+caseCols,
		id, ownerID, c.SerialNumber, c.Date, c.Hospital, c.PatientName, c.Age, string(c.Sex),
		c.Diagnosis, c.Anesthesia, c.Procedure, c.StartTime, c.EndTime, c.Duration,
		string(c.PaymentMode), string(c.PaymentStatus), c.SurgeonName, c.Amount.String(), c.Remarks))
	if err != nil {
		return core.CaseEntry{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return core.CaseEntry{}, err
	}
	return c, nil
}

func (r *CaseRepoPG) Delete(ctx context.Context, ownerID, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return core.ErrNotFound
	}
	tag, err := r.pool.Exec(ctx, `DELETE FROM cases WHERE id = $1::text::uuid AND owner_id = $2`, id, ownerID)
	if err != nil {
		return fmt.Errorf("delete case %s: %w", id, classify(err))
	}
	if tag.RowsAffected() == 0 {
		return core.ErrNotFound
	}
	slog.InfoContext(ctx, "Case deleted from PostgreSQL",
		log.FieldCaseID, id,
		log.FieldOwnerID, ownerID)
	return nil
}

// Hospitals implements store.HospitalLister
func (r *CaseRepoPG) Hospitals(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT name FROM hospitals ORDER BY sort_order, name`)
	if err != nil {
		return nil, fmt.Errorf("list hospitals: %w", classify(err))
	}
	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("list hospitals: %w", classify(err))
	}
	return names, nil
}

// source reads the serial partition through an open transaction.
type source struct{ q queryable }

func (s source) MaxSerial(ctx context.Context, ownerID, date string) (int, bool, error) {
	var max *int
	err := s.q.QueryRow(ctx,
		`SELECT MAX(serial_number) FROM cases WHERE owner_id = $1 AND date = $2::text::date`,
		ownerID, date).Scan(&max)
	if err != nil {
		return 0, false, classify(err)
	}
	if max == nil {
		return 0, false, nil
	}
	return *max, true, nil
}

// lockPartition serializes writers of the same (owner, date) for the rest
// of the transaction.
func lockPartition(ctx context.Context, q queryable, ownerID, date string) error {
	_, err := q.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, ownerID+"|"+date)
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func classify(err error) error {
	var pgErr *pgconn.PgError
	switch {
	case err == nil:
		return nil
	case errors.Is(err, core.ErrStoreUnavailable), errors.Is(err, core.ErrNotFound),
		errors.Is(err, core.ErrValidation), errors.Is(err, core.ErrNoOwner):
		return err
	case errors.Is(err, pgx.ErrNoRows):
		return core.ErrNotFound
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case errors.As(err, &pgErr) && (pgErr.Code == "22007" || pgErr.Code == "22008"):
		return &core.ValidationError{Field: "date", Reason: "must be a calendar date"}
	}
	return fmt.Errorf("%w: %v", core.ErrStoreUnavailable, err)
}

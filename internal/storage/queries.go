package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"casebook/internal/core"
)

const caseColumns = `id, owner_id, serial_number, date, hospital, patient_name, age, sex,
	diagnosis, anesthesia, procedure_name, start_time, end_time, duration,
	payment_mode, payment_status, surgeon_name, amount, remarks, created_at, updated_at`

const (
	listCasesSQL = `SELECT ` + caseColumns + `
		FROM cases
		WHERE owner_id = ?
		ORDER BY date DESC, serial_number DESC
		LIMIT ?`

	getCaseSQL = `SELECT ` + caseColumns + `
		FROM cases
		WHERE id = ? AND owner_id = ?`

	maxSerialSQL = `SELECT MAX(serial_number) FROM cases WHERE owner_id = ? AND date = ?`

	insertCaseSQL = `INSERT INTO cases (` + caseColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	updateCaseSQL = `UPDATE cases SET
		serial_number = ?, date = ?, hospital = ?, patient_name = ?, age = ?, sex = ?,
		diagnosis = ?, anesthesia = ?, procedure_name = ?, start_time = ?, end_time = ?,
		duration = ?, payment_mode = ?, payment_status = ?, surgeon_name = ?, amount = ?,
		remarks = ?, updated_at = ?
		WHERE id = ? AND owner_id = ?`

	deleteCaseSQL = `DELETE FROM cases WHERE id = ? AND owner_id = ?`

	listHospitalsSQL = `SELECT name FROM hospitals ORDER BY sort_order, name`
)

const timeLayout = time.RFC3339Nano

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCase(row rowScanner) (core.CaseEntry, error) {
	var (
		c                 core.CaseEntry
		age               sql.NullInt64
		amount            string
		created, updated  string
		sex, mode, status string
	)
	err := row.Scan(
		&c.ID, &c.OwnerID, &c.SerialNumber, &c.Date, &c.Hospital, &c.PatientName, &age, &sex,
		&c.Diagnosis, &c.Anesthesia, &c.Procedure, &c.StartTime, &c.EndTime, &c.Duration,
		&mode, &status, &c.SurgeonName, &amount, &c.Remarks, &created, &updated,
	)
	if err != nil {
		return core.CaseEntry{}, err
	}
	if age.Valid {
		v := int(age.Int64)
		c.Age = &v
	}
	c.Sex = core.Sex(sex)
	c.PaymentMode = core.PaymentMode(mode)
	c.PaymentStatus = core.PaymentStatus(status)
	if c.Amount, err = decimal.NewFromString(amount); err != nil {
		return core.CaseEntry{}, fmt.Errorf("parse amount of case %s: %w", c.ID, err)
	}
	c.CreatedAt, _ = time.Parse(timeLayout, created)
	c.UpdatedAt, _ = time.Parse(timeLayout, updated)
	return c, nil
}

func nullableAge(age *int) sql.NullInt64 {
	if age == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*age), Valid: true}
}

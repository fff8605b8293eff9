package core

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Male   Sex = "Male"
	Female Sex = "Female"
	Other  Sex = "Other"
)

const (
	Cash         PaymentMode = "Cash"
	UPI          PaymentMode = "UPI"
	BankTransfer PaymentMode = "Bank Transfer"
	Credit       PaymentMode = "Credit"
)

const (
	StatusPending   PaymentStatus = "PENDING"
	StatusSuccess   PaymentStatus = "SUCCESS"
	StatusCancelled PaymentStatus = "CANCELLED"
	StatusRefunded  PaymentStatus = "REFUNDED"
)

// DateLayout is the wire and storage format of a case date.
const DateLayout = "2006-01-02"

type (
	Sex           string
	PaymentMode   string
	PaymentStatus string

	// CaseFields holds everything a client may set on a case.
	// Amount is a pointer so a missing amount can be told apart from zero.
	CaseFields struct {
		Date          string           `json:"date"`
		Hospital      string           `json:"hospital"`
		PatientName   string           `json:"patientName"`
		Age           *int             `json:"age"`
		Sex           Sex              `json:"sex"`
		Diagnosis     string           `json:"diagnosis"`
		Anesthesia    string           `json:"anesthesia"`
		Procedure     string           `json:"procedure"`
		StartTime     string           `json:"startTime"`
		EndTime       string           `json:"endTime"`
		Duration      int              `json:"duration"`
		PaymentMode   PaymentMode      `json:"paymentMode"`
		PaymentStatus PaymentStatus    `json:"paymentStatus"`
		SurgeonName   string           `json:"surgeonName"`
		Amount        *decimal.Decimal `json:"amount"`
		Remarks       string           `json:"remarks"`
	}

	// CaseEntry is one procedure record as persisted by a case store.
	CaseEntry struct {
		ID            string          `json:"id"`
		OwnerID       string          `json:"ownerId"`
		SerialNumber  int             `json:"serialNumber"`
		Date          string          `json:"date"`
		Hospital      string          `json:"hospital"`
		PatientName   string          `json:"patientName"`
		Age           *int            `json:"age"`
		Sex           Sex             `json:"sex"`
		Diagnosis     string          `json:"diagnosis"`
		Anesthesia    string          `json:"anesthesia"`
		Procedure     string          `json:"procedure"`
		StartTime     string          `json:"startTime"`
		EndTime       string          `json:"endTime"`
		Duration      int             `json:"duration"`
		PaymentMode   PaymentMode     `json:"paymentMode"`
		PaymentStatus PaymentStatus   `json:"paymentStatus"`
		SurgeonName   string          `json:"surgeonName"`
		Amount        decimal.Decimal `json:"amount"`
		Remarks       string          `json:"remarks"`
		CreatedAt     time.Time       `json:"createdAt"`
		UpdatedAt     time.Time       `json:"updatedAt"`
	}
)

// Valid reports whether s is one of the known sexes.
func (s Sex) Valid() bool {
	switch s {
	case Male, Female, Other:
		return true
	}
	return false
}

// Valid reports whether s is one of the known payment statuses.
func (s PaymentStatus) Valid() bool {
	switch s {
	case StatusPending, StatusSuccess, StatusCancelled, StatusRefunded:
		return true
	}
	return false
}

// IsCash reports whether the mode counts towards the cash column.
func (m PaymentMode) IsCash() bool {
	return strings.EqualFold(strings.TrimSpace(string(m)), string(Cash))
}

// IsDigital reports whether the mode is a digital payment (Bank Transfer or UPI).
func (m PaymentMode) IsDigital() bool {
	v := strings.TrimSpace(string(m))
	return strings.EqualFold(v, string(BankTransfer)) || strings.EqualFold(v, string(UPI))
}

// Normalize fills the defaults that are applied before validation.
func (f CaseFields) Normalize() CaseFields {
	f.Date = strings.TrimSpace(f.Date)
	f.Hospital = strings.TrimSpace(f.Hospital)
	f.PatientName = strings.TrimSpace(f.PatientName)
	f.Diagnosis = strings.TrimSpace(f.Diagnosis)
	f.StartTime = strings.TrimSpace(f.StartTime)
	f.EndTime = strings.TrimSpace(f.EndTime)
	if f.PaymentStatus == "" {
		f.PaymentStatus = StatusPending
	}
	return f
}

func (f CaseFields) Validate() error {
	if f.Date == "" {
		return missing("date")
	}
	if _, err := time.Parse(DateLayout, f.Date); err != nil {
		return invalid("date", "must be YYYY-MM-DD")
	}
	if strings.TrimSpace(f.Hospital) == "" {
		return missing("hospital")
	}
	if strings.TrimSpace(f.PatientName) == "" {
		return missing("patientName")
	}
	if strings.TrimSpace(f.Diagnosis) == "" {
		return missing("diagnosis")
	}
	if f.Amount == nil {
		return missing("amount")
	}
	if f.Amount.IsNegative() {
		return invalid("amount", "must not be negative")
	}
	if !f.Amount.Equal(f.Amount.Round(2)) {
		return invalid("amount", "must have at most two decimal places")
	}
	if f.Age != nil && *f.Age < 0 {
		return invalid("age", "must not be negative")
	}
	if f.Sex != "" && !f.Sex.Valid() {
		return invalid("sex", "must be Male, Female or Other")
	}
	if f.PaymentStatus != "" && !f.PaymentStatus.Valid() {
		return invalid("paymentStatus", "must be PENDING, SUCCESS, CANCELLED or REFUNDED")
	}
	if f.StartTime != "" {
		if _, ok := ParseClock(f.StartTime); !ok {
			return invalid("startTime", "must be HH:MM")
		}
	}
	if f.EndTime != "" {
		if _, ok := ParseClock(f.EndTime); !ok {
			return invalid("endTime", "must be HH:MM")
		}
	}
	if f.Duration < 0 {
		return invalid("duration", "must not be negative")
	}
	return nil
}

// Fields returns the client-settable part of the entry.
func (c CaseEntry) Fields() CaseFields {
	amount := c.Amount
	return CaseFields{
		Date:          c.Date,
		Hospital:      c.Hospital,
		PatientName:   c.PatientName,
		Age:           c.Age,
		Sex:           c.Sex,
		Diagnosis:     c.Diagnosis,
		Anesthesia:    c.Anesthesia,
		Procedure:     c.Procedure,
		StartTime:     c.StartTime,
		EndTime:       c.EndTime,
		Duration:      c.Duration,
		PaymentMode:   c.PaymentMode,
		PaymentStatus: c.PaymentStatus,
		SurgeonName:   c.SurgeonName,
		Amount:        &amount,
		Remarks:       c.Remarks,
	}
}

// Apply copies f onto c. Identity fields (ID, owner, serial) are left alone.
func (c *CaseEntry) Apply(f CaseFields) {
	c.Date = f.Date
	c.Hospital = f.Hospital
	c.PatientName = f.PatientName
	c.Age = f.Age
	c.Sex = f.Sex
	c.Diagnosis = f.Diagnosis
	c.Anesthesia = f.Anesthesia
	c.Procedure = f.Procedure
	c.StartTime = f.StartTime
	c.EndTime = f.EndTime
	c.Duration = f.Duration
	c.PaymentMode = f.PaymentMode
	c.PaymentStatus = f.PaymentStatus
	c.SurgeonName = f.SurgeonName
	if f.Amount != nil {
		c.Amount = *f.Amount
	} else {
		c.Amount = decimal.Zero
	}
	c.Remarks = f.Remarks
}

// Less orders entries the way case lists are presented: date desc, serial desc.
func Less(a, b CaseEntry) bool {
	if a.Date != b.Date {
		return a.Date > b.Date
	}
	return a.SerialNumber > b.SerialNumber
}

// ParseClock parses an HH:MM 24-hour time into minutes after midnight.
func ParseClock(s string) (int, bool) {
	h, m, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok || len(h) == 0 || len(h) > 2 || len(m) != 2 || !digits(h) || !digits(m) {
		return 0, false
	}
	hh, err := strconv.Atoi(h)
	if err != nil || hh < 0 || hh > 23 {
		return 0, false
	}
	mm, err := strconv.Atoi(m)
	if err != nil || mm < 0 || mm > 59 {
		return 0, false
	}
	return hh*60 + mm, true
}

func digits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s != ""
}

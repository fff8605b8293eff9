package http

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
	"time"

	"casebook/internal/core"
)

// OwnerHeader carries the opaque owner id issued by the identity provider.
const OwnerHeader = "X-Owner-ID"

// RequestIDHeader is echoed back on every response.
const RequestIDHeader = "X-Request-ID"

// ownerFromRequest returns the trimmed owner id, or "" when absent.
func ownerFromRequest(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(OwnerHeader))
}

// sanitizeInput removes control characters except tab, newline and carriage
// return, and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// sanitizeFields applies sanitizeInput to every free-text case field.
func sanitizeFields(f core.CaseFields) core.CaseFields {
	f.Date = sanitizeInput(f.Date)
	f.Hospital = sanitizeInput(f.Hospital)
	f.PatientName = sanitizeInput(f.PatientName)
	f.Sex = core.Sex(sanitizeInput(string(f.Sex)))
	f.Diagnosis = sanitizeInput(f.Diagnosis)
	f.Anesthesia = sanitizeInput(f.Anesthesia)
	f.Procedure = sanitizeInput(f.Procedure)
	f.StartTime = sanitizeInput(f.StartTime)
	f.EndTime = sanitizeInput(f.EndTime)
	f.PaymentMode = core.PaymentMode(sanitizeInput(string(f.PaymentMode)))
	f.PaymentStatus = core.PaymentStatus(sanitizeInput(string(f.PaymentStatus)))
	f.SurgeonName = sanitizeInput(f.SurgeonName)
	f.Remarks = sanitizeInput(f.Remarks)
	return f
}

// generateRequestID creates a unique request ID for tracing.
func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}

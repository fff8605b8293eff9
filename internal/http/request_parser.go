package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"casebook/internal/core"
)

// maxBodyBytes caps case request bodies.
const maxBodyBytes = 64 << 10

// caseRequest is the JSON body of POST and PATCH /cases. Duration shadows
// the embedded field so an omitted duration can be detected.
type caseRequest struct {
	core.CaseFields
	Duration *int `json:"duration"`
}

// errBadBody wraps every body decoding failure.
var errBadBody = errors.New("invalid request body")

// DecodeCaseFields reads a case body on top of base. Keys absent from the
// body keep the value they have in base, which gives PATCH its merge
// semantics; POST passes a zero base.
//
// When the body carries no duration and the times changed or are new, the
// duration is derived from start and end time.
func DecodeCaseFields(w http.ResponseWriter, r *http.Request, base core.CaseFields) (core.CaseFields, error) {
	req := caseRequest{CaseFields: base}
	if base.Amount != nil {
		amount := *base.Amount
		req.Amount = &amount
	}

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		if errors.Is(err, io.EOF) {
			return core.CaseFields{}, fmt.Errorf("%w: empty body", errBadBody)
		}
		return core.CaseFields{}, fmt.Errorf("%w: %v", errBadBody, err)
	}

	f := sanitizeFields(req.CaseFields)
	switch {
	case req.Duration != nil:
		f.Duration = *req.Duration
	case f.StartTime != base.StartTime || f.EndTime != base.EndTime || base.Duration == 0:
		f.Duration = core.DeriveDuration(f.StartTime, f.EndTime, base.Duration)
	default:
		f.Duration = base.Duration
	}
	return f, nil
}

// ListParams are the query parameters of GET /cases.
type ListParams struct {
	Query  string
	Status string
}

func ParseListParams(r *http.Request) ListParams {
	q := r.URL.Query()
	return ListParams{
		Query:  sanitizeInput(q.Get("q")),
		Status: strings.ToUpper(sanitizeInput(q.Get("status"))),
	}
}

package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"casebook/internal/core"
	"casebook/internal/services"
	"casebook/internal/store/memory"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	backend := services.NewCaseService(memory.New([]string{"City Hospital", "Wellness Clinic"}), nil)
	srv := NewServer(":0", backend, Options{WritesPerMinute: 1000})
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv
}

func do(t *testing.T, srv *Server, method, path, owner, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if owner != "" {
		req.Header.Set(OwnerHeader, owner)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return v
}

const caseBody = `{"date":"2024-01-05","hospital":"City Hospital","patientName":"Asha","diagnosis":"Appendicitis",
	"startTime":"23:30","endTime":"00:15","paymentMode":"Cash","amount":"1500.50"}`

func TestHealthAndReady(t *testing.T) {
	srv := newTestServer(t)
	for _, path := range []string{"/healthz", "/readyz"} {
		rr := do(t, srv, http.MethodGet, path, "", "")
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
		if rr.Header().Get(RequestIDHeader) == "" {
			t.Errorf("%s missing request id header", path)
		}
		if rr.Header().Get("X-Content-Type-Options") != "nosniff" {
			t.Errorf("%s missing security headers", path)
		}
	}
}

func TestCaseRoutesRequireOwner(t *testing.T) {
	srv := newTestServer(t)
	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/cases"},
		{http.MethodPost, "/cases"},
		{http.MethodPatch, "/cases/x"},
		{http.MethodDelete, "/cases/x"},
		{http.MethodGet, "/summary/monthly"},
		{http.MethodGet, "/stats"},
		{http.MethodGet, "/reports/export.xlsx"},
	} {
		if rr := do(t, srv, tc.method, tc.path, "", ""); rr.Code != http.StatusUnauthorized {
			t.Errorf("%s %s status=%d, want 401", tc.method, tc.path, rr.Code)
		}
	}
}

func TestCreateCase(t *testing.T) {
	srv := newTestServer(t)

	rr := do(t, srv, http.MethodPost, "/cases", "dr-a", caseBody)
	if rr.Code != http.StatusCreated {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	c := decode[core.CaseEntry](t, rr)
	if c.SerialNumber != 1 || c.OwnerID != "dr-a" {
		t.Errorf("created = %+v", c)
	}
	if c.Duration != 45 {
		t.Errorf("Duration = %d, want 45 derived across midnight", c.Duration)
	}
	if c.PaymentStatus != core.StatusPending {
		t.Errorf("PaymentStatus = %q, want PENDING", c.PaymentStatus)
	}
	if !c.Amount.Equal(decimal.RequireFromString("1500.50")) {
		t.Errorf("Amount = %s", c.Amount)
	}
	if rr.Header().Get("Location") != "/cases/"+c.ID {
		t.Errorf("Location = %q", rr.Header().Get("Location"))
	}

	rr = do(t, srv, http.MethodPost, "/cases", "dr-a", caseBody)
	if c2 := decode[core.CaseEntry](t, rr); c2.SerialNumber != 2 {
		t.Errorf("second serial = %d, want 2", c2.SerialNumber)
	}
}

func TestCreateCaseKeepsExplicitDuration(t *testing.T) {
	srv := newTestServer(t)
	body := strings.Replace(caseBody, `"amount"`, `"duration":30,"amount"`, 1)
	rr := do(t, srv, http.MethodPost, "/cases", "dr-a", body)
	if c := decode[core.CaseEntry](t, rr); c.Duration != 30 {
		t.Errorf("Duration = %d, want 30", c.Duration)
	}
}

func TestCreateCaseErrors(t *testing.T) {
	srv := newTestServer(t)
	tests := []struct {
		name   string
		body   string
		status int
		field  string
	}{
		{"malformed json", `{"date":`, http.StatusBadRequest, ""},
		{"empty body", "", http.StatusBadRequest, ""},
		{"missing amount", `{"date":"2024-01-05","hospital":"H","patientName":"P","diagnosis":"D"}`, http.StatusUnprocessableEntity, "amount"},
		{"bad date", `{"date":"05/01/2024","hospital":"H","patientName":"P","diagnosis":"D","amount":1}`, http.StatusUnprocessableEntity, "date"},
		{"negative amount", `{"date":"2024-01-05","hospital":"H","patientName":"P","diagnosis":"D","amount":-1}`, http.StatusUnprocessableEntity, "amount"},
		{"sub-cent amount", `{"date":"2024-01-05","hospital":"H","patientName":"P","diagnosis":"D","amount":"10.005"}`, http.StatusUnprocessableEntity, "amount"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, srv, http.MethodPost, "/cases", "dr-a", tt.body)
			if rr.Code != tt.status {
				t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
			}
			if tt.field != "" {
				if got := decode[errorBody](t, rr); got.Field != tt.field {
					t.Errorf("field = %q, want %q", got.Field, tt.field)
				}
			}
		})
	}
}

func TestListFilterAndOwnerIsolation(t *testing.T) {
	srv := newTestServer(t)
	do(t, srv, http.MethodPost, "/cases", "dr-a", caseBody)
	do(t, srv, http.MethodPost, "/cases", "dr-a",
		`{"date":"2024-02-01","hospital":"Wellness Clinic","patientName":"Ravi","diagnosis":"Hernia","amount":800,"paymentStatus":"SUCCESS"}`)
	do(t, srv, http.MethodPost, "/cases", "dr-b", caseBody)

	list := decode[caseList](t, do(t, srv, http.MethodGet, "/cases", "dr-a", ""))
	if list.Count != 2 || list.Cases[0].Date != "2024-02-01" {
		t.Fatalf("list = %+v", list)
	}

	list = decode[caseList](t, do(t, srv, http.MethodGet, "/cases?q=hernia", "dr-a", ""))
	if list.Count != 1 || list.Cases[0].PatientName != "Ravi" {
		t.Errorf("query filter = %+v", list)
	}
	list = decode[caseList](t, do(t, srv, http.MethodGet, "/cases?status=pending", "dr-a", ""))
	if list.Count != 1 || list.Cases[0].PatientName != "Asha" {
		t.Errorf("status filter = %+v", list)
	}

	list = decode[caseList](t, do(t, srv, http.MethodGet, "/cases", "dr-b", ""))
	if list.Count != 1 || list.Cases[0].SerialNumber != 1 {
		t.Errorf("dr-b list = %+v", list)
	}
}

func TestUpdateCaseMergesFields(t *testing.T) {
	srv := newTestServer(t)
	created := decode[core.CaseEntry](t, do(t, srv, http.MethodPost, "/cases", "dr-a", caseBody))
	do(t, srv, http.MethodPost, "/cases", "dr-a", strings.Replace(caseBody, "2024-01-05", "2024-01-06", 1))

	rr := do(t, srv, http.MethodPatch, "/cases/"+created.ID, "dr-a", `{"date":"2024-01-06","remarks":"moved"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	updated := decode[core.CaseEntry](t, rr)
	if updated.Date != "2024-01-06" || updated.SerialNumber != 2 {
		t.Errorf("date move: date=%s serial=%d, want 2024-01-06/2", updated.Date, updated.SerialNumber)
	}
	if updated.PatientName != "Asha" || !updated.Amount.Equal(created.Amount) || updated.Duration != 45 {
		t.Errorf("untouched fields changed: %+v", updated)
	}
	if updated.Remarks != "moved" {
		t.Errorf("Remarks = %q", updated.Remarks)
	}

	rr = do(t, srv, http.MethodPatch, "/cases/"+created.ID, "dr-a", `{"endTime":"01:30"}`)
	if c := decode[core.CaseEntry](t, rr); c.Duration != 120 {
		t.Errorf("Duration after time change = %d, want 120", c.Duration)
	}
}

func TestUpdateAndDeleteNotFound(t *testing.T) {
	srv := newTestServer(t)
	created := decode[core.CaseEntry](t, do(t, srv, http.MethodPost, "/cases", "dr-a", caseBody))

	if rr := do(t, srv, http.MethodPatch, "/cases/"+created.ID, "dr-b", `{"remarks":"x"}`); rr.Code != http.StatusNotFound {
		t.Errorf("cross-owner patch status=%d, want 404", rr.Code)
	}
	if rr := do(t, srv, http.MethodDelete, "/cases/"+created.ID, "dr-b", ""); rr.Code != http.StatusNotFound {
		t.Errorf("cross-owner delete status=%d, want 404", rr.Code)
	}
	if rr := do(t, srv, http.MethodDelete, "/cases/"+created.ID, "dr-a", ""); rr.Code != http.StatusNoContent {
		t.Errorf("delete status=%d, want 204", rr.Code)
	}
	if list := decode[caseList](t, do(t, srv, http.MethodGet, "/cases", "dr-a", "")); list.Count != 0 {
		t.Errorf("list after delete = %+v", list)
	}
}

func TestSummaryAndStats(t *testing.T) {
	srv := newTestServer(t)
	for _, body := range []string{
		`{"date":"2024-01-05","hospital":"City Hospital","patientName":"A","diagnosis":"D","paymentMode":"Cash","amount":1000}`,
		`{"date":"2024-01-20","hospital":"Wellness Clinic","patientName":"B","diagnosis":"D","paymentMode":"UPI","amount":2000}`,
		`{"date":"2023-12-31","hospital":"City Hospital","patientName":"C","diagnosis":"D","paymentMode":"Credit","amount":500}`,
	} {
		if rr := do(t, srv, http.MethodPost, "/cases", "dr-a", body); rr.Code != http.StatusCreated {
			t.Fatalf("seed status=%d body=%s", rr.Code, rr.Body.String())
		}
	}

	monthly := decode[summaryResponse](t, do(t, srv, http.MethodGet, "/summary/monthly", "dr-a", ""))
	if len(monthly.Records) != 2 || monthly.Records[0].Period != "Jan 2024" {
		t.Fatalf("monthly = %+v", monthly)
	}
	jan := monthly.Records[0]
	if !jan.CashTotal.Equal(decimal.NewFromInt(1000)) || !jan.DigitalTotal.Equal(decimal.NewFromInt(2000)) || jan.TotalCases != 2 {
		t.Errorf("Jan 2024 = %+v", jan)
	}
	if monthly.Totals.TotalCases != 3 || !monthly.Totals.TotalAmount.Equal(decimal.NewFromInt(3500)) {
		t.Errorf("totals = %+v", monthly.Totals)
	}

	annual := decode[summaryResponse](t, do(t, srv, http.MethodGet, "/summary/annual", "dr-a", ""))
	if len(annual.Records) != 2 || annual.Records[0].Period != "2024" || annual.Records[1].SortKey != 2023 {
		t.Errorf("annual = %+v", annual.Records)
	}

	stats := decode[statsResponse](t, do(t, srv, http.MethodGet, "/stats", "dr-a", ""))
	if stats.TotalCases != 3 || stats.TopHospital == nil || stats.TopHospital.Name != "Wellness Clinic" {
		t.Errorf("stats = %+v", stats)
	}
	// first seen in list order: date desc
	if len(stats.Hospitals) != 2 || stats.Hospitals[0].Name != "Wellness Clinic" {
		t.Errorf("hospital totals = %+v", stats.Hospitals)
	}

	empty := decode[statsResponse](t, do(t, srv, http.MethodGet, "/stats", "dr-z", ""))
	if empty.TopHospital != nil || !empty.AveragePerCase.IsZero() {
		t.Errorf("empty stats = %+v", empty)
	}
}

func TestHospitals(t *testing.T) {
	srv := newTestServer(t)
	got := decode[map[string][]string](t, do(t, srv, http.MethodGet, "/hospitals", "", ""))
	if len(got["hospitals"]) != 2 {
		t.Errorf("hospitals = %v", got)
	}
}

func TestExportWorkbook(t *testing.T) {
	srv := newTestServer(t)
	do(t, srv, http.MethodPost, "/cases", "dr-a", caseBody)

	rr := do(t, srv, http.MethodGet, "/reports/export.xlsx", "dr-a", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	if rr.Header().Get("Content-Type") != xlsxContentType {
		t.Errorf("Content-Type = %q", rr.Header().Get("Content-Type"))
	}
	f, err := excelize.OpenReader(bytes.NewReader(rr.Body.Bytes()))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if idx, _ := f.GetSheetIndex("Monthly"); idx < 0 {
		t.Error("Monthly sheet missing")
	}
}

type unavailableBackend struct{}

func (unavailableBackend) List(context.Context, string, int) ([]core.CaseEntry, error) {
	return nil, core.ErrStoreUnavailable
}
func (unavailableBackend) Create(context.Context, string, core.CaseFields) (core.CaseEntry, error) {
	return core.CaseEntry{}, core.ErrStoreUnavailable
}
func (unavailableBackend) Update(context.Context, string, string, core.CaseFields) (core.CaseEntry, error) {
	return core.CaseEntry{}, core.ErrStoreUnavailable
}
func (unavailableBackend) Delete(context.Context, string, string) error {
	return core.ErrStoreUnavailable
}
func (unavailableBackend) Hospitals(context.Context) ([]string, error) { return nil, nil }
func (unavailableBackend) Ping(context.Context) error {
	return errors.Join(core.ErrStoreUnavailable, errors.New("dial tcp: refused"))
}

func TestStoreUnavailable(t *testing.T) {
	srv := NewServer(":0", unavailableBackend{}, Options{})
	defer srv.Shutdown(context.Background())

	if rr := do(t, srv, http.MethodGet, "/cases", "dr-a", ""); rr.Code != http.StatusServiceUnavailable {
		t.Errorf("list status=%d, want 503", rr.Code)
	}
	if rr := do(t, srv, http.MethodPost, "/cases", "dr-a", caseBody); rr.Code != http.StatusServiceUnavailable {
		t.Errorf("create status=%d, want 503", rr.Code)
	}
	if rr := do(t, srv, http.MethodGet, "/readyz", "", ""); rr.Code != http.StatusServiceUnavailable {
		t.Errorf("readyz status=%d, want 503", rr.Code)
	}
}

func TestWritesAreRateLimited(t *testing.T) {
	backend := services.NewCaseService(memory.New(nil), nil)
	srv := NewServer(":0", backend, Options{WritesPerMinute: 2})
	defer srv.Shutdown(context.Background())

	for i := 0; i < 2; i++ {
		if rr := do(t, srv, http.MethodPost, "/cases", "dr-a", caseBody); rr.Code != http.StatusCreated {
			t.Fatalf("write %d status=%d", i, rr.Code)
		}
	}
	rr := do(t, srv, http.MethodPost, "/cases", "dr-a", caseBody)
	if rr.Code != http.StatusTooManyRequests || rr.Header().Get("Retry-After") != "60" {
		t.Errorf("status=%d retry=%q, want 429", rr.Code, rr.Header().Get("Retry-After"))
	}
	if rr := do(t, srv, http.MethodGet, "/cases", "dr-a", ""); rr.Code != http.StatusOK {
		t.Errorf("reads should not be limited, status=%d", rr.Code)
	}
}

package http

import (
	"bytes"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"casebook/internal/core"
	"casebook/internal/log"
	"casebook/internal/report"
	"casebook/internal/summary"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type summaryResponse struct {
	Records []core.SummaryRecord `json:"records"`
	Totals  core.Totals          `json:"totals"`
}

type statsResponse struct {
	TotalEarnings  decimal.Decimal      `json:"totalEarnings"`
	AveragePerCase decimal.Decimal      `json:"averagePerCase"`
	TotalCases     int                  `json:"totalCases"`
	TopHospital    *core.HospitalTotal  `json:"topHospital"`
	Hospitals      []core.HospitalTotal `json:"hospitals"`
}

func (s *Server) handleMonthlySummary(w http.ResponseWriter, r *http.Request, owner string) {
	s.writeSummary(w, r, owner, summary.Month)
}

func (s *Server) handleAnnualSummary(w http.ResponseWriter, r *http.Request, owner string) {
	s.writeSummary(w, r, owner, summary.Year)
}

func (s *Server) writeSummary(w http.ResponseWriter, r *http.Request, owner string, g summary.Granularity) {
	cases, err := s.loadCases(r.Context(), owner)
	if err != nil {
		errorFor(r.Context(), err).Write(w)
		return
	}
	records := summary.PeriodSummary(cases, g)
	if records == nil {
		records = []core.SummaryRecord{}
	}
	NewJSONResponse().Body(summaryResponse{
		Records: records,
		Totals:  summary.GrandTotals(records),
	}).Write(w)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request, owner string) {
	cases, err := s.loadCases(r.Context(), owner)
	if err != nil {
		errorFor(r.Context(), err).Write(w)
		return
	}
	resp := statsResponse{
		TotalEarnings:  summary.TotalEarnings(cases),
		AveragePerCase: summary.AveragePerCase(cases),
		TotalCases:     len(cases),
		Hospitals:      summary.HospitalTotals(cases),
	}
	if top, ok := summary.TopHospital(cases); ok {
		resp.TopHospital = &top
	}
	if resp.Hospitals == nil {
		resp.Hospitals = []core.HospitalTotal{}
	}
	NewJSONResponse().Body(resp).Write(w)
}

// handleExport streams the owner's workbook. It is rendered into memory
// first so a failure still produces a clean error response.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request, owner string) {
	ctx := r.Context()
	cases, err := s.loadCases(ctx, owner)
	if err != nil {
		errorFor(ctx, err).Write(w)
		return
	}

	var buf bytes.Buffer
	if err := report.WriteWorkbook(&buf, cases); err != nil {
		log.NewStructuredLogger(log.FromContext(ctx)).LogError(ctx, "Workbook export failed", err,
			log.ComponentReport, log.OpExport, log.NewFields().WithOwner(owner))
		InternalServerError("export failed").Write(w)
		return
	}

	name := "casebook-" + time.Now().Format("20060102") + ".xlsx"
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

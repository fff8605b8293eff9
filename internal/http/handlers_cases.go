package http

import (
	"context"
	"net/http"
	"sync/atomic"

	"casebook/internal/core"
	"casebook/internal/log"
)

// caseList is the body of GET /cases.
type caseList struct {
	Cases []core.CaseEntry `json:"cases"`
	Count int              `json:"count"`
}

// loadCases refreshes the owner's view and returns its snapshot.
func (s *Server) loadCases(ctx context.Context, owner string) ([]core.CaseEntry, error) {
	repo := s.view(owner)
	if err := repo.Refresh(ctx); err != nil {
		atomic.AddInt64(&s.appMetrics.refreshFailures, 1)
		return nil, err
	}
	return repo.Snapshot(), nil
}

func (s *Server) handleListCases(w http.ResponseWriter, r *http.Request, owner string) {
	cases, err := s.loadCases(r.Context(), owner)
	if err != nil {
		errorFor(r.Context(), err).Write(w)
		return
	}
	p := ParseListParams(r)
	cases = core.FilterCases(cases, p.Query, p.Status)
	NewJSONResponse().Body(caseList{Cases: cases, Count: len(cases)}).Write(w)
}

func (s *Server) handleCreateCase(w http.ResponseWriter, r *http.Request, owner string) {
	ctx := r.Context()
	f, err := DecodeCaseFields(w, r, core.CaseFields{})
	if err != nil {
		errorFor(ctx, err).Write(w)
		return
	}

	c, err := s.view(owner).Add(ctx, f)
	if err != nil {
		errorFor(ctx, err).Write(w)
		return
	}
	atomic.AddInt64(&s.appMetrics.casesCreated, 1)
	log.NewStructuredLogger(log.FromContext(ctx)).LogCaseWritten(ctx, log.OpCreate, owner, c.ID, c.Date, c.SerialNumber)

	NewJSONResponse().
		Status(http.StatusCreated).
		Header("Location", "/cases/"+c.ID).
		Body(c).
		Write(w)
}

func (s *Server) handleUpdateCase(w http.ResponseWriter, r *http.Request, owner string) {
	ctx := r.Context()
	id := r.PathValue("id")
	repo := s.view(owner)

	current, ok := findCase(repo.Snapshot(), id)
	if !ok {
		if err := repo.Refresh(ctx); err != nil {
			errorFor(ctx, err).Write(w)
			return
		}
		if current, ok = findCase(repo.Snapshot(), id); !ok {
			NotFoundError("case not found").Write(w)
			return
		}
	}

	f, err := DecodeCaseFields(w, r, current.Fields())
	if err != nil {
		errorFor(ctx, err).Write(w)
		return
	}
	c, err := repo.Update(ctx, id, f)
	if err != nil {
		errorFor(ctx, err).Write(w)
		return
	}
	atomic.AddInt64(&s.appMetrics.casesUpdated, 1)
	log.NewStructuredLogger(log.FromContext(ctx)).LogCaseWritten(ctx, log.OpUpdate, owner, c.ID, c.Date, c.SerialNumber)

	NewJSONResponse().Body(c).Write(w)
}

func (s *Server) handleDeleteCase(w http.ResponseWriter, r *http.Request, owner string) {
	ctx := r.Context()
	id := r.PathValue("id")
	if err := s.view(owner).Remove(ctx, id); err != nil {
		errorFor(ctx, err).Write(w)
		return
	}
	atomic.AddInt64(&s.appMetrics.casesDeleted, 1)
	log.FromContext(ctx).InfoContext(ctx, "Case deleted",
		log.FieldOwnerID, owner,
		log.FieldCaseID, id)
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

func findCase(cases []core.CaseEntry, id string) (core.CaseEntry, bool) {
	for _, c := range cases {
		if c.ID == id {
			return c, true
		}
	}
	return core.CaseEntry{}, false
}

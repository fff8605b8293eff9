package worker

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"casebook/internal/log"
	"casebook/internal/report"
	"casebook/internal/store"
)

// ReportJob exports a summary workbook per owner on a cron schedule.
type ReportJob struct {
	storage store.CaseStore
	owners  []string
	dir     string
	limit   int
	loc     *time.Location
	now     func() time.Time
}

func NewReportJob(storage store.CaseStore, owners []string, dir string, limit int, loc *time.Location) *ReportJob {
	if loc == nil {
		loc = time.UTC
	}
	return &ReportJob{
		storage: storage,
		owners:  owners,
		dir:     dir,
		limit:   store.ClampLimit(limit),
		loc:     loc,
		now:     time.Now,
	}
}

// Run schedules the export and blocks until ctx is done.
func (j *ReportJob) Run(ctx context.Context, schedule string) error {
	c := cron.New(cron.WithLocation(j.loc))
	_, err := c.AddFunc(schedule, func() {
		if err := j.ExportAll(ctx); err != nil {
			slog.ErrorContext(ctx, "Scheduled report export failed",
				log.FieldComponent, log.ComponentReport,
				log.FieldError, err.Error())
		}
	})
	if err != nil {
		return fmt.Errorf("schedule report export %q: %w", schedule, err)
	}

	c.Start()
	slog.InfoContext(ctx, "Report export scheduled",
		log.FieldComponent, log.ComponentReport,
		"schedule", schedule,
		"owners", len(j.owners))

	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}

// ExportAll writes one workbook per owner. It keeps going when an owner
// fails and reports the first error.
func (j *ReportJob) ExportAll(ctx context.Context) error {
	if err := os.MkdirAll(j.dir, 0755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}
	var firstErr error
	for _, owner := range j.owners {
		path, err := j.Export(ctx, owner)
		if err != nil {
			slog.ErrorContext(ctx, "Report export failed",
				log.FieldComponent, log.ComponentReport,
				log.FieldOwnerID, owner,
				log.FieldError, err.Error())
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		slog.InfoContext(ctx, "Report exported",
			log.FieldComponent, log.ComponentReport,
			log.FieldOwnerID, owner,
			log.FieldFile, path)
	}
	return firstErr
}

// Export writes <dir>/<owner>-<YYYYMMDD>.xlsx and returns its path.
func (j *ReportJob) Export(ctx context.Context, owner string) (string, error) {
	cases, err := j.storage.List(ctx, owner, j.limit)
	if err != nil {
		return "", fmt.Errorf("list cases: %w", err)
	}

	var buf bytes.Buffer
	if err := report.WriteWorkbook(&buf, cases); err != nil {
		return "", err
	}

	name := fmt.Sprintf("%s-%s.xlsx", safeName(owner), j.now().In(j.loc).Format("20060102"))
	path := filepath.Join(j.dir, name)
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}

// safeName keeps owner ids usable as file names.
func safeName(owner string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, owner)
}

// Package gc runs sweeps over the file ledger and reports what they did.
package gc

import (
	"fmt"
	"time"

	"github.com/jvs-project/managedfiles/internal/audit"
	"github.com/jvs-project/managedfiles/internal/ledger"
	"github.com/jvs-project/managedfiles/pkg/logging"
	"github.com/jvs-project/managedfiles/pkg/metrics"
	"github.com/jvs-project/managedfiles/pkg/model"
	"github.com/jvs-project/managedfiles/pkg/uuidutil"
)

// Options wires optional collaborators into a Collector.
type Options struct {
	Audit   audit.Sink
	Metrics *metrics.Registry
	Logger  *logging.Logger
}

// Collector handles garbage collection of unheld, expired files.
type Collector struct {
	db      *ledger.Database
	audit   audit.Sink
	metrics *metrics.Registry
	log     *logging.Logger
}

// NewCollector creates a new collector over db.
func NewCollector(db *ledger.Database, opts Options) *Collector {
	log := opts.Logger
	if log == nil {
		log = logging.Global()
	}
	return &Collector{
		db:      db,
		audit:   opts.Audit,
		metrics: opts.Metrics,
		log:     log.WithFields(map[string]any{"component": "gc"}),
	}
}

// Plan reports what a sweep at nowMillis would delete without deleting it.
func (c *Collector) Plan(nowMillis int64) (*model.SweepReport, error) {
	start := time.Now()
	results, err := c.db.Sweep(nowMillis, true)
	if err != nil {
		return nil, fmt.Errorf("plan sweep: %w", err)
	}
	report := newReport(nowMillis, true, results)
	report.Duration = time.Since(start)
	return report, nil
}

// Sweep deletes every file eligible at nowMillis. On failure the returned
// report covers the entries handled before the error.
func (c *Collector) Sweep(nowMillis int64) (*model.SweepReport, error) {
	start := time.Now()
	results, sweepErr := c.db.Sweep(nowMillis, false)
	report := newReport(nowMillis, false, results)
	report.Duration = time.Since(start)

	for _, r := range report.Deleted {
		c.log.Info("managed file deleted", map[string]any{
			"sweep_id": report.SweepID,
			"file_id":  r.FileID.String(),
			"path":     r.Path,
		})
		c.appendAudit(model.EventTypeFileReap, r.FileID.String(), r.Path, map[string]any{
			"sweep_id": report.SweepID,
		})
	}

	c.metrics.RecordSweep(len(report.Deleted), report.Duration)
	if sweepErr == nil {
		c.metrics.SetTrackedFiles(tracked(results))
	}

	details := map[string]any{
		"sweep_id": report.SweepID,
		"examined": report.Examined,
		"deleted":  len(report.Deleted),
	}
	if sweepErr != nil {
		details["error"] = sweepErr.Error()
		c.log.ErrorErr("sweep aborted", sweepErr, map[string]any{"sweep_id": report.SweepID})
	} else {
		c.log.Debug("sweep finished", details)
	}
	c.appendAudit(model.EventTypeSweep, "", "", details)

	if sweepErr != nil {
		return report, fmt.Errorf("sweep: %w", sweepErr)
	}
	return report, nil
}

func (c *Collector) appendAudit(eventType model.AuditEventType, fileID, path string, details map[string]any) {
	if c.audit == nil {
		return
	}
	if err := c.audit.Append(eventType, fileID, path, details); err != nil {
		c.log.Warn("audit append failed", map[string]any{"event": string(eventType), "error": err.Error()})
	}
}

func newReport(nowMillis int64, dryRun bool, results []model.SweepResult) *model.SweepReport {
	report := &model.SweepReport{
		SweepID:   uuidutil.NewV4(),
		NowMillis: nowMillis,
		DryRun:    dryRun,
		Examined:  len(results),
	}
	for _, r := range results {
		switch r.Outcome {
		case model.SweepDeleted, model.SweepCandidate:
			report.Deleted = append(report.Deleted, r)
		default:
			report.Kept = append(report.Kept, r)
		}
	}
	return report
}

func tracked(results []model.SweepResult) int {
	n := 0
	for _, r := range results {
		switch r.Outcome {
		case model.SweepDeleted, model.SweepAlreadyRemoved, model.SweepSuperseded:
		default:
			n++
		}
	}
	return n
}

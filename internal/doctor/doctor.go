// Package doctor runs health checks over a managedfiles ledger and home.
package doctor

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/jvs-project/managedfiles/internal/audit"
	"github.com/jvs-project/managedfiles/internal/home"
	"github.com/jvs-project/managedfiles/internal/ledger"
	"github.com/jvs-project/managedfiles/pkg/errclass"
)

const tmpPrefix = ".mfiles-tmp-"

// Finding represents a detected issue.
type Finding struct {
	Category    string `json:"category"`
	Description string `json:"description"`
	Severity    string `json:"severity"`
	Path        string `json:"path,omitempty"`
}

// Result contains doctor check results.
type Result struct {
	Healthy  bool      `json:"healthy"`
	Findings []Finding `json:"findings"`
}

func (r *Result) add(f Finding) {
	r.Findings = append(r.Findings, f)
	if f.Severity == "critical" || f.Severity == "error" {
		r.Healthy = false
	}
}

// RepairAction describes an automatic fix.
type RepairAction struct {
	ID          string `json:"id"`
	Description string `json:"description"`
}

// RepairResult reports one executed repair.
type RepairResult struct {
	Action  string `json:"action"`
	Success bool   `json:"success"`
	Cleaned int    `json:"cleaned"`
	Message string `json:"message,omitempty"`
}

// Options supplies the optional parts a Doctor inspects.
type Options struct {
	// Fs is where tracked files are checked for. Defaults to the OS fs.
	Fs    afero.Fs
	Home  *home.Home
	Audit *audit.FileAppender
}

// Doctor performs health checks.
type Doctor struct {
	db    *ledger.Database
	fs    afero.Fs
	home  *home.Home
	audit *audit.FileAppender
}

// NewDoctor creates a new doctor.
func NewDoctor(db *ledger.Database, opts Options) *Doctor {
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	return &Doctor{db: db, fs: opts.Fs, home: opts.Home, audit: opts.Audit}
}

// Check runs all diagnostic checks. Strict adds the audit chain walk.
func (d *Doctor) Check(strict bool) (*Result, error) {
	result := &Result{Healthy: true, Findings: []Finding{}}

	if d.home != nil {
		d.checkFormatVersion(result)
	}
	if err := d.checkLedger(result); err != nil {
		return nil, err
	}
	if err := d.checkTrackedFiles(result); err != nil {
		return nil, err
	}
	if strict && d.audit != nil {
		d.checkAuditChain(result)
	}
	if d.home != nil {
		d.checkOrphanTmp(result)
	}
	return result, nil
}

func (d *Doctor) checkFormatVersion(result *Result) {
	versionPath := filepath.Join(d.home.Dir(), home.FormatVersionFile)
	data, err := afero.ReadFile(d.fs, versionPath)
	if err != nil {
		result.add(Finding{
			Category:    "format",
			Description: "format_version file missing or unreadable",
			Severity:    "critical",
			Path:        versionPath,
		})
		return
	}

	var version int
	if _, err := fmt.Sscanf(string(data), "%d", &version); err != nil {
		result.add(Finding{
			Category:    "format",
			Description: fmt.Sprintf("format_version unparsable: %v", err),
			Severity:    "critical",
			Path:        versionPath,
		})
		return
	}
	if version > home.FormatVersion {
		result.add(Finding{
			Category:    "format",
			Description: fmt.Sprintf("format version %d > supported %d", version, home.FormatVersion),
			Severity:    "critical",
		})
	}
}

func (d *Doctor) checkLedger(result *Result) error {
	problems, err := d.db.Verify()
	if err != nil {
		return fmt.Errorf("verify ledger: %w", err)
	}
	for _, p := range problems {
		severity := "error"
		if p.Kind == ledger.ProblemUndecodable {
			severity = "critical"
		}
		desc := fmt.Sprintf("%s: %s", p.Kind, p.Detail)
		if p.FileID != "" {
			desc = fmt.Sprintf("%s (file %s)", desc, p.FileID)
		}
		result.add(Finding{Category: "ledger", Description: desc, Severity: severity})
	}
	return nil
}

func (d *Doctor) checkTrackedFiles(result *Result) error {
	statuses, err := d.db.Statuses()
	if errors.Is(err, errclass.ErrDatabaseCorrupt) {
		result.add(Finding{
			Category:    "file",
			Description: fmt.Sprintf("tracked files not checked: %v", err),
			Severity:    "error",
		})
		return nil
	}
	if err != nil {
		return fmt.Errorf("list tracked files: %w", err)
	}
	for _, s := range statuses {
		if ok, _ := afero.Exists(d.fs, s.Entry.Path); !ok {
			result.add(Finding{
				Category:    "file",
				Description: fmt.Sprintf("tracked file %s missing on disk", s.Entry.FileID),
				Severity:    "warning",
				Path:        s.Entry.Path,
			})
		}
		for _, a := range s.Restart {
			result.add(Finding{
				Category:    "restart",
				Description: fmt.Sprintf("restart acquire %s (%s) keeps file alive until released", a.AcquireID, a.AcquireName),
				Severity:    "info",
				Path:        s.Entry.Path,
			})
		}
	}
	return nil
}

func (d *Doctor) checkAuditChain(result *Result) {
	if _, err := d.audit.Verify(); err != nil {
		result.add(Finding{
			Category:    "audit",
			Description: err.Error(),
			Severity:    "error",
			Path:        d.audit.Path(),
		})
	}
}

func (d *Doctor) checkOrphanTmp(result *Result) {
	for _, path := range d.orphanTmp() {
		result.add(Finding{
			Category:    "tmp",
			Description: fmt.Sprintf("orphan temp file: %s", filepath.Base(path)),
			Severity:    "info",
			Path:        path,
		})
	}
}

func (d *Doctor) orphanTmp() []string {
	var found []string
	afero.Walk(d.fs, d.home.Dir(), func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !info.IsDir() && strings.HasPrefix(info.Name(), tmpPrefix) {
			found = append(found, path)
		}
		return nil
	})
	return found
}

// ListRepairActions returns the repairs Repair understands.
func (d *Doctor) ListRepairActions() []RepairAction {
	return []RepairAction{
		{ID: "clean_tmp", Description: "Remove orphan " + tmpPrefix + "* files left by interrupted writes"},
	}
}

// Repair runs the named actions in order.
func (d *Doctor) Repair(actions []string) ([]RepairResult, error) {
	var results []RepairResult
	for _, action := range actions {
		switch action {
		case "clean_tmp":
			results = append(results, d.cleanTmp())
		default:
			return results, fmt.Errorf("unknown repair action: %s", action)
		}
	}
	return results, nil
}

func (d *Doctor) cleanTmp() RepairResult {
	res := RepairResult{Action: "clean_tmp", Success: true}
	if d.home == nil {
		return res
	}
	for _, path := range d.orphanTmp() {
		if err := d.fs.Remove(path); err != nil {
			res.Success = false
			res.Message = err.Error()
			continue
		}
		res.Cleaned++
	}
	return res
}

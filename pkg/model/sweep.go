package model

import "time"

// SweepOutcome is the verdict for one entry examined by a sweep.
type SweepOutcome string

const (
	SweepDeleted        SweepOutcome = "deleted"
	SweepCandidate      SweepOutcome = "candidate"
	SweepHeldVolatile   SweepOutcome = "held_volatile"
	SweepHeldRestart    SweepOutcome = "held_restart"
	SweepGracePeriod    SweepOutcome = "grace_period"
	SweepAlreadyRemoved SweepOutcome = "already_removed"
	SweepSuperseded     SweepOutcome = "superseded"
)

// SweepResult records what a sweep decided for one entry.
type SweepResult struct {
	FileID  FileID       `json:"file_id"`
	Path    string       `json:"path"`
	Outcome SweepOutcome `json:"outcome"`
}

// SweepReport summarizes one reaper pass.
type SweepReport struct {
	SweepID   string        `json:"sweep_id"`
	NowMillis int64         `json:"now_millis"`
	DryRun    bool          `json:"dry_run"`
	Examined  int           `json:"examined"`
	Deleted   []SweepResult `json:"deleted,omitempty"`
	Kept      []SweepResult `json:"kept,omitempty"`
	Duration  time.Duration `json:"duration"`
}

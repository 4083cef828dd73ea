package importer

import (
	"time"
)

// Stage names, in execution order
const (
	StageSchema       = "schema"
	StageNodeMetadata = "node_metadata"
	StageLinkMetadata = "link_metadata"
	StageRootLinking  = "root_linking"
	StageLabelLoading = "label_loading"
	StageBulkLoad     = "bulk_load"
)

// Stages lists every stage in the order Run executes them
var Stages = []string{
	StageSchema,
	StageNodeMetadata,
	StageLinkMetadata,
	StageRootLinking,
	StageLabelLoading,
	StageBulkLoad,
}

// StageReport summarizes one stage. Created counts statements that inserted
// a node or relationship; Updated counts those that only set properties.
type StageReport struct {
	Stage    string        `json:"stage"`
	Read     int           `json:"read"`
	Filtered int           `json:"filtered"`
	Written  int           `json:"written"`
	Skipped  []string      `json:"skipped,omitempty"`
	Created  int           `json:"created"`
	Updated  int           `json:"updated"`
	Duration time.Duration `json:"duration"`

	skippedErrs []error
}

// SkippedErrors returns the record-level errors BulkLoad skipped
func (r StageReport) SkippedErrors() []error {
	return r.skippedErrs
}

func (r *StageReport) skip(errs ...error) {
	for _, err := range errs {
		r.skippedErrs = append(r.skippedErrs, err)
		r.Skipped = append(r.Skipped, err.Error())
	}
}

// Report is the outcome of one import run
type Report struct {
	RunID     string        `json:"run_id"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
	Stages    []StageReport `json:"stages"`
}

// Stage returns the report of the named stage
func (r *Report) Stage(name string) (StageReport, bool) {
	for _, s := range r.Stages {
		if s.Stage == name {
			return s, true
		}
	}
	return StageReport{}, false
}

// Created totals created entities across stages
func (r *Report) Created() int {
	total := 0
	for _, s := range r.Stages {
		total += s.Created
	}
	return total
}

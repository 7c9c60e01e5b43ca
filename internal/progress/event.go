// Package progress defines the event structures emitted during a crawl and
// the hub that fans them out to sinks.
package progress

import (
	"errors"
	"fmt"
	"time"
)

// Stage denotes the type of milestone represented by an Event.
type Stage string

// Supported progress stages.
const (
	StageJobStart  Stage = "JOB_START"
	StageJobDone   Stage = "JOB_DONE"
	StageJobError  Stage = "JOB_ERROR"
	StagePageDone  Stage = "PAGE_DONE"
	StageItemDone  Stage = "ITEM_DONE"
	StageItemError Stage = "ITEM_ERROR"
)

// Event captures a single milestone of crawl progress. Job-scoped stages
// carry the job id; page and item stages are scoped by URL only, since the
// single-flight guarantee means at most one crawl emits them at a time.
type Event struct {
	// JobID identifies the job run for JOB_* stages.
	JobID string
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time
	// Stage denotes which milestone occurred.
	Stage Stage
	// URL is the listing or detail page URL for PAGE_*/ITEM_* stages.
	URL string
	// Items carries the item count delta for the stage.
	Items int64
	// Dur captures execution latency for page and job completions.
	Dur time.Duration
	// Note lets emitters attach low-volume context (e.g. error text).
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageJobStart, StageJobDone, StageJobError:
		if e.JobID == "" {
			return errors.New("job stages require a job id")
		}
	case StagePageDone, StageItemDone, StageItemError:
		if e.URL == "" {
			return fmt.Errorf("%s requires a url", e.Stage)
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}

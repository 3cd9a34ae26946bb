package data

import (
	"time"

	"github.com/vppro/patchy/metadata"
	"github.com/vppro/patchy/probe"
)

// CurrentSchemaVersion is the current version of the ProbeRecord struct
// below. It is included in every serialized record and must be incremented
// for every structure change.
const CurrentSchemaVersion = 1

// ProbeRecord is the document submitted to the patchy server after a probe.
//
// All data members should be self-describing. In the event of confusion,
// rename them to add clarity rather than adding a comment.
type ProbeRecord struct {
	SchemaVersion int
	UUID          string
	Target        string

	StartTime time.Time
	EndTime   time.Time

	Attempts          int
	PingTimeoutMs     int64
	MinSuccesses      int
	ExpectBytes       int64
	MinThroughputKbps float64

	Result probe.Result

	ClientMetadata []metadata.NameValue `json:",omitempty"`
}

// NewProbeRecord returns the record of a probe of target with cfg.
func NewProbeRecord(uuid, target string, cfg probe.Config, start, end time.Time, result probe.Result) ProbeRecord {
	return ProbeRecord{
		SchemaVersion:     CurrentSchemaVersion,
		UUID:              uuid,
		Target:            target,
		StartTime:         start,
		EndTime:           end,
		Attempts:          cfg.Attempts,
		PingTimeoutMs:     cfg.PingTimeout.Milliseconds(),
		MinSuccesses:      cfg.MinSuccesses,
		ExpectBytes:       cfg.ExpectBytes,
		MinThroughputKbps: cfg.MinThroughputKbps,
		Result:            result,
	}
}

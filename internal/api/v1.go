// Package api defines the JSON documents printed by the CLI.
package api

import (
	"time"

	"github.com/crbraun/irsdkrec/internal/model"
	"github.com/crbraun/irsdkrec/internal/policy"
)

const SchemaVersion = "v1"

type RunResponse struct {
	RunID           string  `json:"run_id"`
	StartedAt       string  `json:"started_at"`
	StoppedAt       *string `json:"stopped_at,omitempty"`
	SessionInfoPath string  `json:"session_info_path"`
	TelemetryPath   string  `json:"telemetry_path"`
}

type RunsEnvelope struct {
	SchemaVersion string        `json:"schema_version"`
	GeneratedAt   time.Time     `json:"generated_at"`
	Runs          []RunResponse `json:"runs"`
}

type BlockResponse struct {
	BlockID     string   `json:"block_id"`
	RunID       string   `json:"run_id"`
	Stream      string   `json:"stream"`
	Seq         int64    `json:"seq"`
	SessionNum  int      `json:"session_num"`
	SessionTime float64  `json:"session_time"`
	Tick        int      `json:"tick"`
	RecordedAt  string   `json:"recorded_at"`
	Lines       []string `json:"lines"`
}

type BlocksEnvelope struct {
	SchemaVersion string          `json:"schema_version"`
	GeneratedAt   time.Time       `json:"generated_at"`
	Blocks        []BlockResponse `json:"blocks"`
}

type IntervalResponse struct {
	Name    string `json:"name"`
	Seconds int    `json:"seconds"`
}

type PolicyEnvelope struct {
	SchemaVersion string             `json:"schema_version"`
	GeneratedAt   time.Time          `json:"generated_at"`
	Source        string             `json:"source"`
	Throttled     []IntervalResponse `json:"throttled"`
	Suppressed    []string           `json:"suppressed"`
}

type LoopFailure struct {
	Stream  string `json:"stream"`
	Message string `json:"message"`
}

// RecordingSummary describes a finished replay.
type RecordingSummary struct {
	SchemaVersion   string        `json:"schema_version"`
	GeneratedAt     time.Time     `json:"generated_at"`
	RunID           string        `json:"run_id"`
	Frames          int           `json:"frames"`
	CatalogHash     string        `json:"catalog_fingerprint,omitempty"`
	SessionInfoPath string        `json:"session_info_path"`
	TelemetryPath   string        `json:"telemetry_path"`
	Failures        []LoopFailure `json:"failures,omitempty"`
}

func FromRun(r model.Run) RunResponse {
	out := RunResponse{
		RunID:           r.RunID,
		StartedAt:       r.StartedAt.UTC().Format(time.RFC3339Nano),
		SessionInfoPath: r.SessionInfoPath,
		TelemetryPath:   r.TelemetryPath,
	}
	if r.StoppedAt != nil {
		v := r.StoppedAt.UTC().Format(time.RFC3339Nano)
		out.StoppedAt = &v
	}
	return out
}

func FromBlock(b model.ArchivedBlock) BlockResponse {
	lines := b.Lines
	if lines == nil {
		lines = []string{}
	}
	return BlockResponse{
		BlockID:     b.BlockID,
		RunID:       b.RunID,
		Stream:      string(b.Stream),
		Seq:         b.Seq,
		SessionNum:  b.SessionNum,
		SessionTime: b.SessionTime,
		Tick:        b.Tick,
		RecordedAt:  b.RecordedAt.UTC().Format(time.RFC3339Nano),
		Lines:       lines,
	}
}

func FromPolicy(p *policy.Policy, source string, now time.Time) PolicyEnvelope {
	env := PolicyEnvelope{
		SchemaVersion: SchemaVersion,
		GeneratedAt:   now,
		Source:        source,
		Throttled:     []IntervalResponse{},
		Suppressed:    p.Suppressed(),
	}
	for _, iv := range p.Throttled() {
		env.Throttled = append(env.Throttled, IntervalResponse{Name: iv.Name, Seconds: iv.Seconds})
	}
	if env.Suppressed == nil {
		env.Suppressed = []string{}
	}
	return env
}

package model

import (
	"errors"
	"fmt"
	"time"
)

// Stream identifies one of the two recording pipelines.
type Stream string

const (
	StreamSessionInfo Stream = "session_info"
	StreamTelemetry   Stream = "telemetry"
)

// Streams lists every pipeline in the order the recorder starts them.
var Streams = []Stream{StreamSessionInfo, StreamTelemetry}

func ParseStream(raw string) (Stream, error) {
	switch Stream(raw) {
	case StreamSessionInfo, StreamTelemetry:
		return Stream(raw), nil
	case "session-info", "sessioninfo":
		return StreamSessionInfo, nil
	default:
		return "", fmt.Errorf("unknown stream %q", raw)
	}
}

// RecorderState is the lifecycle state of the dual recorder.
type RecorderState string

const (
	RecorderStopped  RecorderState = "stopped"
	RecorderRunning  RecorderState = "running"
	RecorderStopping RecorderState = "stopping"
)

// Block is one timestamped batch of change lines produced by a single diff
// cycle.
type Block struct {
	RunID       string
	Stream      Stream
	SessionNum  int
	SessionTime float64
	Tick        int
	RecordedAt  time.Time
	Lines       []string
}

type Run struct {
	RunID           string
	StartedAt       time.Time
	StoppedAt       *time.Time
	SessionInfoPath string
	TelemetryPath   string
}

// ArchivedBlock is a Block as read back from the archive store.
type ArchivedBlock struct {
	BlockID string
	Seq     int64
	Block
}

var (
	ErrAlreadyStarted = errors.New("recorder already started")
	ErrNotStarted     = errors.New("recorder not started")
	ErrSinkOpen       = errors.New("sink open failure")
	ErrShapeInference = errors.New("shape inference failure")
)

// Package sink writes change blocks to their destinations.
package sink

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/crbraun/irsdkrec/internal/model"
)

// DefaultBufferSize matches the write buffer of the recorder's text files.
const DefaultBufferSize = 1 << 20

type Sink interface {
	WriteBlock(b model.Block) error
	Close() error
}

// FormatBlock renders b as a blank line, a session time header and one line
// per change.
func FormatBlock(b model.Block) string {
	var sb strings.Builder
	sb.WriteString("\n")
	sb.WriteString(Header(b.SessionNum, b.SessionTime))
	sb.WriteString("\n")
	for _, line := range b.Lines {
		sb.WriteString(line)
		sb.WriteString("\n")
	}
	return sb.String()
}

// Header returns "SessionTime = <num>:<time with four decimals>".
func Header(sessionNum int, sessionTime float64) string {
	return "SessionTime = " + strconv.Itoa(sessionNum) + ":" + strconv.FormatFloat(sessionTime, 'f', 4, 64)
}

// File is a truncating, buffered UTF-8 text sink. Each block is written with
// one call and flushed before WriteBlock returns.
type File struct {
	mu   sync.Mutex
	path string
	f    *os.File
	w    *bufio.Writer
}

// CreateFile creates or truncates path. Errors wrap model.ErrSinkOpen.
func CreateFile(path string, bufSize int) (*File, error) {
	if bufSize <= 0 {
		bufSize = DefaultBufferSize
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("%w: create dir for %s: %v", model.ErrSinkOpen, path, err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrSinkOpen, err)
	}
	return &File{path: path, f: f, w: bufio.NewWriterSize(f, bufSize)}, nil
}

func (s *File) Path() string {
	return s.path
}

func (s *File) WriteBlock(b model.Block) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return fmt.Errorf("write %s: %w", s.path, os.ErrClosed)
	}
	if _, err := s.w.WriteString(FormatBlock(b)); err != nil {
		return fmt.Errorf("write %s: %w", s.path, err)
	}
	if err := s.w.Flush(); err != nil {
		return fmt.Errorf("flush %s: %w", s.path, err)
	}
	return nil
}

func (s *File) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return nil
	}
	flushErr := s.w.Flush()
	closeErr := s.f.Close()
	s.f = nil
	return errors.Join(flushErr, closeErr)
}

type tee []Sink

// Tee fans every block out to all sinks; nil sinks are skipped.
func Tee(sinks ...Sink) Sink {
	out := make(tee, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	if len(out) == 1 {
		return out[0]
	}
	return out
}

func (t tee) WriteBlock(b model.Block) error {
	var errs []error
	for _, s := range t {
		if err := s.WriteBlock(b); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (t tee) Close() error {
	var errs []error
	for _, s := range t {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// BlockAppender persists blocks; *db.Store implements it.
type BlockAppender interface {
	AppendBlock(ctx context.Context, b model.Block) (string, error)
}

type archive struct {
	store BlockAppender
}

// NewArchive returns a sink that appends every block to store. Closing it
// does not close the store.
func NewArchive(store BlockAppender) Sink {
	return &archive{store: store}
}

func (a *archive) WriteBlock(b model.Block) error {
	if _, err := a.store.AppendBlock(context.Background(), b); err != nil {
		return fmt.Errorf("archive block: %w", err)
	}
	return nil
}

func (a *archive) Close() error {
	return nil
}

type bestEffort struct {
	Sink
	onErr func(error)
}

// BestEffort wraps s so write errors go to onErr and WriteBlock always
// succeeds.
func BestEffort(s Sink, onErr func(error)) Sink {
	return &bestEffort{Sink: s, onErr: onErr}
}

func (b *bestEffort) WriteBlock(blk model.Block) error {
	if err := b.Sink.WriteBlock(blk); err != nil && b.onErr != nil {
		b.onErr(err)
	}
	return nil
}

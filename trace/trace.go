// Package trace has observers that record the steps of a machine.
//
// The JSONL writer produces one object per line, the format read by debug
// tools; the CBOR writer is a compact binary alternative. Both are
// synchronous, and may be wrapped with Async to run off the machine's
// goroutine.
package trace

import (
	"encoding/json"
	"io"
	"sync"
	"sync/atomic"

	"github.com/fxamacker/cbor/v2"
	"github.com/sirupsen/logrus"

	"github.com/prologkit/warren/errors"
	"github.com/prologkit/warren/wam"
)

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(errors.New("trace: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

type encoder interface {
	Encode(v any) error
}

// Writer encodes snapshots to a stream. The first encoding error stops
// further writes, and is reported by Err.
type Writer struct {
	mu  sync.Mutex
	enc encoder
	err error
}

// NewJSONL returns a writer of one JSON object per line.
func NewJSONL(w io.Writer) *Writer {
	return &Writer{enc: json.NewEncoder(w)}
}

// NewCBOR returns a writer of a sequence of canonical CBOR maps.
func NewCBOR(w io.Writer) *Writer {
	return &Writer{enc: cborEncMode.NewEncoder(w)}
}

// Observe encodes s.
func (w *Writer) Observe(s wam.Snapshot) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return
	}
	if err := w.enc.Encode(s); err != nil {
		w.err = errors.New("trace: encoding snapshot %d: %v", s.Clock, err)
	}
}

// Err returns the first error found while encoding.
func (w *Writer) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

// DecodeCBOR reads all snapshots written by a CBOR writer.
func DecodeCBOR(r io.Reader) ([]wam.Snapshot, error) {
	dec := cbor.NewDecoder(r)
	var snapshots []wam.Snapshot
	for {
		var s wam.Snapshot
		err := dec.Decode(&s)
		if err == io.EOF {
			return snapshots, nil
		}
		if err != nil {
			return snapshots, errors.New("trace: decoding snapshot #%d: %v", len(snapshots), err)
		}
		snapshots = append(snapshots, s)
	}
}

// DecodeJSONL reads all snapshots written by a JSONL writer.
func DecodeJSONL(r io.Reader) ([]wam.Snapshot, error) {
	dec := json.NewDecoder(r)
	var snapshots []wam.Snapshot
	for {
		var s wam.Snapshot
		err := dec.Decode(&s)
		if err == io.EOF {
			return snapshots, nil
		}
		if err != nil {
			return snapshots, errors.New("trace: decoding snapshot #%d: %v", len(snapshots), err)
		}
		snapshots = append(snapshots, s)
	}
}

// ---- async

// AsyncObserver forwards snapshots to another observer in its own goroutine.
// Snapshots are dropped when the buffer is full, so that the machine never
// waits for a slow sink.
type AsyncObserver struct {
	obs     wam.Observer
	mu      sync.RWMutex
	closed  bool
	ch      chan wam.Snapshot
	done    chan struct{}
	dropped atomic.Int64
}

// Async starts forwarding snapshots to obs through a buffer of the given size.
// Close must be called to release the goroutine.
func Async(obs wam.Observer, size int) *AsyncObserver {
	a := &AsyncObserver{
		obs:  obs,
		ch:   make(chan wam.Snapshot, size),
		done: make(chan struct{}),
	}
	go a.loop()
	return a
}

func (a *AsyncObserver) loop() {
	defer close(a.done)
	for s := range a.ch {
		a.obs.Observe(s)
	}
}

// Observe enqueues s, or drops it if the buffer is full or the observer is closed.
func (a *AsyncObserver) Observe(s wam.Snapshot) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		a.dropped.Add(1)
		return
	}
	select {
	case a.ch <- s:
	default:
		a.dropped.Add(1)
	}
}

// Dropped returns the number of snapshots that were not forwarded.
func (a *AsyncObserver) Dropped() int64 {
	return a.dropped.Load()
}

// Close stops accepting snapshots, and waits for the buffered ones to be
// forwarded.
func (a *AsyncObserver) Close() error {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.ch)
	}
	a.mu.Unlock()
	<-a.done
	return nil
}

// ---- logrus

type logObserver struct {
	logger *logrus.Logger
}

// Logrus returns an observer that logs each snapshot at trace level.
func Logrus(logger *logrus.Logger) wam.Observer {
	return logObserver{logger}
}

func (o logObserver) Observe(s wam.Snapshot) {
	if !o.logger.IsLevelEnabled(logrus.TraceLevel) {
		return
	}
	o.logger.WithFields(logrus.Fields{
		"clock":   s.Clock,
		"ptr":     s.CodePtr,
		"outcome": s.Outcome,
		"state":   s.State,
		"heap":    s.HeapSize,
		"trail":   s.TrailSize,
		"choices": s.Choices,
	}).Trace(s.Instruction)
}

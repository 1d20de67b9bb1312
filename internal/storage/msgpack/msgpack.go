// Package msgpack appends runs and evaluations to a MessagePack stream file, one record per
// message, for cheap bulk output that other tools can read back with ReadAll.
package msgpack

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/chrissnell/hymod/internal/log"
	"github.com/chrissnell/hymod/internal/storage"
	"github.com/chrissnell/hymod/internal/types"
	"github.com/vmihailenco/msgpack/v5"
)

const engineName = "msgpack"

// Record kinds
const (
	KindRun        = "run"
	KindEvaluation = "evaluation"
)

// Record is one message of the stream
type Record struct {
	Kind       string            `msgpack:"kind"`
	Run        *types.Run        `msgpack:"run,omitempty"`
	Evaluation *types.Evaluation `msgpack:"evaluation,omitempty"`
}

// Storage holds the output file of a msgpack storage backend
type Storage struct {
	mu  sync.Mutex
	f   *os.File
	w   *bufio.Writer
	enc *msgpack.Encoder
}

// New opens path for appending, creating it if needed
func New(path string) (*Storage, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("could not open msgpack output: %w", err)
	}

	w := bufio.NewWriter(f)
	storage.GlobalHealthManager.UpdateHealth(engineName, storage.StatusHealthy, "writing "+path, nil)
	return &Storage{
		f:   f,
		w:   w,
		enc: msgpack.NewEncoder(w),
	}, nil
}

// StartStorageEngine creates a goroutine loop to receive evaluations and append them to the file
func (s *Storage) StartStorageEngine(ctx context.Context, wg *sync.WaitGroup) chan<- types.Evaluation {
	log.Info("starting msgpack storage engine...")
	evalChan := make(chan types.Evaluation, 10)
	wg.Add(1)
	go storage.ProcessEvaluations(wg, evalChan, s.StoreEvaluation, engineName)
	return evalChan
}

// RegisterRun appends the run record
func (s *Storage) RegisterRun(_ context.Context, r types.Run) error {
	return s.write(Record{Kind: KindRun, Run: &r})
}

// StoreEvaluation appends an evaluation record
func (s *Storage) StoreEvaluation(e types.Evaluation) error {
	return s.write(Record{Kind: KindEvaluation, Evaluation: &e})
}

func (s *Storage) write(r Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.enc.Encode(&r); err != nil {
		return fmt.Errorf("could not encode %s record: %w", r.Kind, err)
	}
	return nil
}

// Close flushes buffered records and closes the file
func (s *Storage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	flushErr := s.w.Flush()
	closeErr := s.f.Close()
	return errors.Join(flushErr, closeErr)
}

// ReadAll decodes every record of a stream
func ReadAll(r io.Reader) ([]Record, error) {
	dec := msgpack.NewDecoder(bufio.NewReader(r))

	var records []Record
	for {
		var rec Record
		err := dec.Decode(&rec)
		if errors.Is(err, io.EOF) {
			return records, nil
		}
		if err != nil {
			return records, fmt.Errorf("could not decode record %d: %w", len(records), err)
		}
		records = append(records, rec)
	}
}

// ReadFile decodes every record of a stream file
func ReadFile(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadAll(f)
}

// Package journal persists boundary frames to a local pebble database so that
// traffic between the bridge and the native library can be inspected and
// replayed after the fact.
package journal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/cockroachdb/pebble/v2"
	"github.com/fgrzl/enumerators"
	"github.com/fgrzl/lexkey"
	"github.com/fgrzl/timestamp"
	"github.com/golang/snappy"
	"github.com/google/uuid"
	"github.com/kelseyhightower/envconfig"

	"github.com/fgrzl/lndkit/pkg/bridge"
	"github.com/fgrzl/lndkit/pkg/codec"
)

const (
	FRAMES    = "frames"
	INVENTORY = "inventory"
	SESSIONS  = "sessions"
)

const (
	errMsgEmptyPath     = "journal: path is required"
	errMsgStoreClosed   = "journal: store is closed"
	errMsgDecodeEntry   = "journal: decode entry"
	logMsgRecordFailed  = "journal: failed to record frame"
	logMsgSessionOpened = "journal: session opened"
)

var ErrClosed = errors.New(errMsgStoreClosed)

// Options configures a Store.
type Options struct {
	Path string `envconfig:"JOURNAL_PATH"`
}

// LoadOptions reads options from LNDKIT_JOURNAL_* environment variables.
func LoadOptions() (*Options, error) {
	var o Options
	if err := envconfig.Process("LNDKIT", &o); err != nil {
		return nil, fmt.Errorf("journal: load options: %w", err)
	}
	return &o, nil
}

// Entry is one persisted frame.
type Entry struct {
	Session   uuid.UUID `cbor:"session"`
	Sequence  uint64    `cbor:"seq"`
	Timestamp int64     `cbor:"ts"`
	CallID    uuid.UUID `cbor:"call_id"`
	Method    string    `cbor:"method"`
	Stream    uint64    `cbor:"stream,omitempty"`
	Direction uint8     `cbor:"dir"`
	Kind      uint8     `cbor:"kind"`
	Data      []byte    `cbor:"data,omitempty"`
	Error     string    `cbor:"error,omitempty"`
}

// Frame converts the entry back to the frame it was recorded from.
func (e *Entry) Frame() bridge.Frame {
	return bridge.Frame{
		CallID:    e.CallID,
		Method:    e.Method,
		Stream:    bridge.Handle(e.Stream),
		Direction: bridge.Direction(e.Direction),
		Kind:      bridge.FrameKind(e.Kind),
		Data:      e.Data,
		Error:     e.Error,
	}
}

func (e *Entry) key() lexkey.LexKey {
	return lexkey.Encode(FRAMES, e.Session.String(), e.Sequence)
}

// Store records frames for one session at a time. It implements
// bridge.FrameTap.
type Store struct {
	db      *pebble.DB
	session uuid.UUID
	seq     atomic.Uint64
	entries codec.Codec[Entry]
	log     *slog.Logger

	inventoried atomic.Bool

	// mu is held for reading while the db is in use and for writing by Close.
	mu     sync.RWMutex
	closed bool
}

// Open opens or creates the journal under opts.Path and starts a new session.
func Open(opts *Options) (*Store, error) {
	if opts == nil || opts.Path == "" {
		return nil, errors.New(errMsgEmptyPath)
	}
	db, err := pebble.Open(filepath.Join(opts.Path, "journal"), &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("journal: open: %w", err)
	}
	s := &Store{
		db:      db,
		session: uuid.New(),
		entries: codec.CBOR[Entry](),
		log:     slog.Default().With(slog.String("component", "journal")),
	}
	s.log.Debug(logMsgSessionOpened, slog.String("session", s.session.String()))
	return s, nil
}

// Session identifies the frames recorded through this Store.
func (s *Store) Session() uuid.UUID {
	return s.session
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// Tap records f, logging rather than returning any failure.
func (s *Store) Tap(f bridge.Frame) {
	if err := s.Record(f); err != nil {
		s.log.Warn(logMsgRecordFailed,
			slog.String("method", f.Method),
			slog.String("call_id", f.CallID.String()),
			slog.Any("error", err))
	}
}

// Record appends f to the current session.
func (s *Store) Record(f bridge.Frame) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	entry := &Entry{
		Session:   s.session,
		Sequence:  s.seq.Add(1),
		Timestamp: timestamp.GetTimestamp(),
		CallID:    f.CallID,
		Method:    f.Method,
		Stream:    uint64(f.Stream),
		Direction: uint8(f.Direction),
		Kind:      uint8(f.Kind),
		Data:      f.Data,
		Error:     f.Error,
	}
	data, err := s.entries.Encode(*entry)
	if err != nil {
		return err
	}

	batch := s.db.NewBatch()
	defer batch.Close()

	if err := batch.Set(entry.key(), snappy.Encode(nil, data), pebble.NoSync); err != nil {
		return err
	}
	if err := s.updateInventory(batch); err != nil {
		return err
	}
	return batch.Commit(pebble.Sync)
}

// Frames enumerates the entries of session in recording order.
func (s *Store) Frames(ctx context.Context, session uuid.UUID) enumerators.Enumerator[*Entry] {
	lower := lexkey.EncodeFirst(FRAMES, session.String())
	upper := lexkey.EncodeLast(FRAMES, session.String())
	values, err := s.scan(ctx, lower, upper)
	if err != nil {
		return enumerators.Error[*Entry](err)
	}
	return enumerators.Map(
		enumerators.Slice(values),
		func(value []byte) (*Entry, error) {
			data, err := snappy.Decode(nil, value)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", errMsgDecodeEntry, err)
			}
			entry, err := s.entries.Decode(data)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", errMsgDecodeEntry, err)
			}
			return &entry, nil
		})
}

// Sessions enumerates every session that recorded at least one frame.
func (s *Store) Sessions(ctx context.Context) enumerators.Enumerator[uuid.UUID] {
	lower, upper := lexkey.EncodeFirst(INVENTORY, SESSIONS), lexkey.EncodeLast(INVENTORY, SESSIONS)
	values, err := s.scan(ctx, lower, upper)
	if err != nil {
		return enumerators.Error[uuid.UUID](err)
	}
	return enumerators.Map(
		enumerators.Slice(values),
		func(value []byte) (uuid.UUID, error) {
			return uuid.ParseBytes(value)
		})
}

// Replay feeds every frame of session to tap, in order.
func (s *Store) Replay(ctx context.Context, session uuid.UUID, tap bridge.FrameTap) error {
	replayed := enumerators.Map(
		s.Frames(ctx, session),
		func(entry *Entry) (*Entry, error) {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			tap.Tap(entry.Frame())
			return entry, nil
		})
	return enumerators.Consume(replayed)
}

func (s *Store) scan(ctx context.Context, lower, upper lexkey.LexKey) ([][]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	iter, err := s.db.NewIterWithContext(ctx, &pebble.IterOptions{
		LowerBound: lower,
		UpperBound: upper,
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var values [][]byte
	for iter.First(); iter.Valid(); iter.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		values = append(values, append([]byte(nil), iter.Value()...))
	}
	if err := iter.Error(); err != nil {
		return nil, err
	}
	return values, nil
}

func (s *Store) updateInventory(batch *pebble.Batch) error {
	if s.inventoried.Load() {
		return nil
	}
	key := lexkey.Encode(INVENTORY, SESSIONS, s.session.String())
	if err := batch.Set(key, []byte(s.session.String()), pebble.NoSync); err != nil {
		return err
	}
	s.inventoried.Store(true)
	return nil
}

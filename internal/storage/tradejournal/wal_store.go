// Package tradejournal keeps every settled trade in a write-ahead log so the web
// boundary can stream them and restarts do not lose the tail.
package tradejournal

import (
	"encoding/json"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/gowal"

	"github.com/vadiminshakov/tradewars/internal/domain"
)

const (
	defaultJournalDir   = "./wal/trades"
	journalSegmentLimit = 100
	journalMaxSegments  = 5
	tradeKeyPrefix      = "trade_"
)

// ErrNotInitialized is returned when the journal was not opened.
var ErrNotInitialized = errors.New("trade journal is not initialized")

// WALStore persists trade events in a WAL.
type WALStore struct {
	wal *gowal.Wal
	mu  sync.RWMutex
}

// NewWALStore opens the journal under dir.
func NewWALStore(dir string) (*WALStore, error) {
	if dir == "" {
		dir = defaultJournalDir
	}

	cfg := gowal.Config{
		Dir:              dir,
		Prefix:           "trades_",
		SegmentThreshold: journalSegmentLimit,
		MaxSegments:      journalMaxSegments,
		IsInSyncDiskMode: true,
	}

	wal, err := gowal.NewWAL(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "init trade journal WAL")
	}

	return &WALStore{wal: wal}, nil
}

// Append writes the events in order and returns the index of the last one.
func (s *WALStore) Append(events ...domain.TradeEvent) (uint64, error) {
	if s == nil || s.wal == nil {
		return 0, ErrNotInitialized
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	last := s.wal.CurrentIndex()
	for _, event := range events {
		if event.Bot == "" {
			return last, errors.New("trade event bot is required")
		}

		payload, err := json.Marshal(event)
		if err != nil {
			return last, errors.Wrap(err, "marshal trade event")
		}

		next := s.wal.CurrentIndex() + 1
		if err := s.wal.Write(next, tradeKeyPrefix+event.Bot, payload); err != nil {
			return last, errors.Wrapf(err, "write trade event %d", next)
		}
		last = next
	}

	return last, nil
}

// EventsAfter returns the events written after the index, oldest first.
func (s *WALStore) EventsAfter(index uint64) ([]domain.TradeEventRecord, error) {
	if s == nil || s.wal == nil {
		return nil, ErrNotInitialized
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	current := s.wal.CurrentIndex()
	if current <= index {
		return nil, nil
	}

	records := make([]domain.TradeEventRecord, 0, current-index)
	for idx := index + 1; idx <= current; idx++ {
		key, payload, err := s.wal.Get(idx)
		if err != nil || !strings.HasPrefix(key, tradeKeyPrefix) {
			continue
		}
		var event domain.TradeEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			return nil, errors.Wrap(err, "decode trade event")
		}
		records = append(records, domain.TradeEventRecord{
			Index: idx,
			Event: event,
		})
	}

	return records, nil
}

// Latest returns up to n most recent events, oldest first.
func (s *WALStore) Latest(n int) ([]domain.TradeEventRecord, error) {
	current := s.CurrentIndex()
	from := uint64(0)
	if n > 0 && current > uint64(n) {
		from = current - uint64(n)
	}
	return s.EventsAfter(from)
}

// CurrentIndex returns the latest WAL index stored.
func (s *WALStore) CurrentIndex() uint64 {
	if s == nil || s.wal == nil {
		return 0
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.wal.CurrentIndex()
}

// Close closes the underlying WAL.
func (s *WALStore) Close() error {
	if s == nil || s.wal == nil {
		return ErrNotInitialized
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.wal.Close()
}

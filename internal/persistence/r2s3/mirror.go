package r2s3

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"idlerealm.ai/internal/persistence/snapshot"
)

type Stats struct {
	QueueDepth         int
	QueueCapacity      int
	EnqueuedTotal      uint64
	DroppedTotal       uint64
	UploadSuccessTotal uint64
	UploadFailTotal    uint64
	LastSuccessUnix    int64
	LastErrorUnix      int64
}

// Uploader is what the mirror pushes records to. *Saves satisfies it.
type Uploader interface {
	Save(ctx context.Context, rec snapshot.Record) error
}

type job struct {
	rec  snapshot.Record
	done func(error)
}

// Mirror pushes save records to the remote store in the background with
// retries, so callers never block on the network.
type Mirror struct {
	up     Uploader
	logger *log.Logger

	jobs    chan job
	wg      sync.WaitGroup
	closed  atomic.Bool
	mu      sync.RWMutex
	backoff time.Duration

	enqueuedTotal      atomic.Uint64
	droppedTotal       atomic.Uint64
	uploadSuccessTotal atomic.Uint64
	uploadFailTotal    atomic.Uint64
	lastSuccessUnix    atomic.Int64
	lastErrorUnix      atomic.Int64
}

func NewMirror(up Uploader, workers, queueCapacity int, logger *log.Logger) *Mirror {
	if workers <= 0 {
		workers = 1
	}
	if queueCapacity <= 0 {
		queueCapacity = 256
	}
	m := &Mirror{
		up:      up,
		logger:  logger,
		jobs:    make(chan job, queueCapacity),
		backoff: 200 * time.Millisecond,
	}
	for i := 0; i < workers; i++ {
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			for j := range m.jobs {
				m.uploadOne(j)
			}
		}()
	}
	return m
}

// Enqueue schedules rec for upload. done, if non-nil, runs on a worker
// goroutine with the final result. A full queue drops the record and
// reports the drop through done.
func (m *Mirror) Enqueue(rec snapshot.Record, done func(error)) {
	if m == nil {
		return
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed.Load() {
		if done != nil {
			done(ErrMirrorClosed)
		}
		return
	}
	m.enqueuedTotal.Add(1)
	select {
	case m.jobs <- job{rec: rec, done: done}:
	default:
		dropped := m.droppedTotal.Add(1)
		m.printf("r2 mirror drop user=%s character=%s reason=queue_saturated dropped_total=%d",
			rec.Header.UserID, rec.Header.CharacterID, dropped)
		if done != nil {
			done(ErrQueueFull)
		}
	}
}

// Close stops accepting work and waits for queued uploads to finish.
func (m *Mirror) Close() {
	if m == nil {
		return
	}
	m.mu.Lock()
	if m.closed.Swap(true) {
		m.mu.Unlock()
		return
	}
	close(m.jobs)
	m.mu.Unlock()
	m.wg.Wait()
}

func (m *Mirror) Stats() Stats {
	if m == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:         len(m.jobs),
		QueueCapacity:      cap(m.jobs),
		EnqueuedTotal:      m.enqueuedTotal.Load(),
		DroppedTotal:       m.droppedTotal.Load(),
		UploadSuccessTotal: m.uploadSuccessTotal.Load(),
		UploadFailTotal:    m.uploadFailTotal.Load(),
		LastSuccessUnix:    m.lastSuccessUnix.Load(),
		LastErrorUnix:      m.lastErrorUnix.Load(),
	}
}

func (m *Mirror) uploadOne(j job) {
	h := j.rec.Header
	err := m.uploadWithRetry(j.rec)
	if err != nil {
		m.uploadFailTotal.Add(1)
		m.lastErrorUnix.Store(time.Now().UTC().Unix())
		m.printf("r2 mirror upload failed user=%s character=%s err=%v", h.UserID, h.CharacterID, err)
	} else {
		m.uploadSuccessTotal.Add(1)
		m.lastSuccessUnix.Store(time.Now().UTC().Unix())
		m.printf("r2 mirror uploaded user=%s character=%s last_saved=%s", h.UserID, h.CharacterID, h.LastSaved.Format(time.RFC3339))
	}
	if j.done != nil {
		j.done(err)
	}
}

func (m *Mirror) uploadWithRetry(rec snapshot.Record) error {
	const maxAttempts = 4
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		err := m.up.Save(ctx, rec)
		cancel()
		if err == nil {
			return nil
		}
		lastErr = err
		if attempt < maxAttempts {
			time.Sleep(time.Duration(attempt*attempt) * m.backoff)
		}
	}
	return lastErr
}

func (m *Mirror) printf(format string, args ...any) {
	if m.logger != nil {
		m.logger.Printf(format, args...)
	}
}

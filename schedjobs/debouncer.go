// Package schedjobs runs deferred jobs on timers.
package schedjobs

import (
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/zeptools/clinsup/svc"
)

var ErrStopped = errors.New("schedjobs: debouncer stopped")

type pending struct {
	job   *DebouncedJob
	timer *time.Timer
	seq   uint64
}

// Debouncer coalesces bursts of jobs per ID into one trailing-edge run.
type Debouncer struct {
	name string
	log  *zap.Logger

	mu      sync.Mutex
	pending map[string]*pending
	seq     uint64
	wg      sync.WaitGroup
	started bool
	stopped bool
	done    chan error

	// Default callback, after the job's own OnFinished
	OnJobFinished func(job *DebouncedJob, err error)
}

var _ svc.Service = (*Debouncer)(nil)

func NewDebouncer(name string, logger *zap.Logger) *Debouncer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Debouncer{
		name:    name,
		log:     logger.Named("debouncer").With(zap.String("name", name)),
		pending: map[string]*pending{},
		done:    make(chan error, 1),
	}
}

func (d *Debouncer) Name() string { return d.name }

func (d *Debouncer) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return ErrStopped
	}
	if !d.started {
		d.started = true
		d.log.Info("started")
	}
	return nil
}

// Done yields once after Stop has drained every job
func (d *Debouncer) Done() <-chan error { return d.done }

// Schedule (re)arms the timer for job.ID
func (d *Debouncer) Schedule(job *DebouncedJob) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return ErrStopped
	}
	if p, ok := d.pending[job.ID]; ok && p.timer.Stop() {
		d.wg.Done() // the replaced timer will never fire
	}
	d.seq++
	seq := d.seq
	d.wg.Add(1)
	d.pending[job.ID] = &pending{
		job:   job,
		seq:   seq,
		timer: time.AfterFunc(job.Wait, func() { d.fire(job.ID, seq) }),
	}
	return nil
}

// Pending reports how many IDs are waiting
func (d *Debouncer) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

func (d *Debouncer) fire(id string, seq uint64) {
	defer d.wg.Done()
	d.mu.Lock()
	p, ok := d.pending[id]
	if !ok || p.seq != seq {
		d.mu.Unlock()
		return // superseded or flushed
	}
	delete(d.pending, id)
	d.mu.Unlock()
	d.run(p.job)
}

// Flush runs every pending job now, on the calling goroutine
func (d *Debouncer) Flush() {
	d.mu.Lock()
	var jobs []*DebouncedJob
	for id, p := range d.pending {
		if p.timer.Stop() {
			jobs = append(jobs, p.job)
			d.wg.Done()
		}
		delete(d.pending, id)
	}
	d.mu.Unlock()
	for _, job := range jobs {
		d.run(job)
	}
}

// Stop flushes pending jobs, waits for running ones and refuses new ones
func (d *Debouncer) Stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	d.mu.Unlock()

	d.Flush()
	d.wg.Wait()
	d.log.Info("stopped")
	d.done <- nil
}

func (d *Debouncer) run(job *DebouncedJob) {
	err := d.runTask(job)
	if job.OnFinished != nil {
		func() {
			defer func() {
				if r := recover(); r != nil {
					d.log.Error("recovered in job.OnFinished", zap.String("job", job.ID), zap.Any("panic", r))
				}
			}()
			job.OnFinished(err)
		}()
	}
	if d.OnJobFinished != nil {
		d.OnJobFinished(job, err)
	}
}

func (d *Debouncer) runTask(job *DebouncedJob) (err error) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("recovered in job.Task", zap.String("job", job.ID), zap.Any("panic", r))
			err = &PanicError{Value: r}
		}
	}()
	return job.Task()
}

type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return "schedjobs: task panicked"
}

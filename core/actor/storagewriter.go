package actor

import (
	"context"

	"github.com/sirupsen/logrus"
)

// storageWriterMailboxSize bounds the number of queued write jobs.
const storageWriterMailboxSize = 1024

// writeJob is a unit of persistence work; the three column families this
// node persists (world state, log states, the on-disk KV cache underlying
// each) all reduce to a func that returns an error, so one actor type
// serializes writes across all of them (spec section 5: "writes go through
// a single storage actor per column family").
type writeJob struct {
	run    func() error
	result chan error
}

// StorageWriter is the single actor permitted to call Persist on any of
// core/store's Cache instances, so concurrent actors never race on the
// same on-disk column family.
type StorageWriter struct {
	inbox chan writeJob
	log   *logrus.Entry
}

// NewStorageWriter builds a StorageWriter actor.
func NewStorageWriter(log *logrus.Entry) *StorageWriter {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &StorageWriter{
		inbox: make(chan writeJob, storageWriterMailboxSize),
		log:   log.WithField("actor", "storage-writer"),
	}
}

// Write submits a persistence job and blocks until it runs (or ctx is
// cancelled). Callers pass e.g. `ws.Persist` or `logs.Persist` as run.
func (w *StorageWriter) Write(ctx context.Context, run func() error) error {
	job := writeJob{run: run, result: make(chan error, 1)}
	select {
	case w.inbox <- job:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-job.result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run drains the mailbox until ctx is cancelled, executing each write job
// in submission order.
func (w *StorageWriter) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case job := <-w.inbox:
			err := job.run()
			if err != nil {
				w.log.WithError(err).Warn("storage write failed")
			}
			job.result <- err
		}
	}
}

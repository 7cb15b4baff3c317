package actor

import (
	"context"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Supervisor starts the node's long-lived actors together and propagates
// the first fatal error, grounded on the teacher pack's worker-group
// pattern (one errgroup.Group, one group.Go per loop, cancellation shared
// via the group's derived context).
type Supervisor struct {
	BlockAcceptor *BlockAcceptor
	Mempool       *Mempool
	StorageWriter *StorageWriter
	MinerAPI      *MinerAPI

	log *logrus.Entry
}

// NewSupervisor wires the four actors together. Any of them may be nil if
// this process doesn't run that role (e.g. a read-only RPC node with no
// MinerAPI).
func NewSupervisor(acceptor *BlockAcceptor, mempool *Mempool, writer *StorageWriter, miner *MinerAPI, log *logrus.Entry) *Supervisor {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Supervisor{
		BlockAcceptor: acceptor,
		Mempool:       mempool,
		StorageWriter: writer,
		MinerAPI:      miner,
		log:           log.WithField("component", "supervisor"),
	}
}

// Run starts every configured actor's loop under one errgroup.Group and a
// shared cancellable context, and blocks until ctx is cancelled or one
// actor returns an error (which cancels the rest). It also wires Mempool
// to prune transactions out of newly-applied blocks.
func (s *Supervisor) Run(ctx context.Context) error {
	group, groupCtx := errgroup.WithContext(ctx)

	if s.BlockAcceptor != nil {
		group.Go(func() error {
			return s.BlockAcceptor.Run(groupCtx)
		})

		if s.Mempool != nil {
			blocks, cancel := s.BlockAcceptor.Subscribe(32)
			group.Go(func() error {
				defer cancel()
				for {
					select {
					case <-groupCtx.Done():
						return nil
					case block, ok := <-blocks:
						if !ok {
							return nil
						}
						s.Mempool.Remove(block)
					}
				}
			})
		}
	}

	if s.Mempool != nil {
		group.Go(func() error {
			return s.Mempool.Run(groupCtx)
		})
	}

	if s.StorageWriter != nil {
		group.Go(func() error {
			return s.StorageWriter.Run(groupCtx)
		})
	}

	if s.MinerAPI != nil {
		group.Go(func() error {
			return s.MinerAPI.Run(groupCtx)
		})
	}

	s.log.Info("actors started")
	err := group.Wait()
	s.log.WithError(err).Info("actors stopped")
	return err
}

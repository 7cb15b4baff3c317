package actor

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/shardflow/flownode/core/blockflow"
	"github.com/shardflow/flownode/core/chain"
)

// minerAPIMailboxSize bounds queued block-template requests; one per
// connected miner is the expected load, so this stays small.
const minerAPIMailboxSize = 64

// workRequest asks for a fresh BlockTemplate for a chain index.
type workRequest struct {
	chainIdx          chain.ChainIndex
	minerLockupScript []byte
	result            chan workResponse
}

type workResponse struct {
	template blockflow.BlockTemplate
	err      error
}

// MinerAPI is the actor a mining loop polls for work and reports solved
// blocks to (spec section 6's out-of-scope miner-api port, reduced to the
// in-process interface the core exposes to it). Building a template reads
// the mempool snapshot and BlockFlow's current tips, both of which are
// single-owner resources, so template assembly is serialized through this
// actor's own mailbox rather than called directly from arbitrary miner
// goroutines.
type MinerAPI struct {
	bf       *blockflow.BlockFlow
	mempool  *Mempool
	acceptor *BlockAcceptor
	gasLimit uint64
	reward   RewardSchedule

	inbox chan workRequest
	log   *logrus.Entry
}

// NewMinerAPI builds a MinerAPI actor.
func NewMinerAPI(bf *blockflow.BlockFlow, mempool *Mempool, acceptor *BlockAcceptor, gasLimit uint64, reward RewardSchedule, log *logrus.Entry) *MinerAPI {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &MinerAPI{
		bf:       bf,
		mempool:  mempool,
		acceptor: acceptor,
		gasLimit: gasLimit,
		reward:   reward,
		inbox:    make(chan workRequest, minerAPIMailboxSize),
		log:      log.WithField("actor", "miner-api"),
	}
}

// GetWork requests a block template for chainIdx, paying minerLockupScript.
func (a *MinerAPI) GetWork(ctx context.Context, chainIdx chain.ChainIndex, minerLockupScript []byte) (blockflow.BlockTemplate, error) {
	req := workRequest{chainIdx: chainIdx, minerLockupScript: minerLockupScript, result: make(chan workResponse, 1)}
	select {
	case a.inbox <- req:
	case <-ctx.Done():
		return blockflow.BlockTemplate{}, ctx.Err()
	}
	select {
	case resp := <-req.result:
		return resp.template, resp.err
	case <-ctx.Done():
		return blockflow.BlockTemplate{}, ctx.Err()
	}
}

// SubmitWork hands a mined block to the block acceptor for validation and
// application, the same path any other inbound block takes.
func (a *MinerAPI) SubmitWork(block chain.Block) bool {
	return a.acceptor.Submit(block)
}

// Run drains the work-request mailbox until ctx is cancelled.
func (a *MinerAPI) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case req := <-a.inbox:
			height := uint64(0)
			if tip, ok := a.bf.GetBestTip(req.chainIdx); ok {
				height = a.bf.Tree(req.chainIdx).GetHeight(tip) + 1
			}
			tmpl, err := a.bf.PrepareBlockFlowUnsafe(
				req.chainIdx, req.minerLockupScript, a.mempool.Snapshot(), a.gasLimit, a.reward.AmountAt(height),
			)
			if err != nil {
				a.log.WithError(err).Warn("failed to prepare block template")
			}
			req.result <- workResponse{template: tmpl, err: err}
		}
	}
}

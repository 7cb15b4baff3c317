package actor

import (
	"context"
	"errors"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/shardflow/flownode/core/chain"
	"github.com/shardflow/flownode/core/primitives"
	"github.com/shardflow/flownode/core/validation"
)

// errCoinbaseNotSubmittable is returned when a caller tries to submit a
// coinbase transaction directly: coinbases are only ever produced inside a
// block template (spec section 4.4), never accepted from the RPC surface.
var errCoinbaseNotSubmittable = errors.New("mempool: coinbase transactions cannot be submitted")

// mempoolMailboxSize bounds the number of submitted-but-not-yet-validated
// transactions queued for the mempool actor.
const mempoolMailboxSize = 4096

// mempoolSubmission pairs a transaction with the channel its submitter
// waits on for the accept/reject verdict (spec section 6: submitTx "fails
// InvalidTx if validation rejects").
type mempoolSubmission struct {
	tx     chain.Transaction
	result chan error
}

// Mempool is the actor owning the column family of not-yet-confirmed
// transactions (spec section 6, "mempool: txHash->tx"). It validates each
// submission against the UTXO view before admitting it, and removes
// transactions a newly-applied block has spent.
type Mempool struct {
	view     validation.UTXOView
	verifier validation.ScriptVerifier
	executor validation.ScriptExecutor

	inbox chan mempoolSubmission
	log   *logrus.Entry

	mu  sync.RWMutex
	txs map[primitives.Hash]chain.Transaction
}

// NewMempool builds a Mempool actor.
func NewMempool(view validation.UTXOView, verifier validation.ScriptVerifier, executor validation.ScriptExecutor, log *logrus.Entry) *Mempool {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Mempool{
		view:     view,
		verifier: verifier,
		executor: executor,
		inbox:    make(chan mempoolSubmission, mempoolMailboxSize),
		log:      log.WithField("actor", "mempool"),
		txs:      make(map[primitives.Hash]chain.Transaction),
	}
}

// Submit enqueues tx for validation and blocks until a verdict is produced
// or ctx is cancelled (spec section 6's submitTx is a synchronous RPC over
// the mempool actor's mailbox).
func (m *Mempool) Submit(ctx context.Context, tx chain.Transaction) error {
	sub := mempoolSubmission{tx: tx, result: make(chan error, 1)}
	select {
	case m.inbox <- sub:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-sub.result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Get looks up a pooled transaction by hash (spec section 6's getTxStatus
// MemPooled case).
func (m *Mempool) Get(hash primitives.Hash) (chain.Transaction, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	tx, ok := m.txs[hash]
	return tx, ok
}

// Snapshot returns every pooled transaction, for block-template assembly
// (core/blockflow.PrepareBlockFlowUnsafe's mempool argument).
func (m *Mempool) Snapshot() []chain.Transaction {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]chain.Transaction, 0, len(m.txs))
	for _, tx := range m.txs {
		out = append(out, tx)
	}
	return out
}

// Remove evicts transactions a newly-applied block has included, so the
// mempool doesn't keep offering already-confirmed work to the miner. Call
// this from a subscriber of BlockAcceptor.Subscribe.
func (m *Mempool) Remove(block chain.Block) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, tx := range block.Transactions {
		delete(m.txs, tx.Hash())
	}
}

// Run drains the mailbox until ctx is cancelled, validating and admitting
// each submission in turn (single-threaded mutation per spec section 5).
func (m *Mempool) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case sub := <-m.inbox:
			sub.result <- m.admit(sub.tx)
		}
	}
}

func (m *Mempool) admit(tx chain.Transaction) error {
	if tx.IsCoinbase() {
		return errCoinbaseNotSubmittable
	}
	if err := validation.ValidateTransaction(tx, m.view, m.verifier, m.executor); err != nil {
		m.log.WithError(err).WithField("hash", tx.Hash()).Debug("rejecting invalid transaction")
		return err
	}
	m.mu.Lock()
	m.txs[tx.Hash()] = tx
	m.mu.Unlock()
	return nil
}

// Package submissionQueue serializes every transaction sent from the treasury
// account so that nonces are assigned in submission order.
package submissionQueue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Layr-Labs/eigenx-treasury-go/pkg/transactionSigner"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var ErrQueueClosed = errors.New("submission queue is closed")

// sendTimeout bounds signing and broadcasting once a submission has been claimed
// by the worker. Past that point the caller's context no longer applies.
const sendTimeout = 30 * time.Second

const (
	submissionPending int32 = iota
	submissionClaimed
	submissionAbandoned
)

// Backend is the part of the chain client the queue needs. *ethclient.Client satisfies it.
type Backend interface {
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
}

type Config struct {
	// MaxPerSecond caps how fast transactions leave the treasury account. Zero disables the cap.
	MaxPerSecond float64
	Burst        int
	Capacity     int
}

func DefaultConfig() *Config {
	return &Config{
		MaxPerSecond: 5,
		Burst:        1,
		Capacity:     64,
	}
}

type submission struct {
	ctx    context.Context
	label  string
	tx     *types.Transaction
	result chan submissionResult
	state  atomic.Int32
}

// claim marks the submission as owned by the worker. It fails if the caller already gave up.
func (s *submission) claim() bool {
	return s.state.CompareAndSwap(submissionPending, submissionClaimed)
}

// abandon withdraws the submission. It fails once the worker has claimed it.
func (s *submission) abandon() bool {
	return s.state.CompareAndSwap(submissionPending, submissionAbandoned)
}

type submissionResult struct {
	tx  *types.Transaction
	err error
}

// SubmissionQueue runs a single worker that assigns nonces, signs and
// broadcasts. Confirmation is left to the caller.
type SubmissionQueue struct {
	signer  transactionSigner.ITransactionSigner
	backend Backend
	limiter *rate.Limiter
	logger  *zap.Logger

	submissions chan *submission
	depth       atomic.Int64

	// owned by the worker
	nextNonce  uint64
	nonceKnown bool

	closeOnce sync.Once
	closed    chan struct{}
	done      chan struct{}
}

func NewSubmissionQueue(cfg *Config, signer transactionSigner.ITransactionSigner, backend Backend, logger *zap.Logger) *SubmissionQueue {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	limit := rate.Inf
	if cfg.MaxPerSecond > 0 {
		limit = rate.Limit(cfg.MaxPerSecond)
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}

	q := &SubmissionQueue{
		signer:      signer,
		backend:     backend,
		limiter:     rate.NewLimiter(limit, burst),
		logger:      logger,
		submissions: make(chan *submission, cfg.Capacity),
		closed:      make(chan struct{}),
		done:        make(chan struct{}),
	}
	go q.run()
	return q
}

// Submit queues tx, which must be unsigned, and blocks until it has been
// signed and accepted by the node. The signed transaction is returned.
//
// If ctx ends while tx is still waiting, Submit returns ctx.Err() and tx is
// never signed. Once the worker has started signing, Submit waits for the
// broadcast to finish and returns its result even if ctx has ended, so a sent
// transaction is never reported as unsent.
func (q *SubmissionQueue) Submit(ctx context.Context, label string, tx *types.Transaction) (*types.Transaction, error) {
	s := &submission{
		ctx:    ctx,
		label:  label,
		tx:     tx,
		result: make(chan submissionResult, 1),
	}

	select {
	case <-q.closed:
		return nil, ErrQueueClosed
	default:
	}

	q.depth.Add(1)
	select {
	case q.submissions <- s:
	case <-q.closed:
		q.depth.Add(-1)
		return nil, ErrQueueClosed
	case <-ctx.Done():
		q.depth.Add(-1)
		return nil, ctx.Err()
	}

	select {
	case res := <-s.result:
		return res.tx, res.err
	case <-ctx.Done():
		if s.abandon() {
			return nil, ctx.Err()
		}
		res := <-s.result
		return res.tx, res.err
	}
}

// Depth is the number of submissions waiting or in flight.
func (q *SubmissionQueue) Depth() int {
	return int(q.depth.Load())
}

func (q *SubmissionQueue) FromAddress() common.Address {
	return q.signer.GetFromAddress()
}

// Close stops accepting submissions and waits for the worker to drain.
func (q *SubmissionQueue) Close() {
	q.closeOnce.Do(func() {
		close(q.closed)
	})
	<-q.done
}

func (q *SubmissionQueue) run() {
	defer close(q.done)
	for {
		select {
		case s := <-q.submissions:
			q.handle(s)
		case <-q.closed:
			for {
				select {
				case s := <-q.submissions:
					q.handle(s)
				default:
					return
				}
			}
		}
	}
}

func (q *SubmissionQueue) handle(s *submission) {
	defer q.depth.Add(-1)
	tx, err := q.send(s)
	s.result <- submissionResult{tx: tx, err: err}
}

func (q *SubmissionQueue) send(s *submission) (*types.Transaction, error) {
	if err := s.ctx.Err(); err != nil {
		return nil, err
	}
	if err := q.limiter.Wait(s.ctx); err != nil {
		return nil, err
	}

	from := q.signer.GetFromAddress()
	if !q.nonceKnown {
		nonce, err := q.backend.PendingNonceAt(s.ctx, from)
		if err != nil {
			return nil, fmt.Errorf("failed to get pending nonce for %s: %w", from.Hex(), err)
		}
		q.nextNonce = nonce
		q.nonceKnown = true
	}

	if !s.claim() {
		return nil, context.Canceled
	}
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(s.ctx), sendTimeout)
	defer cancel()

	signed, err := q.signer.SignTransaction(sendCtx, s.tx, q.nextNonce)
	if err != nil {
		return nil, err
	}

	if err := q.backend.SendTransaction(sendCtx, signed); err != nil {
		// the node may or may not have seen the nonce; ask again next time
		q.nonceKnown = false
		q.logger.Sugar().Errorw("Failed to send transaction",
			"label", s.label,
			"nonce", q.nextNonce,
			"error", err,
		)
		return nil, fmt.Errorf("failed to send transaction: %w", err)
	}

	q.logger.Sugar().Infow("Transaction sent",
		"label", s.label,
		"txHash", signed.Hash().Hex(),
		"nonce", q.nextNonce,
	)
	q.nextNonce++
	return signed, nil
}

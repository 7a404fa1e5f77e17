package state

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/energyvm/energy-edge/types"
)

var ErrReceiptCheck = errors.New("local result differs from the recorded result")

// outOfTimeRetryInterval is the pause between two relaxed re-executions
const outOfTimeRetryInterval = time.Millisecond

// ApplyBlock applies txs in order and commits the resulting state once the
// block is closed. While producing, invalid transactions are left out of
// the block; while validating they fail it.
func (e *Executor) ApplyBlock(
	ctx context.Context,
	block *BlockContext,
	txs []*types.Transaction,
) ([]*types.Receipt, error) {
	txn := e.NewTxn()
	receipts := make([]*types.Receipt, 0, len(txs))

	for _, tx := range txs {
		receipt, err := e.applyChecked(ctx, txn, block, tx)
		if err != nil {
			if block.Validating || errors.Is(err, ErrReceiptCheck) {
				return nil, fmt.Errorf("block %d, tx %s: %w", block.Number, tx.Hash, err)
			}

			e.logger.Debug("dropping invalid transaction", "hash", tx.Hash, "err", err)

			continue
		}

		receipts = append(receipts, receipt)
	}

	e.EndBlock(txn, block)

	if err := txn.Flush(); err != nil {
		return nil, fmt.Errorf("failed to commit block %d: %w", block.Number, err)
	}

	return receipts, nil
}

// applyChecked applies tx and, when validating, compares the outcome with
// the result the producer recorded. A local out-of-time result that the
// producer did not see is re-executed with a relaxed time budget.
func (e *Executor) applyChecked(
	ctx context.Context,
	txn *Txn,
	block *BlockContext,
	tx *types.Transaction,
) (*types.Receipt, error) {
	if !block.Validating || tx.RecordedResult == types.ResultDefault {
		return e.Apply(txn, block, tx)
	}

	var (
		receipt *types.Receipt
		attempt int
	)

	backoff := retry.WithMaxRetries(e.params.OutOfTimeRetries, retry.NewConstant(outOfTimeRetryInterval))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		view := txn.Checkpoint()

		t := e.newTransition(view, block, tx)
		if attempt > 0 {
			t.ratio = e.params.MaxTimeRatio * float64(attempt+1)
		}

		attempt++

		r, err := e.apply(t)
		if err != nil {
			return err
		}

		switch {
		case r.Result == tx.RecordedResult:
			view.Commit()

			receipt = r

			return nil

		case r.Result == types.ResultOutOfTime:
			e.logger.Warn(
				"re-executing transaction that ran out of time",
				"hash", tx.Hash,
				"recorded", tx.RecordedResult,
				"attempt", attempt,
			)

			return retry.RetryableError(fmt.Errorf("%w: got %s, recorded %s", ErrReceiptCheck, r.Result, tx.RecordedResult))

		default:
			return fmt.Errorf("%w: got %s, recorded %s", ErrReceiptCheck, r.Result, tx.RecordedResult)
		}
	})
	if err != nil {
		return nil, err
	}

	return receipt, nil
}

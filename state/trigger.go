package state

import (
	"sync"

	"github.com/hashicorp/go-multierror"

	"github.com/energyvm/energy-edge/types"
)

// ContractTrigger is a log emitted by a successful transaction, handed to
// the registered sinks after the transaction is finalized
type ContractTrigger struct {
	TxHash      types.Hash
	BlockNumber int64
	Timestamp   int64
	Index       int
	Log         *types.Log
}

// TriggerSink receives the contract event triggers
type TriggerSink interface {
	Trigger(trigger *ContractTrigger) error
}

// TriggerFunc adapts a function to a TriggerSink
type TriggerFunc func(trigger *ContractTrigger) error

func (f TriggerFunc) Trigger(trigger *ContractTrigger) error {
	return f(trigger)
}

type triggers struct {
	lock  sync.RWMutex
	sinks []TriggerSink
}

func (t *triggers) add(sink TriggerSink) {
	t.lock.Lock()
	defer t.lock.Unlock()

	t.sinks = append(t.sinks, sink)
}

// emit hands every log to every sink. A failing sink does not stop the others.
func (t *triggers) emit(txHash types.Hash, block *BlockContext, logs []*types.Log) error {
	t.lock.RLock()
	defer t.lock.RUnlock()

	var result *multierror.Error

	for i, log := range logs {
		trigger := &ContractTrigger{
			TxHash:      txHash,
			BlockNumber: block.Number,
			Timestamp:   block.Timestamp,
			Index:       i,
			Log:         log,
		}

		for _, sink := range t.sinks {
			if err := sink.Trigger(trigger); err != nil {
				result = multierror.Append(result, err)
			}
		}
	}

	return result.ErrorOrNil()
}

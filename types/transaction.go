package types

import (
	"fmt"

	"github.com/energyvm/energy-edge/helper/keccak"
	"github.com/umbracle/fastrlp"
)

type TxType byte

const (
	CreateContractTx TxType = iota + 1
	TriggerContractTx
)

func (t TxType) String() string {
	switch t {
	case CreateContractTx:
		return "CreateSmartContract"
	case TriggerContractTx:
		return "TriggerSmartContract"
	default:
		return fmt.Sprintf("TxType(%d)", byte(t))
	}
}

// NewContract carries the deployment parameters of a CreateContractTx
type NewContract struct {
	Name                       string
	ConsumeUserResourcePercent int64
	OriginEnergyLimit          int64
}

type Transaction struct {
	Type TxType

	Owner           Address
	ContractAddress Address
	Data            []byte

	CallValue  int64
	TokenID    int64
	TokenValue int64
	FeeLimit   int64
	Timestamp  int64

	NewContract *NewContract

	// RecordedResult is the result the block producer recorded for this
	// transaction, or ResultDefault when executing a loose transaction
	RecordedResult ResultCode

	Hash Hash
}

func (t *Transaction) IsCreate() bool {
	return t.Type == CreateContractTx
}

// ComputeHash hashes the consensus fields of the transaction
func (t *Transaction) ComputeHash() *Transaction {
	ar := fastrlp.DefaultArenaPool.Get()
	copy(t.Hash[:], keccak.Keccak256Rlp(nil, t.marshalRLPWith(ar)))
	fastrlp.DefaultArenaPool.Put(ar)

	return t
}

func (t *Transaction) Copy() *Transaction {
	tt := new(Transaction)
	*tt = *t

	tt.Data = append([]byte(nil), t.Data...)

	if t.NewContract != nil {
		nc := *t.NewContract
		tt.NewContract = &nc
	}

	return tt
}

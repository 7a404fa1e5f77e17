package state

import (
	"errors"
	"fmt"
	"math"

	iradix "github.com/hashicorp/go-immutable-radix"

	"github.com/energyvm/energy-edge/state/runtime"
	"github.com/energyvm/energy-edge/types"
)

var (
	ErrBalanceOverflow     = errors.New("balance overflow")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrNotRootTxn          = errors.New("only the root txn can be flushed")
)

// tags of the records kept in the radix tree
const (
	tagAccount   = 'a'
	tagContract  = 'c'
	tagCode      = 'k'
	tagStorage   = 's'
	tagTombstone = 'x'
)

var propertiesTreeKey = []byte{'p'}

func treeKey(tag byte, addr types.Address) []byte {
	k := make([]byte, 1+types.AddressLength)
	k[0] = tag
	copy(k[1:], addr[:])

	return k
}

func slotTreeKey(addr types.Address, slot types.Hash) []byte {
	return append(treeKey(tagStorage, addr), slot[:]...)
}

// Txn is a copy-on-write view over the committed State. Checkpoints fork a
// child Txn from a snapshot of the radix tree; Commit hands the child tree
// back to the parent and Discard simply drops it.
type Txn struct {
	state  *State
	parent *Txn
	txn    *iradix.Txn

	// err is the first storage failure met while reading through the view
	err *error
}

// NewTxn creates a root view over state
func NewTxn(state *State) *Txn {
	return &Txn{
		state: state,
		txn:   iradix.New().Txn(),
		err:   new(error),
	}
}

// Err returns the first storage error met by the view or any of its checkpoints
func (t *Txn) Err() error {
	return *t.err
}

func (t *Txn) setErr(err error) {
	if err != nil && *t.err == nil {
		*t.err = err
	}
}

func (t *Txn) deleted(addr types.Address) bool {
	_, ok := t.txn.Get(treeKey(tagTombstone, addr))

	return ok
}

func (t *Txn) getAccount(addr types.Address) *types.Account {
	if v, ok := t.txn.Get(treeKey(tagAccount, addr)); ok {
		return v.(*types.Account) //nolint:forcetypeassert
	}

	if t.deleted(addr) {
		return nil
	}

	account, err := t.state.Account(addr)
	t.setErr(err)

	return account
}

func (t *Txn) AccountExists(addr types.Address) bool {
	return t.getAccount(addr) != nil
}

// GetAccount returns a copy of the account at addr, nil if there is none
func (t *Txn) GetAccount(addr types.Address) *types.Account {
	if a := t.getAccount(addr); a != nil {
		return a.Copy()
	}

	return nil
}

func (t *Txn) PutAccount(addr types.Address, account *types.Account) {
	t.txn.Insert(treeKey(tagAccount, addr), account.Copy())
}

func (t *Txn) CreateAccount(addr types.Address, accountType types.AccountType) {
	t.txn.Insert(treeKey(tagAccount, addr), &types.Account{Type: accountType})
}

// DeleteAccount removes the account together with its code, contract
// record and storage
func (t *Txn) DeleteAccount(addr types.Address) {
	for _, tag := range []byte{tagAccount, tagContract, tagCode, tagStorage} {
		t.txn.DeletePrefix(treeKey(tag, addr))
	}

	t.txn.Insert(treeKey(tagTombstone, addr), true)
}

func (t *Txn) GetBalance(addr types.Address) int64 {
	if a := t.getAccount(addr); a != nil {
		return a.Balance
	}

	return 0
}

func addChecked(current, delta int64) (int64, error) {
	if delta > 0 && current > math.MaxInt64-delta {
		return 0, ErrBalanceOverflow
	}

	if current+delta < 0 {
		return 0, fmt.Errorf("%w: have %d, want %d", ErrInsufficientBalance, current, -delta)
	}

	return current + delta, nil
}

// AddBalance adds delta, possibly negative, to the balance of addr. A missing
// account is created by a credit.
func (t *Txn) AddBalance(addr types.Address, delta int64) error {
	account := t.GetAccount(addr)
	if account == nil {
		account = &types.Account{Type: types.AccountTypeNormal}
	}

	balance, err := addChecked(account.Balance, delta)
	if err != nil {
		return err
	}

	account.Balance = balance
	t.txn.Insert(treeKey(tagAccount, addr), account)

	return nil
}

func (t *Txn) GetTokenBalance(addr types.Address, tokenID int64) int64 {
	if a := t.getAccount(addr); a != nil {
		return a.AssetBalance(tokenID)
	}

	return 0
}

func (t *Txn) AddTokenBalance(addr types.Address, tokenID int64, delta int64) error {
	account := t.GetAccount(addr)
	if account == nil {
		account = &types.Account{Type: types.AccountTypeNormal}
	}

	balance, err := addChecked(account.AssetBalance(tokenID), delta)
	if err != nil {
		return fmt.Errorf("token %d: %w", tokenID, err)
	}

	account.SetAssetBalance(tokenID, balance)
	t.txn.Insert(treeKey(tagAccount, addr), account)

	return nil
}

func (t *Txn) GetCode(addr types.Address) []byte {
	if v, ok := t.txn.Get(treeKey(tagCode, addr)); ok {
		return v.([]byte) //nolint:forcetypeassert
	}

	if t.deleted(addr) {
		return nil
	}

	code, err := t.state.Code(addr)
	t.setErr(err)

	return code
}

func (t *Txn) SaveCode(addr types.Address, code []byte) {
	t.txn.Insert(treeKey(tagCode, addr), append([]byte{}, code...))
}

func (t *Txn) GetContract(addr types.Address) *types.Contract {
	if v, ok := t.txn.Get(treeKey(tagContract, addr)); ok {
		return v.(*types.Contract).Copy() //nolint:forcetypeassert
	}

	if t.deleted(addr) {
		return nil
	}

	contract, err := t.state.Contract(addr)
	t.setErr(err)

	if contract == nil {
		return nil
	}

	return contract.Copy()
}

func (t *Txn) CreateContract(contract *types.Contract) {
	t.txn.Insert(treeKey(tagContract, contract.Address), contract.Copy())
}

func (t *Txn) GetStorage(addr types.Address, key types.Hash) types.Hash {
	if v, ok := t.txn.Get(slotTreeKey(addr, key)); ok {
		return v.(types.Hash) //nolint:forcetypeassert
	}

	if t.deleted(addr) {
		return types.ZeroHash
	}

	value, err := t.state.Storage(addr, key)
	t.setErr(err)

	return value
}

func (t *Txn) PutStorage(addr types.Address, key types.Hash, value types.Hash) {
	t.txn.Insert(slotTreeKey(addr, key), value)
}

func (t *Txn) GetDynamicProperties() *types.DynamicProperties {
	if v, ok := t.txn.Get(propertiesTreeKey); ok {
		return v.(*types.DynamicProperties).Copy() //nolint:forcetypeassert
	}

	props, err := t.state.DynamicProperties()
	if err != nil {
		t.setErr(err)

		return &types.DynamicProperties{}
	}

	return props.Copy()
}

func (t *Txn) PutDynamicProperties(props *types.DynamicProperties) {
	t.txn.Insert(propertiesTreeKey, props.Copy())
}

// NewCheckpoint forks a child view. The parent must not be written while
// the child is alive.
func (t *Txn) NewCheckpoint() runtime.StateView {
	return t.Checkpoint()
}

func (t *Txn) Checkpoint() *Txn {
	return &Txn{
		state:  t.state,
		parent: t,
		txn:    t.txn.CommitOnly().Txn(),
		err:    t.err,
	}
}

// Commit merges the checkpoint into the view it was forked from
func (t *Txn) Commit() {
	if t.parent == nil {
		return
	}

	t.parent.txn = t.txn.CommitOnly().Txn()
}

// Discard drops the checkpoint
func (t *Txn) Discard() {}

// Flush writes every change of a root view to the storage in one batch and
// resets the view
func (t *Txn) Flush() error {
	if t.parent != nil {
		return ErrNotRootTxn
	}

	if err := t.Err(); err != nil {
		return err
	}

	tree := t.txn.CommitOnly()
	batch := t.state.storage.Batch()

	var evicted [][]byte

	del := func(k []byte) {
		batch.Delete(k)
		evicted = append(evicted, k)
	}

	// tombstones first, puts of recreated accounts come after
	var flushErr error

	tree.Root().WalkPrefix([]byte{tagTombstone}, func(k []byte, _ interface{}) bool {
		addr := types.BytesToAddress(k[1:])

		del(accountKey(addr))
		del(contractKey(addr))
		del(codeKey(addr))

		keys, err := t.state.storageKeys(addr)
		if err != nil {
			flushErr = err

			return true
		}

		for _, key := range keys {
			del(key)
		}

		return false
	})

	if flushErr != nil {
		return flushErr
	}

	tree.Root().Walk(func(k []byte, v interface{}) bool {
		switch k[0] {
		case tagAccount:
			key := accountKey(types.BytesToAddress(k[1:]))
			batch.Put(key, v.(*types.Account).MarshalRLPTo(nil)) //nolint:forcetypeassert
			evicted = append(evicted, key)

		case tagContract:
			key := contractKey(types.BytesToAddress(k[1:]))
			batch.Put(key, v.(*types.Contract).MarshalRLPTo(nil)) //nolint:forcetypeassert
			evicted = append(evicted, key)

		case tagCode:
			batch.Put(codeKey(types.BytesToAddress(k[1:])), v.([]byte)) //nolint:forcetypeassert

		case tagStorage:
			addr := types.BytesToAddress(k[1 : 1+types.AddressLength])
			slot := types.BytesToHash(k[1+types.AddressLength:])

			if value := v.(types.Hash); value == types.ZeroHash { //nolint:forcetypeassert
				batch.Delete(storageKey(addr, slot))
			} else {
				batch.Put(storageKey(addr, slot), value[:])
			}

		case 'p':
			batch.Put(propertiesKey, v.(*types.DynamicProperties).MarshalRLPTo(nil)) //nolint:forcetypeassert
			evicted = append(evicted, propertiesKey)
		}

		return false
	})

	if err := batch.Write(); err != nil {
		return fmt.Errorf("failed to write state batch: %w", err)
	}

	for _, k := range evicted {
		t.state.evict(k)
	}

	t.txn = iradix.New().Txn()

	return nil
}

package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/energyvm/energy-edge/types"
)

var (
	addr1 = types.StringToAddress("1")
	addr2 = types.StringToAddress("2")

	hash1 = types.StringToHash("1")
	hash2 = types.StringToHash("2")
)

func newTestTxn(t *testing.T) *Txn {
	t.Helper()

	return NewTxn(NewState(NewMemoryStorage()))
}

func TestTxn_CheckpointCommit(t *testing.T) {
	t.Parallel()

	txn := newTestTxn(t)
	txn.PutStorage(addr1, hash1, hash1)

	cp := txn.Checkpoint()
	cp.PutStorage(addr1, hash1, hash2)
	require.NoError(t, cp.AddBalance(addr1, 10))

	// the parent does not see the checkpoint until it commits
	assert.Equal(t, hash1, txn.GetStorage(addr1, hash1))
	assert.Zero(t, txn.GetBalance(addr1))

	cp.Commit()

	assert.Equal(t, hash2, txn.GetStorage(addr1, hash1))
	assert.Equal(t, int64(10), txn.GetBalance(addr1))
}

func TestTxn_CheckpointDiscard(t *testing.T) {
	t.Parallel()

	txn := newTestTxn(t)
	txn.PutStorage(addr1, hash1, hash1)

	cp := txn.Checkpoint()
	cp.PutStorage(addr1, hash1, hash2)
	cp.DeleteAccount(addr1)
	cp.Discard()

	assert.Equal(t, hash1, txn.GetStorage(addr1, hash1))
}

func TestTxn_NestedCheckpoints(t *testing.T) {
	t.Parallel()

	txn := newTestTxn(t)

	outer := txn.Checkpoint()
	require.NoError(t, outer.AddBalance(addr1, 5))

	inner := outer.NewCheckpoint()
	require.NoError(t, inner.AddBalance(addr1, 7))
	inner.Discard()

	inner = outer.NewCheckpoint()
	require.NoError(t, inner.AddBalance(addr2, 3))
	inner.Commit()

	outer.Commit()

	assert.Equal(t, int64(5), txn.GetBalance(addr1))
	assert.Equal(t, int64(3), txn.GetBalance(addr2))
}

func TestTxn_Balances(t *testing.T) {
	t.Parallel()

	txn := newTestTxn(t)

	// a credit creates the account
	require.NoError(t, txn.AddBalance(addr1, 100))
	require.True(t, txn.AccountExists(addr1))
	assert.Equal(t, types.AccountTypeNormal, txn.GetAccount(addr1).Type)

	assert.ErrorIs(t, txn.AddBalance(addr1, -101), ErrInsufficientBalance)
	assert.Equal(t, int64(100), txn.GetBalance(addr1))

	require.NoError(t, txn.AddBalance(addr2, 1<<62))
	assert.ErrorIs(t, txn.AddBalance(addr2, 1<<62), ErrBalanceOverflow)

	require.NoError(t, txn.AddTokenBalance(addr1, 1_000_001, 9))
	assert.ErrorIs(t, txn.AddTokenBalance(addr1, 1_000_001, -10), ErrInsufficientBalance)
	assert.Equal(t, int64(9), txn.GetTokenBalance(addr1, 1_000_001))
	assert.Zero(t, txn.GetTokenBalance(addr1, 1_000_002))
}

func TestTxn_ReadsAreCopies(t *testing.T) {
	t.Parallel()

	txn := newTestTxn(t)
	txn.PutAccount(addr1, &types.Account{Balance: 1})
	txn.CreateContract(&types.Contract{Address: addr1, ConsumeUserResourcePercent: 10})

	account := txn.GetAccount(addr1)
	account.Balance = 2

	contract := txn.GetContract(addr1)
	contract.ConsumeUserResourcePercent = 20

	props := txn.GetDynamicProperties()
	props.TotalEnergyWeight = 3

	assert.Equal(t, int64(1), txn.GetBalance(addr1))
	assert.Equal(t, int64(10), txn.GetContract(addr1).ConsumeUserResourcePercent)
	assert.Zero(t, txn.GetDynamicProperties().TotalEnergyWeight)
}

func TestTxn_DeleteAccount(t *testing.T) {
	t.Parallel()

	state := NewState(NewMemoryStorage())

	txn := NewTxn(state)
	require.NoError(t, txn.AddBalance(addr1, 10))
	txn.SaveCode(addr1, []byte{0x1})
	txn.CreateContract(&types.Contract{Address: addr1})
	txn.PutStorage(addr1, hash1, hash2)
	txn.PutStorage(addr2, hash1, hash2)
	require.NoError(t, txn.Flush())

	txn = NewTxn(state)
	txn.DeleteAccount(addr1)

	assert.False(t, txn.AccountExists(addr1))
	assert.Nil(t, txn.GetCode(addr1))
	assert.Nil(t, txn.GetContract(addr1))
	assert.Equal(t, types.ZeroHash, txn.GetStorage(addr1, hash1))

	require.NoError(t, txn.Flush())

	keys, err := state.storageKeys(addr1)
	require.NoError(t, err)
	assert.Empty(t, keys)

	txn = NewTxn(state)
	assert.False(t, txn.AccountExists(addr1))
	assert.Equal(t, hash2, txn.GetStorage(addr2, hash1))
}

func TestTxn_Flush(t *testing.T) {
	t.Parallel()

	state := NewState(NewMemoryStorage())

	txn := NewTxn(state)
	txn.PutAccount(addr1, &types.Account{
		Type:              types.AccountTypeContract,
		Balance:           42,
		FrozenForEnergy:   1_000_000,
		EnergyUsage:       7,
		LatestConsumeTime: 3,
		Assets:            map[int64]int64{1_000_001: 5},
	})
	txn.SaveCode(addr1, []byte{0x60, 0x00})
	txn.CreateContract(&types.Contract{Address: addr1, Origin: addr2, Name: "c", ConsumeUserResourcePercent: 30, OriginEnergyLimit: 9})
	txn.PutStorage(addr1, hash1, hash2)
	txn.PutDynamicProperties(&types.DynamicProperties{TotalEnergyWeight: 4, BlockEnergyUsage: 8})

	require.NoError(t, txn.Flush())

	// the flushed view starts over on the committed state
	fresh := NewTxn(state)

	account := fresh.GetAccount(addr1)
	require.NotNil(t, account)
	assert.Equal(t, int64(42), account.Balance)
	assert.Equal(t, int64(5), account.AssetBalance(1_000_001))
	assert.Equal(t, types.AccountTypeContract, account.Type)
	assert.Equal(t, []byte{0x60, 0x00}, fresh.GetCode(addr1))
	assert.Equal(t, addr2, fresh.GetContract(addr1).Origin)
	assert.Equal(t, hash2, fresh.GetStorage(addr1, hash1))
	assert.Equal(t, int64(8), fresh.GetDynamicProperties().BlockEnergyUsage)

	// clearing a slot removes it from the storage
	fresh.PutStorage(addr1, hash1, types.ZeroHash)
	require.NoError(t, fresh.Flush())

	keys, err := state.storageKeys(addr1)
	require.NoError(t, err)
	assert.Empty(t, keys)

	assert.ErrorIs(t, fresh.Checkpoint().Flush(), ErrNotRootTxn)
}

func TestTxn_RecreateAfterDelete(t *testing.T) {
	t.Parallel()

	state := NewState(NewMemoryStorage())

	txn := NewTxn(state)
	txn.PutStorage(addr1, hash1, hash1)
	txn.PutStorage(addr1, hash2, hash2)
	require.NoError(t, txn.AddBalance(addr1, 1))
	require.NoError(t, txn.Flush())

	txn = NewTxn(state)
	txn.DeleteAccount(addr1)
	require.NoError(t, txn.AddBalance(addr1, 5))
	txn.PutStorage(addr1, hash1, hash2)
	require.NoError(t, txn.Flush())

	fresh := NewTxn(state)
	assert.Equal(t, int64(5), fresh.GetBalance(addr1))
	assert.Equal(t, hash2, fresh.GetStorage(addr1, hash1))
	assert.Equal(t, types.ZeroHash, fresh.GetStorage(addr1, hash2))
}

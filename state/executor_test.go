package state

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/energyvm/energy-edge/chain"
	"github.com/energyvm/energy-edge/crypto"
	"github.com/energyvm/energy-edge/helper/hex"
	"github.com/energyvm/energy-edge/state/runtime/tracer/structtracer"
	"github.com/energyvm/energy-edge/timeutils"
	"github.com/energyvm/energy-edge/types"
)

const ownerBalance = int64(10_000_000_000)

var (
	testOwner    = types.StringToAddress("a001")
	testOrigin   = types.StringToAddress("a002")
	testContract = types.StringToAddress("c001")
	testWriter   = types.StringToAddress("c002")
)

// storeInit stores (true, 314159, 0x123456) in slots 0..2 and deploys
// loadRuntime, which returns the three slots
const (
	storeInit   = "600160005562" + "04cb2f" + "60015562" + "123456" + "6002556017601f60003960176000f3"
	loadRuntime = "600054600052600154602052600254604052606060" + "00f3"
)

func testBlock() *BlockContext {
	return &BlockContext{Number: 10, Timestamp: 30_000}
}

func newTestExecutor(t *testing.T, mutate func(p *chain.Params)) *Executor {
	t.Helper()

	params := chain.DefaultParams()
	if mutate != nil {
		mutate(params)
	}

	e := NewExecutor(params, NewState(NewMemoryStorage()), hclog.NewNullLogger())

	txn := e.NewTxn()
	require.NoError(t, txn.AddBalance(testOwner, ownerBalance))
	require.NoError(t, txn.Flush())

	return e
}

// install puts code at addr as a contract created by origin
func install(t *testing.T, e *Executor, addr types.Address, code string, meta *types.Contract) {
	t.Helper()

	if meta == nil {
		meta = &types.Contract{Origin: testOwner, ConsumeUserResourcePercent: 100}
	}

	meta.Address = addr

	txn := e.NewTxn()
	txn.CreateAccount(addr, types.AccountTypeContract)
	txn.SaveCode(addr, hex.MustDecodeHex(code))
	txn.CreateContract(meta)
	require.NoError(t, txn.Flush())
}

func triggerTx(to types.Address, data []byte, feeLimit int64) *types.Transaction {
	return (&types.Transaction{
		Type:            types.TriggerContractTx,
		Owner:           testOwner,
		ContractAddress: to,
		Data:            data,
		FeeLimit:        feeLimit,
	}).ComputeHash()
}

func applyAndFlush(t *testing.T, e *Executor, tx *types.Transaction) *types.Receipt {
	t.Helper()

	txn := e.NewTxn()

	receipt, err := e.Apply(txn, testBlock(), tx)
	require.NoError(t, err)
	require.NoError(t, txn.Flush())

	return receipt
}

func TestExecutor_DeployAndCall(t *testing.T) {
	t.Parallel()

	e := newTestExecutor(t, nil)

	deploy := (&types.Transaction{
		Type:     types.CreateContractTx,
		Owner:    testOwner,
		Data:     hex.MustDecodeHex(storeInit + loadRuntime),
		FeeLimit: 1_000_000_000,
		NewContract: &types.NewContract{
			Name:                       "store",
			ConsumeUserResourcePercent: 100,
			OriginEnergyLimit:          10_000_000,
		},
	}).ComputeHash()

	receipt := applyAndFlush(t, e, deploy)
	require.True(t, receipt.Succeeded(), receipt.ErrorMessage)

	deployed := crypto.DeployAddress(deploy.Hash, testOwner)
	require.NotNil(t, receipt.ContractAddress)
	assert.Equal(t, deployed, *receipt.ContractAddress)

	// constructor plus 23 bytes of runtime code, all burned from balance
	assert.Equal(t, int64(64_642), receipt.EnergyUsageTotal)
	assert.Equal(t, int64(6_464_200), receipt.EnergyFee)
	assert.Zero(t, receipt.EnergyUsage)

	txn := e.NewTxn()
	assert.Equal(t, ownerBalance-6_464_200, txn.GetBalance(testOwner))

	meta := txn.GetContract(deployed)
	require.NotNil(t, meta)
	assert.Equal(t, testOwner, meta.Origin)
	assert.Equal(t, "store", meta.Name)

	expected := make([]byte, 96)
	expected[31] = 0x01
	copy(expected[61:64], []byte{0x04, 0xcb, 0x2f})
	copy(expected[93:96], []byte{0x12, 0x34, 0x56})

	// a constant call is neither billed nor persisted
	res, err := e.Call(txn, testBlock(), triggerTx(deployed, nil, 0))
	require.NoError(t, err)
	assert.Equal(t, expected, res.ReturnValue)
	assert.Equal(t, ownerBalance-6_464_200, txn.GetBalance(testOwner))

	receipt = applyAndFlush(t, e, triggerTx(deployed, nil, 1_000_000))
	require.True(t, receipt.Succeeded())
	assert.Equal(t, expected, receipt.ReturnValue)
	assert.Equal(t, int64(192), receipt.EnergyUsageTotal)
	assert.Equal(t, int64(19_200), receipt.EnergyFee)
}

func TestExecutor_Outcomes(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		code   string
		result types.ResultCode
		used   int64
	}{
		{"success", "600160005500", types.ResultSuccess, 20_006},
		{"revert bills spent energy", "60006000fd", types.ResultRevert, 6},
		{"fault burns the limit", "fe", types.ResultIllegalOperation, 100_000},
		{"out of energy", "5b600056", types.ResultOutOfEnergy, 100_000},
		{"bad jump", "600356", types.ResultBadJumpDestination, 100_000},
		{"stack underflow", "01", types.ResultStackTooSmall, 100_000},
	}

	for _, c := range cases {
		c := c

		t.Run(c.name, func(t *testing.T) {
			t.Parallel()

			e := newTestExecutor(t, nil)
			install(t, e, testContract, c.code, nil)

			// the fee limit buys 100000 energy
			receipt := applyAndFlush(t, e, triggerTx(testContract, nil, 10_000_000))

			assert.Equal(t, c.result, receipt.Result)
			assert.Equal(t, c.used, receipt.EnergyUsageTotal)
			assert.Equal(t, c.used*chain.DefaultEnergyFee, receipt.EnergyFee)
			assert.Equal(t, c.result != types.ResultSuccess, receipt.ErrorMessage != "")

			txn := e.NewTxn()
			assert.Equal(t, ownerBalance-receipt.EnergyFee, txn.GetBalance(testOwner))

			stored := txn.GetStorage(testContract, types.ZeroHash)
			assert.Equal(t, c.result == types.ResultSuccess, stored != types.ZeroHash)
		})
	}
}

func TestExecutor_StaticCallIntoWriter(t *testing.T) {
	t.Parallel()

	e := newTestExecutor(t, nil)
	install(t, e, testWriter, "600160005500", nil)
	install(t, e, testContract,
		"6000600060006000"+"73"+hex.EncodeToString(testWriter[:])+"61ffff"+"fa"+"60005260206000f3", nil)

	receipt := applyAndFlush(t, e, triggerTx(testContract, nil, 10_000_000))
	require.True(t, receipt.Succeeded(), receipt.ErrorMessage)

	assert.Equal(t, make([]byte, 32), receipt.ReturnValue)
	assert.Equal(t, types.ZeroHash, e.NewTxn().GetStorage(testWriter, types.ZeroHash))

	require.Len(t, receipt.CallEdges, 1)
	assert.True(t, receipt.CallEdges[0].Rejected)
}

func TestExecutor_CreatorPaysShare(t *testing.T) {
	t.Parallel()

	e := newTestExecutor(t, nil)

	txn := e.NewTxn()
	txn.PutAccount(testOrigin, &types.Account{FrozenForEnergy: 1_000_000})
	txn.PutDynamicProperties(&types.DynamicProperties{TotalEnergyWeight: 1, TotalEnergyCurrentLimit: 1_000_000})
	require.NoError(t, txn.Flush())

	install(t, e, testContract, "600160005500", &types.Contract{
		Origin:                     testOrigin,
		ConsumeUserResourcePercent: 0,
		OriginEnergyLimit:          1_000,
	})

	receipt := applyAndFlush(t, e, triggerTx(testContract, nil, 10_000_000))
	require.True(t, receipt.Succeeded(), receipt.ErrorMessage)

	// the creator covers up to its origin energy limit, the caller burns the rest
	assert.Equal(t, int64(20_006), receipt.EnergyUsageTotal)
	assert.Equal(t, int64(1_000), receipt.OriginEnergyUsage)
	assert.Zero(t, receipt.EnergyUsage)
	assert.Equal(t, int64(19_006*100), receipt.EnergyFee)

	origin := e.NewTxn().GetAccount(testOrigin)
	assert.Equal(t, int64(1_000), origin.EnergyUsage)
	assert.Equal(t, testBlock().Number, origin.LatestConsumeTime)
}

func TestExecutor_Validation(t *testing.T) {
	t.Parallel()

	createTx := func(nc *types.NewContract) *types.Transaction {
		return (&types.Transaction{
			Type:        types.CreateContractTx,
			Owner:       testOwner,
			Data:        []byte{0x00},
			FeeLimit:    1_000_000,
			NewContract: nc,
		}).ComputeHash()
	}

	validContract := &types.NewContract{ConsumeUserResourcePercent: 100, OriginEnergyLimit: 1}

	cases := []struct {
		name    string
		params  func(p *chain.Params)
		tx      func() *types.Transaction
		prepare func(txn *Txn, tx *types.Transaction)
		err     error
	}{
		{
			name:   "vm disabled",
			params: func(p *chain.Params) { p.Forks = &chain.Forks{} },
			tx:     func() *types.Transaction { return triggerTx(testContract, nil, 1) },
			err:    ErrVMDisabled,
		},
		{
			name: "negative fee limit",
			tx:   func() *types.Transaction { return triggerTx(testContract, nil, -1) },
			err:  ErrFeeLimitOutOfBounds,
		},
		{
			name: "fee limit above max",
			tx:   func() *types.Transaction { return triggerTx(testContract, nil, chain.DefaultMaxFeeLimit+1) },
			err:  ErrFeeLimitOutOfBounds,
		},
		{
			name: "negative call value",
			tx: func() *types.Transaction {
				tx := triggerTx(testContract, nil, 1)
				tx.CallValue = -1

				return tx
			},
			err: ErrInvalidCallValue,
		},
		{
			name: "reserved token id",
			tx: func() *types.Transaction {
				tx := triggerTx(testContract, nil, 1)
				tx.TokenID, tx.TokenValue = 5, 1

				return tx
			},
			err: ErrInvalidTokenID,
		},
		{
			name: "token transfer inactive",
			params: func(p *chain.Params) {
				delete(*p.Forks, chain.TransferToken)
			},
			tx: func() *types.Transaction {
				tx := triggerTx(testContract, nil, 1)
				tx.TokenID, tx.TokenValue = 1_000_001, 1

				return tx
			},
			err: ErrInvalidTokenID,
		},
		{
			name: "call value above balance",
			tx: func() *types.Transaction {
				tx := triggerTx(testContract, nil, 1)
				tx.CallValue = ownerBalance + 1

				return tx
			},
			err: ErrInsufficientBalance,
		},
		{
			name: "token value above balance",
			tx: func() *types.Transaction {
				tx := triggerTx(testContract, nil, 1)
				tx.TokenID, tx.TokenValue = 1_000_001, 1

				return tx
			},
			err: ErrInsufficientBalance,
		},
		{
			name: "unknown owner",
			tx: func() *types.Transaction {
				tx := triggerTx(testContract, nil, 1)
				tx.Owner = testOrigin

				return tx
			},
			err: ErrOwnerNotFound,
		},
		{
			name: "contract not found",
			tx:   func() *types.Transaction { return triggerTx(testWriter, nil, 1) },
			err:  ErrContractNotFound,
		},
		{
			name: "invalid tx type",
			tx: func() *types.Transaction {
				tx := triggerTx(testContract, nil, 1)
				tx.Type = 9

				return tx
			},
			err: ErrInvalidTxType,
		},
		{
			name: "missing deployment parameters",
			tx:   func() *types.Transaction { return createTx(nil) },
			err:  ErrMissingNewContract,
		},
		{
			name: "percent above 100",
			tx: func() *types.Transaction {
				return createTx(&types.NewContract{ConsumeUserResourcePercent: 101, OriginEnergyLimit: 1})
			},
			err: ErrInvalidPercent,
		},
		{
			name: "zero origin energy limit",
			tx: func() *types.Transaction {
				return createTx(&types.NewContract{ConsumeUserResourcePercent: 10})
			},
			err: ErrInvalidOriginEnergyLimit,
		},
		{
			name: "duplicate contract",
			tx:   func() *types.Transaction { return createTx(validContract) },
			prepare: func(txn *Txn, tx *types.Transaction) {
				txn.CreateAccount(crypto.DeployAddress(tx.Hash, testOwner), types.AccountTypeNormal)
			},
			err: ErrDuplicateContract,
		},
	}

	for _, c := range cases {
		c := c

		t.Run(c.name, func(t *testing.T) {
			t.Parallel()

			e := newTestExecutor(t, c.params)
			install(t, e, testContract, "00", nil)

			tx := c.tx()
			txn := e.NewTxn()

			if c.prepare != nil {
				c.prepare(txn, tx)
			}

			receipt, err := e.Apply(txn, testBlock(), tx)
			assert.ErrorIs(t, err, c.err)
			assert.Nil(t, receipt)
			assert.Equal(t, ownerBalance, txn.GetBalance(testOwner))
		})
	}
}

func TestExecutor_ConstantCall(t *testing.T) {
	t.Parallel()

	e := newTestExecutor(t, nil)
	install(t, e, testWriter, "600160005500", nil)

	txn := e.NewTxn()

	tx := triggerTx(testWriter, nil, 0)
	tx.CallValue = 1

	_, err := e.Call(txn, testBlock(), tx)
	assert.ErrorIs(t, err, ErrConstantCallWithValue)

	// writes are rejected and nothing is billed
	res, err := e.Call(txn, testBlock(), triggerTx(testWriter, nil, 0))
	require.NoError(t, err)
	assert.Error(t, res.Err)
	assert.Equal(t, types.ZeroHash, txn.GetStorage(testWriter, types.ZeroHash))
	assert.Equal(t, ownerBalance, txn.GetBalance(testOwner))
}

func TestExecutor_Triggers(t *testing.T) {
	t.Parallel()

	e := newTestExecutor(t, nil)
	install(t, e, testContract, "60006000a000", nil)

	var got []*ContractTrigger

	e.AddTriggerSink(TriggerFunc(func(*ContractTrigger) error {
		return errors.New("sink down")
	}))
	e.AddTriggerSink(TriggerFunc(func(trigger *ContractTrigger) error {
		got = append(got, trigger)

		return nil
	}))

	tx := triggerTx(testContract, nil, 1_000_000)
	receipt := applyAndFlush(t, e, tx)
	require.True(t, receipt.Succeeded())

	require.Len(t, got, 1)
	assert.Equal(t, tx.Hash, got[0].TxHash)
	assert.Equal(t, int64(10), got[0].BlockNumber)
	assert.Equal(t, testContract, got[0].Log.Address)
}

func TestExecutor_TraceSink(t *testing.T) {
	t.Parallel()

	e := newTestExecutor(t, nil)
	install(t, e, testContract, "60006000fd", nil)

	var buf bytes.Buffer

	e.SetTraceSink(structtracer.NewSink(&buf, structtracer.FormatJSON, false), structtracer.Config{EnableStack: true})

	tx := triggerTx(testContract, nil, 1_000_000)
	applyAndFlush(t, e, tx)

	assert.Contains(t, buf.String(), `"txHash":"`+tx.Hash.String()+`"`)
	assert.Contains(t, buf.String(), `"op":"REVERT"`)
}

func TestExecutor_EndBlock(t *testing.T) {
	t.Parallel()

	e := newTestExecutor(t, nil)

	txn := e.NewTxn()
	txn.PutDynamicProperties(&types.DynamicProperties{BlockEnergyUsage: 500})

	e.EndBlock(txn, testBlock())

	props := txn.GetDynamicProperties()
	assert.Zero(t, props.BlockEnergyUsage)
	assert.Equal(t, testBlock().Number, props.TotalEnergyAverageTime)
	assert.Equal(t, chain.DefaultTotalEnergyLimit, props.TotalEnergyCurrentLimit)
}

func TestExecutor_ApplyBlockProducing(t *testing.T) {
	t.Parallel()

	e := newTestExecutor(t, nil)
	install(t, e, testContract, "600160005500", nil)

	receipts, err := e.ApplyBlock(context.Background(), testBlock(), []*types.Transaction{
		triggerTx(testWriter, nil, 1_000_000),
		triggerTx(testContract, nil, 10_000_000),
	})
	require.NoError(t, err)

	// the transaction to a missing contract is dropped
	require.Len(t, receipts, 1)
	assert.True(t, receipts[0].Succeeded())

	txn := e.NewTxn()
	assert.Equal(t, ownerBalance-receipts[0].EnergyFee, txn.GetBalance(testOwner))
	assert.NotEqual(t, types.ZeroHash, txn.GetStorage(testContract, types.ZeroHash))
}

func TestExecutor_ApplyBlockValidating(t *testing.T) {
	t.Parallel()

	// the loop runs out of its 10000 energy after about 2500 steps
	const loop = "5b600056"

	slowParams := func(retries uint64) func(p *chain.Params) {
		return func(p *chain.Params) {
			p.MaxCPUTimeOfOneTx = 1_000
			p.MaxTimeRatio = 1.0
			p.OutOfTimeRetries = retries
		}
	}

	cases := []struct {
		name     string
		params   func(p *chain.Params)
		code     string
		recorded types.ResultCode
		err      error
	}{
		{
			name:     "matching result",
			code:     "fe",
			recorded: types.ResultIllegalOperation,
		},
		{
			name:     "mismatch",
			code:     "fe",
			recorded: types.ResultSuccess,
			err:      ErrReceiptCheck,
		},
		{
			name:     "out of time resolved by a relaxed budget",
			params:   slowParams(2),
			code:     loop,
			recorded: types.ResultOutOfEnergy,
		},
		{
			name:     "out of time after every retry",
			params:   slowParams(1),
			code:     loop,
			recorded: types.ResultOutOfEnergy,
			err:      ErrReceiptCheck,
		},
	}

	for _, c := range cases {
		c := c

		t.Run(c.name, func(t *testing.T) {
			t.Parallel()

			e := newTestExecutor(t, c.params)
			e.SetClock(timeutils.NewStepClock(time.Unix(0, 0), time.Millisecond))
			install(t, e, testContract, c.code, nil)

			tx := triggerTx(testContract, nil, 1_000_000)
			tx.RecordedResult = c.recorded

			block := testBlock()
			block.Validating = true

			receipts, err := e.ApplyBlock(context.Background(), block, []*types.Transaction{tx})
			if c.err != nil {
				assert.ErrorIs(t, err, c.err)
				assert.Equal(t, ownerBalance, e.NewTxn().GetBalance(testOwner))

				return
			}

			require.NoError(t, err)
			require.Len(t, receipts, 1)
			assert.Equal(t, c.recorded, receipts[0].Result)

			// failed attempts leave no trace in the committed state
			assert.Equal(t, ownerBalance-1_000_000, e.NewTxn().GetBalance(testOwner))
		})
	}
}

package energy_test

import (
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/energyvm/energy-edge/chain"
	"github.com/energyvm/energy-edge/energy"
	"github.com/energyvm/energy-edge/state"
	"github.com/energyvm/energy-edge/types"
)

var (
	fixRatio = chain.ForksInTime{VM: true, EnergyLimitFixRatio: true}
	legacy   = chain.ForksInTime{VM: true}

	callerAddr = types.StringToAddress("1001")
	originAddr = types.StringToAddress("2002")

	// 4 frozen TRX share a 1000 energy ceiling
	testProps = &types.DynamicProperties{TotalEnergyWeight: 4, TotalEnergyCurrentLimit: 1000}
)

const now = int64(100)

func newProcessor(forks chain.ForksInTime) *energy.Processor {
	return energy.NewProcessor(hclog.NewNullLogger(), chain.DefaultParams(), forks)
}

// frozen returns an account with 2 TRX frozen, i.e. a 500 energy limit,
// of which used was consumed at slot now
func frozen(used, balance int64) *types.Account {
	return &types.Account{
		Balance:           balance,
		FrozenForEnergy:   2 * energy.TrxPrecision,
		EnergyUsage:       used,
		LatestConsumeTime: now,
	}
}

func newView(t *testing.T, accounts map[types.Address]*types.Account) *state.Txn {
	t.Helper()

	txn := state.NewTxn(state.NewState(state.NewMemoryStorage()))
	txn.PutDynamicProperties(testProps)

	for addr, account := range accounts {
		txn.PutAccount(addr, account)
	}

	return txn
}

func TestGlobalEnergyLimit(t *testing.T) {
	t.Parallel()

	p := newProcessor(fixRatio)

	assert.Equal(t, int64(500), p.GlobalEnergyLimit(frozen(0, 0), testProps))
	assert.Zero(t, p.GlobalEnergyLimit(&types.Account{FrozenForEnergy: energy.TrxPrecision - 1}, testProps))
	assert.Zero(t, p.GlobalEnergyLimit(frozen(0, 0), &types.DynamicProperties{}))
	assert.Zero(t, p.GlobalEnergyLimit(nil, testProps))

	assert.Equal(t, int64(400), p.LeftEnergyFromFreeze(frozen(100, 0), testProps, now))
	assert.Equal(t, int64(500), p.LeftEnergyFromFreeze(frozen(100, 0), testProps, now+energy.WindowSize))
	assert.Zero(t, p.LeftEnergyFromFreeze(frozen(600, 0), testProps, now))
}

func TestUpdateUsage(t *testing.T) {
	t.Parallel()

	p := newProcessor(fixRatio)

	cases := []struct {
		name     string
		at       int64
		expected int64
	}{
		{"same slot", now, 100},
		{"half window", now + energy.WindowSize/2, 50},
		{"whole window", now + energy.WindowSize, 0},
		{"clock went backwards", now - 10, 100},
	}

	for _, c := range cases {
		c := c

		t.Run(c.name, func(t *testing.T) {
			t.Parallel()

			account := frozen(100, 0)
			p.UpdateUsage(account, c.at)

			assert.Equal(t, c.expected, account.EnergyUsage)
			assert.Equal(t, now, account.LatestConsumeTime)
		})
	}
}

func TestUseEnergy(t *testing.T) {
	t.Parallel()

	p := newProcessor(fixRatio)
	later := now + energy.WindowSize/2

	view := newView(t, map[types.Address]*types.Account{callerAddr: frozen(100, 0)})

	// the usage decays to 50 before the new consumption is folded in
	require.NoError(t, p.UseEnergy(view, callerAddr, 450, later))

	account := view.GetAccount(callerAddr)
	assert.Equal(t, int64(500), account.EnergyUsage)
	assert.Equal(t, later, account.LatestConsumeTime)
	assert.Zero(t, view.GetDynamicProperties().BlockEnergyUsage)

	assert.ErrorIs(t, p.UseEnergy(view, callerAddr, 1, later), energy.ErrEnergyExhausted)
	assert.NoError(t, p.UseEnergy(view, callerAddr, 0, later))
	assert.ErrorIs(t, p.UseEnergy(view, originAddr, 1, later), energy.ErrAccountNotFound)
}

func TestAccountEnergyLimit(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name      string
		forks     chain.ForksInTime
		account   *types.Account
		feeLimit  int64
		callValue int64
		expected  int64
	}{
		{
			name:     "fix ratio bounded by the fee limit",
			forks:    fixRatio,
			account:  frozen(100, 1_000_000),
			feeLimit: 500_000,
			expected: 5_000,
		},
		{
			name:     "fix ratio bounded by frozen energy and balance",
			forks:    fixRatio,
			account:  frozen(100, 1_000_000),
			feeLimit: 2_000_000,
			expected: 400 + 10_000,
		},
		{
			name:      "fix ratio call value exceeding the balance",
			forks:     fixRatio,
			account:   frozen(100, 1_000_000),
			feeLimit:  2_000_000,
			callValue: 2_000_000,
			expected:  400,
		},
		{
			name:     "legacy without frozen balance",
			forks:    legacy,
			account:  &types.Account{Balance: 1_000_000},
			feeLimit: 500_000,
			expected: 5_000,
		},
		{
			name:     "legacy fee limit covered by frozen balance",
			forks:    legacy,
			account:  frozen(100, 1_000_000),
			feeLimit: 1_000_000,
			expected: 250,
		},
		{
			name:     "legacy fee limit above frozen balance",
			forks:    legacy,
			account:  frozen(100, 1_000_000),
			feeLimit: 2_000_000,
			expected: 400 + 4_000,
		},
	}

	for _, c := range cases {
		c := c

		t.Run(c.name, func(t *testing.T) {
			t.Parallel()

			limit := newProcessor(c.forks).AccountEnergyLimit(c.account, testProps, c.feeLimit, c.callValue, now)
			assert.Equal(t, c.expected, limit)
		})
	}
}

func TestTotalEnergyLimit(t *testing.T) {
	t.Parallel()

	// the caller can pay 5000 energy from its balance
	caller := &types.Account{Balance: 1_000_000}

	contract := func(percent, originLimit int64) *types.Contract {
		return &types.Contract{
			Origin:                     originAddr,
			ConsumeUserResourcePercent: percent,
			OriginEnergyLimit:          originLimit,
		}
	}

	cases := []struct {
		name     string
		forks    chain.ForksInTime
		contract *types.Contract
		expected int64
	}{
		{"caller pays everything", fixRatio, contract(100, 10_000), 5_000},
		{"creator pays up to its frozen energy", fixRatio, contract(0, 10_000), 5_000 + 500},
		{"creator pays up to the origin limit", fixRatio, contract(0, 300), 5_000 + 300},
		{"creator share by percent", fixRatio, contract(95, 10_000), 5_000 + 5_000*5/95},
		{"creator share capped", fixRatio, contract(40, 10_000), 5_000 + 500},
		{"legacy sum of both", legacy, contract(90, 0), 5_000 + 500},
		{"legacy scaled by percent", legacy, contract(95, 0), 5_000 * 100 / 95},
	}

	for _, c := range cases {
		c := c

		t.Run(c.name, func(t *testing.T) {
			t.Parallel()

			limit := newProcessor(c.forks).TotalEnergyLimit(
				caller, frozen(0, 0), c.contract, callerAddr, testProps, 500_000, 0, now,
			)
			assert.Equal(t, c.expected, limit)
		})
	}

	// the creator calling its own contract pays alone
	own := contract(0, 10_000)
	own.Origin = callerAddr

	assert.Equal(t, int64(5_000), newProcessor(fixRatio).TotalEnergyLimit(
		caller, frozen(0, 0), own, callerAddr, testProps, 500_000, 0, now,
	))
}

func TestPayEnergyBill(t *testing.T) {
	t.Parallel()

	t.Run("frozen energy covers the bill", func(t *testing.T) {
		t.Parallel()

		view := newView(t, map[types.Address]*types.Account{callerAddr: frozen(0, 0)})

		bill, err := newProcessor(fixRatio).PayEnergyBill(view, callerAddr, nil, 300, now)
		require.NoError(t, err)

		assert.Equal(t, &energy.Bill{EnergyUsage: 300, EnergyUsageTotal: 300}, bill)
		assert.Equal(t, int64(300), view.GetAccount(callerAddr).EnergyUsage)
	})

	t.Run("balance covers the rest", func(t *testing.T) {
		t.Parallel()

		view := newView(t, map[types.Address]*types.Account{callerAddr: frozen(0, 100_000)})

		bill, err := newProcessor(chain.AllForksInTime).PayEnergyBill(view, callerAddr, nil, 800, now)
		require.NoError(t, err)

		assert.Equal(t, &energy.Bill{EnergyUsage: 500, EnergyFee: 30_000, EnergyUsageTotal: 800}, bill)
		assert.Equal(t, int64(70_000), view.GetBalance(callerAddr))
		assert.Equal(t, int64(500), view.GetAccount(callerAddr).EnergyUsage)
		assert.Equal(t, int64(500+300), view.GetDynamicProperties().BlockEnergyUsage)
	})

	t.Run("insufficient balance", func(t *testing.T) {
		t.Parallel()

		view := newView(t, map[types.Address]*types.Account{callerAddr: {Balance: 10}})

		_, err := newProcessor(fixRatio).PayEnergyBill(view, callerAddr, nil, 800, now)
		assert.ErrorIs(t, err, energy.ErrBalanceInsufficient)
	})

	t.Run("creator pays its share", func(t *testing.T) {
		t.Parallel()

		view := newView(t, map[types.Address]*types.Account{
			callerAddr: {Balance: 100_000},
			originAddr: frozen(0, 0),
		})

		contract := &types.Contract{Origin: originAddr, ConsumeUserResourcePercent: 40, OriginEnergyLimit: 10_000}

		// the creator owes 600 but only has 500 frozen energy left
		bill, err := newProcessor(fixRatio).PayEnergyBill(view, callerAddr, contract, 1000, now)
		require.NoError(t, err)

		assert.Equal(t, &energy.Bill{OriginEnergyUsage: 500, EnergyFee: 50_000, EnergyUsageTotal: 1000}, bill)
		assert.Equal(t, int64(500), view.GetAccount(originAddr).EnergyUsage)
		assert.Equal(t, int64(50_000), view.GetBalance(callerAddr))
	})

	t.Run("origin energy limit caps the creator", func(t *testing.T) {
		t.Parallel()

		view := newView(t, map[types.Address]*types.Account{
			callerAddr: {Balance: 100_000},
			originAddr: frozen(0, 0),
		})

		contract := &types.Contract{Origin: originAddr, ConsumeUserResourcePercent: 40, OriginEnergyLimit: 100}

		bill, err := newProcessor(fixRatio).PayEnergyBill(view, callerAddr, contract, 1000, now)
		require.NoError(t, err)

		assert.Equal(t, int64(100), bill.OriginEnergyUsage)
		assert.Equal(t, int64(900*100), bill.EnergyFee)
	})

	t.Run("nothing to pay", func(t *testing.T) {
		t.Parallel()

		view := newView(t, nil)

		bill, err := newProcessor(fixRatio).PayEnergyBill(view, callerAddr, nil, 0, now)
		require.NoError(t, err)
		assert.Equal(t, &energy.Bill{}, bill)
	})
}

func TestUpdateAdaptiveTotalEnergyLimit(t *testing.T) {
	t.Parallel()

	base := chain.DefaultTotalEnergyLimit
	target := chain.DefaultParams().TotalEnergyTargetLimit()

	cases := []struct {
		name     string
		current  int64
		average  int64
		expected int64
	}{
		{"shrinks above target", 60_000_000_000, target + 1, 59_400_000_000},
		{"grows at target", 60_000_000_000, target, 60_060_060_060},
		{"never below the base limit", base, target + 1, base},
		{"never above the multiplier", base * chain.DefaultAdaptiveResourceLimitMultiplier, 0, base * chain.DefaultAdaptiveResourceLimitMultiplier},
	}

	for _, c := range cases {
		c := c

		t.Run(c.name, func(t *testing.T) {
			t.Parallel()

			view := newView(t, nil)
			view.PutDynamicProperties(&types.DynamicProperties{
				TotalEnergyCurrentLimit: c.current,
				TotalEnergyAverageUsage: c.average,
			})

			newProcessor(chain.AllForksInTime).UpdateAdaptiveTotalEnergyLimit(view)
			assert.Equal(t, c.expected, view.GetDynamicProperties().TotalEnergyCurrentLimit)
		})
	}
}

func TestEndBlock(t *testing.T) {
	t.Parallel()

	props := &types.DynamicProperties{
		TotalEnergyCurrentLimit: chain.DefaultTotalEnergyLimit,
		TotalEnergyAverageUsage: 1_000,
		TotalEnergyAverageTime:  now - 10,
		BlockEnergyUsage:        500,
	}

	// without adaptive energy the counters are left alone
	view := newView(t, nil)
	view.PutDynamicProperties(props)

	newProcessor(fixRatio).EndBlock(view, now)
	assert.Equal(t, props, view.GetDynamicProperties())

	view = newView(t, nil)
	view.PutDynamicProperties(props)

	newProcessor(chain.AllForksInTime).EndBlock(view, now)

	got := view.GetDynamicProperties()
	assert.Zero(t, got.BlockEnergyUsage)
	assert.Equal(t, now, got.TotalEnergyAverageTime)

	// half of the old average survives, the block adds 500 over 20 slots
	assert.Equal(t, energy.Increase(1_000, 500, now-10, now, energy.AverageWindowSize), got.TotalEnergyAverageUsage)
	assert.Equal(t, int64(1_000), got.TotalEnergyAverageUsage)
}

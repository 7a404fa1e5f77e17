package energy

import (
	"errors"
	"fmt"
	"math"

	"github.com/armon/go-metrics"
	"github.com/hashicorp/go-hclog"

	"github.com/energyvm/energy-edge/chain"
	"github.com/energyvm/energy-edge/state/runtime"
	"github.com/energyvm/energy-edge/types"
)

// adaptive ceiling steps
const (
	contractRateNumerator   = 99
	contractRateDenominator = 100
	expandRateNumerator     = 1000
	expandRateDenominator   = 999
)

var (
	ErrBalanceInsufficient = errors.New("balance is not sufficient to pay the energy fee")
	ErrAccountNotFound     = errors.New("account not found")
	ErrEnergyExhausted     = errors.New("not enough frozen energy")
)

// Processor converts frozen stake into energy and keeps the usage counters
// of accounts and of the network
type Processor struct {
	logger hclog.Logger
	params *chain.Params
	forks  chain.ForksInTime
}

func NewProcessor(logger hclog.Logger, params *chain.Params, forks chain.ForksInTime) *Processor {
	return &Processor{
		logger: logger.Named("energy"),
		params: params,
		forks:  forks,
	}
}

// EnergyPrice is the price of one energy unit in sun
func (p *Processor) EnergyPrice() int64 {
	if p.params.EnergyFee > 0 {
		return p.params.EnergyFee
	}

	return chain.DefaultEnergyFee
}

// GlobalEnergyLimit is the share of the network ceiling granted by the
// account's frozen balance
func (p *Processor) GlobalEnergyLimit(account *types.Account, props *types.DynamicProperties) int64 {
	if account == nil || account.FrozenForEnergy < TrxPrecision || props.TotalEnergyWeight <= 0 {
		return 0
	}

	weight := uint64(account.FrozenForEnergy / TrxPrecision)
	limit, _ := mulDiv(weight, nonNegative(props.TotalEnergyCurrentLimit), uint64(props.TotalEnergyWeight))

	return clampInt64(limit)
}

// LeftEnergyFromFreeze is the frozen energy the account can still spend at slot now
func (p *Processor) LeftEnergyFromFreeze(account *types.Account, props *types.DynamicProperties, now int64) int64 {
	if account == nil {
		return 0
	}

	limit := p.GlobalEnergyLimit(account, props)
	usage := Increase(account.EnergyUsage, 0, account.LatestConsumeTime, now, WindowSize)

	if left := limit - usage; left > 0 {
		return left
	}

	return 0
}

// UpdateUsage decays the account usage up to slot now without consuming anything
func (p *Processor) UpdateUsage(account *types.Account, now int64) {
	account.EnergyUsage = Increase(account.EnergyUsage, 0, account.LatestConsumeTime, now, WindowSize)
}

// UseEnergy consumes frozen energy of addr. In adaptive mode the consumption
// also counts toward the block usage.
func (p *Processor) UseEnergy(view runtime.StateView, addr types.Address, energy, now int64) error {
	if energy <= 0 {
		return nil
	}

	account := view.GetAccount(addr)
	if account == nil {
		return fmt.Errorf("%w: %s", ErrAccountNotFound, addr)
	}

	props := view.GetDynamicProperties()

	limit := p.GlobalEnergyLimit(account, props)

	p.UpdateUsage(account, now)
	usage := account.EnergyUsage

	if energy > limit-usage {
		return fmt.Errorf("%w: want %d, left %d", ErrEnergyExhausted, energy, limit-usage)
	}

	account.EnergyUsage = Increase(usage, energy, now, now, WindowSize)
	account.LatestConsumeTime = now
	view.PutAccount(addr, account)

	if p.forks.AdaptiveEnergy {
		props.BlockEnergyUsage += energy
		view.PutDynamicProperties(props)
	}

	return nil
}

// UpdateTotalEnergyAverageUsage folds the block usage into the network moving average
func (p *Processor) UpdateTotalEnergyAverageUsage(view runtime.StateView, now int64) {
	props := view.GetDynamicProperties()

	props.TotalEnergyAverageUsage = Increase(
		props.TotalEnergyAverageUsage,
		props.BlockEnergyUsage,
		props.TotalEnergyAverageTime,
		now,
		AverageWindowSize,
	)
	props.TotalEnergyAverageTime = now

	view.PutDynamicProperties(props)
}

// UpdateAdaptiveTotalEnergyLimit shrinks the network ceiling by 1% when the
// average usage is above target and grows it by 1/999 otherwise, within
// [TotalEnergyLimit, TotalEnergyLimit * multiplier].
func (p *Processor) UpdateAdaptiveTotalEnergyLimit(view runtime.StateView) {
	props := view.GetDynamicProperties()

	current := nonNegative(props.TotalEnergyCurrentLimit)

	var next uint64
	if props.TotalEnergyAverageUsage > p.params.TotalEnergyTargetLimit() {
		next, _ = mulDiv(current, contractRateNumerator, contractRateDenominator)
	} else {
		next, _ = mulDiv(current, expandRateNumerator, expandRateDenominator)
	}

	result := clampInt64(next)

	floor := p.params.TotalEnergyLimit

	ceiling := int64(math.MaxInt64)
	if m := p.params.AdaptiveResourceLimitMultiplier; m > 0 && floor <= math.MaxInt64/m {
		ceiling = floor * m
	}

	if result < floor {
		result = floor
	}

	if result > ceiling {
		result = ceiling
	}

	if result != props.TotalEnergyCurrentLimit {
		p.logger.Info(
			"adaptive energy limit updated",
			"average", props.TotalEnergyAverageUsage,
			"from", props.TotalEnergyCurrentLimit,
			"to", result,
		)
	}

	props.TotalEnergyCurrentLimit = result
	view.PutDynamicProperties(props)

	metrics.SetGauge([]string{"energy", "total_current_limit"}, float32(result))
	metrics.SetGauge([]string{"energy", "total_average_usage"}, float32(props.TotalEnergyAverageUsage))
}

// EndBlock runs the adaptive update for the block closed at slot now and
// resets the block usage
func (p *Processor) EndBlock(view runtime.StateView, now int64) {
	if !p.forks.AdaptiveEnergy {
		return
	}

	p.UpdateTotalEnergyAverageUsage(view, now)
	p.UpdateAdaptiveTotalEnergyLimit(view)

	props := view.GetDynamicProperties()
	props.BlockEnergyUsage = 0
	view.PutDynamicProperties(props)
}

package energy

import (
	"fmt"
	"math/bits"

	"github.com/armon/go-metrics"

	"github.com/energyvm/energy-edge/helper/common"
	"github.com/energyvm/energy-edge/state/runtime"
	"github.com/energyvm/energy-edge/types"
)

// Bill is how the energy of one transaction was paid for
type Bill struct {
	// EnergyUsage is the frozen energy of the caller that was consumed
	EnergyUsage int64

	// EnergyFee is the balance burned for the energy frozen stake did not cover, in sun
	EnergyFee int64

	// OriginEnergyUsage is the frozen energy of the contract creator that was consumed
	OriginEnergyUsage int64

	EnergyUsageTotal int64
}

// PayEnergyBill charges total energy to the caller and, when the contract
// asks for it, to its creator. The creator covers (100 - percent)% of the
// total within its frozen energy and origin energy limit. The caller pays
// the remainder from frozen energy first and then from balance.
func (p *Processor) PayEnergyBill(
	view runtime.StateView,
	caller types.Address,
	contract *types.Contract,
	total, now int64,
) (*Bill, error) {
	bill := &Bill{EnergyUsageTotal: total}

	if total <= 0 {
		return bill, nil
	}

	callerUsage := total

	if contract != nil && contract.Origin != caller {
		origin := view.GetAccount(contract.Origin)
		props := view.GetDynamicProperties()

		share, _ := mulDiv(uint64(total), nonNegative(oneHundred-contract.ConsumeUserResourcePercent), uint64(oneHundred))

		left := p.LeftEnergyFromFreeze(origin, props, now)
		if p.forks.EnergyLimitFixRatio {
			left = common.MinInt64(left, contract.OriginEnergyLimit)
		}

		originUsage := common.MinInt64(clampInt64(share), left)

		if err := p.UseEnergy(view, contract.Origin, originUsage, now); err != nil {
			return nil, err
		}

		bill.OriginEnergyUsage = originUsage
		callerUsage = total - originUsage
	}

	if err := p.payCaller(view, caller, callerUsage, now, bill); err != nil {
		return nil, err
	}

	p.logger.Debug(
		"energy bill",
		"caller", caller,
		"total", total,
		"frozen", bill.EnergyUsage,
		"origin", bill.OriginEnergyUsage,
		"fee", bill.EnergyFee,
	)

	return bill, nil
}

func (p *Processor) payCaller(view runtime.StateView, caller types.Address, usage, now int64, bill *Bill) error {
	account := view.GetAccount(caller)
	if account == nil {
		return fmt.Errorf("%w: %s", ErrAccountNotFound, caller)
	}

	left := p.LeftEnergyFromFreeze(account, view.GetDynamicProperties(), now)

	if left >= usage {
		bill.EnergyUsage = usage

		return p.UseEnergy(view, caller, usage, now)
	}

	if err := p.UseEnergy(view, caller, left, now); err != nil {
		return err
	}

	burned := usage - left

	if p.forks.AdaptiveEnergy {
		props := view.GetDynamicProperties()
		props.BlockEnergyUsage += burned
		view.PutDynamicProperties(props)
	}

	price := p.EnergyPrice()

	hi, fee := bits.Mul64(uint64(burned), uint64(price))
	if hi != 0 || account.Balance < 0 || fee > uint64(account.Balance) {
		return fmt.Errorf("%w: balance %d, fee %d", ErrBalanceInsufficient, account.Balance, fee)
	}

	bill.EnergyUsage = left
	bill.EnergyFee = int64(fee)

	if err := view.AddBalance(caller, -bill.EnergyFee); err != nil {
		return fmt.Errorf("%w: %v", ErrBalanceInsufficient, err)
	}

	metrics.IncrCounter([]string{"energy", "fee_burned"}, float32(bill.EnergyFee))

	return nil
}

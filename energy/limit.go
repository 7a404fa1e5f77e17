package energy

import (
	"math"

	"github.com/energyvm/energy-edge/helper/common"
	"github.com/energyvm/energy-edge/types"
)

const oneHundred = int64(100)

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}

	return q
}

func addSaturated(a, b int64) int64 {
	if b > 0 && a > math.MaxInt64-b {
		return math.MaxInt64
	}

	return a + b
}

// AccountEnergyLimit is the energy the account can pay for with its frozen
// energy and balance, bounded by what feeLimit buys. The formula switches
// once EnergyLimitFixRatio is active.
func (p *Processor) AccountEnergyLimit(
	account *types.Account,
	props *types.DynamicProperties,
	feeLimit, callValue, now int64,
) int64 {
	if p.forks.EnergyLimitFixRatio {
		return p.accountEnergyLimitFixRatio(account, props, feeLimit, callValue, now)
	}

	return p.accountEnergyLimitFloatRatio(account, props, feeLimit, callValue, now)
}

func (p *Processor) accountEnergyLimitFixRatio(
	account *types.Account,
	props *types.DynamicProperties,
	feeLimit, callValue, now int64,
) int64 {
	price := p.EnergyPrice()

	left := p.LeftEnergyFromFreeze(account, props, now)
	fromBalance := common.MaxInt64(account.Balance-callValue, 0) / price

	return common.MinInt64(addSaturated(left, fromBalance), feeLimit/price)
}

func (p *Processor) accountEnergyLimitFloatRatio(
	account *types.Account,
	props *types.DynamicProperties,
	feeLimit, callValue, now int64,
) int64 {
	price := p.EnergyPrice()

	left := p.LeftEnergyFromFreeze(account, props, now)
	fromBalance := floorDiv(common.MaxInt64(account.Balance-common.MaxInt64(callValue, 0), 0), price)

	var fromFeeLimit int64

	if totalFrozen := account.FrozenForEnergy; totalFrozen == 0 {
		fromFeeLimit = feeLimit / price
	} else {
		totalEnergy := p.GlobalEnergyLimit(account, props)

		// the part of the frozen balance still backed by unused energy
		var leftBalanceForFreeze int64
		if totalEnergy > 0 {
			q, _ := mulDiv(nonNegative(left), nonNegative(totalFrozen), uint64(totalEnergy))
			leftBalanceForFreeze = clampInt64(q)
		}

		if leftBalanceForFreeze >= feeLimit {
			q, _ := mulDiv(nonNegative(totalEnergy), nonNegative(feeLimit), uint64(totalFrozen))
			fromFeeLimit = clampInt64(q)
		} else {
			fromFeeLimit = addSaturated(left, (feeLimit-leftBalanceForFreeze)/price)
		}
	}

	return common.MinInt64(addSaturated(left, fromBalance), fromFeeLimit)
}

// TotalEnergyLimit is the energy a call can use when the caller and the
// contract creator share its cost. creator is nil or equal to caller when
// the caller pays for everything.
func (p *Processor) TotalEnergyLimit(
	caller, creator *types.Account,
	contract *types.Contract,
	callerAddr types.Address,
	props *types.DynamicProperties,
	feeLimit, callValue, now int64,
) int64 {
	callerLimit := p.AccountEnergyLimit(caller, props, feeLimit, callValue, now)

	if creator == nil || contract == nil || contract.Origin == callerAddr {
		return callerLimit
	}

	percent := contract.ConsumeUserResourcePercent

	if !p.forks.EnergyLimitFixRatio {
		creatorLimit := p.LeftEnergyFromFreeze(creator, props, now)

		if percent > 0 && creatorLimit*percent > (oneHundred-percent)*callerLimit {
			return floorDiv(callerLimit*oneHundred, percent)
		}

		return addSaturated(callerLimit, creatorLimit)
	}

	var originLeft int64
	if percent < oneHundred {
		originLeft = p.LeftEnergyFromFreeze(creator, props, now)
	}

	var creatorLimit int64

	switch {
	case percent <= 0:
		creatorLimit = common.MinInt64(originLeft, contract.OriginEnergyLimit)
	case percent < oneHundred:
		share, _ := mulDiv(nonNegative(callerLimit), uint64(oneHundred-percent), uint64(percent))
		creatorLimit = common.MinInt64(clampInt64(share), common.MinInt64(originLeft, contract.OriginEnergyLimit))
	}

	return addSaturated(callerLimit, creatorLimit)
}

package chain

import (
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"
)

var (
	errNonPositiveEnergyFee   = errors.New("energy fee must be positive")
	errNegativeMaxFeeLimit    = errors.New("max fee limit cannot be negative")
	errNonPositiveCPUTime     = errors.New("max cpu time of one tx must be positive")
	errInvalidTimeRatio       = errors.New("min time ratio must be within [0, max time ratio]")
	errNonPositiveEnergyLimit = errors.New("total energy limit must be positive")
	errInvalidMultiplier      = errors.New("adaptive resource limit multiplier must be at least 1")
	errInvalidTargetRatio     = errors.New("adaptive resource limit target ratio must be positive")
)

// Params are all the set of params for the network
type Params struct {
	Forks   *Forks `json:"forks"`
	ChainID int64  `json:"chainID"`

	// EnergyFee is the price of one energy unit, in sun
	EnergyFee int64 `json:"energyFee"`

	// MaxFeeLimit is the upper bound a transaction may set as its fee limit
	MaxFeeLimit int64 `json:"maxFeeLimit"`

	// MaxCPUTimeOfOneTx is the wall-clock budget of one transaction, in milliseconds
	MaxCPUTimeOfOneTx int64 `json:"maxCpuTimeOfOneTx"`

	// MinTimeRatio and MaxTimeRatio scale the time budget when validating blocks
	MinTimeRatio float64 `json:"minTimeRatio"`
	MaxTimeRatio float64 `json:"maxTimeRatio"`

	// TotalEnergyLimit is the base network energy ceiling per window
	TotalEnergyLimit int64 `json:"totalEnergyLimit"`

	AdaptiveResourceLimitMultiplier  int64 `json:"adaptiveResourceLimitMultiplier"`
	AdaptiveResourceLimitTargetRatio int64 `json:"adaptiveResourceLimitTargetRatio"`

	// MaxEnergyLimitForConstant bounds read-only calls that are never billed
	MaxEnergyLimitForConstant int64 `json:"maxEnergyLimitForConstant"`

	// MaxNativeDepth bounds the recursion of the executing goroutine
	MaxNativeDepth int `json:"maxNativeDepth"`

	// OutOfTimeRetries is the number of relaxed re-executions attempted
	// when a local out-of-time result disagrees with the block producer
	OutOfTimeRetries uint64 `json:"outOfTimeRetries"`
}

const (
	DefaultEnergyFee                        = int64(100)
	DefaultMaxFeeLimit                      = int64(1_000_000_000)
	DefaultMaxCPUTimeOfOneTx                = int64(50)
	DefaultMinTimeRatio                     = 0.0
	DefaultMaxTimeRatio                     = 5.0
	DefaultTotalEnergyLimit                 = int64(50_000_000_000)
	DefaultAdaptiveResourceLimitMultiplier  = int64(1000)
	DefaultAdaptiveResourceLimitTargetRatio = int64(14400)
	DefaultMaxEnergyLimitForConstant        = int64(100_000_000)
	DefaultMaxNativeDepth                   = 4096
	DefaultOutOfTimeRetries                 = uint64(2)
)

// DefaultParams returns the mainnet-like parameter set with every fork enabled
func DefaultParams() *Params {
	return &Params{
		Forks:                            AllForksEnabled.Copy(),
		ChainID:                          1,
		EnergyFee:                        DefaultEnergyFee,
		MaxFeeLimit:                      DefaultMaxFeeLimit,
		MaxCPUTimeOfOneTx:                DefaultMaxCPUTimeOfOneTx,
		MinTimeRatio:                     DefaultMinTimeRatio,
		MaxTimeRatio:                     DefaultMaxTimeRatio,
		TotalEnergyLimit:                 DefaultTotalEnergyLimit,
		AdaptiveResourceLimitMultiplier:  DefaultAdaptiveResourceLimitMultiplier,
		AdaptiveResourceLimitTargetRatio: DefaultAdaptiveResourceLimitTargetRatio,
		MaxEnergyLimitForConstant:        DefaultMaxEnergyLimitForConstant,
		MaxNativeDepth:                   DefaultMaxNativeDepth,
		OutOfTimeRetries:                 DefaultOutOfTimeRetries,
	}
}

// TotalEnergyTargetLimit is the per-slot network usage above which
// the adaptive ceiling shrinks
func (p *Params) TotalEnergyTargetLimit() int64 {
	return p.TotalEnergyLimit / p.AdaptiveResourceLimitTargetRatio
}

// Validate reports every inconsistent parameter at once
func (p *Params) Validate() error {
	var result *multierror.Error

	if p.EnergyFee <= 0 {
		result = multierror.Append(result, errNonPositiveEnergyFee)
	}

	if p.MaxFeeLimit < 0 {
		result = multierror.Append(result, errNegativeMaxFeeLimit)
	}

	if p.MaxCPUTimeOfOneTx <= 0 {
		result = multierror.Append(result, errNonPositiveCPUTime)
	}

	if p.MinTimeRatio < 0 || p.MinTimeRatio > p.MaxTimeRatio {
		result = multierror.Append(result, errInvalidTimeRatio)
	}

	if p.TotalEnergyLimit <= 0 {
		result = multierror.Append(result, errNonPositiveEnergyLimit)
	}

	if p.AdaptiveResourceLimitMultiplier < 1 {
		result = multierror.Append(result, errInvalidMultiplier)
	}

	if p.AdaptiveResourceLimitTargetRatio <= 0 {
		result = multierror.Append(result, errInvalidTargetRatio)
	}

	if p.Forks != nil {
		for name := range *p.Forks {
			if !IsForkAvailable(name) {
				result = multierror.Append(result, fmt.Errorf("unknown fork %q", name))
			}
		}
	}

	return result.ErrorOrNil()
}

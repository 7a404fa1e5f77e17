package types

import "sort"

type AccountType uint8

const (
	AccountTypeNormal AccountType = iota
	AccountTypeContract
)

func (t AccountType) String() string {
	switch t {
	case AccountTypeNormal:
		return "Normal"
	case AccountTypeContract:
		return "Contract"
	default:
		return "Unknown"
	}
}

// Account is the per-address record, including the energy resource counters
type Account struct {
	Type    AccountType
	Balance int64

	// FrozenForEnergy is the balance (in sun) staked for energy
	FrozenForEnergy int64

	// EnergyUsage is the decayed moving sum of consumed energy
	EnergyUsage int64

	// LatestConsumeTime is the slot of the last energy consumption
	LatestConsumeTime int64

	// Assets maps a token id to its balance
	Assets map[int64]int64
}

func (a *Account) Copy() *Account {
	aa := new(Account)
	*aa = *a

	if a.Assets != nil {
		aa.Assets = make(map[int64]int64, len(a.Assets))
		for k, v := range a.Assets {
			aa.Assets[k] = v
		}
	}

	return aa
}

func (a *Account) AssetBalance(tokenID int64) int64 {
	return a.Assets[tokenID]
}

func (a *Account) SetAssetBalance(tokenID, amount int64) {
	if a.Assets == nil {
		a.Assets = map[int64]int64{}
	}

	if amount == 0 {
		delete(a.Assets, tokenID)

		return
	}

	a.Assets[tokenID] = amount
}

// AssetIDs returns the token ids in ascending order
func (a *Account) AssetIDs() []int64 {
	ids := make([]int64, 0, len(a.Assets))
	for id := range a.Assets {
		ids = append(ids, id)
	}

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	return ids
}

// Contract is the metadata stored next to deployed code
type Contract struct {
	Address Address
	Origin  Address
	Name    string

	// ConsumeUserResourcePercent is the share (0..100) of energy the caller pays
	ConsumeUserResourcePercent int64

	// OriginEnergyLimit caps how much energy the origin contributes per call
	OriginEnergyLimit int64
}

func (c *Contract) Copy() *Contract {
	cc := new(Contract)
	*cc = *c

	return cc
}

// DynamicProperties are the network-wide energy counters
type DynamicProperties struct {
	TotalEnergyWeight       int64
	TotalEnergyCurrentLimit int64
	TotalEnergyAverageUsage int64
	TotalEnergyAverageTime  int64
	BlockEnergyUsage        int64
}

func (d *DynamicProperties) Copy() *DynamicProperties {
	dd := new(DynamicProperties)
	*dd = *d

	return dd
}

// MinTokenID is the highest id reserved for the native coin; issued tokens
// are numbered above it.
const MinTokenID int64 = 1_000_000

func ValidTokenID(id int64) bool {
	return id > MinTokenID
}

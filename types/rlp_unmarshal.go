package types

import (
	"fmt"

	"github.com/umbracle/fastrlp"
)

type RLPUnmarshaler interface {
	UnmarshalRLP(input []byte) error
}

type unmarshalRLPFunc func(p *fastrlp.Parser, v *fastrlp.Value) error

func UnmarshalRlp(obj unmarshalRLPFunc, input []byte) error {
	pr := fastrlp.DefaultParserPool.Get()
	defer fastrlp.DefaultParserPool.Put(pr)

	v, err := pr.Parse(input)
	if err != nil {
		return err
	}

	return obj(pr, v)
}

func getElems(v *fastrlp.Value, name string, expected int) ([]*fastrlp.Value, error) {
	elems, err := v.GetElems()
	if err != nil {
		return nil, err
	}

	if len(elems) != expected {
		return nil, fmt.Errorf("incorrect number of elements to decode %s, expected %d but found %d",
			name, expected, len(elems))
	}

	return elems, nil
}

func getInt64s(elems []*fastrlp.Value, dst ...*int64) error {
	for i, d := range dst {
		n, err := elems[i].GetUint64()
		if err != nil {
			return err
		}

		*d = int64(n)
	}

	return nil
}

func (a *Account) UnmarshalRLP(input []byte) error {
	return UnmarshalRlp(a.unmarshalRLPFrom, input)
}

func (a *Account) unmarshalRLPFrom(_ *fastrlp.Parser, v *fastrlp.Value) error {
	elems, err := getElems(v, "account", 6)
	if err != nil {
		return err
	}

	accType, err := elems[0].GetUint64()
	if err != nil {
		return err
	}

	a.Type = AccountType(accType)

	if err := getInt64s(elems[1:5],
		&a.Balance, &a.FrozenForEnergy, &a.EnergyUsage, &a.LatestConsumeTime); err != nil {
		return err
	}

	assets, err := elems[5].GetElems()
	if err != nil {
		return err
	}

	a.Assets = nil

	for _, asset := range assets {
		pair, err := getElems(asset, "asset", 2)
		if err != nil {
			return err
		}

		var id, amount int64
		if err := getInt64s(pair, &id, &amount); err != nil {
			return err
		}

		a.SetAssetBalance(id, amount)
	}

	return nil
}

func (c *Contract) UnmarshalRLP(input []byte) error {
	return UnmarshalRlp(c.unmarshalRLPFrom, input)
}

func (c *Contract) unmarshalRLPFrom(_ *fastrlp.Parser, v *fastrlp.Value) error {
	elems, err := getElems(v, "contract", 5)
	if err != nil {
		return err
	}

	if err := elems[0].GetAddr(c.Address[:]); err != nil {
		return err
	}

	if err := elems[1].GetAddr(c.Origin[:]); err != nil {
		return err
	}

	if c.Name, err = elems[2].GetString(); err != nil {
		return err
	}

	return getInt64s(elems[3:], &c.ConsumeUserResourcePercent, &c.OriginEnergyLimit)
}

func (d *DynamicProperties) UnmarshalRLP(input []byte) error {
	return UnmarshalRlp(d.unmarshalRLPFrom, input)
}

func (d *DynamicProperties) unmarshalRLPFrom(_ *fastrlp.Parser, v *fastrlp.Value) error {
	elems, err := getElems(v, "dynamic properties", 5)
	if err != nil {
		return err
	}

	return getInt64s(elems,
		&d.TotalEnergyWeight,
		&d.TotalEnergyCurrentLimit,
		&d.TotalEnergyAverageUsage,
		&d.TotalEnergyAverageTime,
		&d.BlockEnergyUsage,
	)
}

package types

import (
	"github.com/umbracle/fastrlp"
)

type RLPMarshaler interface {
	MarshalRLPTo(dst []byte) []byte
}

type marshalRLPFunc func(ar *fastrlp.Arena) *fastrlp.Value

func MarshalRLPTo(obj marshalRLPFunc, dst []byte) []byte {
	ar := fastrlp.DefaultArenaPool.Get()
	dst = obj(ar).MarshalTo(dst)
	fastrlp.DefaultArenaPool.Put(ar)

	return dst
}

func (a *Account) MarshalRLPTo(dst []byte) []byte {
	return MarshalRLPTo(a.marshalRLPWith, dst)
}

func (a *Account) marshalRLPWith(ar *fastrlp.Arena) *fastrlp.Value {
	vv := ar.NewArray()
	vv.Set(ar.NewUint(uint64(a.Type)))
	vv.Set(ar.NewUint(uint64(a.Balance)))
	vv.Set(ar.NewUint(uint64(a.FrozenForEnergy)))
	vv.Set(ar.NewUint(uint64(a.EnergyUsage)))
	vv.Set(ar.NewUint(uint64(a.LatestConsumeTime)))

	if len(a.Assets) == 0 {
		vv.Set(ar.NewNullArray())
	} else {
		assets := ar.NewArray()

		for _, id := range a.AssetIDs() {
			pair := ar.NewArray()
			pair.Set(ar.NewUint(uint64(id)))
			pair.Set(ar.NewUint(uint64(a.Assets[id])))
			assets.Set(pair)
		}

		vv.Set(assets)
	}

	return vv
}

func (c *Contract) MarshalRLPTo(dst []byte) []byte {
	return MarshalRLPTo(c.marshalRLPWith, dst)
}

func (c *Contract) marshalRLPWith(ar *fastrlp.Arena) *fastrlp.Value {
	vv := ar.NewArray()
	vv.Set(ar.NewBytes(c.Address.Bytes()))
	vv.Set(ar.NewBytes(c.Origin.Bytes()))
	vv.Set(ar.NewString(c.Name))
	vv.Set(ar.NewUint(uint64(c.ConsumeUserResourcePercent)))
	vv.Set(ar.NewUint(uint64(c.OriginEnergyLimit)))

	return vv
}

func (d *DynamicProperties) MarshalRLPTo(dst []byte) []byte {
	return MarshalRLPTo(d.marshalRLPWith, dst)
}

func (d *DynamicProperties) marshalRLPWith(ar *fastrlp.Arena) *fastrlp.Value {
	vv := ar.NewArray()
	vv.Set(ar.NewUint(uint64(d.TotalEnergyWeight)))
	vv.Set(ar.NewUint(uint64(d.TotalEnergyCurrentLimit)))
	vv.Set(ar.NewUint(uint64(d.TotalEnergyAverageUsage)))
	vv.Set(ar.NewUint(uint64(d.TotalEnergyAverageTime)))
	vv.Set(ar.NewUint(uint64(d.BlockEnergyUsage)))

	return vv
}

func (t *Transaction) MarshalRLPTo(dst []byte) []byte {
	return MarshalRLPTo(t.marshalRLPWith, dst)
}

func (t *Transaction) marshalRLPWith(ar *fastrlp.Arena) *fastrlp.Value {
	vv := ar.NewArray()
	vv.Set(ar.NewUint(uint64(t.Type)))
	vv.Set(ar.NewBytes(t.Owner.Bytes()))
	vv.Set(ar.NewBytes(t.ContractAddress.Bytes()))
	vv.Set(ar.NewCopyBytes(t.Data))
	vv.Set(ar.NewUint(uint64(t.CallValue)))
	vv.Set(ar.NewUint(uint64(t.TokenID)))
	vv.Set(ar.NewUint(uint64(t.TokenValue)))
	vv.Set(ar.NewUint(uint64(t.FeeLimit)))
	vv.Set(ar.NewUint(uint64(t.Timestamp)))

	if t.NewContract == nil {
		vv.Set(ar.NewNullArray())
	} else {
		nc := ar.NewArray()
		nc.Set(ar.NewString(t.NewContract.Name))
		nc.Set(ar.NewUint(uint64(t.NewContract.ConsumeUserResourcePercent)))
		nc.Set(ar.NewUint(uint64(t.NewContract.OriginEnergyLimit)))
		vv.Set(nc)
	}

	return vv
}

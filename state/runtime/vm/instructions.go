package vm

import (
	"math"

	"github.com/energyvm/energy-edge/crypto"
	"github.com/energyvm/energy-edge/helper/common"
	"github.com/energyvm/energy-edge/helper/keccak"
	"github.com/energyvm/energy-edge/state/runtime"
	"github.com/energyvm/energy-edge/types"
	"github.com/holiman/uint256"
)

func opStop(f *frame) {
	f.halt()
}

func opAdd(f *frame) {
	x, y := f.stack.pop(), f.stack.peek()
	y.Add(&x, y)
}

func opMul(f *frame) {
	x, y := f.stack.pop(), f.stack.peek()
	y.Mul(&x, y)
}

func opSub(f *frame) {
	x, y := f.stack.pop(), f.stack.peek()
	y.Sub(&x, y)
}

func opDiv(f *frame) {
	x, y := f.stack.pop(), f.stack.peek()
	y.Div(&x, y)
}

func opSdiv(f *frame) {
	x, y := f.stack.pop(), f.stack.peek()
	y.SDiv(&x, y)
}

func opMod(f *frame) {
	x, y := f.stack.pop(), f.stack.peek()
	y.Mod(&x, y)
}

func opSmod(f *frame) {
	x, y := f.stack.pop(), f.stack.peek()
	y.SMod(&x, y)
}

func opAddmod(f *frame) {
	x, y, z := f.stack.pop(), f.stack.pop(), f.stack.peek()
	if z.IsZero() {
		z.Clear()
	} else {
		z.AddMod(&x, &y, z)
	}
}

func opMulmod(f *frame) {
	x, y, z := f.stack.pop(), f.stack.pop(), f.stack.peek()
	if z.IsZero() {
		z.Clear()
	} else {
		z.MulMod(&x, &y, z)
	}
}

func opExp(f *frame) {
	base, exponent := f.stack.pop(), f.stack.peek()
	exponent.Exp(&base, exponent)
}

func opSignExtend(f *frame) {
	back, num := f.stack.pop(), f.stack.peek()
	num.ExtendSign(num, &back)
}

func setBool(v *uint256.Int, b bool) {
	if b {
		v.SetOne()
	} else {
		v.Clear()
	}
}

func opLt(f *frame) {
	x, y := f.stack.pop(), f.stack.peek()
	setBool(y, x.Lt(y))
}

func opGt(f *frame) {
	x, y := f.stack.pop(), f.stack.peek()
	setBool(y, x.Gt(y))
}

func opSlt(f *frame) {
	x, y := f.stack.pop(), f.stack.peek()
	setBool(y, x.Slt(y))
}

func opSgt(f *frame) {
	x, y := f.stack.pop(), f.stack.peek()
	setBool(y, x.Sgt(y))
}

func opEq(f *frame) {
	x, y := f.stack.pop(), f.stack.peek()
	setBool(y, x.Eq(y))
}

func opIszero(f *frame) {
	x := f.stack.peek()
	setBool(x, x.IsZero())
}

func opAnd(f *frame) {
	x, y := f.stack.pop(), f.stack.peek()
	y.And(&x, y)
}

func opOr(f *frame) {
	x, y := f.stack.pop(), f.stack.peek()
	y.Or(&x, y)
}

func opXor(f *frame) {
	x, y := f.stack.pop(), f.stack.peek()
	y.Xor(&x, y)
}

func opNot(f *frame) {
	x := f.stack.peek()
	x.Not(x)
}

func opByte(f *frame) {
	th, val := f.stack.pop(), f.stack.peek()
	val.Byte(&th)
}

func opSHL(f *frame) {
	shift, value := f.stack.pop(), f.stack.peek()
	if shift.LtUint64(256) {
		value.Lsh(value, uint(shift.Uint64()))
	} else {
		value.Clear()
	}
}

func opSHR(f *frame) {
	shift, value := f.stack.pop(), f.stack.peek()
	if shift.LtUint64(256) {
		value.Rsh(value, uint(shift.Uint64()))
	} else {
		value.Clear()
	}
}

func opSAR(f *frame) {
	shift, value := f.stack.pop(), f.stack.peek()
	if shift.GtUint64(255) {
		if value.Sign() >= 0 {
			value.Clear()
		} else {
			value.SetAllOne()
		}

		return
	}

	value.SRsh(value, uint(shift.Uint64()))
}

func opSha3(f *frame) {
	offset, size := f.stack.pop(), f.stack.peek()
	data := f.memory.GetPtr(int64(offset.Uint64()), int64(size.Uint64()))

	size.SetBytes(keccak.Keccak256(nil, data))
}

func opAddress(f *frame) {
	addr := f.address()
	f.stack.push1().SetBytes(addr[:])
}

func opBalance(f *frame) {
	slot := f.stack.peek()
	addr := toAddress(slot)

	slot.SetUint64(uint64(f.view.GetBalance(addr)))
}

func opOrigin(f *frame) {
	f.stack.push1().SetBytes(f.msg.Origin[:])
}

func opCaller(f *frame) {
	f.stack.push1().SetBytes(f.msg.Caller[:])
}

func opCallValue(f *frame) {
	f.stack.push1().SetUint64(uint64(f.msg.Value))
}

func opCallTokenValue(f *frame) {
	f.stack.push1().SetUint64(uint64(f.msg.TokenValue))
}

func opCallTokenID(f *frame) {
	f.stack.push1().SetUint64(uint64(f.msg.TokenID))
}

// getData returns size bytes of data starting at start, zero padded on the right
func getData(data []byte, start uint64, size uint64) []byte {
	length := uint64(len(data))
	start = common.Min(start, length)

	end := start + size
	if end > length || end < start {
		end = length
	}

	out := make([]byte, size)
	copy(out, data[start:end])

	return out
}

func opCallDataLoad(f *frame) {
	x := f.stack.peek()
	if offset, overflow := x.Uint64WithOverflow(); !overflow {
		x.SetBytes(getData(f.msg.Input, offset, 32))
	} else {
		x.Clear()
	}
}

func opCallDataSize(f *frame) {
	f.stack.push1().SetUint64(uint64(len(f.msg.Input)))
}

// copyToMemory implements the *COPY family: pops the memory offset, the
// source offset and the length, then copies from src
func copyToMemory(f *frame, src []byte) {
	memOffset, dataOffset, length := f.stack.pop(), f.stack.pop(), f.stack.pop()

	offset, overflow := dataOffset.Uint64WithOverflow()
	if overflow {
		offset = math.MaxUint64
	}

	f.memory.Set(memOffset.Uint64(), length.Uint64(), getData(src, offset, length.Uint64()))
}

func opCallDataCopy(f *frame) {
	copyToMemory(f, f.msg.Input)
}

func opCodeSize(f *frame) {
	f.stack.push1().SetUint64(uint64(len(f.code)))
}

func opCodeCopy(f *frame) {
	copyToMemory(f, f.code)
}

func opGasPrice(f *frame) {
	f.stack.push1().SetUint64(uint64(f.s.env.Ctx.EnergyPrice))
}

func opExtCodeSize(f *frame) {
	slot := f.stack.peek()
	addr := toAddress(slot)

	slot.SetUint64(uint64(len(f.view.GetCode(addr))))
}

func opExtCodeCopy(f *frame) {
	a := f.stack.pop()
	addr := toAddress(&a)

	copyToMemory(f, f.view.GetCode(addr))
}

func opReturnDataSize(f *frame) {
	f.stack.push1().SetUint64(uint64(len(f.returnData)))
}

func opReturnDataCopy(f *frame) {
	memOffset, dataOffset, length := f.stack.pop(), f.stack.pop(), f.stack.pop()

	offset, overflow := dataOffset.Uint64WithOverflow()
	if overflow {
		f.exit(runtime.ErrReturnDataOutOfBounds)

		return
	}

	end := offset + length.Uint64()
	if end < offset || uint64(len(f.returnData)) < end {
		f.exit(runtime.ErrReturnDataOutOfBounds)

		return
	}

	f.memory.Set(memOffset.Uint64(), length.Uint64(), f.returnData[offset:end])
}

func opExtCodeHash(f *frame) {
	slot := f.stack.peek()
	addr := toAddress(slot)

	if !f.view.AccountExists(addr) {
		slot.Clear()

		return
	}

	slot.SetBytes(keccak.Keccak256(nil, f.view.GetCode(addr)))
}

func opBlockhash(f *frame) {
	num := f.stack.peek()

	n, overflow := num.Uint64WithOverflow()
	if overflow || n > math.MaxInt64 {
		num.Clear()

		return
	}

	ctx := f.s.env.Ctx
	requested := int64(n)
	lower := ctx.Number - 256

	if requested >= ctx.Number || requested < lower || ctx.BlockHash == nil {
		num.Clear()

		return
	}

	hash := ctx.BlockHash(requested)
	num.SetBytes(hash[:])
}

func opCoinbase(f *frame) {
	f.stack.push1().SetBytes(f.s.env.Ctx.Coinbase[:])
}

func opTimestamp(f *frame) {
	f.stack.push1().SetUint64(uint64(f.s.env.Ctx.Timestamp))
}

func opNumber(f *frame) {
	f.stack.push1().SetUint64(uint64(f.s.env.Ctx.Number))
}

func opPushZero(f *frame) {
	f.stack.push1()
}

func opChainID(f *frame) {
	f.stack.push1().SetUint64(uint64(f.s.env.Ctx.ChainID))
}

func opSelfBalance(f *frame) {
	f.stack.push1().SetUint64(uint64(f.view.GetBalance(f.address())))
}

func opPop(f *frame) {
	f.stack.pop()
}

func opMload(f *frame) {
	v := f.stack.peek()
	offset := int64(v.Uint64())

	v.SetBytes(f.memory.GetPtr(offset, 32))
}

func opMstore(f *frame) {
	mStart, val := f.stack.pop(), f.stack.pop()
	f.memory.Set32(mStart.Uint64(), &val)
}

func opMstore8(f *frame) {
	off, val := f.stack.pop(), f.stack.pop()
	f.memory.store[off.Uint64()] = byte(val.Uint64())
}

func opSload(f *frame) {
	loc := f.stack.peek()
	value := f.view.GetStorage(f.address(), toHash(loc))

	loc.SetBytes(value[:])
}

func opSstore(f *frame) {
	loc, val := f.stack.pop(), f.stack.pop()
	key := toHash(&loc)

	if current := f.view.GetStorage(f.address(), key); current != types.ZeroHash && val.IsZero() {
		f.result.Refund += SstoreRefundEnergy
	}

	f.view.PutStorage(f.address(), key, toHash(&val))
}

func opJump(f *frame) {
	pos := f.stack.pop()
	if !f.validJumpdest(&pos) {
		f.exit(runtime.ErrInvalidJump)

		return
	}

	f.pc = pos.Uint64()
}

func opJumpi(f *frame) {
	pos, cond := f.stack.pop(), f.stack.pop()
	if cond.IsZero() {
		f.pc++

		return
	}

	if !f.validJumpdest(&pos) {
		f.exit(runtime.ErrInvalidJump)

		return
	}

	f.pc = pos.Uint64()
}

func opJumpdest(*frame) {}

func opPc(f *frame) {
	f.stack.push1().SetUint64(f.pc)
}

func opMsize(f *frame) {
	f.stack.push1().SetUint64(uint64(f.memory.Len()))
}

func opGas(f *frame) {
	f.stack.push1().SetUint64(f.energyLeft())
}

func makePush(size uint64) executionFunc {
	return func(f *frame) {
		codeLen := uint64(len(f.code))

		start := f.pc + 1
		if start > codeLen {
			start = codeLen
		}

		end := start + size
		if end > codeLen {
			end = codeLen
		}

		// a truncated payload is padded with zeros on the right
		buf := make([]byte, size)
		copy(buf, f.code[start:end])

		f.stack.push1().SetBytes(buf)
		f.pc += size
	}
}

func makeDup(n int) executionFunc {
	return func(f *frame) {
		f.stack.dup(n)
	}
}

func makeSwap(n int) executionFunc {
	return func(f *frame) {
		f.stack.swap(n + 1)
	}
}

func makeLog(n int) executionFunc {
	return func(f *frame) {
		mStart, mSize := f.stack.pop(), f.stack.pop()

		topics := make([]types.Hash, n)
		for i := 0; i < n; i++ {
			topic := f.stack.pop()
			topics[i] = toHash(&topic)
		}

		f.result.Logs = append(f.result.Logs, &types.Log{
			Address: f.address(),
			Topics:  topics,
			Data:    f.memory.GetCopy(int64(mStart.Uint64()), int64(mSize.Uint64())),
		})
	}
}

func opReturn(f *frame) {
	offset, size := f.stack.pop(), f.stack.pop()
	f.ret = f.memory.GetCopy(int64(offset.Uint64()), int64(size.Uint64()))
	f.halt()
}

func opRevert(f *frame) {
	offset, size := f.stack.pop(), f.stack.pop()
	f.ret = f.memory.GetCopy(int64(offset.Uint64()), int64(size.Uint64()))
	f.exit(runtime.ErrExecutionReverted)
}

func opIsContract(f *frame) {
	slot := f.stack.peek()
	addr := toAddress(slot)

	setBool(slot, f.view.GetContract(addr) != nil)
}

func opTokenBalance(f *frame) {
	id := f.stack.pop()
	slot := f.stack.peek()

	tokenID, ok := toInt64(&id)
	if !ok || !types.ValidTokenID(tokenID) {
		f.exit(runtime.ErrInvalidTokenID)

		return
	}

	addr := toAddress(slot)
	slot.SetUint64(uint64(f.view.GetTokenBalance(addr, tokenID)))
}

// opCall implements CALL, CALLCODE, DELEGATECALL, STATICCALL and CALLTOKEN.
// The forwarded energy was settled when the instruction was priced.
func opCall(callType runtime.CallType) executionFunc {
	return func(f *frame) {
		allowance := f.callAllowance

		f.stack.pop()
		addr := f.stack.pop()

		var value, tokenID uint256.Int
		if callType == runtime.Call || callType == runtime.CallCode || callType == runtime.CallToken {
			value = f.stack.pop()
		}

		if callType == runtime.CallToken {
			tokenID = f.stack.pop()
		}

		inOffset, inSize := f.stack.pop(), f.stack.pop()
		retOffset, retSize := f.stack.pop(), f.stack.pop()

		to := toAddress(&addr)
		args := f.memory.GetCopy(int64(inOffset.Uint64()), int64(inSize.Uint64()))

		f.returnData = nil
		slot := f.stack.push1()

		amount, ok := toInt64(&value)
		if !ok {
			// more than any balance can hold
			f.refundEnergy(allowance)

			return
		}

		if amount > 0 {
			allowance += CallStipend
		}

		msg := f.callMessage(callType, to, amount, args, allowance)

		if callType == runtime.CallToken {
			id, ok := toInt64(&tokenID)
			if amount > 0 && (!ok || !types.ValidTokenID(id)) {
				f.exit(runtime.ErrTransferFailed)

				return
			}

			msg.TokenID = id
		}

		res := f.s.call(f, f.view, msg)
		if runtime.IsFatal(res.Err) {
			f.exit(res.Err)

			return
		}

		if res.Succeeded() {
			slot.SetOne()
		}

		if res.Succeeded() || res.Reverted() {
			n := common.Min(retSize.Uint64(), uint64(len(res.ReturnValue)))
			f.memory.Set(retOffset.Uint64(), n, res.ReturnValue)
			f.returnData = res.ReturnValue
		}

		f.refundEnergy(res.EnergyLeft)
		f.result.Merge(res)
	}
}

func (f *frame) callMessage(
	callType runtime.CallType,
	to types.Address,
	amount int64,
	input []byte,
	energy uint64,
) *runtime.Contract {
	msg := &runtime.Contract{
		Type:        callType,
		Origin:      f.msg.Origin,
		Caller:      f.address(),
		Address:     to,
		CodeAddress: to,
		Depth:       f.depth() + 1,
		Input:       input,
		Energy:      energy,
		Static:      f.msg.Static,
	}

	switch callType {
	case runtime.Call:
		msg.Value = amount
	case runtime.CallToken:
		msg.TokenValue = amount
	case runtime.CallCode:
		msg.Address = f.address()
		msg.Value = amount
	case runtime.DelegateCall:
		msg.Caller = f.msg.Caller
		msg.Address = f.address()
		msg.Value = f.msg.Value
		msg.TokenID = f.msg.TokenID
		msg.TokenValue = f.msg.TokenValue
	case runtime.StaticCall:
		msg.Static = true
	}

	return msg
}

func opCreate(salted bool) executionFunc {
	return func(f *frame) {
		value := f.stack.pop()
		offset, size := f.stack.pop(), f.stack.pop()

		var salt uint256.Int
		if salted {
			salt = f.stack.pop()
		}

		f.returnData = nil
		slot := f.stack.push1()

		if f.depth() >= MaxCallDepth {
			return
		}

		amount, ok := toInt64(&value)
		if !ok || f.view.GetBalance(f.address()) < amount {
			return
		}

		initCode := f.memory.GetCopy(int64(offset.Uint64()), int64(size.Uint64()))

		var addr types.Address
		if salted {
			addr = crypto.CreateAddress2(f.address(), salt.Bytes32(), initCode)
		} else {
			addr = crypto.CreateAddress(f.s.env.Ctx.TxHash, f.address(), f.s.nonce)
		}

		// the child runs on everything the caller has left
		allowance := f.energyLeft()
		f.spendEnergy(allowance)

		msg := runtime.NewContractCreation(
			f.depth()+1,
			f.msg.Origin,
			f.address(),
			addr,
			amount,
			allowance,
			initCode,
			&types.Contract{
				Address:                    addr,
				Origin:                     f.address(),
				ConsumeUserResourcePercent: 100,
			},
		)
		msg.Static = f.msg.Static

		if salted {
			msg.Type = runtime.Create2
		}

		res := f.s.create(f, f.view, msg)
		if runtime.IsFatal(res.Err) {
			f.exit(res.Err)

			return
		}

		f.refundEnergy(res.EnergyLeft)

		if res.Succeeded() {
			slot.SetBytes(addr[:])
		} else if res.Reverted() {
			f.returnData = res.ReturnValue
		}

		f.result.Merge(res)
	}
}

func opSelfDestruct(f *frame) {
	w := f.stack.pop()
	beneficiary := toAddress(&w)
	addr := f.address()

	balance := f.view.GetBalance(addr)
	edge := f.s.newEdge(addr, beneficiary, balance, 0, 0, f.depth(), noteSuicide)

	if err := sweep(f.view, addr, beneficiary); err != nil {
		f.exit(err)

		return
	}

	f.result.Deleted = append(f.result.Deleted, addr)
	f.result.Touched = append(f.result.Touched, beneficiary)
	f.result.CallEdges = append(f.result.CallEdges, edge)
	f.halt()
}

// sweep moves the balance and every token of addr to beneficiary.
// Funds swept onto the destructed account itself are burned.
func sweep(view runtime.StateView, addr, beneficiary types.Address) error {
	account := view.GetAccount(addr)
	if account == nil {
		return nil
	}

	if beneficiary == addr {
		account.Balance = 0
		account.Assets = nil
		view.PutAccount(addr, account)

		return nil
	}

	if err := moveBalance(view, addr, beneficiary, account.Balance); err != nil {
		return err
	}

	for _, id := range account.AssetIDs() {
		if err := moveToken(view, addr, beneficiary, id, account.Assets[id]); err != nil {
			return err
		}
	}

	return nil
}

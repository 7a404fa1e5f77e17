package vm

import (
	"errors"
	"math"

	"github.com/energyvm/energy-edge/state/runtime"
	"github.com/energyvm/energy-edge/types"
)

var errMockBalance = errors.New("balance out of range")

// mockView is a map backed state view. A checkpoint copies the maps of its
// parent and Commit hands them back.
type mockView struct {
	parent *mockView

	accounts  map[types.Address]*types.Account
	code      map[types.Address][]byte
	contracts map[types.Address]*types.Contract
	storage   map[types.Address]map[types.Hash]types.Hash
	props     *types.DynamicProperties
}

func newMockView() *mockView {
	return &mockView{
		accounts:  map[types.Address]*types.Account{},
		code:      map[types.Address][]byte{},
		contracts: map[types.Address]*types.Contract{},
		storage:   map[types.Address]map[types.Hash]types.Hash{},
		props:     &types.DynamicProperties{},
	}
}

// deploy installs code at addr as a contract owned by addr
func (m *mockView) deploy(addr types.Address, code []byte, balance int64) {
	m.accounts[addr] = &types.Account{Type: types.AccountTypeContract, Balance: balance}
	m.code[addr] = code
	m.contracts[addr] = &types.Contract{Address: addr, Origin: addr, ConsumeUserResourcePercent: 100}
}

func (m *mockView) AccountExists(addr types.Address) bool {
	_, ok := m.accounts[addr]

	return ok
}

func (m *mockView) GetAccount(addr types.Address) *types.Account {
	if a, ok := m.accounts[addr]; ok {
		return a.Copy()
	}

	return nil
}

func (m *mockView) PutAccount(addr types.Address, account *types.Account) {
	m.accounts[addr] = account.Copy()
}

func (m *mockView) CreateAccount(addr types.Address, accountType types.AccountType) {
	m.accounts[addr] = &types.Account{Type: accountType}
}

func (m *mockView) DeleteAccount(addr types.Address) {
	delete(m.accounts, addr)
	delete(m.code, addr)
	delete(m.contracts, addr)
	delete(m.storage, addr)
}

func (m *mockView) GetBalance(addr types.Address) int64 {
	if a, ok := m.accounts[addr]; ok {
		return a.Balance
	}

	return 0
}

func (m *mockView) AddBalance(addr types.Address, delta int64) error {
	a, ok := m.accounts[addr]
	if !ok {
		a = &types.Account{}
	}

	a = a.Copy()
	if (delta > 0 && a.Balance > math.MaxInt64-delta) || a.Balance+delta < 0 {
		return errMockBalance
	}

	a.Balance += delta
	m.accounts[addr] = a

	return nil
}

func (m *mockView) GetTokenBalance(addr types.Address, tokenID int64) int64 {
	if a, ok := m.accounts[addr]; ok {
		return a.AssetBalance(tokenID)
	}

	return 0
}

func (m *mockView) AddTokenBalance(addr types.Address, tokenID int64, delta int64) error {
	a, ok := m.accounts[addr]
	if !ok {
		a = &types.Account{}
	}

	a = a.Copy()

	current := a.AssetBalance(tokenID)
	if (delta > 0 && current > math.MaxInt64-delta) || current+delta < 0 {
		return errMockBalance
	}

	a.SetAssetBalance(tokenID, current+delta)
	m.accounts[addr] = a

	return nil
}

func (m *mockView) GetCode(addr types.Address) []byte {
	return m.code[addr]
}

func (m *mockView) SaveCode(addr types.Address, code []byte) {
	m.code[addr] = code
}

func (m *mockView) GetContract(addr types.Address) *types.Contract {
	if c, ok := m.contracts[addr]; ok {
		return c.Copy()
	}

	return nil
}

func (m *mockView) CreateContract(contract *types.Contract) {
	m.contracts[contract.Address] = contract.Copy()
}

func (m *mockView) GetStorage(addr types.Address, key types.Hash) types.Hash {
	return m.storage[addr][key]
}

func (m *mockView) PutStorage(addr types.Address, key types.Hash, value types.Hash) {
	slots := make(map[types.Hash]types.Hash, len(m.storage[addr])+1)
	for k, v := range m.storage[addr] {
		slots[k] = v
	}

	if value == types.ZeroHash {
		delete(slots, key)
	} else {
		slots[key] = value
	}

	m.storage[addr] = slots
}

func (m *mockView) GetDynamicProperties() *types.DynamicProperties {
	return m.props.Copy()
}

func (m *mockView) PutDynamicProperties(props *types.DynamicProperties) {
	m.props = props.Copy()
}

func (m *mockView) NewCheckpoint() runtime.StateView {
	child := newMockView()
	child.parent = m
	child.props = m.props.Copy()

	for k, v := range m.accounts {
		child.accounts[k] = v
	}

	for k, v := range m.code {
		child.code[k] = v
	}

	for k, v := range m.contracts {
		child.contracts[k] = v
	}

	for k, v := range m.storage {
		child.storage[k] = v
	}

	return child
}

func (m *mockView) Commit() {
	m.parent.accounts = m.accounts
	m.parent.code = m.code
	m.parent.contracts = m.contracts
	m.parent.storage = m.storage
	m.parent.props = m.props
}

func (m *mockView) Discard() {}

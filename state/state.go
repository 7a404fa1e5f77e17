package state

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru"

	"github.com/energyvm/energy-edge/types"
)

const objectCacheSize = 4096

// key prefixes of the persisted records
var (
	accountPrefix  = []byte("acct")
	contractPrefix = []byte("ctrt")
	codePrefix     = []byte("code")
	storagePrefix  = []byte("stor")
	propertiesKey  = []byte("dynamic-properties")
)

func accountKey(addr types.Address) []byte {
	return append(append([]byte{}, accountPrefix...), addr[:]...)
}

func contractKey(addr types.Address) []byte {
	return append(append([]byte{}, contractPrefix...), addr[:]...)
}

func codeKey(addr types.Address) []byte {
	return append(append([]byte{}, codePrefix...), addr[:]...)
}

func storageKeyPrefix(addr types.Address) []byte {
	return append(append([]byte{}, storagePrefix...), addr[:]...)
}

func storageKey(addr types.Address, slot types.Hash) []byte {
	return append(storageKeyPrefix(addr), slot[:]...)
}

// State is the committed world state. Decoded records are kept in an LRU
// cache in front of the storage.
type State struct {
	storage Storage
	cache   *lru.Cache
}

func NewState(storage Storage) *State {
	cache, _ := lru.New(objectCacheSize)

	return &State{
		storage: storage,
		cache:   cache,
	}
}

func (s *State) get(key []byte, decode func([]byte) (interface{}, error)) (interface{}, bool, error) {
	if obj, ok := s.cache.Get(string(key)); ok {
		return obj, true, nil
	}

	data, ok, err := s.storage.Get(key)
	if err != nil || !ok {
		return nil, false, err
	}

	obj, err := decode(data)
	if err != nil {
		return nil, false, fmt.Errorf("failed to decode %x: %w", key, err)
	}

	s.cache.Add(string(key), obj)

	return obj, true, nil
}

// Account returns the committed account at addr. The result must not be modified.
func (s *State) Account(addr types.Address) (*types.Account, error) {
	obj, ok, err := s.get(accountKey(addr), func(b []byte) (interface{}, error) {
		a := new(types.Account)

		return a, a.UnmarshalRLP(b)
	})
	if err != nil || !ok {
		return nil, err
	}

	return obj.(*types.Account), nil //nolint:forcetypeassert
}

// Contract returns the committed contract record at addr. The result must not be modified.
func (s *State) Contract(addr types.Address) (*types.Contract, error) {
	obj, ok, err := s.get(contractKey(addr), func(b []byte) (interface{}, error) {
		c := new(types.Contract)

		return c, c.UnmarshalRLP(b)
	})
	if err != nil || !ok {
		return nil, err
	}

	return obj.(*types.Contract), nil //nolint:forcetypeassert
}

func (s *State) Code(addr types.Address) ([]byte, error) {
	code, _, err := s.storage.Get(codeKey(addr))

	return code, err
}

func (s *State) Storage(addr types.Address, slot types.Hash) (types.Hash, error) {
	data, ok, err := s.storage.Get(storageKey(addr, slot))
	if err != nil || !ok {
		return types.ZeroHash, err
	}

	return types.BytesToHash(data), nil
}

// DynamicProperties returns the committed network counters, zero valued
// before the first commit
func (s *State) DynamicProperties() (*types.DynamicProperties, error) {
	obj, ok, err := s.get(propertiesKey, func(b []byte) (interface{}, error) {
		d := new(types.DynamicProperties)

		return d, d.UnmarshalRLP(b)
	})
	if err != nil {
		return nil, err
	}

	if !ok {
		return &types.DynamicProperties{}, nil
	}

	return obj.(*types.DynamicProperties), nil //nolint:forcetypeassert
}

// storageKeys lists the persisted slots of addr
func (s *State) storageKeys(addr types.Address) ([][]byte, error) {
	return s.storage.Keys(storageKeyPrefix(addr))
}

func (s *State) evict(key []byte) {
	s.cache.Remove(string(key))
}

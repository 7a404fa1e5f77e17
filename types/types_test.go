package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddress_Base58(t *testing.T) {
	t.Parallel()

	addr := StringToAddress("0x3a1b2c")
	encoded := addr.Base58()

	assert.Equal(t, byte('T'), encoded[0])

	decoded, err := AddressFromBase58(encoded)
	require.NoError(t, err)
	assert.Equal(t, addr, decoded)

	parsed, err := ParseAddress(encoded)
	require.NoError(t, err)
	assert.Equal(t, addr, parsed)
}

func TestAddress_Base58BadChecksum(t *testing.T) {
	t.Parallel()

	encoded := []byte(StringToAddress("0x01").Base58())
	if encoded[len(encoded)-1] == '2' {
		encoded[len(encoded)-1] = '3'
	} else {
		encoded[len(encoded)-1] = '2'
	}

	_, err := AddressFromBase58(string(encoded))
	assert.ErrorIs(t, err, ErrInvalidBase58Address)
}

func TestParseAddress_Hex(t *testing.T) {
	t.Parallel()

	addr, err := ParseAddress("0x00000000000000000000000000000000000000ff")
	require.NoError(t, err)
	assert.Equal(t, StringToAddress("0xff"), addr)

	_, err = ParseAddress("0xff")
	assert.Error(t, err)
}

func TestBytesToHash_Truncates(t *testing.T) {
	t.Parallel()

	b := make([]byte, 40)
	b[39] = 0x7

	h := BytesToHash(b)
	assert.Equal(t, byte(0x7), h[31])
}

func TestAccount_RLP(t *testing.T) {
	t.Parallel()

	acct := &Account{
		Type:              AccountTypeContract,
		Balance:           1_000_000,
		FrozenForEnergy:   5_000_000,
		EnergyUsage:       321,
		LatestConsumeTime: 99,
	}
	acct.SetAssetBalance(1_000_001, 50)
	acct.SetAssetBalance(1_000_007, 3)

	out := new(Account)
	require.NoError(t, out.UnmarshalRLP(acct.MarshalRLPTo(nil)))
	assert.Equal(t, acct, out)

	// zeroed assets are dropped from the record
	acct.SetAssetBalance(1_000_007, 0)
	assert.Len(t, acct.Assets, 1)
}

func TestContract_RLP(t *testing.T) {
	t.Parallel()

	c := &Contract{
		Address:                    StringToAddress("0x1"),
		Origin:                     StringToAddress("0x2"),
		Name:                       "getter",
		ConsumeUserResourcePercent: 40,
		OriginEnergyLimit:          10_000,
	}

	out := new(Contract)
	require.NoError(t, out.UnmarshalRLP(c.MarshalRLPTo(nil)))
	assert.Equal(t, c, out)

	assert.Error(t, out.UnmarshalRLP([]byte{0xc1, 0x01}))
}

func TestTransaction_ComputeHash(t *testing.T) {
	t.Parallel()

	tx := &Transaction{
		Type:     CreateContractTx,
		Owner:    StringToAddress("0xaa"),
		Data:     []byte{0x60, 0x00},
		FeeLimit: 1_000_000,
		NewContract: &NewContract{
			Name:                       "c",
			ConsumeUserResourcePercent: 100,
		},
	}

	h1 := tx.Copy().ComputeHash().Hash
	h2 := tx.Copy().ComputeHash().Hash
	assert.Equal(t, h1, h2)
	assert.NotEqual(t, ZeroHash, h1)

	other := tx.Copy()
	other.Timestamp = 1
	assert.NotEqual(t, h1, other.ComputeHash().Hash)
}

func TestResultCode_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "OUT_OF_TIME", ResultOutOfTime.String())
	assert.Equal(t, "JVM_STACK_OVER_FLOW", ResultJVMStackOverflow.String())
	assert.Equal(t, "UNKNOWN", ResultCode(200).String())
}

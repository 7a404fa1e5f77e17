package vm

// Fixed energy tiers
const (
	EnergyZeroStep    uint64 = 0
	EnergyQuickStep   uint64 = 2
	EnergyFastestStep uint64 = 3
	EnergyFastStep    uint64 = 5
	EnergyMidStep     uint64 = 8
	EnergySlowStep    uint64 = 10
	EnergyExtStep     uint64 = 20
	EnergySpecialStep uint64 = 1
)

// Arithmetic and hashing
const (
	ExpEnergy      uint64 = 10
	ExpByteEnergy  uint64 = 10
	Sha3Energy     uint64 = 30
	Sha3WordEnergy uint64 = 6
)

// Storage
const (
	SloadEnergy        uint64 = 50
	SstoreSetEnergy    uint64 = 20000
	SstoreResetEnergy  uint64 = 5000
	SstoreClearEnergy  uint64 = 5000
	SstoreRefundEnergy uint64 = 15000
)

// Memory, copies and logs
const (
	MemoryEnergy   uint64 = 3
	CopyEnergy     uint64 = 3
	LogEnergy      uint64 = 375
	LogTopicEnergy uint64 = 375
	LogDataEnergy  uint64 = 8
	QuadCoeffDiv   uint64 = 512
	MemoryLimit    uint64 = 3 * 1024 * 1024
)

// Accounts, calls and creation
const (
	BalanceEnergy      uint64 = 20
	ExtCodeSizeEnergy  uint64 = 20
	ExtCodeCopyEnergy  uint64 = 20
	ExtCodeHashEnergy  uint64 = 400
	IsContractEnergy   uint64 = 400
	TokenBalanceEnergy uint64 = 20
	BlockHashEnergy    uint64 = 20
	SelfBalanceEnergy  uint64 = 5
	CallEnergy         uint64 = 40
	CallValueTransfer  uint64 = 9000
	CallNewAccount     uint64 = 25000
	CallStipend        uint64 = 2300
	CreateEnergy       uint64 = 32000
	CreateDataEnergy   uint64 = 200
	SelfdestructEnergy uint64 = 0
)

const (
	// MaxCallDepth is the deepest frame a CALL or CREATE can enter
	MaxCallDepth = 1024

	// StackLimit is the operand stack capacity
	StackLimit = 1024
)

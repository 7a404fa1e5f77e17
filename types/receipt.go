package types

// ResultCode classifies how a contract transaction terminated
type ResultCode uint8

const (
	ResultDefault ResultCode = iota
	ResultSuccess
	ResultRevert
	ResultBadJumpDestination
	ResultOutOfMemory
	ResultPrecompiledContract
	ResultStackTooSmall
	ResultStackTooLarge
	ResultIllegalOperation
	ResultStackOverflow
	ResultOutOfEnergy
	ResultOutOfTime
	ResultJVMStackOverflow
	ResultUnknown
	ResultTransferFailed
	ResultInvalidCode
)

var resultCodeNames = map[ResultCode]string{
	ResultDefault:             "DEFAULT",
	ResultSuccess:             "SUCCESS",
	ResultRevert:              "REVERT",
	ResultBadJumpDestination:  "BAD_JUMP_DESTINATION",
	ResultOutOfMemory:         "OUT_OF_MEMORY",
	ResultPrecompiledContract: "PRECOMPILED_CONTRACT",
	ResultStackTooSmall:       "STACK_TOO_SMALL",
	ResultStackTooLarge:       "STACK_TOO_LARGE",
	ResultIllegalOperation:    "ILLEGAL_OPERATION",
	ResultStackOverflow:       "STACK_OVERFLOW",
	ResultOutOfEnergy:         "OUT_OF_ENERGY",
	ResultOutOfTime:           "OUT_OF_TIME",
	ResultJVMStackOverflow:    "JVM_STACK_OVER_FLOW",
	ResultUnknown:             "UNKNOWN",
	ResultTransferFailed:      "TRANSFER_FAILED",
	ResultInvalidCode:         "INVALID_CODE",
}

func (r ResultCode) String() string {
	if name, ok := resultCodeNames[r]; ok {
		return name
	}

	return "UNKNOWN"
}

func (r ResultCode) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

type Log struct {
	Address Address
	Topics  []Hash
	Data    []byte
}

// CallEdge records one internal value transfer or call made during execution
type CallEdge struct {
	Hash       Hash
	Caller     Address
	Callee     Address
	Value      int64
	TokenID    int64
	TokenValue int64
	Depth      int
	Note       string
	Rejected   bool
}

// Receipt is the result of applying a contract transaction
type Receipt struct {
	TxHash          Hash
	ContractAddress *Address
	Result          ResultCode
	ReturnValue     []byte
	ErrorMessage    string

	// EnergyUsage is the energy the caller paid from frozen balance
	EnergyUsage int64

	// EnergyFee is the balance (in sun) the caller burned for energy
	EnergyFee int64

	// OriginEnergyUsage is the energy the contract origin paid
	OriginEnergyUsage int64

	// EnergyUsageTotal is the total energy consumed
	EnergyUsageTotal int64

	Logs      []*Log
	CallEdges []*CallEdge
}

func (r *Receipt) Succeeded() bool {
	return r.Result == ResultSuccess
}

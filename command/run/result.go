package run

import (
	"bytes"
	"fmt"

	"github.com/energyvm/energy-edge/command"
	"github.com/energyvm/energy-edge/helper/hex"
	"github.com/energyvm/energy-edge/state/runtime"
	"github.com/energyvm/energy-edge/types"
)

type ReceiptResult struct {
	TxHash            string   `json:"txHash"`
	ContractAddress   string   `json:"contractAddress,omitempty"`
	Result            string   `json:"result"`
	ReturnValue       string   `json:"returnValue"`
	ErrorMessage      string   `json:"errorMessage,omitempty"`
	EnergyUsage       int64    `json:"energyUsage"`
	EnergyFee         int64    `json:"energyFee"`
	OriginEnergyUsage int64    `json:"originEnergyUsage"`
	EnergyUsageTotal  int64    `json:"energyUsageTotal"`
	Logs              []string `json:"logs"`
}

func newReceiptResult(receipt *types.Receipt) *ReceiptResult {
	r := &ReceiptResult{
		TxHash:            receipt.TxHash.String(),
		Result:            receipt.Result.String(),
		ReturnValue:       hex.EncodeToHex(receipt.ReturnValue),
		ErrorMessage:      receipt.ErrorMessage,
		EnergyUsage:       receipt.EnergyUsage,
		EnergyFee:         receipt.EnergyFee,
		OriginEnergyUsage: receipt.OriginEnergyUsage,
		EnergyUsageTotal:  receipt.EnergyUsageTotal,
		Logs:              formatLogs(receipt.Logs),
	}

	if receipt.ContractAddress != nil {
		r.ContractAddress = receipt.ContractAddress.Base58()
	}

	return r
}

func (r *ReceiptResult) GetOutput() string {
	var buffer bytes.Buffer

	buffer.WriteString("\n[RECEIPT]\n")
	buffer.WriteString(command.FormatKV([]string{
		fmt.Sprintf("Transaction hash|%s", r.TxHash),
		fmt.Sprintf("Contract address|%s", r.ContractAddress),
		fmt.Sprintf("Result|%s", r.Result),
		fmt.Sprintf("Return value|%s", r.ReturnValue),
		fmt.Sprintf("Error|%s", r.ErrorMessage),
		fmt.Sprintf("Energy usage|%d", r.EnergyUsage),
		fmt.Sprintf("Origin energy usage|%d", r.OriginEnergyUsage),
		fmt.Sprintf("Energy usage total|%d", r.EnergyUsageTotal),
		fmt.Sprintf("Energy fee|%d", r.EnergyFee),
	}))
	buffer.WriteString("\n")

	if len(r.Logs) > 0 {
		buffer.WriteString("\n[LOGS]\n")
		buffer.WriteString(command.FormatList(r.Logs))
		buffer.WriteString("\n")
	}

	return buffer.String()
}

type CallResult struct {
	Result       string `json:"result"`
	ReturnValue  string `json:"returnValue"`
	ErrorMessage string `json:"errorMessage,omitempty"`
	EnergyUsed   uint64 `json:"energyUsed"`
}

func newCallResult(res *runtime.FrameResult) *CallResult {
	r := &CallResult{
		Result:      runtime.ResultCode(res.Err).String(),
		ReturnValue: hex.EncodeToHex(res.ReturnValue),
		EnergyUsed:  res.EnergyUsed,
	}

	if res.Err != nil {
		r.ErrorMessage = res.Err.Error()
	}

	return r
}

func (r *CallResult) GetOutput() string {
	var buffer bytes.Buffer

	buffer.WriteString("\n[CONSTANT CALL]\n")
	buffer.WriteString(command.FormatKV([]string{
		fmt.Sprintf("Result|%s", r.Result),
		fmt.Sprintf("Return value|%s", r.ReturnValue),
		fmt.Sprintf("Error|%s", r.ErrorMessage),
		fmt.Sprintf("Energy used|%d", r.EnergyUsed),
	}))
	buffer.WriteString("\n")

	return buffer.String()
}

// formatLogs renders one row per log: emitter | topics | data
func formatLogs(logs []*types.Log) []string {
	rows := make([]string, 0, len(logs)+1)
	if len(logs) == 0 {
		return rows
	}

	rows = append(rows, "Address|Topics|Data")

	for _, log := range logs {
		topics := make([]string, 0, len(log.Topics))
		for _, topic := range log.Topics {
			topics = append(topics, topic.String())
		}

		rows = append(rows, fmt.Sprintf("%s|%v|%s", log.Address.Base58(), topics, hex.EncodeToHex(log.Data)))
	}

	return rows
}

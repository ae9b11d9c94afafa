package protocol

import (
	"encoding/json"

	"escaperoom.ai/internal/felt"
)

// CallMsg is one contract invocation inside an execute request.
type CallMsg struct {
	To       felt.Felt   `json:"to"`
	Selector felt.Felt   `json:"selector"`
	Calldata []felt.Felt `json:"calldata"`
}

// ExecuteParams (client -> node). Signature covers Canonical(...) of the other fields.
type ExecuteParams struct {
	Account   felt.Felt `json:"account"`
	ChainID   felt.Felt `json:"chain_id"`
	Nonce     string    `json:"nonce"`
	TS        int64     `json:"ts"`
	Calls     []CallMsg `json:"calls"`
	Signature string    `json:"signature"`
}

type ExecuteResult struct {
	TransactionHash felt.Felt `json:"transaction_hash"`
}

// ReadRecordParams (client -> node).
type ReadRecordParams struct {
	Model string      `json:"model"`
	Keys  []felt.Felt `json:"keys"`
}

// ReadRecordResult carries the record in schema wire form.
type ReadRecordResult struct {
	Record json.RawMessage `json:"record"`
}

package tvm

import (
	"encoding/json"
	"fmt"

	"tvmdeploy/internal/keys"
)

// Abi references an interface description. Only inline JSON documents are used.
type Abi struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// AbiJSON wraps an interface description document.
func AbiJSON(doc string) Abi { return Abi{Type: "Json", Value: doc} }

// Signer selects how an encoded message is signed.
type Signer struct {
	Type      string        `json:"type"`
	PublicKey string        `json:"public_key,omitempty"`
	Keys      *keys.KeyPair `json:"keys,omitempty"`
}

func SignerNone() Signer { return Signer{Type: "None"} }

// SignerExternal encodes for the given public key without signing.
// Used for address calculation.
func SignerExternal(public string) Signer { return Signer{Type: "External", PublicKey: public} }

func SignerKeys(kp keys.KeyPair) Signer { return Signer{Type: "Keys", Keys: &kp} }

// DeploySet carries the code image for a deploy message.
type DeploySet struct {
	Tvc           string `json:"tvc,omitempty"`
	WorkchainID   *int32 `json:"workchain_id,omitempty"`
	InitialPubkey string `json:"initial_pubkey,omitempty"`
}

// FunctionHeader overrides message header fields. Time is in milliseconds.
type FunctionHeader struct {
	Expire *uint32 `json:"expire,omitempty"`
	Time   *uint64 `json:"time,omitempty"`
	Pubkey string  `json:"pubkey,omitempty"`
}

// CallSet names the invoked function and its input.
type CallSet struct {
	FunctionName string          `json:"function_name"`
	Header       *FunctionHeader `json:"header,omitempty"`
	Input        any             `json:"input,omitempty"`
}

type ParamsOfEncodeMessage struct {
	Abi       Abi        `json:"abi"`
	Address   string     `json:"address,omitempty"`
	DeploySet *DeploySet `json:"deploy_set,omitempty"`
	CallSet   *CallSet   `json:"call_set,omitempty"`
	Signer    Signer     `json:"signer"`
}

type ResultOfEncodeMessage struct {
	Message    string `json:"message"`
	DataToSign string `json:"data_to_sign,omitempty"`
	Address    string `json:"address"`
	MessageID  string `json:"message_id"`
}

type ParamsOfProcessMessage struct {
	MessageEncodeParams ParamsOfEncodeMessage `json:"message_encode_params"`
	SendEvents          bool                  `json:"send_events"`
}

// DecodedOutput holds the decoded return value of the invoked function.
type DecodedOutput struct {
	OutMessages []json.RawMessage `json:"out_messages"`
	Output      json.RawMessage   `json:"output"`
}

type ResultOfProcessMessage struct {
	Transaction json.RawMessage `json:"transaction"`
	OutMessages []string        `json:"out_messages"`
	Decoded     *DecodedOutput  `json:"decoded,omitempty"`
	Fees        json.RawMessage `json:"fees,omitempty"`
}

// TransactionID extracts the id of the executed transaction.
func (r ResultOfProcessMessage) TransactionID() (string, error) {
	var tx struct {
		ID string `json:"id"`
	}
	if len(r.Transaction) == 0 {
		return "", fmt.Errorf("result carries no transaction")
	}
	if err := json.Unmarshal(r.Transaction, &tx); err != nil {
		return "", fmt.Errorf("failed to decode transaction: %w", err)
	}
	if tx.ID == "" {
		return "", fmt.Errorf("transaction has no id")
	}
	return tx.ID, nil
}

type ParamsOfRunTvm struct {
	Message              string `json:"message"`
	Account              string `json:"account"`
	Abi                  *Abi   `json:"abi,omitempty"`
	ReturnUpdatedAccount bool   `json:"return_updated_account,omitempty"`
}

type ResultOfRunTvm struct {
	OutMessages []string       `json:"out_messages"`
	Decoded     *DecodedOutput `json:"decoded,omitempty"`
	Account     string         `json:"account,omitempty"`
}

type ParamsOfQuery struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type ResultOfQuery struct {
	Result json.RawMessage `json:"result"`
}

type ParamsOfQueryCollection struct {
	Collection string `json:"collection"`
	Filter     any    `json:"filter,omitempty"`
	Result     string `json:"result"`
	Limit      uint32 `json:"limit,omitempty"`
}

type ResultOfQueryCollection struct {
	Result []json.RawMessage `json:"result"`
}

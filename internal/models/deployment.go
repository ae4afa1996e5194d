package models

import (
	"time"
)

// Stage is the furthest point a deployment reached.
type Stage string

const (
	StageAddressDerived   Stage = "address_derived"
	StageFundingRequested Stage = "funding_requested"
	StageFunded           Stage = "funded"
	StageDeployed         Stage = "deployed"
	StageFailed           Stage = "failed"
)

// Terminal reports whether no further progress is expected.
func (s Stage) Terminal() bool {
	return s == StageDeployed || s == StageFailed
}

// Deployment represents one attempt to deploy a contract
type Deployment struct {
	// Identification
	ID           string `json:"id"`
	ContractName string `json:"contract_name"`
	Address      string `json:"address"`
	PublicKey    string `json:"public_key"`
	CodeHash     string `json:"code_hash"` // sha256 of the code image, hex
	Workchain    int32  `json:"workchain"`

	// Progress
	Stage         Stage  `json:"stage"`
	FundingAmount uint64 `json:"funding_amount"`
	FundingTxID   string `json:"funding_tx_id,omitempty"`
	FundingPolls  int    `json:"funding_polls"`
	Balance       uint64 `json:"balance"`
	DeployTxID    string `json:"deploy_tx_id,omitempty"`

	// Set when Stage is StageFailed. A failure after StageFundingRequested
	// leaves the address funded but not deployed.
	Error       string `json:"error,omitempty"`
	FailedStage Stage  `json:"failed_stage,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ContractCall represents a message submitted to a contract
type ContractCall struct {
	ID        string    `json:"id"`
	Contract  string    `json:"contract"`
	Address   string    `json:"address"`
	Function  string    `json:"function"`
	Signed    bool      `json:"signed"`
	TxID      string    `json:"tx_id,omitempty"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

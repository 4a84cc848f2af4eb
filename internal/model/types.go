package model

import "time"

const EnvelopeVersion = "v1"

type Envelope struct {
	Version  string       `json:"version"`
	Success  bool         `json:"success"`
	Data     any          `json:"data,omitempty"`
	Error    *ErrorBody   `json:"error"`
	Warnings []string     `json:"warnings,omitempty"`
	Meta     EnvelopeMeta `json:"meta"`
}

type ErrorBody struct {
	Code      int    `json:"code"`
	Type      string `json:"type"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

type EnvelopeMeta struct {
	RequestID string      `json:"request_id"`
	Timestamp time.Time   `json:"timestamp"`
	Command   string      `json:"command"`
	Cache     CacheStatus `json:"cache"`
}

type CacheStatus struct {
	Status string `json:"status"`
	AgeMS  int64  `json:"age_ms"`
}

// TxStatus is the lifecycle state of a bridge transaction.
type TxStatus string

const (
	StatusPending    TxStatus = "PENDING"
	StatusConfirming TxStatus = "CONFIRMING"
	StatusBridging   TxStatus = "BRIDGING"
	StatusCompleted  TxStatus = "COMPLETED"
	StatusFailed     TxStatus = "FAILED"
)

// Terminal reports whether no further transition may leave s.
func (s TxStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Next returns the successor of a non-terminal, non-bridging state.
func (s TxStatus) Next() (TxStatus, bool) {
	switch s {
	case StatusPending:
		return StatusConfirming, true
	case StatusConfirming:
		return StatusBridging, true
	default:
		return "", false
	}
}

// BridgeInstruction is a structured intent to move Amount of Token from
// SourceChain to DestinationChain. Amount is a decimal string. SourceTxHash
// optionally names a lock transaction the wallet already broadcast.
type BridgeInstruction struct {
	SourceChain      string `json:"source_chain"`
	Token            string `json:"token"`
	Amount           string `json:"amount"`
	DestinationChain string `json:"destination_chain"`
	SourceTxHash     string `json:"source_tx_hash,omitempty"`
}

type BridgeTransaction struct {
	ID                string    `json:"id"`
	SourceChain       string    `json:"source_chain"`
	SourceToken       string    `json:"source_token"`
	Amount            string    `json:"amount"`
	AmountBaseUnits   string    `json:"amount_base_units"`
	DestinationChain  string    `json:"destination_chain"`
	DestinationToken  string    `json:"destination_token"`
	Status            TxStatus  `json:"status"`
	SourceTxHash      string    `json:"source_tx_hash,omitempty"`
	DestinationTxHash string    `json:"destination_tx_hash,omitempty"`
	FailureReason     string    `json:"failure_reason,omitempty"`
	Timestamp         time.Time `json:"timestamp"`
	UpdatedAt         time.Time `json:"updated_at"`
	UserAddress       string    `json:"user_address"`
}

// Transition is one status change observed while a transfer ran.
type Transition struct {
	Status TxStatus `json:"status"`
	TxID   string   `json:"tx_id"`
}

// RunResult is what a driven transfer reports once it stops.
type RunResult struct {
	Transaction BridgeTransaction `json:"transaction"`
	Transitions []Transition      `json:"transitions,omitempty"`
}

type WalletSession struct {
	Address       string `json:"address"`
	ActiveChainID string `json:"active_chain_id"`
	NetworkID     int64  `json:"network_id"`
	Provider      string `json:"provider"`
}

type InterpretationSource string

const (
	SourceRemote InterpretationSource = "remote"
	SourceLocal  InterpretationSource = "local"
)

type Interpretation struct {
	Instruction   BridgeInstruction    `json:"instruction"`
	Source        InterpretationSource `json:"source,omitempty"`
	Cached        bool                 `json:"cached,omitempty"`
	MissingFields []string             `json:"missing_fields,omitempty"`
}

type BridgeEstimate struct {
	SourceChain     string `json:"source_chain"`
	Token           string `json:"token"`
	Amount          string `json:"amount"`
	EstimatedTime   string `json:"estimated_time"`
	GasFee          string `json:"gas_fee"`
	GasFeeSymbol    string `json:"gas_fee_symbol"`
	BridgeFee       string `json:"bridge_fee"`
	BridgeFeeBps    int64  `json:"bridge_fee_bps"`
	TotalFeeSummary string `json:"total_fee_summary"`
}

type ChainInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	NetworkID   int64  `json:"network_id"`
	CAIP2       string `json:"caip2"`
	RPCURL      string `json:"rpc_url"`
	ExplorerURL string `json:"explorer_url"`
	Testnet     bool   `json:"testnet"`
	Destination bool   `json:"destination"`
}

type TokenInfo struct {
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	ChainID  string `json:"chain_id"`
	Address  string `json:"address"`
	Decimals int    `json:"decimals"`
	Native   bool   `json:"native"`
	MinUnit  string `json:"min_unit"`
}

type VersionInfo struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
}

package types

type Swap struct {
	Id           string `json:"id"`
	Type         string `json:"type"`
	Status       string `json:"status"`
	Address      string `json:"address"`
	Destination  string `json:"destination"`
	RedeemScript string `json:"redeemScript"`
	Timelock     uint32 `json:"timelock"`
	Fee          uint64 `json:"fee"`
	CreatedAt    string `json:"createdAt"`
	UpdatedAt    string `json:"updatedAt"`

	// Set once the swap output is found on chain.
	FundingTxId string `json:"fundingTxid,omitempty"`
	// The claim or refund tx, depending on Status.
	RedeemTxId string `json:"redeemTxid,omitempty"`
	// Last failure while redeeming the swap.
	Error string `json:"error,omitempty"`
}

type ImportSwapRequest struct {
	Id           string `json:"id"`
	Type         string `json:"type" binding:"required"`
	RedeemScript string `json:"redeemScript" binding:"required"`
	BlindingKey  string `json:"blindingKey" binding:"required"`
	Destination  string `json:"destination" binding:"required"`
	Fee          uint64 `json:"fee"`
	Preimage     string `json:"preimage"`
}

type ClaimSwapRequest struct {
	Preimage string `json:"preimage"`
	// Seconds to wait for the swap to be funded, 0 to fail right away.
	Wait uint32 `json:"wait"`
}

type RedeemResponse struct {
	Txid string `json:"txid"`
}

type ScheduleRefundResponse struct {
	Height uint32 `json:"height"`
}

type DecodeScriptRequest struct {
	Type         string `json:"type" binding:"required"`
	RedeemScript string `json:"redeemScript" binding:"required"`
	BlindingKey  string `json:"blindingKey" binding:"required"`
}

type DecodeScriptResponse struct {
	Type           string `json:"type"`
	Hashlock       string `json:"hashlock"`
	ReceiverPubkey string `json:"receiverPubkey"`
	SenderPubkey   string `json:"senderPubkey"`
	Timelock       uint32 `json:"timelock"`
	Address        string `json:"address"`
}

type Info struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
	Network string `json:"network"`
}

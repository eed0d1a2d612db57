package boltz

const (
	CurrencyBtc    Currency = "BTC"
	CurrencyLiquid Currency = "L-BTC"
)

type Currency string

type SwapStatusResponse struct {
	Status           string `json:"status"`
	ZeroConfRejected bool   `json:"zeroConfRejected"`
	Transaction      struct {
		Id  string `json:"id"`
		Hex string `json:"hex"`
	} `json:"transaction"`

	Error string `json:"error"`
}

// ReverseSwapTransactionResponse is the lockup transaction of a reverse
// swap, as broadcast by the server.
type ReverseSwapTransactionResponse struct {
	Id                 string `json:"id"`
	Hex                string `json:"hex"`
	TimeoutBlockHeight uint32 `json:"timeoutBlockHeight"`

	Error string `json:"error"`
}

type SwapUpdate struct {
	SwapStatusResponse `mapstructure:",squash"`
	Id                 string `json:"id"`
}

func (u SwapUpdate) Event() SwapUpdateEvent {
	return ParseEvent(u.Status)
}

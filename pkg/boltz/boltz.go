package boltz

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/ArkLabsHQ/liquid-swap/pkg/swaperr"
)

// Api is a read only client of the Boltz v2 REST api. Swap negotiation is
// out of scope, only status and lockup lookups are exposed.
type Api struct {
	URL    string
	WSURL  string
	Client http.Client
}

func (boltz *Api) GetSwapStatus(ctx context.Context, swapId string) (*SwapStatusResponse, error) {
	resp, err := sendGetRequest[SwapStatusResponse](ctx, boltz, "/swap/"+url.PathEscape(swapId))
	if err != nil {
		return nil, err
	}
	if resp.Error != "" {
		return nil, swaperr.ErrNetwork.Newf("swap %s: %s", swapId, resp.Error)
	}
	return resp, nil
}

// GetReverseSwapTransaction returns the transaction locking funds into the
// reverse swap script.
func (boltz *Api) GetReverseSwapTransaction(
	ctx context.Context, swapId string,
) (*ReverseSwapTransactionResponse, error) {
	endpoint := fmt.Sprintf("/swap/reverse/%s/transaction", url.PathEscape(swapId))
	resp, err := sendGetRequest[ReverseSwapTransactionResponse](ctx, boltz, endpoint)
	if err != nil {
		return nil, err
	}
	if resp.Error != "" {
		return nil, swaperr.ErrNetwork.Newf("swap %s: %s", swapId, resp.Error)
	}
	return resp, nil
}

func sendGetRequest[T any](ctx context.Context, boltz *Api, endpoint string) (*T, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, boltz.URL+"/v2"+endpoint, nil)
	if err != nil {
		return nil, swaperr.ErrInput.Wrap(err, "invalid boltz request")
	}

	res, err := boltz.Client.Do(req)
	if err != nil {
		return nil, swaperr.ErrNetwork.Wrap(err, "boltz request failed")
	}
	defer res.Body.Close()

	resp, err := unmarshalJson[T](res.Body)
	if err != nil {
		return nil, swaperr.ErrNetwork.Wrapf(
			err, "could not parse boltz response with status %d", res.StatusCode,
		)
	}
	return resp, nil
}

func unmarshalJson[T any](body io.Reader) (*T, error) {
	rawBody, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}

	var res T
	if err := json.Unmarshal(rawBody, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

package web

import (
	"context"
	"encoding/hex"
	"net/http"
	"time"

	"github.com/ArkLabsHQ/liquid-swap/internal/core/domain"
	"github.com/ArkLabsHQ/liquid-swap/internal/interface/web/types"
	"github.com/ArkLabsHQ/liquid-swap/pkg/swaperr"
	"github.com/ArkLabsHQ/liquid-swap/pkg/swapscript"
	"github.com/ArkLabsHQ/liquid-swap/utils"
	"github.com/gin-gonic/gin"
)

const claimPollInterval = 5 * time.Second

func (s *service) getInfo(c *gin.Context) {
	c.JSON(http.StatusOK, types.Info{
		Version: s.svc.BuildInfo.Version,
		Commit:  s.svc.BuildInfo.Commit,
		Date:    s.svc.BuildInfo.Date,
		Network: s.svc.Network().Network.String(),
	})
}

func (s *service) decodeScript(c *gin.Context) {
	var req types.DecodeScriptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorHandler(c, swaperr.ErrInput.Wrap(err, "invalid request"))
		return
	}

	swapType, err := swapscript.ParseSwapType(req.Type)
	if err != nil {
		errorHandler(c, err)
		return
	}
	blindingKey, err := utils.ParseBlindingKey(req.BlindingKey)
	if err != nil {
		errorHandler(c, err)
		return
	}
	script, err := swapscript.DecodeString(req.RedeemScript, swapType, blindingKey)
	if err != nil {
		errorHandler(c, err)
		return
	}
	params, err := s.svc.Network().Params()
	if err != nil {
		errorHandler(c, err)
		return
	}
	addr, err := script.Address(params)
	if err != nil {
		errorHandler(c, err)
		return
	}

	c.JSON(http.StatusOK, types.DecodeScriptResponse{
		Type:           script.Type.String(),
		Hashlock:       script.HashlockHex(),
		ReceiverPubkey: hex.EncodeToString(script.ReceiverPubkey.SerializeCompressed()),
		SenderPubkey:   hex.EncodeToString(script.SenderPubkey.SerializeCompressed()),
		Timelock:       script.Timelock,
		Address:        addr,
	})
}

func (s *service) listSwaps(c *gin.Context) {
	swaps, err := s.svc.ListSwaps(c)
	if err != nil {
		errorHandler(c, err)
		return
	}

	res := make([]types.Swap, 0, len(swaps))
	for _, swap := range swaps {
		res = append(res, toSwapInfo(swap))
	}
	c.JSON(http.StatusOK, gin.H{"swaps": res})
}

func (s *service) getSwap(c *gin.Context) {
	swap, err := s.svc.GetSwap(c, c.Param("id"))
	if err != nil {
		errorHandler(c, err)
		return
	}
	c.JSON(http.StatusOK, toSwapInfo(*swap))
}

func (s *service) importSwap(c *gin.Context) {
	var req types.ImportSwapRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorHandler(c, swaperr.ErrInput.Wrap(err, "invalid request"))
		return
	}

	args, err := toImportSwapArgs(req)
	if err != nil {
		errorHandler(c, err)
		return
	}
	swap, err := s.svc.ImportSwap(c, args)
	if err != nil {
		errorHandler(c, err)
		return
	}
	c.JSON(http.StatusCreated, toSwapInfo(*swap))
}

func (s *service) claimSwap(c *gin.Context) {
	var req types.ClaimSwapRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			errorHandler(c, swaperr.ErrInput.Wrap(err, "invalid request"))
			return
		}
	}

	var (
		txid string
		err  error
	)
	if req.Wait > 0 {
		ctx, cancel := context.WithTimeout(c, time.Duration(req.Wait)*time.Second)
		defer cancel()
		txid, err = s.svc.WaitAndClaim(ctx, c.Param("id"), req.Preimage, claimPollInterval)
	} else {
		txid, err = s.svc.ClaimSwap(c, c.Param("id"), req.Preimage)
	}
	if err != nil {
		errorHandler(c, err)
		return
	}
	c.JSON(http.StatusOK, types.RedeemResponse{Txid: txid})
}

func (s *service) refundSwap(c *gin.Context) {
	txid, err := s.svc.RefundSwap(c, c.Param("id"))
	if err != nil {
		errorHandler(c, err)
		return
	}
	c.JSON(http.StatusOK, types.RedeemResponse{Txid: txid})
}

func (s *service) scheduleRefund(c *gin.Context) {
	height, err := s.svc.ScheduleRefund(c, c.Param("id"))
	if err != nil {
		errorHandler(c, err)
		return
	}
	c.JSON(http.StatusAccepted, types.ScheduleRefundResponse{Height: height})
}

func toSwapInfo(swap domain.Swap) types.Swap {
	return types.Swap{
		Id:           swap.Id,
		Type:         swap.Type.String(),
		Status:       swap.Status.String(),
		Address:      swap.Address,
		Destination:  swap.Destination,
		RedeemScript: swap.RedeemScript,
		Timelock:     swap.Timelock,
		Fee:          swap.Fee,
		CreatedAt:    formatTime(swap.CreatedAt),
		UpdatedAt:    formatTime(swap.UpdatedAt),
		FundingTxId:  swap.FundingTxId,
		RedeemTxId:   swap.RedeemTxId,
		Error:        swap.Error,
	}
}

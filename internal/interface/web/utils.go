package web

import (
	"errors"
	"net/http"
	"time"

	"github.com/ArkLabsHQ/liquid-swap/internal/core/application"
	"github.com/ArkLabsHQ/liquid-swap/internal/core/domain"
	"github.com/ArkLabsHQ/liquid-swap/internal/interface/web/types"
	"github.com/ArkLabsHQ/liquid-swap/pkg/boltz"
	"github.com/ArkLabsHQ/liquid-swap/pkg/swaperr"
	"github.com/ArkLabsHQ/liquid-swap/pkg/swapscript"
	"github.com/ArkLabsHQ/liquid-swap/pkg/swaptx"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

func toImportSwapArgs(req types.ImportSwapRequest) (application.ImportSwapArgs, error) {
	swapType, err := swapscript.ParseSwapType(req.Type)
	if err != nil {
		return application.ImportSwapArgs{}, err
	}
	return application.ImportSwapArgs{
		Id:           req.Id,
		Type:         swapType,
		RedeemScript: req.RedeemScript,
		BlindingKey:  req.BlindingKey,
		Destination:  req.Destination,
		Fee:          req.Fee,
		Preimage:     req.Preimage,
	}, nil
}

func formatTime(unix int64) string {
	return time.Unix(unix, 0).UTC().Format(time.RFC3339)
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrSwapNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrSwapAlreadyExists),
		errors.Is(err, domain.ErrSwapFinalized),
		errors.Is(err, application.ErrSwapInProgress),
		errors.Is(err, swaptx.ErrNoFunding),
		errors.Is(err, swaptx.ErrTimelockNotExpired):
		return http.StatusConflict
	case errors.Is(err, application.ErrMissingSigningKey):
		return http.StatusPreconditionFailed
	case errors.Is(err, application.ErrMissingPreimage), swaperr.ErrInput.Matches(err):
		return http.StatusBadRequest
	case errors.Is(err, boltz.ErrRetryTimeout):
		return http.StatusRequestTimeout
	case swaperr.ErrNetwork.Matches(err):
		return http.StatusBadGateway
	case swaperr.ErrTransaction.Matches(err), swaperr.ErrKey.Matches(err):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func errorHandler(c *gin.Context, err error) {
	status := errorStatus(err)
	if status >= http.StatusInternalServerError {
		log.WithError(err).Warnf("%s %s failed", c.Request.Method, c.Request.URL.Path)
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}

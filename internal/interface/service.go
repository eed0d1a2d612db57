package service_interface

import (
	"github.com/ArkLabsHQ/liquid-swap/internal/core/application"
	"github.com/ArkLabsHQ/liquid-swap/internal/interface/web"
)

type Service interface {
	Start() error
	Stop()
}

func NewService(cfg web.Config, appSvc *application.Service) (Service, error) {
	svc, err := web.NewService(cfg, appSvc)
	if err != nil {
		return nil, err
	}
	return svc, nil
}

package web

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/ArkLabsHQ/liquid-swap/internal/core/application"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

const (
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 10 * time.Second
)

func init() {
	gin.SetMode(gin.ReleaseMode)
}

type Config struct {
	HTTPPort uint32
}

func (c Config) Validate() error {
	lis, err := net.Listen("tcp", c.address())
	if err != nil {
		return fmt.Errorf("invalid http port: %s", err)
	}
	// nolint:all
	lis.Close()
	return nil
}

func (c Config) address() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

type service struct {
	cfg    Config
	svc    *application.Service
	server *http.Server
}

func NewService(cfg Config, svc *application.Service) (*service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %s", err)
	}

	s := &service{cfg: cfg, svc: svc}
	s.server = &http.Server{
		Addr:              cfg.address(),
		Handler:           s.router(),
		ReadHeaderTimeout: readHeaderTimeout,
	}
	return s, nil
}

func (s *service) Start() error {
	if err := s.svc.Start(context.Background()); err != nil {
		return err
	}

	// nolint:all
	go s.server.ListenAndServe()
	log.Infof("started listening at %s", s.cfg.address())
	return nil
}

func (s *service) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// nolint:all
	s.server.Shutdown(ctx)
	log.Info("stopped http server")

	s.svc.Stop()
}

func (s *service) router() *gin.Engine {
	router := gin.New()
	setupMiddleware(router)

	v1 := router.Group("/v1")
	v1.GET("/info", s.getInfo)
	v1.POST("/script/decode", s.decodeScript)

	v1.GET("/swaps", s.listSwaps)
	v1.POST("/swaps", s.importSwap)
	v1.GET("/swaps/:id", s.getSwap)
	v1.POST("/swaps/:id/claim", s.claimSwap)
	v1.POST("/swaps/:id/refund", s.refundSwap)
	v1.POST("/swaps/:id/schedule-refund", s.scheduleRefund)

	return router
}

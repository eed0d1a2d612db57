package db

import (
	"fmt"
	"strings"

	"github.com/ArkLabsHQ/liquid-swap/internal/core/domain"
	"github.com/ArkLabsHQ/liquid-swap/internal/core/ports"
	badgerdb "github.com/ArkLabsHQ/liquid-swap/internal/infrastructure/db/badger"
	"github.com/dgraph-io/badger/v4"
)

var (
	allowedTypes = strings.Join([]string{"badger"}, ",")
)

type ServiceConfig struct {
	DbType   string
	DbConfig []any
}

type service struct {
	swapRepo domain.SwapRepository
}

func NewService(config ServiceConfig) (ports.RepoManager, error) {
	var (
		swapRepo domain.SwapRepository
		err      error
	)
	switch config.DbType {
	case "badger":
		if len(config.DbConfig) > 1 {
			return nil, fmt.Errorf("badger db config must have at most 1 element, got %d", len(config.DbConfig))
		}
		var logger badger.Logger
		if len(config.DbConfig) == 1 && config.DbConfig[0] != nil {
			var ok bool
			logger, ok = config.DbConfig[0].(badger.Logger)
			if !ok {
				return nil, fmt.Errorf("invalid logger")
			}
		}
		swapRepo, err = badgerdb.NewSwapRepository(logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open swap db: %s", err)
		}
	default:
		return nil, fmt.Errorf("unsupported db type %s, please select one of %s", config.DbType, allowedTypes)
	}

	return &service{swapRepo}, nil
}

func (s *service) Swap() domain.SwapRepository {
	return s.swapRepo
}

func (s *service) Close() {
	s.swapRepo.Close()
}

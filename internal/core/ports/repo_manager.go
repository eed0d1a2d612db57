package ports

import "github.com/ArkLabsHQ/liquid-swap/internal/core/domain"

type RepoManager interface {
	Swap() domain.SwapRepository
	Close()
}

package db_test

import (
	"context"
	"errors"
	"testing"

	"github.com/ArkLabsHQ/liquid-swap/internal/core/domain"
	"github.com/ArkLabsHQ/liquid-swap/internal/infrastructure/db"
	"github.com/ArkLabsHQ/liquid-swap/pkg/swapscript"
	"github.com/stretchr/testify/require"
)

var testSwap = domain.Swap{
	Id:           "rvs1",
	Type:         swapscript.ReverseSubmarine,
	RedeemScript: "8201208763a9142bdd03d431251598f46a625f1d3abfcd7f491535882102ccbab5f97c89afb97d814831c5355ef5ba96a18c9dcd1b5c8cfd42c697bfe53c677503715912b1752103fced00385bd14b174a571d88b4b6aced2cb1d532237c29c4ec61338fbb7eff4068ac",
	BlindingKey:  "02702ae71ec11a895f6255e26395983585a0d791ea1eb83d1aa54a66056469da",
	Preimage:     "6ef7d91c721ea06b3b65d824ae1d69777cd3892d41090234aef13a572ff0e64f",
	Timelock:     1202545,
	Address:      "tlq1qq0gnj2my5tp8r77srvvdmwfrtr8va9mgz9e8ja0rzk75jvsanjvgz5sfvl093l5a7xztrtzhyhfmfyr2exdxtpw7cehfgtzgn62zdzcsgrz8c4pjfvtj",
	Destination:  "tlq1qqtc07z9kljll7dk2jyhz0qj86df9gnrc70t0wuexutzkxjavdpht0d4vwhgs2pq2f09zsvfr5nkglc394766w3hdaqrmay4tw",
	Fee:          300,
	Status:       domain.SwapPending,
	CreatedAt:    1700000000,
	UpdatedAt:    1700000000,
}

func TestService(t *testing.T) {
	_, err := db.NewService(db.ServiceConfig{DbType: "sqlite"})
	require.Error(t, err)

	_, err = db.NewService(db.ServiceConfig{DbType: "badger", DbConfig: []any{"not a logger"}})
	require.Error(t, err)

	svc, err := db.NewService(db.ServiceConfig{DbType: "badger"})
	require.NoError(t, err)
	require.NotNil(t, svc.Swap())
	svc.Close()
}

func TestSwapRepository(t *testing.T) {
	svc, err := db.NewService(db.ServiceConfig{DbType: "badger", DbConfig: []any{nil}})
	require.NoError(t, err)
	t.Cleanup(svc.Close)

	repo := svc.Swap()
	ctx := context.Background()

	t.Run("add swap", func(t *testing.T) {
		swap, err := repo.Get(ctx, testSwap.Id)
		require.True(t, errors.Is(err, domain.ErrSwapNotFound))
		require.Nil(t, swap)

		swaps, err := repo.GetAll(ctx)
		require.NoError(t, err)
		require.Empty(t, swaps)

		require.NoError(t, repo.Add(ctx, testSwap))
		err = repo.Add(ctx, testSwap)
		require.True(t, errors.Is(err, domain.ErrSwapAlreadyExists))

		swap, err = repo.Get(ctx, testSwap.Id)
		require.NoError(t, err)
		require.Equal(t, testSwap, *swap)

		script, err := swap.Script()
		require.NoError(t, err)
		require.Equal(t, testSwap.RedeemScript, script.Hex())
		require.Equal(t, testSwap.Timelock, script.Timelock)
	})

	t.Run("update swap", func(t *testing.T) {
		updated := testSwap
		updated.Status = domain.SwapClaimed
		updated.FundingTxId = "aa"
		updated.RedeemTxId = "bb"
		updated.UpdatedAt = testSwap.UpdatedAt + 60
		require.NoError(t, repo.Update(ctx, updated))

		swap, err := repo.Get(ctx, testSwap.Id)
		require.NoError(t, err)
		require.Equal(t, updated, *swap)
		require.True(t, swap.IsFinal())

		missing := testSwap
		missing.Id = "unknown"
		err = repo.Update(ctx, missing)
		require.True(t, errors.Is(err, domain.ErrSwapNotFound))
	})

	t.Run("list swaps", func(t *testing.T) {
		older := testSwap
		older.Id = "sub1"
		older.Type = swapscript.Submarine
		older.CreatedAt = testSwap.CreatedAt - 100
		require.NoError(t, repo.Add(ctx, older))

		swaps, err := repo.GetAll(ctx)
		require.NoError(t, err)
		require.Len(t, swaps, 2)
		require.Equal(t, "sub1", swaps[0].Id)
		require.Equal(t, swapscript.Submarine, swaps[0].Type)
		require.Equal(t, testSwap.Id, swaps[1].Id)
	})
}

package transfer

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/stable-yield-rebalancer/internal/attest"
	"github.com/yourorg/stable-yield-rebalancer/internal/ledger"
	"github.com/yourorg/stable-yield-rebalancer/internal/model"
	"github.com/yourorg/stable-yield-rebalancer/internal/types"
)

var (
	sender    = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	recipient = common.HexToAddress("0x00000000000000000000000000000000000000b2")
)

type manualPauser struct{ paused bool }

func (p *manualPauser) Paused() bool { return p.paused }

type testHarness struct {
	manager  *Manager
	balances *ledger.Balances
	registry *Registry
	fees     *FeeSchedule
	pauser   *manualPauser
	now      time.Time
}

func newHarness(t *testing.T) *testHarness {
	t.Helper()
	h := &testHarness{
		balances: ledger.NewBalances(),
		registry: NewRegistry(),
		fees:     NewFeeSchedule(50, 100),
		pauser:   &manualPauser{},
		now:      time.Unix(1_700_000_000, 0),
	}
	require.NoError(t, h.registry.Register(model.DomainInfo{
		Domain:      types.DomainEthereum,
		ChainID:     1,
		Supported:   true,
		Enabled:     true,
		FastEnabled: true,
		MinTransfer: big.NewInt(1_000),
		MaxTransfer: big.NewInt(10_000_000_000),
	}))
	require.NoError(t, h.registry.Register(model.DomainInfo{
		Domain:      types.DomainBase,
		ChainID:     8453,
		Supported:   true,
		Enabled:     true,
		FastEnabled: true,
		MinTransfer: big.NewInt(1_000),
		MaxTransfer: big.NewInt(10_000_000_000),
	}))
	require.NoError(t, h.registry.Register(model.DomainInfo{
		Domain:      types.DomainPolygon,
		ChainID:     137,
		Supported:   true,
		Enabled:     true,
		FastEnabled: false,
		MinTransfer: big.NewInt(1_000),
		MaxTransfer: big.NewInt(1_000_000),
	}))

	h.manager = NewManager(Options{
		Registry:        h.registry,
		Fees:            h.fees,
		Balances:        h.balances,
		Store:           attest.NewStore(),
		Attester:        attest.DigestAttester{},
		Clock:           func() time.Time { return h.now },
		Pauser:          h.pauser,
		FastSettleDelay: 20 * time.Second,
	})
	return h
}

func stdParams(amount int64) Params {
	return Params{
		SourceDomain: types.DomainEthereum,
		DestDomain:   types.DomainBase,
		Sender:       sender,
		Recipient:    recipient,
		Amount:       big.NewInt(amount),
	}
}

func (h *testHarness) completeArgs(t *testing.T, id string) (Message, []byte) {
	t.Helper()
	msg, err := h.manager.MessageFor(id)
	require.NoError(t, err)
	att, ready, err := h.manager.WaitForAttestation(context.Background(), id, time.Second)
	require.NoError(t, err)
	require.True(t, ready)
	return msg, att
}

func TestInitiateAndComplete_StandardLifecycle(t *testing.T) {
	h := newHarness(t)
	h.balances.Credit(sender, big.NewInt(5_000_000))

	rec, err := h.manager.Initiate(context.Background(), stdParams(2_000_000))
	require.NoError(t, err)
	assert.False(t, rec.Completed)
	assert.False(t, rec.Fast)
	assert.Equal(t, 1, h.manager.PendingCount())
	assert.Equal(t, int64(3_000_000), h.balances.Balance(sender).Int64())

	msg, att := h.completeArgs(t, rec.ID)
	done, err := h.manager.Complete(context.Background(), msg, att)
	require.NoError(t, err)

	assert.True(t, done.Completed)
	assert.Equal(t, rec.ID, done.AttestationID)
	assert.Equal(t, 0, h.manager.PendingCount())
	assert.Equal(t, int64(2_000_000), h.balances.Balance(recipient).Int64())
	assert.Equal(t, []string{rec.ID}, h.manager.History(sender))
}

func TestComplete_IdempotentReleasesFundsExactlyOnce(t *testing.T) {
	h := newHarness(t)
	h.balances.Credit(sender, big.NewInt(5_000_000))

	rec, err := h.manager.Initiate(context.Background(), stdParams(2_000_000))
	require.NoError(t, err)

	msg, att := h.completeArgs(t, rec.ID)
	_, err = h.manager.Complete(context.Background(), msg, att)
	require.NoError(t, err)

	_, err = h.manager.Complete(context.Background(), msg, att)
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrIdempotency))

	// Exactly one fund release.
	assert.Equal(t, int64(2_000_000), h.balances.Balance(recipient).Int64())
}

func TestComplete_AttestationMismatchRejected(t *testing.T) {
	h := newHarness(t)
	h.balances.Credit(sender, big.NewInt(5_000_000))

	rec, err := h.manager.Initiate(context.Background(), stdParams(2_000_000))
	require.NoError(t, err)

	msg, _ := h.completeArgs(t, rec.ID)
	_, err = h.manager.Complete(context.Background(), msg, []byte("forged"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrValidation))

	got, err := h.manager.Record(rec.ID)
	require.NoError(t, err)
	assert.False(t, got.Completed)
	assert.Equal(t, 0, h.balances.Balance(recipient).Sign())
}

func TestComplete_UnknownTransfer(t *testing.T) {
	h := newHarness(t)
	msg := Message{Nonce: 99, CreatedAt: 1, Sender: sender}
	_, err := h.manager.Complete(context.Background(), msg, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrNotFound))
}

func TestInitiateFast_FeeWithheld(t *testing.T) {
	h := newHarness(t)
	h.fees.Set(types.DomainEthereum, types.DomainBase, 25)
	h.balances.Credit(sender, big.NewInt(2_000_000_000))

	rec, err := h.manager.InitiateFast(context.Background(), stdParams(1_000_000_000))
	require.NoError(t, err)
	assert.True(t, rec.Fast)
	assert.Equal(t, int64(2_500_000), rec.Fee.Int64())

	h.now = h.now.Add(30 * time.Second)
	msg, att := h.completeArgs(t, rec.ID)
	_, err = h.manager.Complete(context.Background(), msg, att)
	require.NoError(t, err)

	assert.Equal(t, int64(997_500_000), h.balances.Balance(recipient).Int64())
	assert.Equal(t, int64(2_500_000), h.manager.CollectedFees().Int64())
}

func TestInitiateFast_FeeCappedAtGlobalMax(t *testing.T) {
	h := newHarness(t)
	// Configured far above the 100bps global cap.
	h.fees.Set(types.DomainEthereum, types.DomainBase, 500)
	h.balances.Credit(sender, big.NewInt(2_000_000_000))

	rec, err := h.manager.InitiateFast(context.Background(), stdParams(1_000_000_000))
	require.NoError(t, err)
	assert.Equal(t, int64(10_000_000), rec.Fee.Int64())
}

func TestInitiateFast_DefaultFeeWhenPairUnset(t *testing.T) {
	h := newHarness(t)
	h.balances.Credit(sender, big.NewInt(2_000_000_000))

	rec, err := h.manager.InitiateFast(context.Background(), stdParams(1_000_000_000))
	require.NoError(t, err)
	// 50bps default.
	assert.Equal(t, int64(5_000_000), rec.Fee.Int64())
}

func TestComplete_FastBeforeSettlementRejected(t *testing.T) {
	h := newHarness(t)
	h.balances.Credit(sender, big.NewInt(2_000_000))

	rec, err := h.manager.InitiateFast(context.Background(), stdParams(1_000_000))
	require.NoError(t, err)

	msg, att := h.completeArgs(t, rec.ID)
	_, err = h.manager.Complete(context.Background(), msg, att)
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrValidation))

	h.now = h.now.Add(21 * time.Second)
	_, err = h.manager.Complete(context.Background(), msg, att)
	require.NoError(t, err)
}

func TestInitiate_Validation(t *testing.T) {
	h := newHarness(t)
	h.balances.Credit(sender, big.NewInt(100_000_000_000))

	tests := []struct {
		name   string
		mutate func(*Params)
	}{
		{"zero sender", func(p *Params) { p.Sender = common.Address{} }},
		{"zero recipient", func(p *Params) { p.Recipient = common.Address{} }},
		{"nil amount", func(p *Params) { p.Amount = nil }},
		{"below domain minimum", func(p *Params) { p.Amount = big.NewInt(999) }},
		{"above domain maximum", func(p *Params) { p.Amount = big.NewInt(10_000_000_001) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := stdParams(2_000_000)
			tt.mutate(&p)
			_, err := h.manager.Initiate(context.Background(), p)
			require.Error(t, err)
			assert.True(t, errors.Is(err, model.ErrValidation))
		})
	}
}

func TestInitiate_UnregisteredDestination(t *testing.T) {
	h := newHarness(t)
	p := stdParams(2_000_000)
	p.DestDomain = types.Domain(42)
	_, err := h.manager.Initiate(context.Background(), p)
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrNotFound))
}

func TestInitiateFast_RequiresFastCapableDomain(t *testing.T) {
	h := newHarness(t)
	h.balances.Credit(sender, big.NewInt(2_000_000))
	p := stdParams(1_000_000)
	p.DestDomain = types.DomainPolygon
	_, err := h.manager.InitiateFast(context.Background(), p)
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrValidation))
}

func TestInitiate_DailyAggregateEnforced(t *testing.T) {
	h := newHarness(t)
	h.balances.Credit(sender, big.NewInt(100_000_000_000))

	// Two transfers fill the destination's 10_000_000_000 daily headroom.
	_, err := h.manager.Initiate(context.Background(), stdParams(6_000_000_000))
	require.NoError(t, err)
	_, err = h.manager.Initiate(context.Background(), stdParams(4_000_000_000))
	require.NoError(t, err)

	before := h.balances.Balance(sender)
	_, err = h.manager.Initiate(context.Background(), stdParams(1_000_000))
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrLimitExceeded))
	// The rejected initiation must not touch the sender's balance.
	assert.Equal(t, before.String(), h.balances.Balance(sender).String())

	// A different destination domain has its own bucket.
	p := stdParams(1_000_000)
	p.DestDomain = types.DomainPolygon
	_, err = h.manager.Initiate(context.Background(), p)
	require.NoError(t, err)
}

func TestInitiate_InsufficientBalance(t *testing.T) {
	h := newHarness(t)
	h.balances.Credit(sender, big.NewInt(1_000))
	_, err := h.manager.Initiate(context.Background(), stdParams(2_000_000))
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrValidation))
	assert.Equal(t, 0, h.manager.PendingCount())
}

func TestInitiate_FailedDebitLeavesDailyHeadroomIntact(t *testing.T) {
	h := newHarness(t)

	// Unfunded sender: the debit fails and the attempt must leave no trace.
	_, err := h.manager.Initiate(context.Background(), stdParams(6_000_000_000))
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrValidation))

	// A funded resubmission of the same amount fits the destination's
	// 10_000_000_000 daily headroom only if the rejected attempt consumed
	// none of it.
	h.balances.Credit(sender, big.NewInt(6_000_000_000))
	_, err = h.manager.Initiate(context.Background(), stdParams(6_000_000_000))
	require.NoError(t, err)
	assert.Equal(t, int64(0), h.balances.Balance(sender).Int64())
}

func TestManager_PausedRejectsMutations(t *testing.T) {
	h := newHarness(t)
	h.balances.Credit(sender, big.NewInt(5_000_000))
	h.pauser.paused = true

	_, err := h.manager.Initiate(context.Background(), stdParams(2_000_000))
	assert.True(t, errors.Is(err, model.ErrPaused))

	_, err = h.manager.Complete(context.Background(), Message{}, nil)
	assert.True(t, errors.Is(err, model.ErrPaused))

	assert.Equal(t, int64(5_000_000), h.balances.Balance(sender).Int64())
}

func TestWaitForAttestation_NotReadyOutcome(t *testing.T) {
	h := newHarness(t)
	// Slow authority: attestation will not appear within the budget.
	h.manager.attester = attest.DigestAttester{Delay: time.Minute}
	h.balances.Credit(sender, big.NewInt(5_000_000))

	rec, err := h.manager.Initiate(context.Background(), stdParams(2_000_000))
	require.NoError(t, err)

	att, ready, err := h.manager.WaitForAttestation(context.Background(), rec.ID, 100*time.Millisecond)
	require.NoError(t, err)
	assert.False(t, ready)
	assert.Nil(t, att)
}

func TestMessage_IDMatchesRecordDerivation(t *testing.T) {
	h := newHarness(t)
	h.balances.Credit(sender, big.NewInt(5_000_000))

	rec, err := h.manager.Initiate(context.Background(), stdParams(2_000_000))
	require.NoError(t, err)

	msg, err := h.manager.MessageFor(rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, msg.ID())

	// The default attester signs the canonical encoding.
	att, ready, err := h.manager.WaitForAttestation(context.Background(), rec.ID, time.Second)
	require.NoError(t, err)
	require.True(t, ready)
	assert.Equal(t, crypto.Keccak256(msg.Encode()), att)
}

func TestRegistry_BidirectionalLookup(t *testing.T) {
	h := newHarness(t)

	info, err := h.registry.DomainByChain(8453)
	require.NoError(t, err)
	assert.Equal(t, types.DomainBase, info.Domain)

	chain, err := h.registry.ChainOf(types.DomainBase)
	require.NoError(t, err)
	assert.Equal(t, types.ChainID(8453), chain)

	_, err = h.registry.Domain(types.Domain(42))
	assert.True(t, errors.Is(err, model.ErrNotFound))
	_, err = h.registry.DomainByChain(999)
	assert.True(t, errors.Is(err, model.ErrNotFound))
}

package attest

import (
	"context"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransferID_Deterministic(t *testing.T) {
	sender := common.HexToAddress("0x00000000000000000000000000000000000000a1")
	id1 := TransferID(1, 1_700_000_000, sender)
	id2 := TransferID(1, 1_700_000_000, sender)
	assert.Equal(t, id1, id2)

	assert.NotEqual(t, id1, TransferID(2, 1_700_000_000, sender))
	assert.NotEqual(t, id1, TransferID(1, 1_700_000_001, sender))
	assert.NotEqual(t, id1, TransferID(1, 1_700_000_000, common.HexToAddress("0xb2")))
}

func TestStore_Matches(t *testing.T) {
	s := NewStore()
	s.Put("id-1", []byte("attestation"))

	assert.True(t, s.Matches("id-1", []byte("attestation")))
	assert.False(t, s.Matches("id-1", []byte("forged")))
	assert.False(t, s.Matches("id-2", []byte("attestation")))
}

func TestStore_WaitReturnsAttestation(t *testing.T) {
	s := NewStore()
	go func() {
		time.Sleep(80 * time.Millisecond)
		s.Put("id-1", []byte("late"))
	}()

	att, ready, err := s.Wait(context.Background(), "id-1", time.Second)
	require.NoError(t, err)
	require.True(t, ready)
	assert.Equal(t, []byte("late"), att)
}

func TestStore_WaitBudgetExpiryIsNotAnError(t *testing.T) {
	s := NewStore()
	att, ready, err := s.Wait(context.Background(), "missing", 120*time.Millisecond)
	require.NoError(t, err)
	assert.False(t, ready)
	assert.Nil(t, att)
}

func TestStore_WaitCancellable(t *testing.T) {
	s := NewStore()
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(60 * time.Millisecond)
		cancel()
	}()

	_, ready, err := s.Wait(ctx, "missing", time.Minute)
	require.Error(t, err)
	assert.False(t, ready)
}

func TestDigestAttester_Deterministic(t *testing.T) {
	a := DigestAttester{}
	att1, err := a.Attest(context.Background(), []byte("message"))
	require.NoError(t, err)
	att2, err := a.Attest(context.Background(), []byte("message"))
	require.NoError(t, err)
	assert.Equal(t, att1, att2)
}

// Package transfer owns the lifecycle of single-leg value transfers
// between domains: registry lookups, fee computation, attestation-gated
// completion, and the pending/history ledgers around them.
package transfer

import (
	"context"
	"encoding/binary"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/sirupsen/logrus"

	"github.com/yourorg/stable-yield-rebalancer/internal/attest"
	"github.com/yourorg/stable-yield-rebalancer/internal/ledger"
	"github.com/yourorg/stable-yield-rebalancer/internal/model"
	"github.com/yourorg/stable-yield-rebalancer/internal/types"
)

// Message is the payload a destination-side completion is driven from.
// The transfer identifier is recomputed from it, never trusted from the
// caller.
type Message struct {
	Nonce        uint64         `json:"nonce"`
	CreatedAt    int64          `json:"created_at"`
	SourceDomain types.Domain   `json:"source_domain"`
	DestDomain   types.Domain   `json:"dest_domain"`
	Sender       common.Address `json:"sender"`
	Recipient    common.Address `json:"recipient"`
	Amount       *big.Int       `json:"amount"`
}

// ID derives the transfer identifier the message refers to.
func (m Message) ID() string {
	return attest.TransferID(m.Nonce, m.CreatedAt, m.Sender)
}

// Encode produces the canonical byte encoding the attesting authority
// signs off on.
func (m Message) Encode() []byte {
	buf := make([]byte, 24, 24+2*common.AddressLength+32)
	binary.BigEndian.PutUint64(buf[0:8], m.Nonce)
	binary.BigEndian.PutUint64(buf[8:16], uint64(m.CreatedAt))
	binary.BigEndian.PutUint32(buf[16:20], uint32(m.SourceDomain))
	binary.BigEndian.PutUint32(buf[20:24], uint32(m.DestDomain))
	buf = append(buf, m.Sender.Bytes()...)
	buf = append(buf, m.Recipient.Bytes()...)
	amount := m.Amount
	if amount == nil {
		amount = new(big.Int)
	}
	buf = append(buf, common.LeftPadBytes(amount.Bytes(), 32)...)
	return buf
}

// Params are the caller-supplied inputs to a transfer initiation.
type Params struct {
	SourceDomain types.Domain
	DestDomain   types.Domain
	Sender       common.Address
	Recipient    common.Address
	Amount       *big.Int
}

// Pauser is the admin pause capability the manager honors. A nil Pauser
// means never paused.
type Pauser interface {
	Paused() bool
}

// Options configures a Manager.
type Options struct {
	Registry *Registry
	Fees     *FeeSchedule
	Balances *ledger.Balances
	Store    *attest.Store
	Attester attest.Attester
	Clock    types.Clock
	Pauser   Pauser

	// FastSettleDelay gates completion of fast transfers.
	FastSettleDelay time.Duration
}

// Manager is the cross-domain transfer state machine. Standard transfers
// run Initiated → Attested → Completed; fast transfers run Initiated →
// Completed behind a short fixed settlement delay.
type Manager struct {
	registry *Registry
	fees     *FeeSchedule
	balances *ledger.Balances
	daily    *ledger.DailyCounter
	store    *attest.Store
	attester attest.Attester
	inflight *ledger.InFlight
	clock    types.Clock
	pauser   Pauser

	fastSettleDelay time.Duration

	mu            sync.Mutex
	nonce         uint64
	records       map[string]*model.TransferRecord
	history       map[common.Address][]string
	pending       map[string]struct{}
	collectedFees *big.Int
}

// NewManager wires a transfer manager from its collaborators.
func NewManager(opts Options) *Manager {
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Manager{
		registry:        opts.Registry,
		fees:            opts.Fees,
		balances:        opts.Balances,
		daily:           ledger.NewDailyCounter(clock),
		store:           opts.Store,
		attester:        opts.Attester,
		inflight:        ledger.NewInFlight(),
		clock:           clock,
		pauser:          opts.Pauser,
		fastSettleDelay: opts.FastSettleDelay,
		records:         make(map[string]*model.TransferRecord),
		history:         make(map[common.Address][]string),
		pending:         make(map[string]struct{}),
		collectedFees:   new(big.Int),
	}
}

// Initiate starts a standard transfer: validates, pulls the amount from
// the sender, records the transfer, and asks the attesting authority for
// an attestation asynchronously.
func (m *Manager) Initiate(ctx context.Context, p Params) (*model.TransferRecord, error) {
	return m.initiate(ctx, p, false)
}

// InitiateFast starts a fast transfer. The domain-pair fee is withheld
// from the recipient credit and settlement is gated on a short fixed
// delay instead of an attestation wait.
func (m *Manager) InitiateFast(ctx context.Context, p Params) (*model.TransferRecord, error) {
	return m.initiate(ctx, p, true)
}

func (m *Manager) initiate(ctx context.Context, p Params, fast bool) (*model.TransferRecord, error) {
	if m.pauser != nil && m.pauser.Paused() {
		return nil, model.ErrPaused
	}
	dest, err := m.validateParams(p, fast)
	if err != nil {
		return nil, err
	}

	// Pull funds first; a failed debit aborts with no bookkeeping, so a
	// funded resubmission starts from a clean slate.
	if err := m.balances.Debit(p.Sender, p.Amount); err != nil {
		return nil, err
	}

	// Per-account per-day aggregate toward the destination domain. A cap
	// rejection refunds the debit and leaves the counter untouched.
	scope := fmt.Sprintf("domain:%d", p.DestDomain)
	if err := m.daily.Add(p.Sender, scope, p.Amount, dest.MaxTransfer); err != nil {
		m.balances.Credit(p.Sender, p.Amount)
		return nil, err
	}

	now := m.clock()

	m.mu.Lock()
	m.nonce++
	rec := &model.TransferRecord{
		Nonce:        m.nonce,
		CreatedAt:    now.Unix(),
		SourceDomain: p.SourceDomain,
		DestDomain:   p.DestDomain,
		Amount:       new(big.Int).Set(p.Amount),
		Fee:          new(big.Int),
		Sender:       p.Sender,
		Recipient:    p.Recipient,
		Fast:         fast,
	}
	rec.ID = attest.TransferID(rec.Nonce, rec.CreatedAt, rec.Sender)
	if fast {
		feeBps := m.fees.FeeBps(p.SourceDomain, p.DestDomain)
		rec.Fee.Mul(rec.Amount, big.NewInt(feeBps))
		rec.Fee.Div(rec.Fee, big.NewInt(model.BpsScale))
		rec.SettlesAt = now.Add(m.fastSettleDelay).Unix()
	}
	m.records[rec.ID] = rec
	m.history[rec.Sender] = append(m.history[rec.Sender], rec.ID)
	m.pending[rec.ID] = struct{}{}
	m.mu.Unlock()

	msg := m.messageFor(rec)
	encoded := msg.Encode()
	if fast {
		// Fast transfers do not wait on the attesting authority; the
		// settlement delay is the only completion gate. The message
		// digest stands in as the attestation on file.
		m.store.Put(rec.ID, crypto.Keccak256(encoded))
	} else {
		go m.requestAttestation(rec.ID, encoded)
	}

	logrus.WithFields(logrus.Fields{
		"transfer_id": rec.ID,
		"source":      rec.SourceDomain,
		"dest":        rec.DestDomain,
		"amount":      rec.Amount.String(),
		"fast":        fast,
	}).Info("Transfer initiated")

	return copyRecord(rec), nil
}

func (m *Manager) validateParams(p Params, fast bool) (model.DomainInfo, error) {
	var zero common.Address
	if p.Sender == zero || p.Recipient == zero {
		return model.DomainInfo{}, fmt.Errorf("%w: zero sender or recipient", model.ErrValidation)
	}
	if p.Amount == nil || p.Amount.Sign() <= 0 {
		return model.DomainInfo{}, fmt.Errorf("%w: non-positive amount", model.ErrValidation)
	}
	dest, err := m.registry.Domain(p.DestDomain)
	if err != nil {
		return model.DomainInfo{}, err
	}
	if !dest.Supported || !dest.Enabled {
		return model.DomainInfo{}, fmt.Errorf("%w: destination domain %d not enabled", model.ErrValidation, p.DestDomain)
	}
	if fast && !dest.FastEnabled {
		return model.DomainInfo{}, fmt.Errorf("%w: destination domain %d has no fast transfer support", model.ErrValidation, p.DestDomain)
	}
	if dest.MinTransfer != nil && p.Amount.Cmp(dest.MinTransfer) < 0 {
		return model.DomainInfo{}, fmt.Errorf("%w: amount below domain minimum %s", model.ErrValidation, dest.MinTransfer)
	}
	if dest.MaxTransfer != nil && p.Amount.Cmp(dest.MaxTransfer) > 0 {
		return model.DomainInfo{}, fmt.Errorf("%w: amount above domain maximum %s", model.ErrValidation, dest.MaxTransfer)
	}
	return dest, nil
}

func (m *Manager) requestAttestation(transferID string, encoded []byte) {
	att, err := m.attester.Attest(context.Background(), encoded)
	if err != nil {
		logrus.WithError(err).WithField("transfer_id", transferID).
			Warn("Attesting authority failed; transfer stays pending")
		return
	}
	m.store.Put(transferID, att)
}

// Complete finishes a transfer on its destination side. The identifier is
// recomputed from the message; the supplied attestation must equal the one
// on file. Completion is idempotent: a duplicate attempt is rejected with
// no state change and no second fund release.
func (m *Manager) Complete(ctx context.Context, msg Message, attestation []byte) (*model.TransferRecord, error) {
	if m.pauser != nil && m.pauser.Paused() {
		return nil, model.ErrPaused
	}

	id := msg.ID()
	if err := m.inflight.Enter(id); err != nil {
		return nil, err
	}
	defer m.inflight.Exit(id)

	m.mu.Lock()
	rec, ok := m.records[id]
	if !ok {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: transfer %s", model.ErrNotFound, id)
	}
	if rec.Completed {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: transfer %s", model.ErrIdempotency, id)
	}
	now := m.clock()
	if rec.Fast && now.Unix() < rec.SettlesAt {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: fast transfer %s settles at %d", model.ErrValidation, id, rec.SettlesAt)
	}
	if !m.store.Matches(id, attestation) {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: attestation mismatch for %s", model.ErrValidation, id)
	}

	// State transition commits before the value moves; the in-flight
	// guard keeps the two atomic with respect to other completions.
	rec.Completed = true
	rec.CompletedAt = now.Unix()
	rec.AttestationID = id
	delete(m.pending, id)
	payout := new(big.Int).Sub(rec.Amount, rec.Fee)
	if rec.Fee.Sign() > 0 {
		m.collectedFees.Add(m.collectedFees, rec.Fee)
	}
	recipient := rec.Recipient
	out := copyRecord(rec)
	m.mu.Unlock()

	m.balances.Credit(recipient, payout)

	logrus.WithFields(logrus.Fields{
		"transfer_id": id,
		"recipient":   recipient.Hex(),
		"payout":      payout.String(),
	}).Info("Transfer completed")

	return out, nil
}

// Attestation returns the attestation for a transfer, if one exists yet.
func (m *Manager) Attestation(transferID string) ([]byte, bool) {
	return m.store.Get(transferID)
}

// WaitForAttestation polls for the attestation within the timeout budget.
// Budget expiry returns ready=false with no error.
func (m *Manager) WaitForAttestation(ctx context.Context, transferID string, timeout time.Duration) ([]byte, bool, error) {
	return m.store.Wait(ctx, transferID, timeout)
}

// Record returns a copy of a transfer record.
func (m *Manager) Record(transferID string) (*model.TransferRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[transferID]
	if !ok {
		return nil, fmt.Errorf("%w: transfer %s", model.ErrNotFound, transferID)
	}
	return copyRecord(rec), nil
}

// History returns the ids of every transfer a sender initiated, oldest
// first.
func (m *Manager) History(sender common.Address) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.history[sender]))
	copy(out, m.history[sender])
	return out
}

// PendingCount reports how many transfers await completion.
func (m *Manager) PendingCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

// CollectedFees returns the accumulated fast-transfer fees.
func (m *Manager) CollectedFees() *big.Int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return new(big.Int).Set(m.collectedFees)
}

// MessageFor rebuilds the canonical message for a recorded transfer, for
// callers driving the destination side.
func (m *Manager) MessageFor(transferID string) (Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[transferID]
	if !ok {
		return Message{}, fmt.Errorf("%w: transfer %s", model.ErrNotFound, transferID)
	}
	return m.messageFor(rec), nil
}

func (m *Manager) messageFor(rec *model.TransferRecord) Message {
	return Message{
		Nonce:        rec.Nonce,
		CreatedAt:    rec.CreatedAt,
		SourceDomain: rec.SourceDomain,
		DestDomain:   rec.DestDomain,
		Sender:       rec.Sender,
		Recipient:    rec.Recipient,
		Amount:       new(big.Int).Set(rec.Amount),
	}
}

func copyRecord(rec *model.TransferRecord) *model.TransferRecord {
	out := *rec
	out.Amount = new(big.Int).Set(rec.Amount)
	out.Fee = new(big.Int).Set(rec.Fee)
	return &out
}

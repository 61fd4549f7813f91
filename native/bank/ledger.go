package bank

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strconv"
	"sync"

	"github.com/holiman/uint256"

	"rewardvault/core/events"
	"rewardvault/core/types"
	"rewardvault/crypto"
	"rewardvault/observability/metrics"
)

var (
	errNilState = errors.New("bank: state not configured")

	// ErrInvalidAmount is returned for nil or negative amounts.
	ErrInvalidAmount = errors.New("bank: amount must not be negative")
	// ErrInvalidAsset is returned when a leg names no asset.
	ErrInvalidAsset = errors.New("bank: asset required")
	// ErrInsufficientBalance is returned when a debit exceeds the balance.
	ErrInsufficientBalance = errors.New("bank: insufficient balance")
	// ErrOverflow is returned when a credit exceeds 256 bits.
	ErrOverflow = errors.New("bank: balance overflow")
)

const (
	// EventTypeTransfer is emitted for every settled leg.
	EventTypeTransfer = "bank.transfer"
	// EventTypeMint is emitted when new units are credited.
	EventTypeMint = "bank.mint"
)

type balanceState interface {
	BankBalanceGet(owner [20]byte, asset types.AssetRef) (*big.Int, error)
	BankBalancesPut(entries []types.BalanceEntry) error
}

type balanceKey struct {
	owner [20]byte
	asset types.AssetRef
}

// Ledger moves native currency and registered units between accounts. Every
// Apply call is all-or-nothing: either every leg settles or none does.
type Ledger struct {
	mu      sync.Mutex
	state   balanceState
	emitter events.Emitter
}

// NewLedger constructs a ledger over the supplied state.
func NewLedger(state balanceState) *Ledger {
	return &Ledger{state: state, emitter: events.NoopEmitter{}}
}

// SetEmitter configures the event emitter used by the ledger.
func (l *Ledger) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		l.emitter = events.NoopEmitter{}
		return
	}
	l.emitter = emitter
}

// Balance returns the balance owner holds of asset.
func (l *Ledger) Balance(ctx context.Context, owner [20]byte, asset types.AssetRef) (*big.Int, error) {
	if l == nil || l.state == nil {
		return nil, errNilState
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	bal, err := l.state.BankBalanceGet(owner, normalize(asset))
	if err != nil {
		return nil, err
	}
	if bal == nil {
		return big.NewInt(0), nil
	}
	return new(big.Int).Set(bal), nil
}

// Apply settles the transfers atomically. Zero-value legs and self transfers
// are accepted and leave balances unchanged.
func (l *Ledger) Apply(ctx context.Context, transfers ...types.Transfer) error {
	if l == nil || l.state == nil {
		return errNilState
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	working := make(map[balanceKey]*uint256.Int)
	load := func(key balanceKey) (*uint256.Int, error) {
		if bal, ok := working[key]; ok {
			return bal, nil
		}
		raw, err := l.state.BankBalanceGet(key.owner, key.asset)
		if err != nil {
			return nil, err
		}
		bal := new(uint256.Int)
		if raw != nil {
			if overflow := bal.SetFromBig(raw); overflow {
				return nil, ErrOverflow
			}
		}
		working[key] = bal
		return bal, nil
	}

	settled := make([]types.Transfer, 0, len(transfers))
	for i, tr := range transfers {
		amount, err := toUint256(tr.Amount)
		if err != nil {
			return fmt.Errorf("leg %d: %w", i, err)
		}
		asset := normalize(tr.Asset)
		if asset.TokenID == "" {
			return fmt.Errorf("leg %d: %w", i, ErrInvalidAsset)
		}
		if amount.IsZero() || tr.From == tr.To {
			continue
		}
		from, err := load(balanceKey{owner: tr.From, asset: asset})
		if err != nil {
			return err
		}
		if from.Lt(amount) {
			return fmt.Errorf("leg %d: %w: %s holds %s of %s, needs %s", i, ErrInsufficientBalance,
				crypto.FormatAddress(tr.From), from.Dec(), asset, amount.Dec())
		}
		to, err := load(balanceKey{owner: tr.To, asset: asset})
		if err != nil {
			return err
		}
		from.Sub(from, amount)
		if _, overflow := to.AddOverflow(to, amount); overflow {
			return fmt.Errorf("leg %d: %w", i, ErrOverflow)
		}
		tr.Asset = asset
		settled = append(settled, tr)
	}
	if len(working) == 0 {
		return nil
	}
	if err := l.state.BankBalancesPut(entries(working)); err != nil {
		return err
	}
	for _, tr := range settled {
		l.emitter.Emit(transferEvent(tr))
		metrics.Bank().RecordTransfer(tr.Asset.TokenID)
	}
	return nil
}

// Mint credits newly created units to the recipient.
func (l *Ledger) Mint(ctx context.Context, to [20]byte, asset types.AssetRef, amount *big.Int) error {
	if l == nil || l.state == nil {
		return errNilState
	}
	value, err := toUint256(amount)
	if err != nil {
		return err
	}
	asset = normalize(asset)
	if asset.TokenID == "" {
		return ErrInvalidAsset
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	raw, err := l.state.BankBalanceGet(to, asset)
	if err != nil {
		return err
	}
	bal := new(uint256.Int)
	if raw != nil {
		if overflow := bal.SetFromBig(raw); overflow {
			return ErrOverflow
		}
	}
	if _, overflow := bal.AddOverflow(bal, value); overflow {
		return ErrOverflow
	}
	if err := l.state.BankBalancesPut([]types.BalanceEntry{{Owner: to, Asset: asset, Amount: bal.ToBig()}}); err != nil {
		return err
	}
	l.emitter.Emit(mintEvent(to, asset, amount))
	return nil
}

func normalize(asset types.AssetRef) types.AssetRef {
	asset.TokenID = types.NormalizeTokenID(asset.TokenID)
	return asset
}

func toUint256(amount *big.Int) (*uint256.Int, error) {
	if amount == nil || amount.Sign() < 0 {
		return nil, ErrInvalidAmount
	}
	value, overflow := uint256.FromBig(amount)
	if overflow {
		return nil, ErrOverflow
	}
	return value, nil
}

// entries returns the working set in a deterministic order.
func entries(working map[balanceKey]*uint256.Int) []types.BalanceEntry {
	out := make([]types.BalanceEntry, 0, len(working))
	for key, bal := range working {
		out = append(out, types.BalanceEntry{Owner: key.owner, Asset: key.asset, Amount: bal.ToBig()})
	}
	sort.Slice(out, func(i, j int) bool {
		if c := bytes.Compare(out[i].Owner[:], out[j].Owner[:]); c != 0 {
			return c < 0
		}
		if out[i].Asset.TokenID != out[j].Asset.TokenID {
			return out[i].Asset.TokenID < out[j].Asset.TokenID
		}
		return out[i].Asset.Nonce < out[j].Asset.Nonce
	})
	return out
}

type eventEnvelope struct {
	evt *types.Event
}

func (e eventEnvelope) EventType() string { return e.evt.Type }

func (e eventEnvelope) Event() *types.Event { return e.evt }

func transferEvent(tr types.Transfer) events.Event {
	attrs := map[string]string{
		"from":   crypto.FormatAddress(tr.From),
		"to":     crypto.FormatAddress(tr.To),
		"token":  tr.Asset.TokenID,
		"nonce":  strconv.FormatUint(tr.Asset.Nonce, 10),
		"amount": tr.Amount.String(),
	}
	if len(tr.Memo) > 0 {
		attrs["memo"] = string(tr.Memo)
	}
	return eventEnvelope{evt: &types.Event{Type: EventTypeTransfer, Attributes: attrs}}
}

func mintEvent(to [20]byte, asset types.AssetRef, amount *big.Int) events.Event {
	return eventEnvelope{evt: &types.Event{
		Type: EventTypeMint,
		Attributes: map[string]string{
			"to":     crypto.FormatAddress(to),
			"token":  asset.TokenID,
			"nonce":  strconv.FormatUint(asset.Nonce, 10),
			"amount": amount.String(),
		},
	}}
}

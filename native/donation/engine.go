package donation

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"rewardvault/core/events"
	"rewardvault/core/types"
	"rewardvault/crypto"
	"rewardvault/native/registry"
	"rewardvault/observability/metrics"
)

const (
	// DefaultTotalUnits is the size of the reward batch.
	DefaultTotalUnits uint32 = 1000
	// DefaultNativeDenom is the settlement currency donations are accepted in.
	DefaultNativeDenom = "EGLD"
	// DefaultAckMemo accompanies every unit granted to a donor.
	DefaultAckMemo = "Here is your NFT. Multumesc !"
	// DefaultMetadataURI is the provenance metadata of the reward artwork.
	DefaultMetadataURI = "https://ipfs.io/ipfs/QmP5nJecZ9BbsVmXFs9hZ7ZGvL92AtqNdpnyquP2QF1ypd"
)

// DefaultTags are the provenance tags of the reward artwork.
var DefaultTags = []string{"Beniamin", "Elrond", "FullMoon", "Tolkien", "WarmyDonation"}

// DefaultMinThreshold is the smallest donation that earns a reward unit:
// 0.05 of an 18-decimal coin.
var DefaultMinThreshold = big.NewInt(50_000_000_000_000_000)

var tracer = otel.Tracer("rewardvault/native/donation")

type engineState interface {
	DonationLedgerGet() (*Ledger, bool, error)
	DonationLedgerPut(ledger *Ledger) error
	DonationAssetClassGet() (*AssetClass, bool, error)
	DonationAssetClassPut(asset *AssetClass) error
	DonationRewardBatchGet() (*RewardBatch, bool, error)
	// DonationMintCommit writes the batch, the counters and the asset class in
	// one atomic write.
	DonationMintCommit(batch *RewardBatch, ledger *Ledger, asset *AssetClass) error
}

// Settlement moves native currency and reward units between accounts.
type Settlement interface {
	Balance(ctx context.Context, owner [20]byte, asset types.AssetRef) (*big.Int, error)
	Apply(ctx context.Context, transfers ...types.Transfer) error
}

// AssetRegistry issues asset classes, grants local roles and creates batches.
type AssetRegistry interface {
	IssueSemiFungible(ctx context.Context, req registry.IssueRequest, cb registry.IssueCallback) error
	SetLocalRoles(ctx context.Context, requester [20]byte, tokenID string, target [20]byte, roles ...registry.Role) error
	LocalRoles(ctx context.Context, tokenID string, target [20]byte) (registry.RoleSet, error)
	CreateBatch(ctx context.Context, req registry.CreateBatchRequest) (uint64, error)
}

// Identity resolves the invoking identity and the privileged operator.
type Identity interface {
	Caller(ctx context.Context) ([20]byte, error)
	Operator() [20]byte
}

// Params are fixed at construction.
type Params struct {
	// Custody is the account holding donations and undistributed units.
	Custody      [20]byte
	NativeDenom  string
	MinThreshold *big.Int
	TotalUnits   uint32
	Attributes   Attributes
	Digest       crypto.DigestAlgorithm
	AckMemo      string
}

// DefaultParams returns the parameters of the original donation campaign.
func DefaultParams() Params {
	return Params{
		Custody:      crypto.DeriveAddress("custody"),
		NativeDenom:  DefaultNativeDenom,
		MinThreshold: new(big.Int).Set(DefaultMinThreshold),
		TotalUnits:   DefaultTotalUnits,
		Attributes: Attributes{
			MetadataURI: DefaultMetadataURI,
			Tags:        append([]string(nil), DefaultTags...),
		},
		Digest:  crypto.DigestSHA256,
		AckMemo: DefaultAckMemo,
	}
}

// Engine implements the donation-to-reward state machine. Every exported
// operation runs to completion under the engine lock, so invocations never
// interleave their effects. The registration callback runs later as its own
// invocation.
type Engine struct {
	mu         sync.Mutex
	params     Params
	state      engineState
	settlement Settlement
	registry   AssetRegistry
	identity   Identity
	emitter    events.Emitter
	logger     *slog.Logger
	nowFn      func() int64
	newID      func() string
	pending    *PendingRegistration
	// unsettled is a batch the registry created whose local commit failed.
	unsettled *RewardBatch
}

// NewEngine constructs a donation engine with default dependencies.
func NewEngine(params Params) *Engine {
	params.NativeDenom = types.NormalizeTokenID(params.NativeDenom)
	params.MinThreshold = newBigInt(params.MinThreshold)
	if params.Digest == "" {
		params.Digest = crypto.DigestSHA256
	}
	return &Engine{
		params:  params,
		emitter: events.NoopEmitter{},
		logger:  slog.Default(),
		nowFn: func() int64 {
			return time.Now().Unix()
		},
		newID: uuid.NewString,
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetSettlement configures the transfer service.
func (e *Engine) SetSettlement(s Settlement) { e.settlement = s }

// SetRegistry configures the asset registry.
func (e *Engine) SetRegistry(r AssetRegistry) { e.registry = r }

// SetIdentity configures the caller identity service.
func (e *Engine) SetIdentity(id Identity) { e.identity = id }

// SetEmitter configures the event emitter used by the engine.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetLogger configures the structured logger.
func (e *Engine) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	e.logger = logger
}

// SetNowFunc overrides the time source used for deterministic testing.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// SetIDFunc overrides the generator of registration request identifiers.
func (e *Engine) SetIDFunc(fn func() string) {
	if fn == nil {
		fn = uuid.NewString
	}
	e.newID = fn
}

// Params returns a copy of the engine parameters.
func (e *Engine) Params() Params {
	p := e.params
	p.MinThreshold = newBigInt(e.params.MinThreshold)
	p.Attributes.Tags = append([]string(nil), e.params.Attributes.Tags...)
	return p
}

func (e *Engine) ready() error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if e.settlement == nil {
		return errNilSettlement
	}
	if e.registry == nil {
		return errNilRegistry
	}
	if e.identity == nil {
		return errNilIdentity
	}
	return nil
}

func (e *Engine) emit(evt *types.Event) {
	if e == nil || evt == nil || e.emitter == nil {
		return
	}
	e.emitter.Emit(WrapEvent(evt))
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func (e *Engine) native() types.AssetRef { return types.NativeAsset(e.params.NativeDenom) }

func startSpan(ctx context.Context, op string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "donation."+op)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// authorize admits only the operator.
func (e *Engine) authorize(ctx context.Context) ([20]byte, error) {
	caller, err := e.identity.Caller(ctx)
	if err != nil {
		return caller, err
	}
	if caller != e.identity.Operator() {
		return caller, ErrUnauthorized
	}
	return caller, nil
}

func (e *Engine) loadLedger() (*Ledger, error) {
	ledger, ok, err := e.state.DonationLedgerGet()
	if err != nil {
		return nil, err
	}
	if !ok || ledger == nil {
		return &Ledger{FundsRaised: big.NewInt(0)}, nil
	}
	ledger.FundsRaised = newBigInt(ledger.FundsRaised)
	return ledger, nil
}

func (e *Engine) loadAssetClass() (*AssetClass, error) {
	asset, ok, err := e.state.DonationAssetClassGet()
	if err != nil {
		return nil, err
	}
	if !ok || asset == nil {
		return &AssetClass{}, nil
	}
	return asset, nil
}

// settle applies legs and then runs commit. When commit fails the legs are
// reversed so that no transfer survives without its counter update.
func (e *Engine) settle(ctx context.Context, legs []types.Transfer, commit func() error) error {
	if len(legs) > 0 {
		if err := e.settlement.Apply(ctx, legs...); err != nil {
			return fmt.Errorf("donation engine: settle: %w", err)
		}
	}
	if err := commit(); err != nil {
		if len(legs) > 0 {
			if rbErr := e.settlement.Apply(context.WithoutCancel(ctx), reverse(legs)...); rbErr != nil {
				e.logger.Error("donation settlement rollback failed", "error", rbErr)
			}
		}
		return err
	}
	return nil
}

func reverse(legs []types.Transfer) []types.Transfer {
	out := make([]types.Transfer, 0, len(legs))
	for i := len(legs) - 1; i >= 0; i-- {
		leg := legs[i]
		leg.From, leg.To = leg.To, leg.From
		leg.Memo = nil
		out = append(out, leg)
	}
	return out
}

// Views returns a read-only snapshot of the counters and the asset class.
func (e *Engine) Views(ctx context.Context) (*View, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	ledger, err := e.loadLedger()
	if err != nil {
		return nil, err
	}
	asset, err := e.loadAssetClass()
	if err != nil {
		return nil, err
	}
	view := &View{
		Status:         StatusUnregistered,
		AmountRaised:   ledger.FundsRaised,
		UnitsGranted:   ledger.UnitsGranted,
		UnitsRemaining: ledger.UnitsRemaining,
		TokenID:        asset.RegistryID,
		UnitNonce:      asset.UnitNonce,
	}
	switch {
	case asset.Minted:
		view.Status = StatusMinted
		batch, ok, err := e.state.DonationRewardBatchGet()
		if err != nil {
			return nil, err
		}
		if ok {
			view.Batch = batch
		}
	case asset.Issued():
		view.Status = StatusRegistered
	case e.pending != nil:
		view.Status = StatusRegistrationPending
	}
	if e.pending != nil {
		view.PendingRequest = e.pending.RequestID
	}
	return view, nil
}

func (e *Engine) observeLedger(ledger *Ledger) {
	metrics.Donation().ObserveLedger(ledger.FundsRaised, ledger.UnitsGranted, ledger.UnitsRemaining)
}

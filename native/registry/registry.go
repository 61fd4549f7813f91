package registry

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"strings"
	"sync"
	"time"

	"rewardvault/core/events"
	"rewardvault/core/types"
)

var (
	errNilState         = errors.New("registry: state not configured")
	errNilLedger        = errors.New("registry: ledger not configured")
	errMissingRequestID = errors.New("registry: request id required")
	errMissingCallback  = errors.New("registry: callback required")

	// ErrInvalidFee is returned when an issue request carries no fee.
	ErrInvalidFee = errors.New("registry: issue fee must be positive")
	// ErrTokenNotFound is returned for operations on unknown asset classes.
	ErrTokenNotFound = errors.New("registry: token not found")
	// ErrMissingRole is returned when the creator lacks the create role.
	ErrMissingRole = errors.New("registry: create role not granted")
	// ErrInvalidSupply is returned when a batch would carry no units.
	ErrInvalidSupply = errors.New("registry: batch supply must be positive")
)

const suffixBytes = 3

type registryState interface {
	RegistryTokenGet(id string) (*Token, bool, error)
	RegistryTokenPut(token *Token) error
	RegistryRolesGet(tokenID string, addr [20]byte) (RoleSet, error)
	RegistryRolesPut(tokenID string, addr [20]byte, roles RoleSet) error
	RegistryBatchGet(tokenID string, nonce uint64) (*Batch, bool, error)
	RegistryBatchPut(batch *Batch) error
}

type ledger interface {
	Apply(ctx context.Context, transfers ...types.Transfer) error
	Mint(ctx context.Context, to [20]byte, asset types.AssetRef, amount *big.Int) error
}

// Config holds the registry parameters.
type Config struct {
	// Vault receives issue fees.
	Vault [20]byte
	// NativeDenom is the denomination fees are paid in.
	NativeDenom string
	// IssueCost is the exact fee required to issue. Nil accepts any positive fee.
	IssueCost *big.Int
	// MaxDeliveries bounds how often an issue result is offered to a callback
	// that returns an error. Zero means DefaultMaxDeliveries.
	MaxDeliveries int
}

// DefaultMaxDeliveries is the delivery bound used when none is configured.
const DefaultMaxDeliveries = 3

type roleRequest struct {
	requester [20]byte
	tokenID   string
	target    [20]byte
	roles     RoleSet
}

type delivery struct {
	result   IssueResult
	callback IssueCallback
	attempt  int
}

type pendingOp struct {
	issue    *IssueRequest
	callback IssueCallback
	roles    *roleRequest
	delivery *delivery
}

// Registry is an asset registry that resolves issue and role requests
// asynchronously. Requests are queued on submission and resolved by Drain or
// Run; callbacks are never invoked from the submitting goroutine.
type Registry struct {
	cfg     Config
	state   registryState
	ledger  ledger
	emitter events.Emitter
	logger  *slog.Logger
	nowFn   func() int64
	entropy io.Reader

	// write guards token, role and batch records.
	write  sync.Mutex
	mu     sync.Mutex
	queue  []pendingOp
	notify chan struct{}
}

// New constructs a registry with default dependencies.
func New(cfg Config) *Registry {
	if cfg.IssueCost != nil {
		cfg.IssueCost = new(big.Int).Set(cfg.IssueCost)
	}
	cfg.NativeDenom = types.NormalizeTokenID(cfg.NativeDenom)
	if cfg.MaxDeliveries <= 0 {
		cfg.MaxDeliveries = DefaultMaxDeliveries
	}
	return &Registry{
		cfg:     cfg,
		emitter: events.NoopEmitter{},
		logger:  slog.Default(),
		nowFn:   func() int64 { return time.Now().Unix() },
		entropy: rand.Reader,
		notify:  make(chan struct{}, 1),
	}
}

// SetState configures the state backend used by the registry.
func (r *Registry) SetState(state registryState) { r.state = state }

// SetLedger configures the settlement ledger used for fees and minting.
func (r *Registry) SetLedger(l ledger) { r.ledger = l }

// SetEmitter configures the event emitter used by the registry.
func (r *Registry) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		r.emitter = events.NoopEmitter{}
		return
	}
	r.emitter = emitter
}

// SetLogger configures the structured logger.
func (r *Registry) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	r.logger = logger
}

// SetNowFunc overrides the time source used for deterministic testing.
func (r *Registry) SetNowFunc(now func() int64) {
	if now == nil {
		now = func() int64 { return time.Now().Unix() }
	}
	r.nowFn = now
}

// SetEntropy overrides the source of identifier suffixes.
func (r *Registry) SetEntropy(src io.Reader) {
	if src == nil {
		src = rand.Reader
	}
	r.entropy = src
}

// Vault returns the account that receives issue fees.
func (r *Registry) Vault() [20]byte { return r.cfg.Vault }

func (r *Registry) emit(evt *types.Event) {
	if r == nil || evt == nil || r.emitter == nil {
		return
	}
	r.emitter.Emit(wrapEvent(evt))
}

func (r *Registry) native() types.AssetRef { return types.NativeAsset(r.cfg.NativeDenom) }

func (r *Registry) ready() error {
	if r == nil || r.state == nil {
		return errNilState
	}
	if r.ledger == nil {
		return errNilLedger
	}
	return nil
}

func (r *Registry) enqueue(op pendingOp) {
	r.mu.Lock()
	r.queue = append(r.queue, op)
	r.mu.Unlock()
	select {
	case r.notify <- struct{}{}:
	default:
	}
}

// IssueSemiFungible collects the fee from the issuer and queues the request.
// The outcome is reported to cb once the request is resolved.
func (r *Registry) IssueSemiFungible(ctx context.Context, req IssueRequest, cb IssueCallback) error {
	if err := r.ready(); err != nil {
		return err
	}
	if strings.TrimSpace(req.RequestID) == "" {
		return errMissingRequestID
	}
	if cb == nil {
		return errMissingCallback
	}
	if req.Fee == nil || req.Fee.Sign() <= 0 {
		return ErrInvalidFee
	}
	fee := new(big.Int).Set(req.Fee)
	if err := r.ledger.Apply(ctx, types.Transfer{
		From:   req.Issuer,
		To:     r.cfg.Vault,
		Asset:  r.native(),
		Amount: fee,
	}); err != nil {
		return fmt.Errorf("registry: collect issue fee: %w", err)
	}
	req.Fee = fee
	r.enqueue(pendingOp{issue: &req, callback: cb})
	return nil
}

// SetLocalRoles queues a role grant for target on tokenID. Only the token owner
// may grant roles; requests from anyone else are dropped when resolved. The
// grant has no callback.
func (r *Registry) SetLocalRoles(ctx context.Context, requester [20]byte, tokenID string, target [20]byte, roles ...Role) error {
	if err := r.ready(); err != nil {
		return err
	}
	r.enqueue(pendingOp{roles: &roleRequest{
		requester: requester,
		tokenID:   types.NormalizeTokenID(tokenID),
		target:    target,
		roles:     append(RoleSet(nil), roles...),
	}})
	return nil
}

// LocalRoles returns the roles target holds on tokenID.
func (r *Registry) LocalRoles(ctx context.Context, tokenID string, target [20]byte) (RoleSet, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	return r.state.RegistryRolesGet(types.NormalizeTokenID(tokenID), target)
}

// Token returns the registered asset class.
func (r *Registry) Token(ctx context.Context, id string) (*Token, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	token, ok, err := r.state.RegistryTokenGet(types.NormalizeTokenID(id))
	if err != nil {
		return nil, err
	}
	if !ok || token == nil {
		return nil, ErrTokenNotFound
	}
	return token, nil
}

// Batch returns a previously created batch.
func (r *Registry) Batch(ctx context.Context, tokenID string, nonce uint64) (*Batch, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	batch, ok, err := r.state.RegistryBatchGet(types.NormalizeTokenID(tokenID), nonce)
	if err != nil {
		return nil, err
	}
	if !ok || batch == nil {
		return nil, ErrTokenNotFound
	}
	return batch, nil
}

// CreateBatch mints a new batch of units to the creator and returns its nonce.
// It runs synchronously and requires the create role.
func (r *Registry) CreateBatch(ctx context.Context, req CreateBatchRequest) (uint64, error) {
	if err := r.ready(); err != nil {
		return 0, err
	}
	if req.Supply == nil || req.Supply.Sign() <= 0 {
		return 0, ErrInvalidSupply
	}
	r.write.Lock()
	defer r.write.Unlock()

	tokenID := types.NormalizeTokenID(req.TokenID)
	token, ok, err := r.state.RegistryTokenGet(tokenID)
	if err != nil {
		return 0, err
	}
	if !ok || token == nil {
		return 0, ErrTokenNotFound
	}
	roles, err := r.state.RegistryRolesGet(tokenID, req.Creator)
	if err != nil {
		return 0, err
	}
	if !roles.Has(RoleCreate) {
		return 0, ErrMissingRole
	}
	royalties := big.NewInt(0)
	if req.Royalties != nil {
		royalties = new(big.Int).Set(req.Royalties)
	}
	batch := &Batch{
		TokenID:    tokenID,
		Nonce:      token.LastNonce + 1,
		Creator:    req.Creator,
		Supply:     new(big.Int).Set(req.Supply),
		Name:       req.Name,
		Royalties:  royalties,
		Hash:       req.Hash,
		Attributes: append([]byte(nil), req.Attributes...),
		URIs:       append([]string(nil), req.URIs...),
		CreatedAt:  r.nowFn(),
	}
	if err := r.ledger.Mint(ctx, req.Creator, types.AssetRef{TokenID: tokenID, Nonce: batch.Nonce}, batch.Supply); err != nil {
		return 0, fmt.Errorf("registry: credit batch: %w", err)
	}
	if err := r.state.RegistryBatchPut(batch); err != nil {
		return 0, err
	}
	token.LastNonce = batch.Nonce
	if err := r.state.RegistryTokenPut(token); err != nil {
		return 0, err
	}
	r.emit(batchCreatedEvent(batch))
	return batch.Nonce, nil
}

// Pending returns the number of queued requests.
func (r *Registry) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.queue)
}

// Drain resolves every queued request in submission order, including requests
// queued by callbacks while draining. It returns the number resolved.
func (r *Registry) Drain(ctx context.Context) (int, error) {
	if err := r.ready(); err != nil {
		return 0, err
	}
	resolved := 0
	for {
		if err := ctx.Err(); err != nil {
			return resolved, err
		}
		r.mu.Lock()
		if len(r.queue) == 0 {
			r.mu.Unlock()
			return resolved, nil
		}
		op := r.queue[0]
		r.queue = r.queue[1:]
		r.mu.Unlock()

		switch {
		case op.issue != nil:
			r.resolveIssue(ctx, op.issue, op.callback)
		case op.roles != nil:
			r.resolveRoles(op.roles)
		case op.delivery != nil:
			r.deliver(ctx, op.delivery)
		}
		resolved++
	}
}

// Run drains the queue whenever new requests arrive until ctx is done.
func (r *Registry) Run(ctx context.Context) error {
	if _, err := r.Drain(ctx); err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-r.notify:
			if _, err := r.Drain(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
		}
	}
}

func (r *Registry) resolveIssue(ctx context.Context, req *IssueRequest, cb IssueCallback) {
	result := IssueResult{RequestID: req.RequestID}
	token, reason := r.createToken(req)
	if reason != "" {
		result.Reason = reason
		r.emit(issueRejectedEvent(req.RequestID, reason))
		if err := r.ledger.Apply(ctx, types.Transfer{
			From:   r.cfg.Vault,
			To:     req.Issuer,
			Asset:  r.native(),
			Amount: req.Fee,
		}); err != nil {
			r.logger.Error("registry fee return failed", "requestId", req.RequestID, "error", err)
		} else {
			result.Returned = &types.Payment{Asset: r.native(), Amount: new(big.Int).Set(req.Fee)}
		}
	} else {
		result.TokenID = token.ID
		r.emit(tokenIssuedEvent(req.RequestID, token))
	}
	r.deliver(ctx, &delivery{result: result, callback: cb})
}

// deliver offers result to its callback. A failed delivery is queued again
// until MaxDeliveries attempts have been made.
func (r *Registry) deliver(ctx context.Context, d *delivery) {
	d.attempt++
	err := d.callback(ctx, d.result)
	if err == nil {
		return
	}
	if d.attempt >= r.cfg.MaxDeliveries {
		r.logger.Error("registry issue result dropped", "requestId", d.result.RequestID,
			"attempts", d.attempt, "error", err)
		return
	}
	r.logger.Warn("registry issue callback failed, redelivering", "requestId", d.result.RequestID,
		"attempt", d.attempt, "error", err)
	r.enqueue(pendingOp{delivery: d})
}

func (r *Registry) createToken(req *IssueRequest) (*Token, string) {
	if err := validateName(req.Name); err != nil {
		return nil, err.Error()
	}
	if err := validateTicker(req.Ticker); err != nil {
		return nil, err.Error()
	}
	if r.cfg.IssueCost != nil && req.Fee.Cmp(r.cfg.IssueCost) != 0 {
		return nil, fmt.Sprintf("issue cost must be %s", r.cfg.IssueCost)
	}
	r.write.Lock()
	defer r.write.Unlock()
	id, err := r.newTokenID(req.Ticker)
	if err != nil {
		return nil, err.Error()
	}
	token := &Token{
		ID:         id,
		Name:       req.Name,
		Ticker:     req.Ticker,
		Owner:      req.Issuer,
		Properties: req.Properties,
		IssuedAt:   r.nowFn(),
	}
	if err := r.state.RegistryTokenPut(token); err != nil {
		r.logger.Error("registry token write failed", "requestId", req.RequestID, "error", err)
		return nil, "registry storage unavailable"
	}
	return token, ""
}

func (r *Registry) newTokenID(ticker string) (string, error) {
	for attempt := 0; attempt < 8; attempt++ {
		buf := make([]byte, suffixBytes)
		if _, err := io.ReadFull(r.entropy, buf); err != nil {
			return "", fmt.Errorf("identifier entropy: %w", err)
		}
		id := ticker + "-" + hex.EncodeToString(buf)
		_, exists, err := r.state.RegistryTokenGet(id)
		if err != nil {
			return "", err
		}
		if !exists {
			return id, nil
		}
	}
	return "", errors.New("identifier space exhausted")
}

func (r *Registry) resolveRoles(req *roleRequest) {
	r.write.Lock()
	defer r.write.Unlock()
	token, ok, err := r.state.RegistryTokenGet(req.tokenID)
	if err != nil || !ok || token == nil {
		r.logger.Warn("registry role grant for unknown token", "tokenId", req.tokenID, "error", err)
		return
	}
	if token.Owner != req.requester {
		r.logger.Warn("registry role grant from non-owner", "tokenId", req.tokenID)
		return
	}
	if !token.Properties.CanAddSpecialRoles {
		r.logger.Warn("registry role grant on closed token", "tokenId", req.tokenID)
		return
	}
	current, err := r.state.RegistryRolesGet(req.tokenID, req.target)
	if err != nil {
		r.logger.Error("registry role read failed", "tokenId", req.tokenID, "error", err)
		return
	}
	for _, role := range req.roles {
		if !current.Has(role) {
			current = append(current, role)
		}
	}
	if err := r.state.RegistryRolesPut(req.tokenID, req.target, current); err != nil {
		r.logger.Error("registry role write failed", "tokenId", req.tokenID, "error", err)
		return
	}
	r.emit(rolesSetEvent(req.tokenID, req.target, current))
}

func validateName(name string) error {
	if len(name) < 3 || len(name) > 20 {
		return errors.New("token name length must be between 3 and 20")
	}
	for _, c := range name {
		if !isAlphanumeric(c) {
			return errors.New("token name must be alphanumeric")
		}
	}
	return nil
}

func validateTicker(ticker string) error {
	if len(ticker) < 3 || len(ticker) > 10 {
		return errors.New("ticker length must be between 3 and 10")
	}
	for _, c := range ticker {
		if !isAlphanumeric(c) || (c >= 'a' && c <= 'z') {
			return errors.New("ticker must be upper-case alphanumeric")
		}
	}
	return nil
}

func isAlphanumeric(c rune) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

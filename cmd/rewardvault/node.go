package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"rewardvault/config"
	"rewardvault/core/callctx"
	"rewardvault/core/events"
	"rewardvault/core/state"
	"rewardvault/crypto"
	"rewardvault/native/bank"
	"rewardvault/native/donation"
	"rewardvault/native/registry"
	"rewardvault/observability/metrics"
	"rewardvault/storage"
)

// node is the in-process assembly of storage, settlement, registry and engine.
type node struct {
	cfg      *config.Config
	logger   *slog.Logger
	db       storage.Database
	state    *state.Manager
	ledger   *bank.Ledger
	registry *registry.Registry
	engine   *donation.Engine
	operator [20]byte
}

func storagePath(cfg *config.Config) string {
	switch storage.Backend(strings.ToLower(cfg.Storage)) {
	case storage.BackendBolt:
		return filepath.Join(cfg.DataDir, "state.db")
	case storage.BackendLevelDB:
		return filepath.Join(cfg.DataDir, "state")
	default:
		return ""
	}
}

func donationParams(cfg *config.Config) (donation.Params, error) {
	params := donation.DefaultParams()
	if strings.TrimSpace(cfg.Custody) != "" {
		custody, err := crypto.ParseAddress(cfg.Custody)
		if err != nil {
			return params, fmt.Errorf("custody: %w", err)
		}
		params.Custody = custody
	}
	threshold, err := config.ParseAmount(cfg.Donation.MinThreshold)
	if err != nil {
		return params, err
	}
	digest, err := crypto.ParseDigestAlgorithm(cfg.Donation.Digest)
	if err != nil {
		return params, err
	}
	params.NativeDenom = cfg.Donation.NativeDenom
	params.MinThreshold = threshold
	params.TotalUnits = cfg.Donation.TotalUnits
	params.Digest = digest
	params.Attributes = donation.Attributes{
		MetadataURI: cfg.Donation.MetadataURI,
		Tags:        append([]string(nil), cfg.Donation.Tags...),
	}
	if memo := strings.TrimSpace(cfg.Donation.AckMemo); memo != "" {
		params.AckMemo = cfg.Donation.AckMemo
	}
	return params, nil
}

func registryConfig(cfg *config.Config) (registry.Config, error) {
	out := registry.Config{
		Vault:       crypto.DeriveAddress("registry"),
		NativeDenom: cfg.Donation.NativeDenom,
	}
	if strings.TrimSpace(cfg.Registry.Vault) != "" {
		vault, err := crypto.ParseAddress(cfg.Registry.Vault)
		if err != nil {
			return out, fmt.Errorf("registry vault: %w", err)
		}
		out.Vault = vault
	}
	cost, err := config.ParseAmount(cfg.Registry.IssueCost)
	if err != nil {
		return out, err
	}
	if cost.Sign() > 0 {
		out.IssueCost = cost
	}
	return out, nil
}

// openNode assembles the services over the configured database. The operator
// key is only loaded when withOperator is set.
func openNode(cfg *config.Config, logger *slog.Logger, operatorKey func() (*crypto.PrivateKey, error), withOperator bool) (*node, error) {
	params, err := donationParams(cfg)
	if err != nil {
		return nil, err
	}
	regCfg, err := registryConfig(cfg)
	if err != nil {
		return nil, err
	}
	var operator [20]byte
	if withOperator {
		key, err := operatorKey()
		if err != nil {
			return nil, fmt.Errorf("load operator key: %w", err)
		}
		operator = key.Address().Bytes()
	}

	path := storagePath(cfg)
	if path != "" {
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return nil, err
		}
	}
	db, err := storage.Open(storage.Backend(cfg.Storage), path)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	emitter := events.Multi{events.LogEmitter{Logger: logger}, metrics.EventCounter{}}
	mgr := state.NewManager(db)
	ledger := bank.NewLedger(mgr)
	ledger.SetEmitter(emitter)

	reg := registry.New(regCfg)
	reg.SetState(mgr)
	reg.SetLedger(ledger)
	reg.SetEmitter(emitter)
	reg.SetLogger(logger.With("component", "registry"))

	engine := donation.NewEngine(params)
	engine.SetState(mgr)
	engine.SetSettlement(ledger)
	engine.SetRegistry(reg)
	engine.SetIdentity(callctx.NewStatic(operator))
	engine.SetEmitter(emitter)
	engine.SetLogger(logger.With("component", "donation"))

	return &node{
		cfg:      cfg,
		logger:   logger,
		db:       db,
		state:    mgr,
		ledger:   ledger,
		registry: reg,
		engine:   engine,
		operator: operator,
	}, nil
}

// asOperator returns a context whose caller is the operator.
func (n *node) asOperator(ctx context.Context) context.Context {
	return callctx.WithCaller(ctx, n.operator)
}

// settle resolves every queued registry request. The pending registration
// marker lives in memory, so requests must resolve before the process exits.
func (n *node) settle(ctx context.Context) error {
	resolved, err := n.registry.Drain(ctx)
	if err != nil {
		return err
	}
	if resolved > 0 {
		n.logger.Debug("registry requests resolved", "count", resolved)
	}
	return nil
}

func (n *node) Close() error {
	if n == nil || n.db == nil {
		return nil
	}
	err := n.db.Close()
	n.db = nil
	if err != nil && !errors.Is(err, os.ErrClosed) {
		return err
	}
	return nil
}

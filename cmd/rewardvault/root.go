package main

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"rewardvault/cmd/rewardvault/internal/passphrase"
	"rewardvault/config"
	"rewardvault/crypto"
	"rewardvault/observability/logging"
	rvotel "rewardvault/observability/otel"
)

const passphraseEnv = config.EnvPrefix + "KEYSTORE_PASSPHRASE"

// app carries the state shared by every subcommand.
type app struct {
	configPath string
	envFile    string
	logOutput  io.Writer

	cfg        *config.Config
	logger     *slog.Logger
	logCloser  io.Closer
	shutdown   func(context.Context) error
	passphrase *passphrase.Source
}

func newRootCommand() *cobra.Command {
	a := &app{passphrase: passphrase.NewSource(passphraseEnv)}
	root := &cobra.Command{
		Use:           "rewardvault",
		Short:         "Donation ledger granting reward units from a fixed batch",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return a.teardown(cmd.Context())
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "rewardvault.toml", "path to the TOML or YAML configuration file")
	root.PersistentFlags().StringVar(&a.envFile, "env-file", ".env", "dotenv file loaded before the configuration")

	root.AddCommand(
		newInitConfigCommand(a),
		newKeygenCommand(a),
		newFundCommand(a),
		newIssueCommand(a),
		newGrantRolesCommand(a),
		newMintCommand(a),
		newDonateCommand(a),
		newClaimCommand(a),
		newClaimUnitsCommand(a),
		newStatusCommand(a),
		newBalanceCommand(a),
		newServeCommand(a),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	if path := strings.TrimSpace(a.envFile); path != "" {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg
	output := a.logOutput
	if output == nil {
		output = cmd.ErrOrStderr()
	}
	a.logger, a.logCloser = logging.Setup(logging.Options{
		Service:    cfg.Log.Service,
		Env:        cfg.Log.Env,
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Output:     output,
	})
	a.shutdown, err = rvotel.Init(cmd.Context(), rvotel.Config{
		ServiceName: cfg.Log.Service,
		Environment: cfg.Log.Env,
		Endpoint:    cfg.Telemetry.Endpoint,
		Insecure:    cfg.Telemetry.Insecure,
		Headers:     rvotel.ParseHeaders(cfg.Telemetry.Headers),
		SampleRatio: cfg.Telemetry.SampleRatio,
	})
	return err
}

func (a *app) teardown(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	var err error
	if a.shutdown != nil {
		err = a.shutdown(ctx)
	}
	if a.logCloser != nil {
		if closeErr := a.logCloser.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}
	return err
}

func (a *app) operatorKey() (*crypto.PrivateKey, error) {
	pass, err := a.passphrase.Get()
	if err != nil {
		return nil, err
	}
	return crypto.LoadFromKeystore(a.cfg.OperatorKeystore, pass)
}

// withNode opens the node, runs fn and resolves queued registry requests
// before closing storage.
func (a *app) withNode(cmd *cobra.Command, withOperator bool, fn func(ctx context.Context, n *node) error) error {
	n, err := openNode(a.cfg, a.logger, a.operatorKey, withOperator)
	if err != nil {
		return err
	}
	defer n.Close()
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if err := fn(ctx, n); err != nil {
		return err
	}
	return n.settle(ctx)
}

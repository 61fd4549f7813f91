package main

import (
	"bytes"
	"encoding/json"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"rewardvault/crypto"
)

func runCLI(t *testing.T, configPath string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(append([]string{"--config", configPath, "--env-file", ""}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func mustRun(t *testing.T, configPath string, args ...string) string {
	t.Helper()
	out, err := runCLI(t, configPath, args...)
	require.NoError(t, err, "rewardvault %s", strings.Join(args, " "))
	return out
}

func TestCLIDonationLifecycle(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "rewardvault.toml")
	t.Setenv(passphraseEnv, "correct horse battery staple")

	operator := strings.TrimSpace(mustRun(t, configPath, "keygen"))
	require.NotEmpty(t, operator)
	_, err := runCLI(t, configPath, "keygen")
	require.ErrorContains(t, err, "already exists")

	mustRun(t, configPath, "fund", "--to", "operator", "--amount", "1_000_000_000_000_000_000")
	out := mustRun(t, configPath, "issue", "--name", "DonationReward", "--ticker", "DONATE")
	require.Contains(t, out, "registered DONATE-")

	mustRun(t, configPath, "grant-roles")
	out = mustRun(t, configPath, "mint", "--name", "Reward", "--uri", "https://example.org/reward.json")
	require.Contains(t, out, "minted batch nonce 1")

	donor := crypto.FormatAddress(crypto.DeriveAddress("donor"))
	mustRun(t, configPath, "fund", "--to", donor, "--amount", "100000000000000000")

	out = mustRun(t, configPath, "donate", "--from", donor, "--amount", "50000000000000000")
	var receipt map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &receipt))
	require.Equal(t, true, receipt["granted"])
	require.EqualValues(t, 999, receipt["unitsRemaining"])

	out = mustRun(t, configPath, "donate", "--from", donor, "--amount", "10")
	require.NoError(t, json.Unmarshal([]byte(out), &receipt))
	require.Equal(t, false, receipt["granted"])

	out = mustRun(t, configPath, "status")
	var status map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &status))
	require.Equal(t, "minted", status["status"])
	require.Equal(t, "50000000000000010", status["amountRaised"])
	require.EqualValues(t, 1, status["nftBought"])
	require.EqualValues(t, 999, status["nftLeft"])
	require.Len(t, status["provenanceHash"], 64)
	require.Equal(t, "DONATE", status["ticker"])
	require.Equal(t, "DonationReward", status["tokenName"])

	tokenID, _ := status["tokenId"].(string)
	require.True(t, strings.HasPrefix(tokenID, "DONATE-"))
	out = mustRun(t, configPath, "balance", "--address", donor, "--token", tokenID, "--nonce", "1")
	require.Equal(t, "1", strings.TrimSpace(out))

	out = mustRun(t, configPath, "claim")
	require.Contains(t, out, "claimed 50000000000000010")
	out = mustRun(t, configPath, "claim-units")
	require.Contains(t, out, "claimed 999 units")

	out = mustRun(t, configPath, "balance", "--address", "custody")
	require.Equal(t, "0", strings.TrimSpace(out))
}

func TestCLIRejectsOutOfOrderOperations(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "rewardvault.toml")
	t.Setenv(passphraseEnv, "passphrase")

	mustRun(t, configPath, "keygen")
	_, err := runCLI(t, configPath, "mint", "--name", "Reward", "--uri", "ipfs://reward")
	require.Error(t, err)
	_, err = runCLI(t, configPath, "donate", "--from", "operator", "--amount", "0")
	require.Error(t, err)
	_, err = runCLI(t, configPath, "issue", "--name", "DonationReward", "--ticker", "DONATE")
	require.Error(t, err, "operator has no funds for the fee")

	out := mustRun(t, configPath, "status")
	require.Contains(t, out, `"status": "unregistered"`)
}

func TestCLIInitConfig(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "rewardvault.yaml")

	out := mustRun(t, configPath, "init-config")
	require.Contains(t, out, "wrote")
	_, err := runCLI(t, configPath, "init-config")
	require.ErrorContains(t, err, "--force")
	mustRun(t, configPath, "init-config", "--force")
}

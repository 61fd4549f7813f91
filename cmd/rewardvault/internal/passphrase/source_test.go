package passphrase

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSourceReadsEnvironmentOnce(t *testing.T) {
	t.Setenv("REWARDVAULT_TEST_PASSPHRASE", "correct horse")
	src := NewSource("REWARDVAULT_TEST_PASSPHRASE")

	value, err := src.Get()
	require.NoError(t, err)
	require.Equal(t, "correct horse", value)

	t.Setenv("REWARDVAULT_TEST_PASSPHRASE", "changed")
	value, err = src.Get()
	require.NoError(t, err)
	require.Equal(t, "correct horse", value)
}

func TestSourceRejectsBlankEnvironment(t *testing.T) {
	t.Setenv("REWARDVAULT_TEST_PASSPHRASE", "   ")
	_, err := NewSource("REWARDVAULT_TEST_PASSPHRASE").Get()
	require.ErrorContains(t, err, "set but empty")
}

type scriptedTerminal struct {
	interactive bool
	lines       []string
}

func (t *scriptedTerminal) IsTerminal() bool { return t.interactive }

func (t *scriptedTerminal) ReadPassword() ([]byte, error) {
	if len(t.lines) == 0 {
		return nil, io.EOF
	}
	line := t.lines[0]
	t.lines = t.lines[1:]
	return []byte(line), nil
}

func TestSourcePromptsWhenEnvironmentUnset(t *testing.T) {
	var prompt bytes.Buffer
	src := NewSource("REWARDVAULT_TEST_UNSET_PASSPHRASE").
		WithTerminal(&scriptedTerminal{interactive: true, lines: []string{"typed"}}, &prompt)

	value, err := src.Get()
	require.NoError(t, err)
	require.Equal(t, "typed", value)
	require.Contains(t, prompt.String(), "Enter operator keystore passphrase")
}

func TestSourceConfirmRequiresMatchingEntries(t *testing.T) {
	src := NewSource("").WithTerminal(&scriptedTerminal{interactive: true, lines: []string{"one", "two"}}, io.Discard)
	_, err := src.Confirm()
	require.ErrorIs(t, err, ErrMismatch)

	src = NewSource("").WithTerminal(&scriptedTerminal{interactive: true, lines: []string{"same", "same"}}, io.Discard)
	value, err := src.Confirm()
	require.NoError(t, err)
	require.Equal(t, "same", value)
}

func TestSourceWithoutTerminal(t *testing.T) {
	src := NewSource("REWARDVAULT_TEST_UNSET_PASSPHRASE").WithTerminal(&scriptedTerminal{}, io.Discard)
	_, err := src.Get()
	require.ErrorContains(t, err, "REWARDVAULT_TEST_UNSET_PASSPHRASE")

	src = NewSource("").WithTerminal(&scriptedTerminal{interactive: true, lines: []string{"  "}}, io.Discard)
	_, err = src.Get()
	require.ErrorContains(t, err, "cannot be empty")
}

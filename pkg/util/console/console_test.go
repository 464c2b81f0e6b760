package console

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLevelFiltering(t *testing.T) {
	var out, errOut bytes.Buffer
	c := &Console{Level: WarnLevel, Stdout: &out, Stderr: &errOut}

	c.Info("hidden")
	c.Debugf("also %s", "hidden")
	c.Warn("careful")
	c.Output("result")

	require.Equal(t, "careful\n", errOut.String())
	require.Equal(t, "result\n", out.String())
}

func TestMultilineMessagesArePrefixedPerLine(t *testing.T) {
	var errOut bytes.Buffer
	c := &Console{Level: DebugLevel, Stderr: &errOut}

	c.Errorf("first\nsecond")
	require.Equal(t, "first\nsecond\n", errOut.String())
}

func TestParseLevel(t *testing.T) {
	l, err := ParseLevel("WARNING")
	require.NoError(t, err)
	require.Equal(t, WarnLevel, l)

	_, err = ParseLevel("loud")
	require.ErrorIs(t, err, ErrInvalidLevel)
}

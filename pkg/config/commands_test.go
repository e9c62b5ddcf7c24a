package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeCmd_ConfCmd(t *testing.T) {
	raw := []byte(`{"algorithm_name":"threshold","algorithm_version":"1.2.0","algorithm_config":{"threshold":42}}`)
	var cmd ConfCmd
	require.NoError(t, DecodeCmd(raw, &cmd))
	assert.Equal(t, "threshold", cmd.AlgorithmName)
	assert.Equal(t, "1.2.0", cmd.AlgorithmVersion)
	assert.JSONEq(t, `{"threshold":42}`, string(cmd.AlgorithmConfig))
}

func TestDecodeCmd_StopCmd(t *testing.T) {
	var cmd StopCmd
	require.NoError(t, DecodeCmd([]byte(`{"drop":false}`), &cmd))
	require.NotNil(t, cmd.Drop)
	assert.False(t, *cmd.Drop)

	var defaultCmd StopCmd
	require.NoError(t, DecodeCmd([]byte(`{}`), &defaultCmd))
	assert.Nil(t, defaultCmd.Drop, "absence means caller falls back to the stage's configured default")
}

func TestAlgorithmConfigCache_DecodesOnceAndReuses(t *testing.T) {
	c, err := NewAlgorithmConfigCache(4)
	require.NoError(t, err)

	raw := []byte(`{"threshold":42}`)
	cfg1, err := c.Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, float64(42), cfg1["threshold"])

	cfg2, err := c.Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, cfg1, cfg2)
}

func TestAlgorithmConfigCache_InvalidJSON(t *testing.T) {
	c, err := NewAlgorithmConfigCache(4)
	require.NoError(t, err)
	_, err = c.Decode([]byte(`not json`))
	assert.Error(t, err)
}

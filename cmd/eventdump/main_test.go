package main

import (
	"bytes"
	"encoding/base64"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aurora-is-near/stream-events/catalog"
	"github.com/aurora-is-near/stream-events/events"
	"github.com/aurora-is-near/stream-events/programs/pumpfun"
)

func tradeData(t *testing.T) []byte {
	data, err := events.Encode(pumpfun.Registry(), &pumpfun.TradeEvent{SolAmount: 1234, IsBuy: true})
	require.NoError(t, err)
	return data
}

func TestParseInput(t *testing.T) {
	data := tradeData(t)
	b64 := base64.StdEncoding.EncodeToString(data)

	for _, input := range []string{
		"0x" + hex.EncodeToString(data),
		b64,
		"Program data: " + b64,
		"Program data: " + b64[:8] + " " + b64[8:],
	} {
		got, err := parseInput(input)
		require.NoError(t, err, input)
		assert.Equal(t, data, got, input)
	}

	_, err := parseInput("0xzz")
	assert.Error(t, err)
	_, err = parseInput("not base64!")
	assert.Error(t, err)
}

func TestDump(t *testing.T) {
	p, err := catalog.Default().Resolve(pumpfun.Name)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, dump(&buf, p, "0x"+hex.EncodeToString(tradeData(t))))
	out := buf.String()
	assert.Contains(t, out, "pump.fun / TradeEvent")
	assert.Contains(t, out, "SolAmount: (uint64) 1234")
	assert.Contains(t, out, "IsBuy: (bool) true")

	buf.Reset()
	require.NoError(t, dump(&buf, p, "0x0102"))
	assert.Contains(t, buf.String(), "TruncatedDiscriminator")

	padded := "0x" + hex.EncodeToString(append(tradeData(t), 0, 0))
	buf.Reset()
	require.NoError(t, dump(&buf, p, padded))
	assert.Contains(t, buf.String(), "pump.fun / TradeEvent")

	*strict = true
	defer func() { *strict = false }()
	buf.Reset()
	require.NoError(t, dump(&buf, p, padded))
	assert.Contains(t, buf.String(), "TrailingBytes")
}

func TestDumpLogs(t *testing.T) {
	data := base64.StdEncoding.EncodeToString(tradeData(t))
	logs := []string{
		"Program ComputeBudget111111111111111111111111111111 invoke [1]",
		"Program ComputeBudget111111111111111111111111111111 success",
		"Program " + pumpfun.ProgramID.String() + " invoke [1]",
		"Program log: Instruction: Buy",
		"Program data: " + data,
		"Program " + pumpfun.ProgramID.String() + " success",
		"Program 11111111111111111111111111111111 invoke [1]",
		"Program data: AQID",
		"Program 11111111111111111111111111111111 success",
	}

	var buf bytes.Buffer
	require.NoError(t, dumpLogs(&buf, catalog.Default(), logs))
	out := buf.String()
	assert.Contains(t, out, "line 4: pump.fun / TradeEvent (depth 1)")
	assert.Contains(t, out, "line 7: 3 bytes from unknown program 11111111111111111111111111111111")
}

func TestListPrograms(t *testing.T) {
	var buf bytes.Buffer
	listPrograms(&buf, catalog.Default())
	out := buf.String()
	assert.Contains(t, out, "pump.fun (6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P)")
	assert.Contains(t, out, "0x1b72a94ddeeb6376 CreateEvent")
}

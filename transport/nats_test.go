package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFillMissingFields(t *testing.T) {
	orig := NatsConnectionConfig{Endpoints: []string{"nats://localhost:4222"}, TimeoutMs: 300}
	c := orig.FillMissingFields()
	assert.Equal(t, uint(300), c.TimeoutMs)
	assert.Equal(t, uint(600000), c.PingIntervalMs)
	assert.Equal(t, 5, c.MaxPingsOutstanding)
	assert.Equal(t, uint(0), orig.PingIntervalMs)
}

func TestOptions(t *testing.T) {
	base := &NatsConnectionConfig{LogTag: "input"}
	withCreds := &NatsConnectionConfig{LogTag: "input", Creds: "nats.creds", Name: "eventbridge"}
	assert.Len(t, withCreds.Options(nil), len(base.Options(nil))+2)
}

func TestConnectNATSValidation(t *testing.T) {
	_, err := ConnectNATS(nil, nil)
	require.Error(t, err)

	_, err = ConnectNATS(&NatsConnectionConfig{LogTag: "input"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no endpoints")
}

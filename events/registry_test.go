package events_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aurora-is-near/stream-events/discriminator"
	"github.com/aurora-is-near/stream-events/events"
)

func decodeNothing(*events.FieldReader) (events.Event, error) {
	return &Transfer{}, nil
}

func TestBuildRegistry(t *testing.T) {
	reg, err := events.BuildRegistry(discriminator.DefaultWidth, testRules())
	require.NoError(t, err)
	assert.Equal(t, 8, reg.Width())
	assert.Equal(t, 3, reg.Len())

	rule, ok := reg.Lookup(listingTag)
	require.True(t, ok)
	assert.Equal(t, "Listing", rule.Name)

	_, ok = reg.Lookup(discriminator.MustFromHex("0x0909090909090909"))
	assert.False(t, ok)

	rule, ok = reg.LookupName("Tier")
	require.True(t, ok)
	assert.True(t, rule.Discriminator.Equal(tierTag))
	assert.Nil(t, rule.Encode)
}

func TestBuildRegistryDuplicateDiscriminator(t *testing.T) {
	rules := []events.Rule{
		{Name: "A", Discriminator: transferTag, Decode: decodeNothing},
		{Name: "B", Discriminator: transferTag.Clone(), Decode: decodeNothing},
	}
	_, err := events.BuildRegistry(8, rules)
	e := requireKind(t, err, events.KindDuplicateDiscriminator)
	assert.Equal(t, "B", e.Name)
	assert.True(t, e.Discriminator.Equal(transferTag))
	assert.Contains(t, err.Error(), "already used by A")
	assert.ErrorIs(t, err, events.ErrDuplicateDiscriminator)

	assert.Panics(t, func() { events.MustBuildRegistry(8, rules) })
}

func TestBuildRegistryDuplicateName(t *testing.T) {
	_, err := events.BuildRegistry(8, []events.Rule{
		{Name: "A", Discriminator: transferTag, Decode: decodeNothing},
		{Name: "A", Discriminator: listingTag, Decode: decodeNothing},
	})
	requireKind(t, err, events.KindDuplicateName)
}

func TestBuildRegistryWidth(t *testing.T) {
	_, err := events.BuildRegistry(0, nil)
	requireKind(t, err, events.KindDiscriminatorWidth)

	_, err = events.BuildRegistry(discriminator.EventCPIWidth, []events.Rule{
		{Name: "A", Discriminator: transferTag, Decode: decodeNothing},
	})
	e := requireKind(t, err, events.KindDiscriminatorWidth)
	assert.Equal(t, "A", e.Name)

	reg, err := events.BuildRegistry(4, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, reg.Len())
}

func TestBuildRegistryInvalidRule(t *testing.T) {
	_, err := events.BuildRegistry(8, []events.Rule{{Name: "A", Discriminator: transferTag}})
	requireKind(t, err, events.KindInvalidRule)

	_, err = events.BuildRegistry(8, []events.Rule{{Discriminator: transferTag, Decode: decodeNothing}})
	requireKind(t, err, events.KindInvalidRule)
}

func TestRegistryRules(t *testing.T) {
	reg := testRegistry()
	rules := reg.Rules()
	require.Len(t, rules, 3)
	assert.Equal(t, "Listing", rules[0].Name)
	assert.Equal(t, "Tier", rules[1].Name)
	assert.Equal(t, "Transfer", rules[2].Name)

	// copies handed out cannot change the registry
	rules[2].Discriminator[0] = 0xee
	rule, ok := reg.Lookup(transferTag)
	require.True(t, ok)
	assert.Equal(t, byte(0x01), rule.Discriminator[0])
}

func TestRegistryOwnsDiscriminators(t *testing.T) {
	tag := discriminator.MustFromHex("0x0a0a0a0a0a0a0a0a")
	reg := events.MustBuildRegistry(8, []events.Rule{
		{Name: "A", Discriminator: tag, Decode: decodeNothing},
	})
	tag[0] = 0
	_, ok := reg.Lookup(discriminator.MustFromHex("0x0a0a0a0a0a0a0a0a"))
	assert.True(t, ok)
}

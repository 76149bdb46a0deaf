package catalog

import (
	"errors"
	"fmt"
	"sort"

	"github.com/fxamacker/cbor/v2"

	"github.com/aurora-is-near/stream-events/events"
	"github.com/aurora-is-near/stream-events/programs/meteoradlmm"
	"github.com/aurora-is-near/stream-events/programs/pumpfun"
	"github.com/aurora-is-near/stream-events/programs/pumpswap"
	"github.com/aurora-is-near/stream-events/types"
)

var ErrUnknownProgram = errors.New("unknown program")

type Program struct {
	ID       types.Pubkey
	Name     string
	Registry *events.Registry
}

// Catalog routes raw event data to the registry of the emitting program.
// Like the registries it holds, it is read-only after New.
type Catalog struct {
	byID   map[types.Pubkey]*Program
	byName map[string]*Program
}

func New(programs ...Program) (*Catalog, error) {
	c := &Catalog{
		byID:   make(map[types.Pubkey]*Program, len(programs)),
		byName: make(map[string]*Program, len(programs)),
	}
	for i := range programs {
		p := programs[i]
		if p.Registry == nil {
			return nil, fmt.Errorf("program %s (%s) has no registry", p.Name, p.ID)
		}
		if _, ok := c.byID[p.ID]; ok {
			return nil, fmt.Errorf("program %s registered twice", p.ID)
		}
		if _, ok := c.byName[p.Name]; ok {
			return nil, fmt.Errorf("program name '%s' registered twice", p.Name)
		}
		c.byID[p.ID] = &p
		c.byName[p.Name] = &p
	}
	return c, nil
}

// Default holds every program this module ships event tables for.
func Default() *Catalog {
	c, err := New(
		Program{ID: pumpfun.ProgramID, Name: pumpfun.Name, Registry: pumpfun.Registry()},
		Program{ID: pumpswap.ProgramID, Name: pumpswap.Name, Registry: pumpswap.Registry()},
		Program{ID: meteoradlmm.ProgramID, Name: meteoradlmm.Name, Registry: meteoradlmm.Registry()},
	)
	if err != nil {
		panic(err)
	}
	return c
}

func (c *Catalog) Lookup(id types.Pubkey) (*Program, bool) {
	p, ok := c.byID[id]
	return p, ok
}

func (c *Catalog) LookupName(name string) (*Program, bool) {
	p, ok := c.byName[name]
	return p, ok
}

// Resolve accepts either a base58 program id or a program name.
func (c *Catalog) Resolve(s string) (*Program, error) {
	if p, ok := c.byName[s]; ok {
		return p, nil
	}
	id, err := types.ParsePubkey(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProgram, s)
	}
	if p, ok := c.byID[id]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownProgram, s)
}

// Programs returns the registered programs ordered by name.
func (c *Catalog) Programs() []Program {
	programs := make([]Program, 0, len(c.byID))
	for _, p := range c.byID {
		programs = append(programs, *p)
	}
	sort.Slice(programs, func(i, j int) bool {
		return programs[i].Name < programs[j].Name
	})
	return programs
}

func (c *Catalog) Decode(programID types.Pubkey, data []byte) (events.Event, error) {
	p, ok := c.byID[programID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProgram, programID)
	}
	return events.Decode(data, p.Registry)
}

// DecodeMessage decodes msg and renders it as the published document.
func (c *Catalog) DecodeMessage(msg *types.EventMessage) (*types.DecodedEvent, error) {
	p, ok := c.byID[msg.ProgramID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProgram, msg.ProgramID)
	}
	ev, err := events.Decode(msg.Data, p.Registry)
	if err != nil {
		return nil, err
	}

	doc := &types.DecodedEvent{
		Sequence:    msg.Sequence,
		Slot:        msg.Slot,
		Signature:   msg.Signature,
		Program:     p.ID,
		ProgramName: p.Name,
		Event:       ev.EventName(),
	}

	if unknown, ok := ev.(*events.Unknown); ok {
		doc.Unknown = true
		doc.Discriminator = unknown.Discriminator.String()
		doc.Payload = unknown.Payload
		return doc, nil
	}

	if rule, ok := p.Registry.LookupName(ev.EventName()); ok {
		doc.Discriminator = rule.Discriminator.String()
	}
	if doc.Fields, err = cbor.Marshal(ev); err != nil {
		return nil, fmt.Errorf("unable to marshal %s fields: %w", ev.EventName(), err)
	}
	return doc, nil
}

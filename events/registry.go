package events

import (
	"fmt"
	"sort"

	"github.com/aurora-is-near/stream-events/discriminator"
)

// Registry maps discriminators to rules. It is immutable once built and
// safe for concurrent lookups.
type Registry struct {
	width  int
	byTag  map[string]*Rule
	byName map[string]*Rule
}

func BuildRegistry(width int, rules []Rule) (*Registry, error) {
	if width <= 0 {
		return nil, &Error{
			Kind:   KindDiscriminatorWidth,
			Field:  -1,
			Reason: fmt.Sprintf("width must be positive, got %d", width),
		}
	}

	reg := &Registry{
		width:  width,
		byTag:  make(map[string]*Rule, len(rules)),
		byName: make(map[string]*Rule, len(rules)),
	}

	for i := range rules {
		rule := rules[i]
		rule.Discriminator = rule.Discriminator.Clone()

		if rule.Decode == nil || len(rule.Name) == 0 {
			return nil, &Error{
				Kind:          KindInvalidRule,
				Field:         -1,
				Name:          rule.Name,
				Discriminator: rule.Discriminator,
				Reason:        "rule needs a name and a decode function",
			}
		}
		if rule.Discriminator.Width() != width {
			return nil, &Error{
				Kind:          KindDiscriminatorWidth,
				Field:         -1,
				Name:          rule.Name,
				Discriminator: rule.Discriminator,
				Reason:        fmt.Sprintf("expected %d bytes, got %d", width, rule.Discriminator.Width()),
			}
		}
		if prev, ok := reg.byTag[rule.Discriminator.Key()]; ok {
			return nil, &Error{
				Kind:          KindDuplicateDiscriminator,
				Field:         -1,
				Name:          rule.Name,
				Discriminator: rule.Discriminator,
				Reason:        fmt.Sprintf("already used by %s", prev.Name),
			}
		}
		if _, ok := reg.byName[rule.Name]; ok {
			return nil, &Error{
				Kind:          KindDuplicateName,
				Field:         -1,
				Name:          rule.Name,
				Discriminator: rule.Discriminator,
			}
		}

		reg.byTag[rule.Discriminator.Key()] = &rule
		reg.byName[rule.Name] = &rule
	}

	return reg, nil
}

func MustBuildRegistry(width int, rules []Rule) *Registry {
	reg, err := BuildRegistry(width, rules)
	if err != nil {
		panic(err)
	}
	return reg
}

func (reg *Registry) Width() int {
	return reg.width
}

func (reg *Registry) Len() int {
	return len(reg.byTag)
}

func (reg *Registry) Lookup(tag discriminator.Discriminator) (*Rule, bool) {
	rule, ok := reg.byTag[tag.Key()]
	return rule, ok
}

func (reg *Registry) LookupName(name string) (*Rule, bool) {
	rule, ok := reg.byName[name]
	return rule, ok
}

// Rules returns a copy of the rules ordered by name.
func (reg *Registry) Rules() []Rule {
	rules := make([]Rule, 0, len(reg.byName))
	for _, rule := range reg.byName {
		r := *rule
		r.Discriminator = r.Discriminator.Clone()
		rules = append(rules, r)
	}
	sort.Slice(rules, func(i, j int) bool {
		return rules[i].Name < rules[j].Name
	})
	return rules
}

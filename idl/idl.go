// Package idl reads the subset of Anchor IDL documents needed to generate
// event decoders: program address and name, events and struct types.
package idl

import (
	"errors"
	"fmt"

	"github.com/buger/jsonparser"
)

var ErrUnsupported = errors.New("unsupported IDL construct")

type Kind int

const (
	KindPrimitive Kind = iota
	KindOption
	KindVec
	KindArray
	KindDefined
)

// Primitive type names as spelled in IDL documents.
var primitives = map[string]bool{
	"bool": true,
	"u8":   true, "u16": true, "u32": true, "u64": true, "u128": true,
	"i8": true, "i16": true, "i32": true, "i64": true,
	"string": true, "bytes": true, "pubkey": true,
}

type Type struct {
	Kind Kind
	// Name is the primitive name or the defined type name.
	Name string
	Elem *Type
	Len  int
}

type Field struct {
	Name string
	Type *Type
}

type TypeDef struct {
	Name   string
	Fields []Field
}

type Event struct {
	Name string
	// Discriminator is nil when the document predates explicit tags.
	Discriminator []byte
	Fields        []Field
}

type IDL struct {
	Address string
	Name    string
	Events  []Event
	Types   []TypeDef
}

func (doc *IDL) Type(name string) (*TypeDef, bool) {
	for i := range doc.Types {
		if doc.Types[i].Name == name {
			return &doc.Types[i], true
		}
	}
	return nil, false
}

// Parse reads an IDL document. Events without inline fields take them from
// the struct type of the same name.
func Parse(data []byte) (*IDL, error) {
	doc := &IDL{}
	doc.Address, _ = jsonparser.GetString(data, "address")
	if len(doc.Address) == 0 {
		doc.Address, _ = jsonparser.GetString(data, "metadata", "address")
	}
	doc.Name, _ = jsonparser.GetString(data, "metadata", "name")
	if len(doc.Name) == 0 {
		doc.Name, _ = jsonparser.GetString(data, "name")
	}

	if err := eachObject(data, func(value []byte) error {
		td, err := parseTypeDef(value)
		if err != nil {
			return err
		}
		if td != nil {
			doc.Types = append(doc.Types, *td)
		}
		return nil
	}, "types"); err != nil {
		return nil, fmt.Errorf("unable to parse types: %w", err)
	}

	if err := eachObject(data, func(value []byte) error {
		ev, err := parseEvent(value)
		if err != nil {
			return err
		}
		doc.Events = append(doc.Events, *ev)
		return nil
	}, "events"); err != nil {
		return nil, fmt.Errorf("unable to parse events: %w", err)
	}

	for i := range doc.Events {
		ev := &doc.Events[i]
		if ev.Fields != nil {
			continue
		}
		td, ok := doc.Type(ev.Name)
		if !ok {
			return nil, fmt.Errorf("event '%s' has no fields and no type of the same name", ev.Name)
		}
		ev.Fields = td.Fields
	}

	if err := doc.validate(); err != nil {
		return nil, err
	}
	return doc, nil
}

func (doc *IDL) validate() error {
	var check func(t *Type) error
	check = func(t *Type) error {
		switch t.Kind {
		case KindDefined:
			if _, ok := doc.Type(t.Name); !ok {
				return fmt.Errorf("undefined type '%s'", t.Name)
			}
		case KindOption, KindVec, KindArray:
			return check(t.Elem)
		}
		return nil
	}
	checkFields := func(owner string, fields []Field) error {
		for _, f := range fields {
			if err := check(f.Type); err != nil {
				return fmt.Errorf("%s.%s: %w", owner, f.Name, err)
			}
		}
		return nil
	}
	for _, td := range doc.Types {
		if err := checkFields(td.Name, td.Fields); err != nil {
			return err
		}
	}
	for _, ev := range doc.Events {
		if err := checkFields(ev.Name, ev.Fields); err != nil {
			return err
		}
	}
	return nil
}

// eachObject calls fn for every element of the array at keys. A missing
// array is not an error.
func eachObject(data []byte, fn func(value []byte) error, keys ...string) error {
	if _, _, _, err := jsonparser.Get(data, keys...); err == jsonparser.KeyPathNotFoundError {
		return nil
	}
	var cbErr error
	_, err := jsonparser.ArrayEach(data, func(value []byte, dataType jsonparser.ValueType, _ int, err error) {
		if cbErr != nil {
			return
		}
		if err != nil {
			cbErr = err
			return
		}
		if dataType != jsonparser.Object {
			cbErr = fmt.Errorf("expected object, got %s", dataType)
			return
		}
		cbErr = fn(value)
	}, keys...)
	if err != nil {
		return err
	}
	return cbErr
}

func parseEvent(data []byte) (*Event, error) {
	name, err := jsonparser.GetString(data, "name")
	if err != nil {
		return nil, fmt.Errorf("event without name: %w", err)
	}
	ev := &Event{Name: name}

	if _, _, _, err := jsonparser.Get(data, "discriminator"); err == nil {
		var cbErr error
		_, err := jsonparser.ArrayEach(data, func(value []byte, _ jsonparser.ValueType, _ int, _ error) {
			b, err := jsonparser.ParseInt(value)
			if err != nil || b < 0 || b > 255 {
				cbErr = fmt.Errorf("event '%s': invalid discriminator byte '%s'", name, value)
				return
			}
			ev.Discriminator = append(ev.Discriminator, byte(b))
		}, "discriminator")
		if err != nil {
			return nil, err
		}
		if cbErr != nil {
			return nil, cbErr
		}
	}

	if _, _, _, err := jsonparser.Get(data, "fields"); err == nil {
		if ev.Fields, err = parseFields(data); err != nil {
			return nil, fmt.Errorf("event '%s': %w", name, err)
		}
		if ev.Fields == nil {
			ev.Fields = []Field{}
		}
	}
	return ev, nil
}

// parseTypeDef returns nil for enums and aliases, which events never embed
// directly in the supported subset.
func parseTypeDef(data []byte) (*TypeDef, error) {
	name, err := jsonparser.GetString(data, "name")
	if err != nil {
		return nil, fmt.Errorf("type without name: %w", err)
	}
	kind, _ := jsonparser.GetString(data, "type", "kind")
	if kind != "struct" {
		return nil, nil
	}
	body, _, _, err := jsonparser.Get(data, "type")
	if err != nil {
		return nil, err
	}
	fields, err := parseFields(body)
	if err != nil {
		return nil, fmt.Errorf("type '%s': %w", name, err)
	}
	return &TypeDef{Name: name, Fields: fields}, nil
}

func parseFields(data []byte) ([]Field, error) {
	var fields []Field
	err := eachObject(data, func(value []byte) error {
		name, err := jsonparser.GetString(value, "name")
		if err != nil {
			return fmt.Errorf("field without name: %w", err)
		}
		raw, dataType, _, err := jsonparser.Get(value, "type")
		if err != nil {
			return fmt.Errorf("field '%s' without type: %w", name, err)
		}
		t, err := parseType(raw, dataType)
		if err != nil {
			return fmt.Errorf("field '%s': %w", name, err)
		}
		fields = append(fields, Field{Name: name, Type: t})
		return nil
	}, "fields")
	return fields, err
}

func parseType(raw []byte, dataType jsonparser.ValueType) (*Type, error) {
	switch dataType {
	case jsonparser.String:
		name, err := jsonparser.ParseString(raw)
		if err != nil {
			return nil, err
		}
		if name == "publicKey" {
			name = "pubkey"
		}
		if !primitives[name] {
			return nil, fmt.Errorf("%w: type '%s'", ErrUnsupported, name)
		}
		return &Type{Kind: KindPrimitive, Name: name}, nil

	case jsonparser.Object:
		var t *Type
		var typeErr error
		keys := 0
		err := jsonparser.ObjectEach(raw, func(key []byte, value []byte, dataType jsonparser.ValueType, _ int) error {
			keys++
			t, typeErr = parseComposite(string(key), value, dataType)
			return nil
		})
		if err != nil {
			return nil, err
		}
		if keys != 1 {
			return nil, fmt.Errorf("%w: type object with %d keys", ErrUnsupported, keys)
		}
		return t, typeErr
	}
	return nil, fmt.Errorf("%w: type of json kind %s", ErrUnsupported, dataType)
}

func parseComposite(key string, value []byte, dataType jsonparser.ValueType) (*Type, error) {
	switch key {
	case "option", "vec":
		elem, err := parseType(value, dataType)
		if err != nil {
			return nil, err
		}
		kind := KindOption
		if key == "vec" {
			kind = KindVec
		}
		return &Type{Kind: kind, Elem: elem}, nil

	case "array":
		if dataType != jsonparser.Array {
			return nil, fmt.Errorf("%w: array of json kind %s", ErrUnsupported, dataType)
		}
		t := &Type{Kind: KindArray}
		var cbErr error
		i := 0
		_, err := jsonparser.ArrayEach(value, func(item []byte, itemType jsonparser.ValueType, _ int, _ error) {
			defer func() { i++ }()
			if cbErr != nil {
				return
			}
			switch i {
			case 0:
				t.Elem, cbErr = parseType(item, itemType)
			case 1:
				n, err := jsonparser.ParseInt(item)
				if err != nil || n <= 0 {
					cbErr = fmt.Errorf("%w: array length '%s'", ErrUnsupported, item)
					return
				}
				t.Len = int(n)
			default:
				cbErr = fmt.Errorf("%w: array with %d parameters", ErrUnsupported, i+1)
			}
		})
		if err != nil {
			return nil, err
		}
		if cbErr != nil {
			return nil, cbErr
		}
		if t.Elem == nil || t.Len == 0 {
			return nil, fmt.Errorf("%w: incomplete array", ErrUnsupported)
		}
		return t, nil

	case "defined":
		var name string
		var err error
		if dataType == jsonparser.String {
			name, err = jsonparser.ParseString(value)
		} else {
			name, err = jsonparser.GetString(value, "name")
		}
		if err != nil {
			return nil, fmt.Errorf("%w: defined type: %v", ErrUnsupported, err)
		}
		return &Type{Kind: KindDefined, Name: name}, nil
	}
	return nil, fmt.Errorf("%w: '%s'", ErrUnsupported, key)
}

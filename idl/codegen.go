package idl

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strings"
	"text/template"
	"unicode"

	"golang.org/x/tools/imports"

	"github.com/aurora-is-near/stream-events/discriminator"
)

type GenerateOpts struct {
	Package string
	// Name is the human readable program name; defaults to the IDL name.
	Name string
	// CPI prefixes every tag with the self-CPI event prefix.
	CPI bool
	// Filename is only used in error messages of the formatter.
	Filename string
}

var initialisms = map[string]string{
	"id":   "ID",
	"uri":  "URI",
	"url":  "URL",
	"api":  "API",
	"json": "JSON",
}

func splitWords(s string) []string {
	var words []string
	for _, part := range strings.Split(s, "_") {
		start := 0
		runes := []rune(part)
		for i := 1; i < len(runes); i++ {
			if unicode.IsUpper(runes[i]) && !unicode.IsUpper(runes[i-1]) {
				words = append(words, string(runes[start:i]))
				start = i
			}
		}
		if start < len(runes) {
			words = append(words, string(runes[start:]))
		}
	}
	return words
}

// GoName converts snake_case and camelCase identifiers to exported Go names.
func GoName(s string) string {
	var b strings.Builder
	for _, word := range splitWords(s) {
		if v, ok := initialisms[strings.ToLower(word)]; ok {
			b.WriteString(v)
			continue
		}
		runes := []rune(word)
		b.WriteRune(unicode.ToUpper(runes[0]))
		b.WriteString(string(runes[1:]))
	}
	return b.String()
}

var primitiveGo = map[string]struct{ goType, method string }{
	"bool":   {"bool", "Bool"},
	"u8":     {"uint8", "U8"},
	"u16":    {"uint16", "U16"},
	"u32":    {"uint32", "U32"},
	"u64":    {"uint64", "U64"},
	"u128":   {"borsh.Uint128", "U128"},
	"i8":     {"int8", "I8"},
	"i16":    {"int16", "I16"},
	"i32":    {"int32", "I32"},
	"i64":    {"int64", "I64"},
	"string": {"string", "String"},
	"bytes":  {"[]byte", "ByteVec"},
	"pubkey": {"types.Pubkey", "Pubkey"},
}

var primitiveSize = map[string]int{
	"bool": 1, "u8": 1, "i8": 1,
	"u16": 2, "i16": 2,
	"u32": 4, "i32": 4,
	"u64": 8, "i64": 8,
	"u128":   16,
	"string": 4, "bytes": 4,
	"pubkey": 32,
}

type generator struct {
	doc     *IDL
	used    map[string]bool
	order   []string
	visited map[string]bool
}

func (g *generator) goType(t *Type) (string, error) {
	switch t.Kind {
	case KindPrimitive:
		return primitiveGo[t.Name].goType, nil
	case KindDefined:
		return GoName(t.Name), nil
	}
	elem, err := g.goType(t.Elem)
	if err != nil {
		return "", err
	}
	switch t.Kind {
	case KindOption:
		return "*" + elem, nil
	case KindVec:
		if t.Elem.Kind == KindPrimitive && t.Elem.Name == "u8" {
			return "[]byte", nil
		}
		return "[]" + elem, nil
	case KindArray:
		return fmt.Sprintf("[%d]%s", t.Len, elem), nil
	}
	return "", fmt.Errorf("%w: kind %d", ErrUnsupported, t.Kind)
}

func (g *generator) minSize(t *Type) int {
	switch t.Kind {
	case KindPrimitive:
		return primitiveSize[t.Name]
	case KindOption:
		return 1
	case KindVec:
		return 4
	case KindArray:
		return t.Len * g.minSize(t.Elem)
	case KindDefined:
		if g.visited[t.Name] {
			return 0
		}
		g.visited[t.Name] = true
		defer delete(g.visited, t.Name)
		td, _ := g.doc.Type(t.Name)
		size := 0
		for _, f := range td.Fields {
			size += g.minSize(f.Type)
		}
		return size
	}
	return 0
}

func isByte(t *Type) bool {
	return t.Kind == KindPrimitive && t.Name == "u8"
}

func isPubkey(t *Type) bool {
	return t.Kind == KindPrimitive && t.Name == "pubkey"
}

// decodeFunc renders an expression of type func(*borsh.Decoder) (T, error).
func (g *generator) decodeFunc(t *Type) (string, error) {
	switch t.Kind {
	case KindPrimitive:
		if t.Name == "pubkey" {
			return "events.DecodePubkey", nil
		}
		return "(*borsh.Decoder).Decode" + primitiveGo[t.Name].method, nil
	case KindDefined:
		g.use(t.Name)
		return "decode" + GoName(t.Name), nil
	case KindOption:
		elem, err := g.decodeFunc(t.Elem)
		return fmt.Sprintf("events.OptionOf(%s)", elem), err
	case KindVec:
		if isByte(t.Elem) {
			return "(*borsh.Decoder).DecodeByteVec", nil
		}
		elem, err := g.decodeFunc(t.Elem)
		return fmt.Sprintf("events.VecOf(%d, %s)", g.minSize(t.Elem), elem), err
	}
	return "", fmt.Errorf("%w: nested fixed-size array", ErrUnsupported)
}

// encodeFunc renders an expression of type func(*borsh.Encoder, T).
func (g *generator) encodeFunc(t *Type) (string, error) {
	switch t.Kind {
	case KindPrimitive:
		if t.Name == "pubkey" {
			return "events.EncodePubkey", nil
		}
		return "(*borsh.Encoder).Encode" + primitiveGo[t.Name].method, nil
	case KindDefined:
		g.use(t.Name)
		return "encode" + GoName(t.Name), nil
	case KindOption:
		elem, err := g.encodeFunc(t.Elem)
		return fmt.Sprintf("events.OptionEncoder(%s)", elem), err
	case KindVec:
		if isByte(t.Elem) {
			return "(*borsh.Encoder).EncodeByteVec", nil
		}
		elem, err := g.encodeFunc(t.Elem)
		return fmt.Sprintf("events.VecEncoder(%s)", elem), err
	}
	return "", fmt.Errorf("%w: nested fixed-size array", ErrUnsupported)
}

func (g *generator) use(name string) {
	if !g.used[name] {
		g.used[name] = true
		g.order = append(g.order, name)
	}
}

// readStmt renders the FieldReader statement of an event field.
func (g *generator) readStmt(f Field) (string, error) {
	name := GoName(f.Name)
	t := f.Type
	switch {
	case t.Kind == KindPrimitive:
		method := primitiveGo[t.Name].method
		if t.Name == "string" {
			method = "Str"
		}
		return fmt.Sprintf("r.%s(&ev.%s)", method, name), nil
	case t.Kind == KindArray && isByte(t.Elem):
		return fmt.Sprintf("r.Bytes(ev.%s[:])", name), nil
	case t.Kind == KindArray && isPubkey(t.Elem):
		return fmt.Sprintf("r.Pubkeys(ev.%s[:])", name), nil
	case t.Kind == KindArray:
		elem, err := g.decodeFunc(t.Elem)
		return fmt.Sprintf("events.ReadArray(r, ev.%s[:], %s)", name, elem), err
	case t.Kind == KindVec && isByte(t.Elem):
		return fmt.Sprintf("r.ByteVec(&ev.%s)", name), nil
	case t.Kind == KindVec:
		elem, err := g.decodeFunc(t.Elem)
		return fmt.Sprintf("events.ReadVec(r, &ev.%s, %d, %s)", name, g.minSize(t.Elem), elem), err
	case t.Kind == KindOption:
		elem, err := g.decodeFunc(t.Elem)
		return fmt.Sprintf("events.ReadOption(r, &ev.%s, %s)", name, elem), err
	}
	fn, err := g.decodeFunc(t)
	return fmt.Sprintf("r.Field(func(d *borsh.Decoder) (err error) {\nev.%s, err = %s(d)\nreturn\n})", name, fn), err
}

// writeStmt renders the FieldWriter statement of an event field.
func (g *generator) writeStmt(f Field) (string, error) {
	name := GoName(f.Name)
	t := f.Type
	switch {
	case t.Kind == KindPrimitive:
		method := primitiveGo[t.Name].method
		if t.Name == "string" {
			method = "Str"
		}
		return fmt.Sprintf("w.%s(ev.%s)", method, name), nil
	case t.Kind == KindArray && isByte(t.Elem):
		return fmt.Sprintf("w.FixedBytes(ev.%s[:])", name), nil
	case t.Kind == KindArray && isPubkey(t.Elem):
		return fmt.Sprintf("w.Pubkeys(ev.%s[:])", name), nil
	case t.Kind == KindArray:
		elem, err := g.encodeFunc(t.Elem)
		return fmt.Sprintf("events.WriteArray(w, ev.%s[:], %s)", name, elem), err
	case t.Kind == KindVec && isByte(t.Elem):
		return fmt.Sprintf("w.ByteVec(ev.%s)", name), nil
	case t.Kind == KindVec:
		elem, err := g.encodeFunc(t.Elem)
		return fmt.Sprintf("events.WriteVec(w, ev.%s, %s)", name, elem), err
	case t.Kind == KindOption:
		elem, err := g.encodeFunc(t.Elem)
		return fmt.Sprintf("events.WriteOption(w, ev.%s, %s)", name, elem), err
	}
	fn, err := g.encodeFunc(t)
	return fmt.Sprintf("%s(w.Encoder(), ev.%s)", fn, name), err
}

// structDecodeStmt renders one field of a nested struct decoder.
func (g *generator) structDecodeStmt(f Field) (string, error) {
	name := GoName(f.Name)
	t := f.Type
	if t.Kind == KindArray {
		if isByte(t.Elem) {
			return fmt.Sprintf("if err = d.DecodeBytes(v.%s[:]); err != nil {\nreturn v, err\n}", name), nil
		}
		elem, err := g.decodeFunc(t.Elem)
		return fmt.Sprintf("for i := range v.%s {\nif v.%s[i], err = %s(d); err != nil {\nreturn v, err\n}\n}", name, name, elem), err
	}
	fn, err := g.decodeFunc(t)
	return fmt.Sprintf("if v.%s, err = %s(d); err != nil {\nreturn v, err\n}", name, fn), err
}

func (g *generator) structEncodeStmt(f Field) (string, error) {
	name := GoName(f.Name)
	t := f.Type
	if t.Kind == KindArray {
		if isByte(t.Elem) {
			return fmt.Sprintf("e.EncodeBytes(v.%s[:])", name), nil
		}
		elem, err := g.encodeFunc(t.Elem)
		return fmt.Sprintf("for _, item := range v.%s {\n%s(e, item)\n}", name, elem), err
	}
	fn, err := g.encodeFunc(t)
	return fmt.Sprintf("%s(e, v.%s)", fn, name), err
}

type genField struct {
	Name, Type, Tag string
}

type genEvent struct {
	Name          string
	GoName        string
	Discriminator string
	Fields        []genField
	Reads         []string
	Writes        []string
}

type genStruct struct {
	GoName  string
	Fields  []genField
	Decodes []string
	Encodes []string
}

type genFile struct {
	Package string
	Name    string
	Address string
	Width   string
	Events  []genEvent
	Structs []genStruct
}

func (g *generator) fields(fields []Field) ([]genField, error) {
	out := make([]genField, 0, len(fields))
	for _, f := range fields {
		goType, err := g.goType(f.Type)
		if err != nil {
			return nil, fmt.Errorf("field '%s': %w", f.Name, err)
		}
		out = append(out, genField{Name: GoName(f.Name), Type: goType, Tag: fmt.Sprintf("`json:\"%s\"`", f.Name)})
	}
	return out, nil
}

func discriminatorExpr(ev Event, cpi bool) (string, error) {
	if ev.Discriminator == nil {
		if cpi {
			return fmt.Sprintf("discriminator.AnchorEventCPI(%q)", ev.Name), nil
		}
		return fmt.Sprintf("discriminator.AnchorEvent(%q)", ev.Name), nil
	}
	if len(ev.Discriminator) != discriminator.DefaultWidth {
		return "", fmt.Errorf("event '%s': discriminator must be %d bytes, got %d", ev.Name, discriminator.DefaultWidth, len(ev.Discriminator))
	}
	tag := ev.Discriminator
	if cpi {
		tag = append(append([]byte{}, discriminator.EventCPIPrefix...), tag...)
	}
	return fmt.Sprintf("discriminator.MustFromHex(\"0x%s\")", hex.EncodeToString(tag)), nil
}

func (g *generator) file(opts GenerateOpts) (*genFile, error) {
	f := &genFile{
		Package: opts.Package,
		Name:    opts.Name,
		Address: g.doc.Address,
		Width:   "discriminator.DefaultWidth",
	}
	if len(f.Name) == 0 {
		f.Name = g.doc.Name
	}
	if opts.CPI {
		f.Width = "discriminator.EventCPIWidth"
	}
	if len(g.doc.Events) == 0 {
		return nil, fmt.Errorf("IDL declares no events")
	}

	for _, ev := range g.doc.Events {
		ge := genEvent{Name: ev.Name, GoName: GoName(ev.Name)}
		var err error
		if ge.Discriminator, err = discriminatorExpr(ev, opts.CPI); err != nil {
			return nil, err
		}
		if ge.Fields, err = g.fields(ev.Fields); err != nil {
			return nil, fmt.Errorf("event '%s': %w", ev.Name, err)
		}
		for _, field := range ev.Fields {
			read, err := g.readStmt(field)
			if err != nil {
				return nil, fmt.Errorf("event '%s' field '%s': %w", ev.Name, field.Name, err)
			}
			write, err := g.writeStmt(field)
			if err != nil {
				return nil, fmt.Errorf("event '%s' field '%s': %w", ev.Name, field.Name, err)
			}
			ge.Reads = append(ge.Reads, read)
			ge.Writes = append(ge.Writes, write)
		}
		f.Events = append(f.Events, ge)
	}

	// nested structs may reference further structs, growing g.order
	for i := 0; i < len(g.order); i++ {
		for _, ev := range g.doc.Events {
			if ev.Name == g.order[i] {
				return nil, fmt.Errorf("%w: event '%s' embedded as a field type", ErrUnsupported, ev.Name)
			}
		}
		td, _ := g.doc.Type(g.order[i])
		gs := genStruct{GoName: GoName(td.Name)}
		var err error
		if gs.Fields, err = g.fields(td.Fields); err != nil {
			return nil, fmt.Errorf("type '%s': %w", td.Name, err)
		}
		for _, field := range td.Fields {
			dec, err := g.structDecodeStmt(field)
			if err != nil {
				return nil, fmt.Errorf("type '%s' field '%s': %w", td.Name, field.Name, err)
			}
			enc, err := g.structEncodeStmt(field)
			if err != nil {
				return nil, fmt.Errorf("type '%s' field '%s': %w", td.Name, field.Name, err)
			}
			gs.Decodes = append(gs.Decodes, dec)
			gs.Encodes = append(gs.Encodes, enc)
		}
		f.Structs = append(f.Structs, gs)
	}
	return f, nil
}

var fileTemplate = template.Must(template.New("events").Parse(`// Code generated by eventgen. DO NOT EDIT.

// Package {{.Package}} holds the events of {{.Name}}.
package {{.Package}}

import (
	"sync"

	"github.com/aurora-is-near/stream-events/borsh"
	"github.com/aurora-is-near/stream-events/discriminator"
	"github.com/aurora-is-near/stream-events/events"
	"github.com/aurora-is-near/stream-events/types"
)

const Name = {{printf "%q" .Name}}
{{if .Address}}
var ProgramID = types.MustParsePubkey({{printf "%q" .Address}})
{{end}}
var (
{{- range .Events}}
	{{.GoName}}Discriminator = {{.Discriminator}}
{{- end}}
)
{{range .Events}}
type {{.GoName}} struct {
{{- range .Fields}}
	{{.Name}} {{.Type}} {{.Tag}}
{{- end}}
}

func (*{{.GoName}}) EventName() string { return {{printf "%q" .Name}} }
{{end}}
{{- range .Structs}}
type {{.GoName}} struct {
{{- range .Fields}}
	{{.Name}} {{.Type}} {{.Tag}}
{{- end}}
}

func decode{{.GoName}}(d *borsh.Decoder) ({{.GoName}}, error) {
{{- if .Decodes}}
	var v {{.GoName}}
	var err error
{{- range .Decodes}}
	{{.}}
{{- end}}
	return v, nil
{{- else}}
	return {{.GoName}}{}, nil
{{- end}}
}

func encode{{.GoName}}(e *borsh.Encoder, v {{.GoName}}) {
{{- range .Encodes}}
	{{.}}
{{- end}}
}
{{end}}
func Rules() []events.Rule {
	return []events.Rule{
{{- range .Events}}
		{
			Name:          {{printf "%q" .Name}},
			Discriminator: {{.GoName}}Discriminator,
			Decode: func(r *events.FieldReader) (events.Event, error) {
				ev := &{{.GoName}}{}
{{- range .Reads}}
				{{.}}
{{- end}}
				return ev, r.Err()
			},
			Encode: func(w *events.FieldWriter, e events.Event) error {
				{{if .Writes}}ev := e.(*{{.GoName}}){{else}}_ = e.(*{{.GoName}}){{end}}
{{- range .Writes}}
				{{.}}
{{- end}}
				return nil
			},
		},
{{- end}}
	}
}

var registry = sync.OnceValue(func() *events.Registry {
	return events.MustBuildRegistry({{.Width}}, Rules())
})

func Registry() *events.Registry {
	return registry()
}
`))

// Generate renders a Go source file declaring the IDL's events, their
// rules and a shared registry.
func Generate(doc *IDL, opts GenerateOpts) ([]byte, error) {
	if len(opts.Package) == 0 {
		return nil, fmt.Errorf("package name must be specified")
	}
	g := &generator{doc: doc, used: map[string]bool{}, visited: map[string]bool{}}
	f, err := g.file(opts)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := fileTemplate.Execute(&buf, f); err != nil {
		return nil, fmt.Errorf("unable to render template: %w", err)
	}
	filename := opts.Filename
	if len(filename) == 0 {
		filename = "events.go"
	}
	src, err := imports.Process(filename, buf.Bytes(), nil)
	if err != nil {
		return nil, fmt.Errorf("unable to format generated source: %w\n%s", err, buf.String())
	}
	return src, nil
}

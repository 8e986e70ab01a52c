// Package declfile loads declaration sets from TOML files. A declaration
// set lists types in source order; member types are written as compact
// expressions ("int32", "*struct s", "[4]char", "fn(int) void"). The loader
// compiles the file into a types.Interner plus the ordered declaration list
// the rest of the engine consumes.
package declfile

import (
	"fmt"

	"github.com/BurntSushi/toml"
	"fortio.org/safecast"

	"coregraph/internal/source"
	"coregraph/internal/types"
)

// File mirrors the TOML document shape.
type File struct {
	Target string `toml:"target"`
	Types  []Decl `toml:"types"`
}

// Decl is one [[types]] table.
type Decl struct {
	Kind    string       `toml:"kind"` // struct | union | enum | typedef | fwd
	Name    string       `toml:"name"`
	Packed  bool         `toml:"packed"`
	Align   *int         `toml:"align"` // aligned(N) on the declaration
	Size    int          `toml:"size"`  // enum width in bytes
	Union   bool         `toml:"union"` // fwd only: union tag
	Type    string       `toml:"type"`  // typedef target expression
	Members []MemberDecl `toml:"members"`
	Values  []ValueDecl  `toml:"values"`
}

// MemberDecl is one [[types.members]] table. Bits is a pointer so that
// "bits = 0" (a zero-width separator) is distinct from no bits key at all.
// A member with kind set instead of type is an inline anonymous composite
// whose fields nest as [[types.members.members]].
type MemberDecl struct {
	Name    string       `toml:"name"`
	Type    string       `toml:"type"`
	Kind    string       `toml:"kind"` // "struct" or "union" for inline composites
	Bits    *int         `toml:"bits"`
	Align   *int         `toml:"align"`
	Members []MemberDecl `toml:"members"`
}

// ValueDecl is one [[types.values]] table of an enum.
type ValueDecl struct {
	Name  string `toml:"name"`
	Value int64  `toml:"value"`
}

// Set is a compiled declaration set.
type Set struct {
	Target  string
	Strings *source.Interner
	Types   *types.Interner
	Decls   []types.TypeID
}

// Error reports a problem in a declaration file, with enough context to
// point at the offending table.
type Error struct {
	Path   string
	Decl   string // declaration name, when known
	Detail string
	Err    error
}

func (e *Error) Error() string {
	msg := e.Detail
	if e.Err != nil {
		if msg != "" {
			msg += ": "
		}
		msg += e.Err.Error()
	}
	if e.Decl != "" {
		msg = fmt.Sprintf("declaration %q: %s", e.Decl, msg)
	}
	if e.Path != "" {
		msg = e.Path + ": " + msg
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Load reads and compiles a declaration file.
func Load(path string) (*Set, error) {
	var f File
	if _, err := toml.DecodeFile(path, &f); err != nil {
		return nil, &Error{Path: path, Detail: "failed to parse TOML", Err: err}
	}
	s, err := Compile(&f)
	if err != nil {
		if de, ok := err.(*Error); ok {
			de.Path = path
			return nil, de
		}
		return nil, &Error{Path: path, Err: err}
	}
	return s, nil
}

// Parse compiles a declaration set from TOML source, used by tests and
// anything feeding documents from memory.
func Parse(doc string) (*Set, error) {
	var f File
	if _, err := toml.Decode(doc, &f); err != nil {
		return nil, &Error{Detail: "failed to parse TOML", Err: err}
	}
	return Compile(&f)
}

// Compile registers every declaration then resolves member and typedef type
// expressions in a second pass, so forward references by tag work in either
// direction.
func Compile(f *File) (*Set, error) {
	strs := source.NewInterner()
	in := types.NewInterner(strs)
	c := &compiler{
		strs:     strs,
		in:       in,
		tags:     make(map[string]types.TypeID),
		typedefs: make(map[string]types.TypeID),
	}

	decls := make([]types.TypeID, 0, len(f.Types))
	for i := range f.Types {
		d := &f.Types[i]
		id, err := c.register(d)
		if err != nil {
			return nil, err
		}
		decls = append(decls, id)
	}
	for i := range f.Types {
		if err := c.populate(&f.Types[i], decls[i]); err != nil {
			return nil, err
		}
	}

	return &Set{
		Target:  f.Target,
		Strings: strs,
		Types:   in,
		Decls:   decls,
	}, nil
}

type compiler struct {
	strs     *source.Interner
	in       *types.Interner
	tags     map[string]types.TypeID // struct/union/enum/fwd share the C tag namespace
	typedefs map[string]types.TypeID
}

func (c *compiler) register(d *Decl) (types.TypeID, error) {
	name := c.strs.Intern(d.Name)
	switch d.Kind {
	case "struct", "union":
		if d.Name != "" {
			if prior, ok := c.tags[d.Name]; ok && !isFwd(c.in, prior) {
				return types.NoTypeID, &Error{Decl: d.Name, Detail: "tag declared twice"}
			}
		}
		var id types.TypeID
		if d.Kind == "struct" {
			id = c.in.RegisterStruct(name)
		} else {
			id = c.in.RegisterUnion(name)
		}
		if d.Name != "" {
			c.tags[d.Name] = id
		}
		return id, nil
	case "enum":
		if d.Name == "" {
			return types.NoTypeID, &Error{Detail: "enum declaration needs a name"}
		}
		size := d.Size
		if size == 0 {
			size = 4
		}
		values := make([]types.EnumValue, len(d.Values))
		for i, v := range d.Values {
			if v.Name == "" {
				return types.NoTypeID, &Error{Decl: d.Name, Detail: "enum value needs a name"}
			}
			values[i] = types.EnumValue{Name: c.strs.Intern(v.Name), Value: v.Value}
		}
		id := c.in.RegisterEnum(name, size, values)
		c.tags[d.Name] = id
		return id, nil
	case "typedef":
		if d.Name == "" {
			return types.NoTypeID, &Error{Detail: "typedef declaration needs a name"}
		}
		if _, ok := c.typedefs[d.Name]; ok {
			return types.NoTypeID, &Error{Decl: d.Name, Detail: "typedef declared twice"}
		}
		id := c.in.RegisterTypedef(name, types.NoTypeID)
		c.typedefs[d.Name] = id
		return id, nil
	case "fwd":
		if d.Name == "" {
			return types.NoTypeID, &Error{Detail: "fwd declaration needs a name"}
		}
		if prior, ok := c.tags[d.Name]; ok {
			return prior, nil
		}
		id := c.in.RegisterFwd(name, d.Union)
		c.tags[d.Name] = id
		return id, nil
	default:
		return types.NoTypeID, &Error{Decl: d.Name, Detail: fmt.Sprintf("unknown kind %q", d.Kind)}
	}
}

func (c *compiler) populate(d *Decl, id types.TypeID) error {
	switch d.Kind {
	case "struct", "union":
		members := make([]types.Member, len(d.Members))
		for i, md := range d.Members {
			m, err := c.compileMember(d, &md)
			if err != nil {
				return err
			}
			members[i] = m
		}
		c.in.SetMembers(id, members)
		if d.Packed || d.Align != nil {
			c.in.SetTypeLayoutAttrs(id, types.LayoutAttrs{Packed: d.Packed, AlignOverride: d.Align})
		}
	case "typedef":
		target, err := c.parseType(d.Type)
		if err != nil {
			return &Error{Decl: d.Name, Err: err}
		}
		c.in.SetTypedefTarget(id, target)
	case "enum", "fwd":
		// fully registered up front
	}
	return nil
}

func (c *compiler) compileMember(d *Decl, md *MemberDecl) (types.Member, error) {
	var t types.TypeID
	switch {
	case md.Kind != "" && md.Type != "":
		return types.Member{}, &Error{Decl: d.Name, Detail: fmt.Sprintf("member %q has both kind and type", md.Name)}
	case md.Kind != "":
		id, err := c.compileInline(d, md)
		if err != nil {
			return types.Member{}, err
		}
		t = id
	default:
		id, err := c.parseType(md.Type)
		if err != nil {
			return types.Member{}, &Error{Decl: d.Name, Detail: fmt.Sprintf("member %q", md.Name), Err: err}
		}
		t = id
	}
	m := types.Member{
		Name: c.strs.Intern(md.Name),
		Type: t,
	}
	if md.Bits != nil {
		w, err := safecast.Conv[uint8](*md.Bits)
		if err != nil {
			return types.Member{}, &Error{Decl: d.Name, Detail: fmt.Sprintf("member %q: bit width %d out of range", md.Name, *md.Bits)}
		}
		m.Bitfield = true
		m.BitWidth = w
	}
	if md.Align != nil {
		m.Attrs = types.FieldLayoutAttrs{AlignOverride: md.Align}
	}
	return m, nil
}

// compileInline registers an anonymous composite for a member declared with
// kind + nested members instead of a type expression.
func (c *compiler) compileInline(d *Decl, md *MemberDecl) (types.TypeID, error) {
	var id types.TypeID
	switch md.Kind {
	case "struct":
		id = c.in.RegisterStruct(source.NoStringID)
	case "union":
		id = c.in.RegisterUnion(source.NoStringID)
	default:
		return types.NoTypeID, &Error{Decl: d.Name, Detail: fmt.Sprintf("member %q: inline composite kind %q", md.Name, md.Kind)}
	}
	members := make([]types.Member, len(md.Members))
	for i, nested := range md.Members {
		m, err := c.compileMember(d, &nested)
		if err != nil {
			return types.NoTypeID, err
		}
		members[i] = m
	}
	c.in.SetMembers(id, members)
	return id, nil
}

func isFwd(in *types.Interner, id types.TypeID) bool {
	tt, ok := in.Lookup(id)
	return ok && tt.Kind == types.KindFwd
}

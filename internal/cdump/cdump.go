// Package cdump renders an emission order as compilable C declarations:
// forward declarations, struct/union/enum definitions and typedefs, with
// member declarators built inside-out (pointers bind tighter than arrays,
// arrays and parameter lists hang off the right).
package cdump

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"coregraph/internal/order"
	"coregraph/internal/source"
	"coregraph/internal/types"
)

// Printer renders declarations from one type interner.
type Printer struct {
	Types *types.Interner
}

func New(in *types.Interner) *Printer {
	return &Printer{Types: in}
}

// Print writes every emission of the order, blank-line separated.
func (p *Printer) Print(w io.Writer, res *order.Result) error {
	for i, em := range res.Emissions {
		if i > 0 {
			if _, err := io.WriteString(w, "\n"); err != nil {
				return err
			}
		}
		s, err := p.Emission(em)
		if err != nil {
			return err
		}
		if _, err := io.WriteString(w, s); err != nil {
			return err
		}
	}
	return nil
}

// Emission renders a single emission as C source ending in a newline.
func (p *Printer) Emission(em order.Emission) (string, error) {
	id := em.ID
	tt, ok := p.Types.Lookup(id)
	if !ok {
		return "", fmt.Errorf("cdump: unknown type#%d", id)
	}
	name := p.Types.NameOf(id)

	if em.Fwd {
		switch tt.Kind {
		case types.KindStruct:
			return "struct " + name + ";\n", nil
		case types.KindUnion:
			return "union " + name + ";\n", nil
		case types.KindEnum:
			return "enum " + name + ";\n", nil
		case types.KindFwd:
			info, _ := p.Types.FwdInfo(id)
			if info != nil && info.IsUnion {
				return "union " + name + ";\n", nil
			}
			return "struct " + name + ";\n", nil
		default:
			return "", fmt.Errorf("cdump: type#%d cannot be forward-declared", id)
		}
	}

	switch tt.Kind {
	case types.KindStruct, types.KindUnion:
		var b strings.Builder
		p.compositeDef(&b, id, 0)
		b.WriteString(";\n")
		return b.String(), nil
	case types.KindEnum:
		var b strings.Builder
		p.enumDef(&b, id)
		b.WriteString(";\n")
		return b.String(), nil
	case types.KindTypedef:
		info, _ := p.Types.TypedefInfo(id)
		if info == nil {
			return "", fmt.Errorf("cdump: typedef type#%d has no target", id)
		}
		return "typedef " + p.declare(info.Target, name, 0) + ";\n", nil
	default:
		return "", fmt.Errorf("cdump: type#%d is not a declaration", id)
	}
}

// compositeDef writes "struct name { ... }" without the trailing semicolon,
// so it can serve both as a top-level definition and inline in a member.
func (p *Printer) compositeDef(b *strings.Builder, id types.TypeID, level int) {
	tt := p.Types.MustLookup(id)
	kw := "struct"
	if tt.Kind == types.KindUnion {
		kw = "union"
	}
	b.WriteString(kw)
	if name := p.Types.NameOf(id); name != "" {
		b.WriteString(" ")
		b.WriteString(name)
	}
	b.WriteString(" {\n")
	indent := strings.Repeat("\t", level+1)
	for _, m := range p.Types.Members(id) {
		b.WriteString(indent)
		b.WriteString(p.memberDecl(m, level+1))
		b.WriteString(";\n")
	}
	b.WriteString(strings.Repeat("\t", level))
	b.WriteString("}")
}

func (p *Printer) memberDecl(m types.Member, level int) string {
	name := ""
	if !m.Anonymous() {
		name = p.Types.Strings.MustLookup(m.Name)
	}
	d := p.declare(m.Type, name, level)
	if m.Bitfield {
		d += ": " + strconv.Itoa(int(m.BitWidth))
	}
	return d
}

func (p *Printer) enumDef(b *strings.Builder, id types.TypeID) {
	info, _ := p.Types.EnumInfo(id)
	b.WriteString("enum")
	if info != nil && info.Name != source.NoStringID {
		b.WriteString(" ")
		b.WriteString(p.Types.Strings.MustLookup(info.Name))
	}
	b.WriteString(" {\n")
	if info != nil {
		for _, v := range info.Values {
			b.WriteString("\t")
			b.WriteString(p.Types.Strings.MustLookup(v.Name))
			b.WriteString(" = ")
			b.WriteString(strconv.FormatInt(v.Value, 10))
			b.WriteString(",\n")
		}
	}
	b.WriteString("}")
}

// declare builds "type declarator" for one declared name, C-style: the
// declarator grows around the name as the type chain unwinds, with
// parentheses added when a pointer would otherwise bind to a suffix.
func (p *Printer) declare(id types.TypeID, decl string, level int) string {
	tt, ok := p.Types.Lookup(id)
	if !ok {
		return join("void", decl)
	}
	switch tt.Kind {
	case types.KindVoid:
		return join("void", decl)
	case types.KindInt:
		return join(intName(tt), decl)
	case types.KindPtr:
		return p.declare(tt.Elem, "*"+decl, level)
	case types.KindArray:
		n := "[]"
		if tt.Count != types.ArrayUnknownLength {
			n = "[" + strconv.FormatUint(uint64(tt.Count), 10) + "]"
		}
		return p.declare(tt.Elem, parenthesize(decl)+n, level)
	case types.KindFuncProto:
		info, _ := p.Types.FuncProtoInfo(id)
		return p.declare(protoResult(info), parenthesize(decl)+p.protoParams(info, level), level)
	case types.KindConst:
		return p.qualified("const", tt.Elem, decl, level)
	case types.KindVolatile:
		return p.qualified("volatile", tt.Elem, decl, level)
	case types.KindRestrict:
		return p.qualified("restrict", tt.Elem, decl, level)
	case types.KindStruct, types.KindUnion:
		if name := p.Types.NameOf(id); name != "" {
			kw := "struct"
			if tt.Kind == types.KindUnion {
				kw = "union"
			}
			return join(kw+" "+name, decl)
		}
		var b strings.Builder
		p.compositeDef(&b, id, level)
		return join(b.String(), decl)
	case types.KindEnum:
		if name := p.Types.NameOf(id); name != "" {
			return join("enum "+name, decl)
		}
		var b strings.Builder
		p.enumDef(&b, id)
		return join(b.String(), decl)
	case types.KindTypedef:
		return join(p.Types.NameOf(id), decl)
	case types.KindFwd:
		info, _ := p.Types.FwdInfo(id)
		if info != nil && info.Def != types.NoTypeID {
			return p.declare(info.Def, decl, level)
		}
		kw := "struct"
		if info != nil && info.IsUnion {
			kw = "union"
		}
		return join(kw+" "+p.Types.NameOf(id), decl)
	default:
		return join("void", decl)
	}
}

// qualified places the qualifier before the base type for base chains and
// keeps it attached to the pointer when the qualifier wraps a pointee.
func (p *Printer) qualified(q string, elem types.TypeID, decl string, level int) string {
	return q + " " + p.declare(elem, decl, level)
}

func (p *Printer) protoParams(info *types.FuncProtoInfo, level int) string {
	if info == nil || len(info.Params) == 0 {
		return "(void)"
	}
	parts := make([]string, len(info.Params))
	for i, prm := range info.Params {
		name := ""
		if prm.Name != source.NoStringID {
			name = p.Types.Strings.MustLookup(prm.Name)
		}
		parts[i] = p.declare(prm.Type, name, level)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

func protoResult(info *types.FuncProtoInfo) types.TypeID {
	if info == nil {
		return types.NoTypeID
	}
	return info.Result
}

// parenthesize wraps a declarator that starts with * so that a following
// array or parameter suffix binds to the pointer, not the element type.
func parenthesize(decl string) string {
	if strings.HasPrefix(decl, "*") {
		return "(" + decl + ")"
	}
	return decl
}

func join(spec, decl string) string {
	if decl == "" {
		return spec
	}
	return spec + " " + decl
}

func intName(tt types.Type) string {
	switch tt.Bits {
	case 8:
		if tt.Signed {
			return "char"
		}
		return "unsigned char"
	case 16:
		if tt.Signed {
			return "short"
		}
		return "unsigned short"
	case 32:
		if tt.Signed {
			return "int"
		}
		return "unsigned int"
	case 64:
		if tt.Signed {
			return "long"
		}
		return "unsigned long"
	default:
		if tt.Signed {
			return "int"
		}
		return "unsigned int"
	}
}

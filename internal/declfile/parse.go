package declfile

import (
	"fmt"
	"strconv"

	"coregraph/internal/types"
)

// scalars maps the spellable integer type names to interned shapes.
var scalars = map[string]types.Type{
	"char":   types.MakeInt(8, true),
	"uchar":  types.MakeInt(8, false),
	"short":  types.MakeInt(16, true),
	"ushort": types.MakeInt(16, false),
	"int":    types.MakeInt(32, true),
	"uint":   types.MakeInt(32, false),
	"long":   types.MakeInt(64, true),
	"ulong":  types.MakeInt(64, false),
	"int8":   types.MakeInt(8, true),
	"uint8":  types.MakeInt(8, false),
	"int16":  types.MakeInt(16, true),
	"uint16": types.MakeInt(16, false),
	"int32":  types.MakeInt(32, true),
	"uint32": types.MakeInt(32, false),
	"int64":  types.MakeInt(64, true),
	"uint64": types.MakeInt(64, false),
}

// parseType compiles a type expression like "*struct s", "[4]int32",
// "const char", or "fn(int, *char) void" into an interned type.
func (c *compiler) parseType(expr string) (types.TypeID, error) {
	p := &typeParser{c: c, src: expr}
	id, err := p.parse()
	if err != nil {
		return types.NoTypeID, err
	}
	p.skipSpace()
	if p.pos != len(p.src) {
		return types.NoTypeID, fmt.Errorf("type %q: unexpected %q", expr, p.src[p.pos:])
	}
	return id, nil
}

type typeParser struct {
	c   *compiler
	src string
	pos int
}

func (p *typeParser) errf(format string, args ...any) error {
	return fmt.Errorf("type %q: %s", p.src, fmt.Sprintf(format, args...))
}

func (p *typeParser) parse() (types.TypeID, error) {
	p.skipSpace()
	if p.pos >= len(p.src) {
		return types.NoTypeID, p.errf("empty type expression")
	}
	switch p.src[p.pos] {
	case '*':
		p.pos++
		elem, err := p.parse()
		if err != nil {
			return types.NoTypeID, err
		}
		return p.c.in.Intern(types.MakePtr(elem)), nil
	case '[':
		return p.parseArray()
	}

	word := p.scanIdent()
	if word == "" {
		return types.NoTypeID, p.errf("unexpected %q", p.src[p.pos:])
	}
	switch word {
	case "const", "volatile", "restrict":
		elem, err := p.parse()
		if err != nil {
			return types.NoTypeID, err
		}
		kind := types.KindConst
		switch word {
		case "volatile":
			kind = types.KindVolatile
		case "restrict":
			kind = types.KindRestrict
		}
		return p.c.in.Intern(types.MakeQualified(kind, elem)), nil
	case "struct", "union", "enum":
		return p.parseTagRef(word)
	case "fn":
		return p.parseFunc()
	case "void":
		return p.c.in.Void(), nil
	}
	if shape, ok := scalars[word]; ok {
		return p.c.in.Intern(shape), nil
	}
	if td, ok := p.c.typedefs[word]; ok {
		return td, nil
	}
	return types.NoTypeID, p.errf("unknown type name %q", word)
}

func (p *typeParser) parseArray() (types.TypeID, error) {
	p.pos++ // consume '['
	p.skipSpace()
	start := p.pos
	for p.pos < len(p.src) && p.src[p.pos] >= '0' && p.src[p.pos] <= '9' {
		p.pos++
	}
	digits := p.src[start:p.pos]
	p.skipSpace()
	if p.pos >= len(p.src) || p.src[p.pos] != ']' {
		return types.NoTypeID, p.errf("missing ] in array length")
	}
	p.pos++
	count := types.ArrayUnknownLength
	if digits != "" {
		n, err := strconv.ParseUint(digits, 10, 32)
		if err != nil {
			return types.NoTypeID, p.errf("bad array length %q", digits)
		}
		count = uint32(n)
	}
	elem, err := p.parse()
	if err != nil {
		return types.NoTypeID, err
	}
	return p.c.in.Intern(types.MakeArray(elem, count)), nil
}

// parseTagRef resolves "struct s" style references. A struct or union tag
// that has not been declared yet becomes an implicit forward declaration;
// enums must exist because their width is part of the declaration.
func (p *typeParser) parseTagRef(kw string) (types.TypeID, error) {
	p.skipSpace()
	tag := p.scanIdent()
	if tag == "" {
		return types.NoTypeID, p.errf("%s needs a tag name", kw)
	}
	if id, ok := p.c.tags[tag]; ok {
		return id, nil
	}
	if kw == "enum" {
		return types.NoTypeID, p.errf("enum %q is not declared", tag)
	}
	id := p.c.in.RegisterFwd(p.c.strs.Intern(tag), kw == "union")
	p.c.tags[tag] = id
	return id, nil
}

func (p *typeParser) parseFunc() (types.TypeID, error) {
	p.skipSpace()
	if p.pos >= len(p.src) || p.src[p.pos] != '(' {
		return types.NoTypeID, p.errf("fn needs a parameter list")
	}
	p.pos++
	var params []types.Param
	p.skipSpace()
	if p.pos < len(p.src) && p.src[p.pos] != ')' {
		for {
			t, err := p.parse()
			if err != nil {
				return types.NoTypeID, err
			}
			params = append(params, types.Param{Type: t})
			p.skipSpace()
			if p.pos < len(p.src) && p.src[p.pos] == ',' {
				p.pos++
				continue
			}
			break
		}
	}
	if p.pos >= len(p.src) || p.src[p.pos] != ')' {
		return types.NoTypeID, p.errf("missing ) in fn parameter list")
	}
	p.pos++
	p.skipSpace()
	result := p.c.in.Void()
	if p.pos < len(p.src) && p.src[p.pos] != ',' && p.src[p.pos] != ')' {
		r, err := p.parse()
		if err != nil {
			return types.NoTypeID, err
		}
		result = r
	}
	return p.c.in.RegisterFuncProto(result, params), nil
}

func (p *typeParser) skipSpace() {
	for p.pos < len(p.src) && (p.src[p.pos] == ' ' || p.src[p.pos] == '\t') {
		p.pos++
	}
}

func (p *typeParser) scanIdent() string {
	start := p.pos
	for p.pos < len(p.src) && isIdentByte(p.src[p.pos]) {
		p.pos++
	}
	return p.src[start:p.pos]
}

func isIdentByte(b byte) bool {
	return b == '_' ||
		(b >= 'a' && b <= 'z') ||
		(b >= 'A' && b <= 'Z') ||
		(b >= '0' && b <= '9')
}

package value

import (
	"fmt"
	"strconv"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/viant/fastjson/errs"
)

// MaxNesting bounds array/object nesting accepted by Parse.
const MaxNesting = 10000

// Parse decodes one JSON document; anything but whitespace after it is an error.
func Parse(data []byte) (Value, error) {
	p := &parser{data: data}
	v, err := p.parseValue()
	if err != nil {
		return Value{}, err
	}
	p.skipWS()
	if p.pos != len(p.data) {
		return Value{}, p.errorf("unexpected trailing data")
	}
	return v, nil
}

// ParseString is Parse over a string.
func ParseString(text string) (Value, error) { return Parse([]byte(text)) }

type parser struct {
	data  []byte
	pos   int
	depth int
}

func (p *parser) errorf(format string, args ...interface{}) error {
	return &errs.ParseError{Offset: p.pos, Reason: fmt.Sprintf(format, args...)}
}

func (p *parser) skipWS() {
	for p.pos < len(p.data) {
		switch p.data[p.pos] {
		case ' ', '\n', '\r', '\t':
			p.pos++
		default:
			return
		}
	}
}

func (p *parser) parseValue() (Value, error) {
	p.skipWS()
	if p.pos >= len(p.data) {
		return Value{}, p.errorf("unexpected EOF")
	}
	switch c := p.data[p.pos]; c {
	case '{':
		return p.parseObject()
	case '[':
		return p.parseArray()
	case '"':
		s, err := p.parseString()
		if err != nil {
			return Value{}, err
		}
		return StringValue(s), nil
	case 't':
		if p.match("true") {
			return BoolValue(true), nil
		}
	case 'f':
		if p.match("false") {
			return BoolValue(false), nil
		}
	case 'n':
		if p.match("null") {
			return NullValue(), nil
		}
	default:
		if c == '-' || (c >= '0' && c <= '9') {
			return p.parseNumber()
		}
	}
	return Value{}, p.errorf("invalid token %q", p.data[p.pos])
}

func (p *parser) match(token string) bool {
	end := p.pos + len(token)
	if end > len(p.data) || string(p.data[p.pos:end]) != token {
		return false
	}
	p.pos = end
	return true
}

func (p *parser) enter() error {
	p.depth++
	if p.depth > MaxNesting {
		return p.errorf("maximum nesting depth %d exceeded", MaxNesting)
	}
	return nil
}

func (p *parser) parseObject() (Value, error) {
	if err := p.enter(); err != nil {
		return Value{}, err
	}
	defer func() { p.depth-- }()
	p.pos++
	members := NewMembers(4)
	p.skipWS()
	if p.pos < len(p.data) && p.data[p.pos] == '}' {
		p.pos++
		return ObjectValue(members), nil
	}
	for {
		p.skipWS()
		if p.pos >= len(p.data) || p.data[p.pos] != '"' {
			return Value{}, p.errorf("expected string key")
		}
		key, err := p.parseString()
		if err != nil {
			return Value{}, err
		}
		p.skipWS()
		if p.pos >= len(p.data) || p.data[p.pos] != ':' {
			return Value{}, p.errorf("expected ':'")
		}
		p.pos++
		item, err := p.parseValue()
		if err != nil {
			return Value{}, err
		}
		members.Set(key, item)
		p.skipWS()
		if p.pos >= len(p.data) {
			return Value{}, p.errorf("unexpected EOF in object")
		}
		switch p.data[p.pos] {
		case '}':
			p.pos++
			return ObjectValue(members), nil
		case ',':
			p.pos++
		default:
			return Value{}, p.errorf("expected ',' or '}'")
		}
	}
}

func (p *parser) parseArray() (Value, error) {
	if err := p.enter(); err != nil {
		return Value{}, err
	}
	defer func() { p.depth-- }()
	p.pos++
	items := make([]Value, 0)
	p.skipWS()
	if p.pos < len(p.data) && p.data[p.pos] == ']' {
		p.pos++
		return ArrayValue(items...), nil
	}
	for {
		item, err := p.parseValue()
		if err != nil {
			return Value{}, err
		}
		items = append(items, item)
		p.skipWS()
		if p.pos >= len(p.data) {
			return Value{}, p.errorf("unexpected EOF in array")
		}
		switch p.data[p.pos] {
		case ']':
			p.pos++
			return ArrayValue(items...), nil
		case ',':
			p.pos++
		default:
			return Value{}, p.errorf("expected ',' or ']'")
		}
	}
}

func (p *parser) parseString() (string, error) {
	p.pos++
	start := p.pos
	escaped := false
	for i := start; i < len(p.data); i++ {
		c := p.data[i]
		switch {
		case c == '"':
			p.pos = i + 1
			if !escaped {
				return string(p.data[start:i]), nil
			}
			s, err := unescape(p.data[start:i])
			if err != nil {
				p.pos = start
				return "", &errs.ParseError{Offset: start, Reason: "invalid string", Err: err}
			}
			return s, nil
		case c == '\\':
			escaped = true
			i++
		case c < 0x20:
			p.pos = i
			return "", p.errorf("invalid control character in string")
		}
	}
	p.pos = len(p.data)
	return "", p.errorf("unterminated string")
}

func unescape(raw []byte) (string, error) {
	out := make([]byte, 0, len(raw))
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if c != '\\' {
			out = append(out, c)
			continue
		}
		i++
		if i >= len(raw) {
			return "", fmt.Errorf("invalid escape sequence")
		}
		switch raw[i] {
		case '"', '\\', '/':
			out = append(out, raw[i])
		case 'b':
			out = append(out, '\b')
		case 'f':
			out = append(out, '\f')
		case 'n':
			out = append(out, '\n')
		case 'r':
			out = append(out, '\r')
		case 't':
			out = append(out, '\t')
		case 'u':
			r, ok := parseHex4(raw, i+1)
			if !ok {
				return "", fmt.Errorf("invalid unicode escape")
			}
			i += 4
			if utf16.IsSurrogate(r) {
				if i+2 >= len(raw) || raw[i+1] != '\\' || raw[i+2] != 'u' {
					return "", fmt.Errorf("invalid surrogate pair")
				}
				r2, ok := parseHex4(raw, i+3)
				if !ok {
					return "", fmt.Errorf("invalid surrogate pair")
				}
				decoded := utf16.DecodeRune(r, r2)
				if decoded == utf8.RuneError {
					return "", fmt.Errorf("invalid surrogate pair")
				}
				r = decoded
				i += 6
			}
			out = utf8.AppendRune(out, r)
		default:
			return "", fmt.Errorf("invalid escape character %q", raw[i])
		}
	}
	return string(out), nil
}

func parseHex4(b []byte, offset int) (rune, bool) {
	if offset+4 > len(b) {
		return 0, false
	}
	var v rune
	for _, c := range b[offset : offset+4] {
		var d rune
		switch {
		case c >= '0' && c <= '9':
			d = rune(c - '0')
		case c >= 'a' && c <= 'f':
			d = rune(c-'a') + 10
		case c >= 'A' && c <= 'F':
			d = rune(c-'A') + 10
		default:
			return 0, false
		}
		v = v<<4 | d
	}
	return v, true
}

func (p *parser) parseNumber() (Value, error) {
	start := p.pos
	for p.pos < len(p.data) {
		c := p.data[p.pos]
		if (c >= '0' && c <= '9') || c == '-' || c == '+' || c == '.' || c == 'e' || c == 'E' {
			p.pos++
			continue
		}
		break
	}
	num, err := parseNumberText(string(p.data[start:p.pos]))
	if err != nil {
		return Value{}, &errs.ParseError{Offset: start, Reason: "invalid number", Err: err}
	}
	return Value{kind: Number, num: num}, nil
}

// parseNumberText validates the RFC 8259 number grammar; integral literals become int64
// when they fit, everything else float64.
func parseNumberText(raw string) (number, error) {
	integer, ok := scanNumber(raw)
	if !ok {
		return number{}, fmt.Errorf("malformed number %q", raw)
	}
	if integer {
		if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return number{text: raw, i: i, f: float64(i), integer: true}, nil
		}
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return number{}, err
	}
	return number{text: raw, f: f, i: int64(f)}, nil
}

func scanNumber(raw string) (integer bool, ok bool) {
	i := 0
	if i < len(raw) && raw[i] == '-' {
		i++
	}
	switch {
	case i < len(raw) && raw[i] == '0':
		i++
	case i < len(raw) && raw[i] >= '1' && raw[i] <= '9':
		for i < len(raw) && raw[i] >= '0' && raw[i] <= '9' {
			i++
		}
	default:
		return false, false
	}
	integer = true
	if i < len(raw) && raw[i] == '.' {
		integer = false
		i++
		digits := i
		for i < len(raw) && raw[i] >= '0' && raw[i] <= '9' {
			i++
		}
		if i == digits {
			return false, false
		}
	}
	if i < len(raw) && (raw[i] == 'e' || raw[i] == 'E') {
		integer = false
		i++
		if i < len(raw) && (raw[i] == '+' || raw[i] == '-') {
			i++
		}
		digits := i
		for i < len(raw) && raw[i] >= '0' && raw[i] <= '9' {
			i++
		}
		if i == digits {
			return false, false
		}
	}
	return integer, i == len(raw)
}

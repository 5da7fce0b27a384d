package wire

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/matzehuels/weft/pkg/errors"
)

// MarshalLine serializes a Table to its single-line wire form.
// The caller appends the line terminator; the returned bytes contain none.
func MarshalLine(t *Table) ([]byte, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	if t.IsSentinel() {
		return []byte(strconv.Itoa(int(t.Root))), nil
	}

	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, p := range t.Parts {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writePart(&buf, p); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInternal, err, "marshal part %d", i)
		}
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

func writePart(buf *bytes.Buffer, p Part) error {
	switch pt := p.(type) {
	case Refs:
		buf.WriteByte('[')
		for i, r := range pt {
			if i > 0 {
				buf.WriteByte(',')
			}
			buf.WriteString(strconv.Itoa(int(r)))
		}
		buf.WriteByte(']')
		return nil
	case Fields:
		buf.WriteByte('{')
		for i, f := range pt {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeLiteral(buf, f.Key); err != nil {
				return err
			}
			buf.WriteByte(':')
			buf.WriteString(strconv.Itoa(int(f.Ref)))
		}
		buf.WriteByte('}')
		return nil
	case Tagged:
		buf.WriteByte('[')
		if err := writeLiteral(buf, pt.Tag); err != nil {
			return err
		}
		for _, a := range pt.Args {
			buf.WriteByte(',')
			if r, ok := a.(Ref); ok {
				buf.WriteString(strconv.Itoa(int(r)))
				continue
			}
			if err := writeLiteral(buf, a); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
		return nil
	default:
		return writeLiteral(buf, p)
	}
}

func writeLiteral(buf *bytes.Buffer, v any) error {
	switch lv := v.(type) {
	case nil:
		buf.WriteString("null")
		return nil
	case bool:
		buf.WriteString(strconv.FormatBool(lv))
		return nil
	case int64:
		buf.WriteString(strconv.FormatInt(lv, 10))
		return nil
	case int:
		buf.WriteString(strconv.Itoa(lv))
		return nil
	}
	// Strings and floats go through encoding/json for escaping and
	// shortest-form float formatting.
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	buf.Write(data)
	return nil
}

// ParseLine parses one wire line into a Table. The result is validated, so
// every reference in the returned table is resolvable.
func ParseLine(data []byte) (*Table, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, errors.New(errors.ErrCodeMalformedTable, "empty line")
	}

	// Whole-document sentinel lines are a bare negative integer.
	if trimmed[0] == '-' {
		code, err := strconv.Atoi(string(trimmed))
		if err != nil || !Ref(code).IsSentinel() || !Ref(code).Valid(0) {
			return nil, errors.New(errors.ErrCodeMalformedTable, "invalid sentinel line %q", trimmed)
		}
		return &Table{Root: Ref(code)}, nil
	}

	if trimmed[0] != '[' {
		return nil, errors.New(errors.ErrCodeMalformedTable, "line is not a part array")
	}

	var raws []json.RawMessage
	if err := json.Unmarshal(trimmed, &raws); err != nil {
		return nil, errors.Wrap(errors.ErrCodeMalformedTable, err, "invalid JSON line")
	}
	if len(raws) == 0 {
		return nil, errors.New(errors.ErrCodeMalformedTable, "empty part array")
	}

	t := &Table{Parts: make([]Part, len(raws))}
	for i, raw := range raws {
		p, err := parsePart(raw)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeMalformedTable, err, "part %d", i)
		}
		t.Parts[i] = p
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

func parsePart(raw json.RawMessage) (Part, error) {
	trimmed := bytes.TrimSpace(raw)
	switch {
	case len(trimmed) == 0:
		return nil, errors.New(errors.ErrCodeMalformedTable, "empty part")
	case trimmed[0] == '[':
		return parseArrayPart(trimmed)
	case trimmed[0] == '{':
		return parseRecordPart(trimmed)
	default:
		return parseLiteral(trimmed)
	}
}

// parseArrayPart distinguishes plain lists (all numbers) from tagged parts
// (first element is the tag string).
func parseArrayPart(raw []byte) (Part, error) {
	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return nil, err
	}
	if len(elems) == 0 {
		return Refs{}, nil
	}

	first := bytes.TrimSpace(elems[0])
	if len(first) > 0 && first[0] == '"' {
		var tag string
		if err := json.Unmarshal(first, &tag); err != nil {
			return nil, err
		}
		args := make([]any, 0, len(elems)-1)
		for _, e := range elems[1:] {
			lit, err := parseLiteral(bytes.TrimSpace(e))
			if err != nil {
				return nil, errors.New(errors.ErrCodeMalformedTable, "tag %q has non-scalar argument", tag)
			}
			args = append(args, lit)
		}
		return Tagged{Tag: tag, Args: args}, nil
	}

	refs := make(Refs, len(elems))
	for i, e := range elems {
		r, err := parseRef(bytes.TrimSpace(e))
		if err != nil {
			return nil, err
		}
		refs[i] = r
	}
	return refs, nil
}

// parseRecordPart decodes a plain record part with key order preserved,
// which encoding/json's map decoding would discard.
func parseRecordPart(raw []byte) (Part, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, errors.New(errors.ErrCodeMalformedTable, "record part is not an object")
	}

	var fields Fields
	seen := make(map[string]bool)
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key := keyTok.(string)
		if seen[key] {
			return nil, errors.New(errors.ErrCodeMalformedTable, "duplicate record key %q", key)
		}
		seen[key] = true

		valTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		num, ok := valTok.(json.Number)
		if !ok {
			return nil, errors.New(errors.ErrCodeMalformedTable, "record key %q has non-reference value", key)
		}
		n, err := num.Int64()
		if err != nil {
			return nil, errors.New(errors.ErrCodeMalformedTable, "record key %q has non-integer reference", key)
		}
		fields = append(fields, Field{Key: key, Ref: Ref(n)})
	}
	if fields == nil {
		fields = Fields{}
	}
	return fields, nil
}

func parseRef(raw []byte) (Ref, error) {
	n, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return 0, errors.New(errors.ErrCodeMalformedTable, "reference %q is not an integer", raw)
	}
	return Ref(n), nil
}

// parseLiteral decodes a JSON scalar. Integral numbers become int64, other
// numbers float64.
func parseLiteral(raw []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	switch lv := v.(type) {
	case nil, bool, string:
		return lv, nil
	case json.Number:
		s := lv.String()
		if !strings.ContainsAny(s, ".eE") {
			if n, err := lv.Int64(); err == nil {
				return n, nil
			}
		}
		f, err := lv.Float64()
		if err != nil {
			return nil, err
		}
		return f, nil
	default:
		return nil, errors.New(errors.ErrCodeMalformedTable, "literal part is not a scalar")
	}
}

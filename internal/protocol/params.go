// Package protocol defines the call parameter record exchanged with hosts
// through the parameter buffer.
//
// The record uses the protobuf wire format so hosts in any language can
// produce it with a stock protobuf library:
//
//	message CallParams {
//	  uint32 runtime  = 1;
//	  string name     = 2;
//	  string json     = 3;
//	  oneof code {
//	    string text     = 4;
//	    bytes  bytecode = 5;
//	  }
//	}
package protocol

import (
	"fmt"
	"unicode/utf8"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/GriffinCanCode/guestjs/internal/errs"
)

// BufferSize is the capacity of the guest's parameter buffer: 48 MiB. Hosts
// never write more than this in one call.
const BufferSize = 48 << 20

const (
	fieldRuntime  protowire.Number = 1
	fieldName     protowire.Number = 2
	fieldJSON     protowire.Number = 3
	fieldText     protowire.Number = 4
	fieldBytecode protowire.Number = 5
)

// CodeKind tells inline source from compiled artifacts.
type CodeKind uint8

const (
	CodeNone CodeKind = iota
	CodeText
	CodeBytecode
)

func (k CodeKind) String() string {
	switch k {
	case CodeText:
		return "text"
	case CodeBytecode:
		return "bytecode"
	default:
		return "none"
	}
}

// Code is the module a call runs against: inline source or a compiled
// artifact.
type Code struct {
	Kind     CodeKind
	Text     string
	Bytecode []byte
}

// Text wraps inline module source.
func Text(source string) Code {
	return Code{Kind: CodeText, Text: source}
}

// Bytecode wraps a compiled artifact.
func Bytecode(data []byte) Code {
	return Code{Kind: CodeBytecode, Bytecode: data}
}

// CallParams is the parameter record of run_module_function.
type CallParams struct {
	Runtime uint32
	Name    string
	JSON    string
	Code    Code
}

// Marshal encodes p in the protobuf wire format.
func (p *CallParams) Marshal() []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldRuntime, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(p.Runtime))
	b = protowire.AppendTag(b, fieldName, protowire.BytesType)
	b = protowire.AppendString(b, p.Name)
	if p.JSON != "" {
		b = protowire.AppendTag(b, fieldJSON, protowire.BytesType)
		b = protowire.AppendString(b, p.JSON)
	}
	switch p.Code.Kind {
	case CodeText:
		b = protowire.AppendTag(b, fieldText, protowire.BytesType)
		b = protowire.AppendString(b, p.Code.Text)
	case CodeBytecode:
		b = protowire.AppendTag(b, fieldBytecode, protowire.BytesType)
		b = protowire.AppendBytes(b, p.Code.Bytecode)
	}
	return b
}

// Unmarshal decodes a record. Unknown fields are skipped. The record must
// carry a name and exactly one code field.
func Unmarshal(data []byte) (*CallParams, error) {
	var p CallParams

	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, malformed(protowire.ParseError(n))
		}
		data = data[n:]

		switch {
		case num == fieldRuntime && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return nil, malformed(protowire.ParseError(n))
			}
			if v > uint64(^uint32(0)) {
				return nil, errs.New(errs.KindInvalidInput, "decode params", "runtime handle out of range")
			}
			p.Runtime = uint32(v)
			data = data[n:]

		case typ == protowire.BytesType && num >= fieldName && num <= fieldBytecode:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return nil, malformed(protowire.ParseError(n))
			}
			data = data[n:]
			if err := p.set(num, v); err != nil {
				return nil, err
			}

		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return nil, malformed(protowire.ParseError(n))
			}
			data = data[n:]
		}
	}

	if p.Name == "" {
		return nil, errs.New(errs.KindInvalidInput, "decode params", "missing function name")
	}
	if p.Code.Kind == CodeNone {
		return nil, errs.New(errs.KindInvalidInput, "decode params", "missing code")
	}
	return &p, nil
}

func (p *CallParams) set(num protowire.Number, v []byte) error {
	if num == fieldBytecode {
		if p.Code.Kind == CodeText {
			return errs.New(errs.KindInvalidInput, "decode params", "both text and bytecode present")
		}
		p.Code = Bytecode(append([]byte(nil), v...))
		return nil
	}

	if !utf8.Valid(v) {
		return errs.New(errs.KindInvalidUTF8, "decode params", fmt.Sprintf("field %d is not valid utf-8", num))
	}
	s := string(v)
	switch num {
	case fieldName:
		p.Name = s
	case fieldJSON:
		p.JSON = s
	case fieldText:
		if p.Code.Kind == CodeBytecode {
			return errs.New(errs.KindInvalidInput, "decode params", "both text and bytecode present")
		}
		p.Code = Text(s)
	}
	return nil
}

func malformed(err error) error {
	return errs.Wrap(errs.KindInvalidInput, "decode params", err)
}

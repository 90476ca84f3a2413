// Package artifact compiles CommonJS module source for the engine and
// serializes it into a self-describing byte blob.
//
// The engine cannot serialize its compiled programs, so an artifact carries
// the transformed module source, zstd-compressed and framed with a digest.
// Loading an artifact recompiles that source without running any transform.
//
// Layout:
//
//	"GJSB" | version (1 byte) | uvarint name length | name | sha256 hex of source | zstd(source)
package artifact

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/dop251/goja"
	"github.com/klauspost/compress/zstd"

	"github.com/GriffinCanCode/guestjs/internal/errs"
	"github.com/GriffinCanCode/guestjs/internal/shared/hash"
)

// Version is the current artifact format version.
const Version byte = 1

var magic = []byte("GJSB")

// The wrapper opens on the first source line so engine positions match the
// transformed source.
const (
	wrapperHead = "(function (exports, require, module, __filename, __dirname) {"
	wrapperTail = "\n})"
)

var (
	encoder, _ = zstd.NewWriter(nil, zstd.WithEncoderConcurrency(1))
	decoder, _ = zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	hasher     = hash.Default()
)

// Module is a compiled CommonJS module.
type Module struct {
	Name   string
	Source string

	program *goja.Program
}

// Compile compiles CommonJS source into a module. Evaluating the module's
// program yields the wrapper function expecting
// (exports, require, module, __filename, __dirname).
func Compile(name, source string) (*Module, error) {
	prg, err := goja.Compile(name, wrapperHead+source+wrapperTail, false)
	if err != nil {
		return nil, errs.Wrap(errs.KindEngineCompile, "compile", err).WithPath(name)
	}
	return &Module{Name: name, Source: source, program: prg}, nil
}

// Program returns the compiled wrapper program.
func (m *Module) Program() *goja.Program {
	return m.program
}

// MarshalBinary serializes the module.
func (m *Module) MarshalBinary() ([]byte, error) {
	src := []byte(m.Source)

	buf := make([]byte, 0, len(magic)+1+binary.MaxVarintLen64+len(m.Name)+hash.HexSize+len(src)/2)
	buf = append(buf, magic...)
	buf = append(buf, Version)
	buf = binary.AppendUvarint(buf, uint64(len(m.Name)))
	buf = append(buf, m.Name...)
	buf = append(buf, hasher.Hash(src)...)
	buf = encoder.EncodeAll(src, buf)
	return buf, nil
}

// IsArtifact reports whether data starts with the artifact magic.
func IsArtifact(data []byte) bool {
	return bytes.HasPrefix(data, magic)
}

// Decode parses an artifact and compiles the module it carries.
func Decode(data []byte) (*Module, error) {
	name, src, err := unframe(data)
	if err != nil {
		return nil, err
	}
	return Compile(name, src)
}

func unframe(data []byte) (string, string, error) {
	if !IsArtifact(data) {
		return "", "", errs.New(errs.KindInvalidInput, "decode artifact", "bad magic")
	}
	rest := data[len(magic):]
	if len(rest) == 0 || rest[0] != Version {
		return "", "", errs.New(errs.KindInvalidInput, "decode artifact", "unsupported version")
	}
	rest = rest[1:]

	n, read := binary.Uvarint(rest)
	if read <= 0 || n > uint64(len(rest)-read) {
		return "", "", errs.New(errs.KindInvalidInput, "decode artifact", "bad name length")
	}
	rest = rest[read:]
	name := string(rest[:n])
	rest = rest[n:]

	if len(rest) < hash.HexSize {
		return "", "", errs.New(errs.KindInvalidInput, "decode artifact", "truncated digest")
	}
	digest := string(rest[:hash.HexSize])
	rest = rest[hash.HexSize:]

	src, err := decoder.DecodeAll(rest, nil)
	if err != nil {
		return "", "", errs.Wrap(errs.KindInvalidInput, "decode artifact", fmt.Errorf("decompress: %w", err)).WithPath(name)
	}
	if !hasher.Verify(src, digest) {
		return "", "", errs.New(errs.KindInvalidInput, "decode artifact", "digest mismatch").WithPath(name)
	}
	return name, string(src), nil
}

package http

import (
	"bytes"
	"strconv"

	"http-session/application/util/rule"

	"github.com/pkg/errors"
)

// [Major, Minor]
type Version [2]uint

// Version11 is the only version a request descriptor is sent with.
var Version11 = Version{1, 1}

// ParseVersion parses http version text(e.g. "HTTP/1.1") into [Version].
func ParseVersion(b []byte) (Version, error) {
	prefix := []byte("HTTP/")
	if !bytes.HasPrefix(b, prefix) {
		return Version{}, errors.Errorf("http version prefix not found: %s", b)
	}

	first, second, found := bytes.Cut(b[len(prefix):], []byte{'.'})
	if !found {
		return Version{}, errors.Errorf("dot seperator not found on version: %s", b)
	}

	major, err1 := strconv.ParseUint(string(first), 10, 64)
	minor, err2 := strconv.ParseUint(string(second), 10, 64)
	if err1 != nil || err2 != nil {
		return Version{}, errors.Errorf("http version is not convertable to int: %s", b)
	}

	return Version{uint(major), uint(minor)}, nil
}

func (ver Version) Text() []byte {
	b := make([]byte, 0, len("HTTP/1.1"))
	b = append(b, "HTTP/"...)
	b = strconv.AppendUint(b, uint64(ver[0]), 10)
	b = append(b, '.')
	b = strconv.AppendUint(b, uint64(ver[1]), 10)
	return b
}

func (ver Version) String() string { return string(ver.Text()) }

// Field is a single raw field line.
type Field struct{ Name, Value []byte }

var ErrMalformedFieldLine = errors.New("field line is malformed")

func ParseField(fieldLine []byte) (Field, error) {
	name, value, found := bytes.Cut(fieldLine, []byte{':'})
	if !found {
		return Field{}, errors.Wrapf(ErrMalformedFieldLine, "colon seperator not found: %q", fieldLine)
	}

	// No whitespace is allowed between field name and colon.
	// Reference: https://datatracker.ietf.org/doc/html/rfc9112#section-5.1-2
	if !rule.IsValidToken(string(name)) {
		return Field{}, errors.Wrapf(ErrMalformedFieldLine, "invalid field name: %q", name)
	}

	// Reference: https://datatracker.ietf.org/doc/html/rfc9112#section-5.1-3
	return Field{Name: name, Value: rule.TrimOWS(value)}, nil
}

func (f Field) Text() []byte {
	b := make([]byte, 0, len(f.Name)+len(f.Value)+2)
	b = append(b, f.Name...)
	b = append(b, ':', rule.SP)
	return append(b, f.Value...)
}

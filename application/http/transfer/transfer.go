package transfer

import (
	"io"

	"github.com/pkg/errors"
)

// Coding is a lowercase transfer coding name.
type Coding string

// Coder removes one transfer coding from a body.
type Coder interface {
	Coding() Coding
	NewReader(r io.Reader) io.Reader
}

var (
	ErrUnsupportedCoding = errors.New("coding is unsupported")
	ErrChunkedNotFinal   = errors.New("chunked is not the final coding")
)

// CodingPipeliner stacks coders to undo the codings of a message body.
// Chunked is always known.
type CodingPipeliner struct{ coders map[Coding]Coder }

func NewCodingPipeliner(customs ...Coder) *CodingPipeliner {
	cp := &CodingPipeliner{coders: make(map[Coding]Coder, len(customs))}
	for _, coder := range customs {
		cp.coders[coder.Coding()] = coder
	}
	return cp
}

// Decode wraps r so reading it yields the body with codings removed.
// codings are in applied order. onTrailer, when not nil, receives the
// trailer fields of a chunked body.
//
// Reference: https://datatracker.ietf.org/doc/html/rfc9112#section-6.1
func (cp *CodingPipeliner) Decode(r io.Reader, codings []Coding, onTrailer func(name, value []byte)) (io.Reader, error) {
	for idx := len(codings) - 1; idx >= 0; idx-- {
		coding := codings[idx]

		if coding == CodingChunked {
			if idx != len(codings)-1 {
				return nil, ErrChunkedNotFinal
			}

			cr := NewChunkedReader(r)
			if onTrailer != nil {
				cr.SetOnTrailerReceived(onTrailer)
			}
			r = cr
			continue
		}

		coder, ok := cp.coders[coding]
		if !ok {
			return nil, errors.Wrapf(ErrUnsupportedCoding, "%q", coding)
		}
		r = coder.NewReader(r)
	}

	return r, nil
}

// Package transfer removes transfer codings from message bodies. Chunked
// is built in, other codings are plugged in as a [Coder].
//
// Reference: https://datatracker.ietf.org/doc/html/rfc9112#section-7.1
package transfer

import (
	"bufio"
	"bytes"
	"io"
	"strconv"

	"http-session/application/util/rule"

	"github.com/pkg/errors"
)

const CodingChunked Coding = "chunked"

type Chunk struct {
	Size       uint64
	Extensions [][2]string
}

var (
	ErrMalformedChunk   = errors.New("chunk is malformed")
	ErrMalformedTrailer = errors.New("trailer field is malformed")
)

type ChunkedReader struct {
	br    *bufio.Reader
	chunk *Chunk
	read  uint64 // reset for each chunk
	done  bool

	onTrailer func(name, value []byte)
}

var _ io.Reader = (*ChunkedReader)(nil)

// NewChunkedReader converts chunked http message into byte stream.
// If r is a [bufio.Reader] it is used as is, so bytes after the last
// chunk stay in it.
func NewChunkedReader(r io.Reader) *ChunkedReader {
	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReader(r)
	}
	return &ChunkedReader{br: br}
}

// SetOnTrailerReceived registers f to be called for each trailer field
// received after the last chunk.
func (cr *ChunkedReader) SetOnTrailerReceived(f func(name, value []byte)) {
	cr.onTrailer = f
}

func (cr *ChunkedReader) LastChunk() *Chunk { return cr.chunk }

func (cr *ChunkedReader) Read(b []byte) (int, error) {
	if cr.done {
		return 0, io.EOF
	}

	if cr.chunk == nil {
		chunk, err := cr.decodeChunk()
		if err != nil {
			return 0, errors.Wrap(err, "decoding chunk")
		}
		cr.chunk = chunk

		if chunk.Size == 0 {
			// Last chunk.
			if err := cr.decodeTrailers(); err != nil {
				return 0, errors.Wrap(err, "decoding trailer")
			}
			cr.done = true
			return 0, io.EOF
		}
	}

	if remain := cr.chunk.Size - cr.read; uint64(len(b)) > remain {
		b = b[:remain]
	}

	n, err := cr.br.Read(b)
	cr.read += uint64(n)
	if err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return n, errors.Wrap(err, "reading chunk data")
	}

	if cr.read == cr.chunk.Size {
		line, err := readLine(cr.br)
		if err != nil {
			return n, errors.Wrap(err, "reading chunk delimiter")
		}
		if len(line) != 0 {
			return n, errors.Wrap(ErrMalformedChunk, "CRLF delimiter not found")
		}

		cr.chunk = nil
		cr.read = 0
	}

	return n, nil
}

func (cr *ChunkedReader) decodeChunk() (*Chunk, error) {
	line, err := readLine(cr.br)
	if err != nil {
		return nil, err
	}

	parts := bytes.Split(line, []byte{';'})

	size, err := decodeChunkSize(bytes.TrimFunc(parts[0], rule.IsWhitespace))
	if err != nil {
		return nil, errors.Wrap(err, "decoding chunk size")
	}

	extensions := make([][2]string, 0, len(parts)-1)
	for _, part := range parts[1:] {
		k, v, _ := bytes.Cut(part, []byte{'='})
		// Trim BWS.
		k = bytes.TrimFunc(k, rule.IsWhitespace)
		v = bytes.TrimFunc(v, rule.IsWhitespace)

		extensions = append(extensions, [2]string{string(k), string(rule.Unquote(v))})
	}

	return &Chunk{Size: size, Extensions: extensions}, nil
}

func decodeChunkSize(b []byte) (uint64, error) {
	size, err := strconv.ParseUint(string(b), 16, 63)
	if err != nil {
		return 0, errors.Wrapf(ErrMalformedChunk, "chunk size %q", b)
	}
	return size, nil
}

func (cr *ChunkedReader) decodeTrailers() error {
	for {
		line, err := readLine(cr.br)
		if err != nil {
			return errors.Wrap(err, "reading line")
		}

		if len(line) == 0 {
			// Last field.
			return nil
		}

		name, value, found := bytes.Cut(line, []byte{':'})
		if !found || !rule.IsValidToken(string(name)) {
			return errors.Wrapf(ErrMalformedTrailer, "%q", line)
		}

		if cr.onTrailer != nil {
			cr.onTrailer(name, rule.TrimOWS(value))
		}
	}
}

// ChunkedWriter writes each Write as one chunk. Close writes the last
// chunk and the trailers.
type ChunkedWriter struct {
	w        io.Writer
	trailers [][2]string
}

var _ io.WriteCloser = (*ChunkedWriter)(nil)

func NewChunkedWriter(w io.Writer) *ChunkedWriter { return &ChunkedWriter{w: w} }

// SetTrailers sets trailer fields written on Close.
func (cw *ChunkedWriter) SetTrailers(trailers [][2]string) { cw.trailers = trailers }

func (cw *ChunkedWriter) Write(p []byte) (n int, err error) {
	if len(p) == 0 {
		// A zero length chunk means the end of the body.
		return 0, nil
	}

	header := strconv.AppendUint(nil, uint64(len(p)), 16)
	if err := writeLine(cw.w, header); err != nil {
		return 0, errors.Wrap(err, "writing chunk header")
	}

	n, err = cw.w.Write(p)
	if err != nil {
		return n, errors.Wrap(err, "writing data")
	}

	if err := writeLine(cw.w, nil); err != nil {
		return n, errors.Wrap(err, "writing chunk delimiter")
	}

	return n, nil
}

func (cw *ChunkedWriter) Close() error {
	if err := writeLine(cw.w, []byte{'0'}); err != nil {
		return errors.Wrap(err, "writing last chunk")
	}

	for _, field := range cw.trailers {
		line := []byte(field[0] + ": " + field[1])
		if err := writeLine(cw.w, line); err != nil {
			return errors.Wrap(err, "writing trailer")
		}
	}

	if err := writeLine(cw.w, nil); err != nil {
		return errors.Wrap(err, "writing last trailer line")
	}

	return nil
}

// readLine reads until CRLF and cuts it.
func readLine(br *bufio.Reader) ([]byte, error) {
	line, err := br.ReadSlice(rule.LF)
	if err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}

	if !bytes.HasSuffix(line, rule.CRLF) {
		return nil, errors.Wrap(ErrMalformedChunk, "missing CR before LF")
	}

	return bytes.Clone(line[:len(line)-2]), nil
}

func writeLine(w io.Writer, line []byte) error {
	_, err := w.Write(append(line, rule.CRLF...))
	return err
}

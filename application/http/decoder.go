package http

import (
	"bufio"
	"bytes"
	"io"
	"strconv"
	"strings"

	"http-session/application/http/transfer"
	"http-session/application/util/rule"

	"github.com/pkg/errors"
)

type DecodeOptions struct {
	// AllowSoleLF specifies wheter a single LF character should be recognized as a valid line terminator.
	//
	// Reference: https://datatracker.ietf.org/doc/html/rfc9112#section-2.2-3
	AllowSoleLF bool

	// LenientWhitespace replaces all [rule.Whitespaces] into [rule.SP].
	// And also trims preceding and trailinig whitespace.
	//
	// Reference: https://datatracker.ietf.org/doc/html/rfc9112#section-3-3
	LenientWhitespace bool

	// MaxFieldLineLength sets the limit of field line length on headers.
	MaxFieldLineLength uint

	// MaxStartLineLength sets the limit of request line and status line length.
	// Recommended: >= 8000
	//
	// Reference: https://datatracker.ietf.org/doc/html/rfc9112#section-3-5
	MaxStartLineLength uint

	// MaxBodySize sets the limit of the decoded body. Zero means no limit.
	MaxBodySize int64

	// TransferCoders undo transfer codings other than chunked. A response
	// using any other coding fails with [transfer.ErrUnsupportedCoding].
	TransferCoders []transfer.Coder
}

var DefaultDecodeOptions = DecodeOptions{
	AllowSoleLF:        false,
	LenientWhitespace:  false,
	MaxFieldLineLength: 0,
	MaxStartLineLength: 0,
	MaxBodySize:        0,
}

type MessageDecoder struct {
	br   *bufio.Reader
	opts DecodeOptions
}

var (
	errLineTooLong       = errors.New("line length exceeeds limit")
	ErrMissingCRBeforeLF = errors.New("missing CR before LF")
	ErrFieldLineTooLong  = errors.New("field line length exceeds limit")
	ErrBodyTooLarge      = errors.New("body size exceeds limit")
	ErrInvalidFraming    = errors.New("message framing is invalid")
)

func (md *MessageDecoder) readLine(limit uint) ([]byte, error) {
	var line []byte
	for {
		frag, err := md.br.ReadSlice(rule.LF)
		line = append(line, frag...)
		if limit > 0 && uint(len(line)) > limit+2 {
			return nil, errLineTooLong
		}
		if err == nil {
			break
		}
		if err != bufio.ErrBufferFull {
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return nil, err
		}
	}

	line = line[:len(line)-1] // Remove LF.

	if !md.opts.AllowSoleLF {
		if len(line) == 0 || line[len(line)-1] != rule.CR {
			return nil, ErrMissingCRBeforeLF
		}
	}
	line = bytes.TrimSuffix(line, []byte{rule.CR})

	if md.opts.LenientWhitespace {
		for _, c := range rule.Whitespaces {
			line = bytes.ReplaceAll(line, []byte{c}, []byte{rule.SP})
		}
		return bytes.Trim(line, string(rule.SP)), nil
	}

	// Reference: https://datatracker.ietf.org/doc/html/rfc9112#section-2.2-4
	return bytes.ReplaceAll(line, []byte{rule.CR}, []byte{rule.SP}), nil
}

// readStartLine skips empty lines received before the message.
//
// Reference: https://datatracker.ietf.org/doc/html/rfc9112#section-2.2-6
func (md *MessageDecoder) readStartLine() ([]byte, error) {
	for {
		line, err := md.readLine(md.opts.MaxStartLineLength)
		if err != nil {
			return nil, err
		}
		if len(line) > 0 {
			return line, nil
		}
	}
}

func (md *MessageDecoder) decodeHeaders() (Headers, error) {
	fields := make([]Field, 0)
	for {
		fieldLine, err := md.readLine(md.opts.MaxFieldLineLength)
		if err != nil {
			if errors.Is(err, errLineTooLong) {
				return Headers{}, ErrFieldLineTooLong
			}
			return Headers{}, errors.Wrap(err, "reading line")
		}

		if len(fieldLine) == 0 {
			// An empty line. This means that there are no more headers.
			return HeadersFrom(fields), nil
		}

		field, err := ParseField(fieldLine)
		if err != nil {
			return Headers{}, err
		}

		fields = append(fields, field)
	}
}

// readBody reads exactly n bytes, or up to EOF if n is negative.
func (md *MessageDecoder) readBody(n int64) ([]byte, error) {
	if md.opts.MaxBodySize > 0 && n > md.opts.MaxBodySize {
		return nil, ErrBodyTooLarge
	}

	var r io.Reader = md.br
	if n >= 0 {
		r = io.LimitReader(md.br, n)
	}

	body, err := md.readLimited(r)
	if err != nil {
		return nil, err
	}

	if n >= 0 && int64(len(body)) != n {
		return nil, errors.Wrapf(io.ErrUnexpectedEOF, "body ended after %d of %d bytes", len(body), n)
	}

	return body, nil
}

func (md *MessageDecoder) readLimited(r io.Reader) ([]byte, error) {
	if md.opts.MaxBodySize > 0 {
		r = io.LimitReader(r, md.opts.MaxBodySize+1)
	}

	body, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	if md.opts.MaxBodySize > 0 && int64(len(body)) > md.opts.MaxBodySize {
		return nil, ErrBodyTooLarge
	}

	return body, nil
}

// contentLength validates Content-Length values, identical duplicates are allowed.
//
// Reference: https://datatracker.ietf.org/doc/html/rfc9110#section-8.6-11
func contentLength(headers *Headers) (int64, bool, error) {
	values := headers.Values("Content-Length")
	if len(values) == 0 {
		return 0, false, nil
	}

	first := strings.TrimSpace(values[0])
	for _, v := range values[1:] {
		if strings.TrimSpace(v) != first {
			return 0, false, errors.Wrapf(ErrInvalidFraming, "conflicting Content-Length %q", values)
		}
	}

	n, err := strconv.ParseInt(first, 10, 64)
	if err != nil || n < 0 {
		return 0, false, errors.Wrapf(ErrInvalidFraming, "Content-Length %q", first)
	}

	return n, true, nil
}

// transferCodings lists the codings of Transfer-Encoding in applied order.
func transferCodings(headers *Headers) []transfer.Coding {
	codings := make([]transfer.Coding, 0)
	for _, v := range headers.Values("Transfer-Encoding") {
		for _, c := range strings.Split(v, ",") {
			if c = strings.ToLower(strings.TrimSpace(c)); c != "" {
				codings = append(codings, transfer.Coding(c))
			}
		}
	}
	return codings
}

var ErrMalformedStatusLine = errors.New("status line is malformed")

type ResponseDecoder struct {
	MessageDecoder
	method  string
	codings *transfer.CodingPipeliner
}

// NewResponseDecoder creates a decoder for the response to a request sent
// with method. Responses to HEAD never carry a body.
func NewResponseDecoder(r io.Reader, method string, opts DecodeOptions) *ResponseDecoder {
	return &ResponseDecoder{
		MessageDecoder: MessageDecoder{br: bufio.NewReader(r), opts: opts},
		method:         method,
		codings:        transfer.NewCodingPipeliner(opts.TransferCoders...),
	}
}

// Decode reads a whole response into r. Interim 1xx responses other than
// 101 are skipped. Transfer codings are removed from the body, content
// codings are left alone.
//
// r MUST be a non-nil pointer
func (rd *ResponseDecoder) Decode(r *Response) error {
	for {
		if err := rd.decodeStatusLine(r); err != nil {
			return errors.Wrap(err, "parsing status line")
		}

		headers, err := rd.decodeHeaders()
		if err != nil {
			return errors.Wrap(err, "parsing headers")
		}
		r.Headers = headers

		if r.StatusCode < 100 || r.StatusCode >= 200 || r.StatusCode == 101 {
			break
		}
	}

	body, err := rd.decodeBody(r)
	if err != nil {
		return errors.Wrap(err, "reading body")
	}
	r.Body = body

	return nil
}

// Reference: https://datatracker.ietf.org/doc/html/rfc9112#section-6.3
func (rd *ResponseDecoder) decodeBody(r *Response) ([]byte, error) {
	if rd.method == MethodHead || noBodyStatus(r.StatusCode) {
		return []byte{}, nil
	}

	if codings := transferCodings(&r.Headers); len(codings) > 0 {
		body, err := rd.codings.Decode(rd.br, codings, func(name, value []byte) {
			r.Trailers.Add(string(name), string(value))
		})
		if err != nil {
			return nil, errors.Wrapf(err, "Transfer-Encoding %q", codings)
		}

		// Without chunked as the final coding, the message is finished
		// when server closes connection.
		return rd.readLimited(body)
	}

	n, ok, err := contentLength(&r.Headers)
	if err != nil {
		return nil, err
	}
	if ok {
		return rd.readBody(n)
	}

	// Neither transfer-encoding nor content-length exists.
	// The message is finished when server closes connection.
	return rd.readBody(-1)
}

func (rd *ResponseDecoder) decodeStatusLine(r *Response) error {
	line, err := rd.readStartLine()
	if err != nil {
		if errors.Is(err, errLineTooLong) {
			return ErrMalformedStatusLine
		}
		return errors.Wrap(err, "reading line")
	}

	parts := bytes.SplitN(line, []byte{rule.SP}, 3)
	if len(parts) < 2 {
		return errors.Wrapf(ErrMalformedStatusLine, "%q", line)
	}

	ver, err := ParseVersion(parts[0])
	if err != nil {
		return errors.Wrap(ErrMalformedStatusLine, err.Error())
	}

	code, err := strconv.Atoi(string(parts[1]))
	if err != nil || len(parts[1]) != 3 || code < 100 {
		return errors.Wrapf(ErrMalformedStatusLine, "status code %q", parts[1])
	}

	// reason-phrase is optional.
	reason := ""
	if len(parts) == 3 {
		reason = string(parts[2])
	}

	r.Version, r.StatusCode, r.Reason = ver, code, reason

	return nil
}

var ErrMalformedRequestLine = errors.New("request line is malformed")

type RequestDecoder struct{ MessageDecoder }

func NewRequestDecoder(r io.Reader, opts DecodeOptions) *RequestDecoder {
	return &RequestDecoder{MessageDecoder{br: bufio.NewReader(r), opts: opts}}
}

// Decode reads a whole request. Only Content-Length framed bodies are read;
// a request without Content-Length decodes with a nil body.
//
// r MUST be a non-nil pointer
func (rd *RequestDecoder) Decode(r *Request) error {
	line, err := rd.readStartLine()
	if err != nil {
		return errors.Wrap(err, "reading request line")
	}

	parts := bytes.Split(line, []byte{rule.SP})
	if len(parts) != 3 || !rule.IsValidToken(string(parts[0])) || len(parts[1]) == 0 {
		return errors.Wrapf(ErrMalformedRequestLine, "%q", line)
	}
	if _, err := ParseVersion(parts[2]); err != nil {
		return errors.Wrap(ErrMalformedRequestLine, err.Error())
	}
	r.Method, r.Target = string(parts[0]), string(parts[1])

	if r.Headers, err = rd.decodeHeaders(); err != nil {
		return errors.Wrap(err, "parsing headers")
	}

	n, ok, err := contentLength(&r.Headers)
	if err != nil {
		return err
	}
	r.Body = nil
	if ok {
		if r.Body, err = rd.readBody(n); err != nil {
			return errors.Wrap(err, "reading body")
		}
	}

	return nil
}

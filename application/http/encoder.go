package http

import (
	"bufio"
	"io"
	"strconv"

	"http-session/application/util/rule"

	"github.com/pkg/errors"
)

type EncodeOptions struct {
	// UseSoleLF specifies wheter a single LF character should be used as a line terminator.
	//
	// Reference: https://datatracker.ietf.org/doc/html/rfc9112#section-2.2-3
	UseSoleLF bool
}

var DefaultEncodeOptions = EncodeOptions{
	UseSoleLF: false,
}

type MessageEncoder struct {
	bw   *bufio.Writer
	opts EncodeOptions
}

func (me *MessageEncoder) writeLine(line []byte) error {
	if _, err := me.bw.Write(line); err != nil {
		return errors.Wrap(err, "writing line")
	}

	term := rule.CRLF
	if me.opts.UseSoleLF {
		term = term[1:]
	}

	if _, err := me.bw.Write(term); err != nil {
		return errors.Wrap(err, "writing line terminator")
	}

	return nil
}

func (me *MessageEncoder) encodeHeaders(fields []Field) error {
	for _, field := range fields {
		if err := me.writeLine(field.Text()); err != nil {
			return errors.Wrap(err, "writing field")
		}
	}

	// Write a empty line as all the headers are written.
	if err := me.writeLine(nil); err != nil {
		return errors.Wrap(err, "writing line terminator")
	}

	return nil
}

// encodeBody writes body and flushes everything buffered so far.
// The whole message leaves in as few writes as the buffer allows.
func (me *MessageEncoder) encodeBody(body []byte) error {
	if _, err := me.bw.Write(body); err != nil {
		return errors.Wrap(err, "writing body")
	}

	if err := me.bw.Flush(); err != nil {
		return errors.Wrap(err, "flushing message")
	}

	return nil
}

type RequestEncoder struct{ MessageEncoder }

func NewRequestEncoder(w io.Writer, opts EncodeOptions) *RequestEncoder {
	return &RequestEncoder{
		MessageEncoder{
			bw:   bufio.NewWriter(w),
			opts: opts,
		},
	}
}

// Encode writes request to the underlying writer.
// Host is set from host unless the request already carries one, and
// Content-Length is computed for loaded requests.
func (re *RequestEncoder) Encode(host string, request *Request) error {
	if err := re.encodeRequestLine(request); err != nil {
		return errors.Wrap(err, "encoding request line")
	}

	headers := request.Headers.Clone()
	if !headers.Has("Host") {
		headers.Set("Host", host)
	}
	headers.Del("Content-Length")
	if request.Loaded() {
		headers.Set("Content-Length", strconv.Itoa(len(request.Body)))
	}

	if err := re.encodeHeaders(headers.Fields()); err != nil {
		return errors.Wrap(err, "encoding headers")
	}

	if err := re.encodeBody(request.Body); err != nil {
		return errors.Wrap(err, "encoding body")
	}

	return nil
}

func (re *RequestEncoder) encodeRequestLine(request *Request) error {
	line := make([]byte, 0, len(request.Method)+len(request.Target)+10)
	line = append(line, request.Method...)
	line = append(line, rule.SP)
	line = append(line, request.Target...)
	line = append(line, rule.SP)
	line = append(line, request.Version().Text()...)

	return re.writeLine(line)
}

type ResponseEncoder struct{ MessageEncoder }

func NewResponseEncoder(w io.Writer, opts EncodeOptions) *ResponseEncoder {
	return &ResponseEncoder{
		MessageEncoder{
			bw:   bufio.NewWriter(w),
			opts: opts,
		},
	}
}

// Encode writes response as is. Content-Length is added when the response
// has neither Content-Length nor Transfer-Encoding.
func (re *ResponseEncoder) Encode(response *Response) error {
	if err := re.writeLine([]byte(response.StatusLine())); err != nil {
		return errors.Wrap(err, "encoding status line")
	}

	headers := response.Headers.Clone()
	if !headers.Has("Content-Length") && !headers.Has("Transfer-Encoding") {
		headers.Set("Content-Length", strconv.Itoa(len(response.Body)))
	}

	if err := re.encodeHeaders(headers.Fields()); err != nil {
		return errors.Wrap(err, "encoding headers")
	}

	if err := re.encodeBody(response.Body); err != nil {
		return errors.Wrap(err, "encoding body")
	}

	return nil
}

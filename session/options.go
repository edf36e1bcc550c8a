package session

import (
	"time"

	"http-session/application/http"
)

type Options struct {
	// Timeout gives the phase clock of every phase.
	// Default is Fixed(DefaultTimeout).
	Timeout TimeoutPolicy

	Send    SendOptions
	Receive ReceiveOptions

	// ServerName is verified against the peer certificate of secure
	// sessions. Default is the host given to Run.
	ServerName string
}

type SendOptions struct {
	Encode http.EncodeOptions
}

type ReceiveOptions struct {
	Decode http.DecodeOptions
}

var DefaultOptions = Options{
	Timeout: Fixed(DefaultTimeout),
	Send:    SendOptions{Encode: http.DefaultEncodeOptions},
	Receive: ReceiveOptions{Decode: http.DefaultDecodeOptions},
}

func (o Options) timeout(phase State) time.Duration {
	if o.Timeout == nil {
		return DefaultTimeout
	}
	return o.Timeout.Timeout(phase)
}

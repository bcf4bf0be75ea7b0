// Package relay republishes boundary frames on NATS so that other processes
// can follow lnd streams without linking the native library.
package relay

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"github.com/nats-io/nats.go"

	"github.com/fgrzl/lndkit/pkg/bridge"
)

const logPrefix = "relay:publisher"

const (
	HeaderCallID    = "Lndkit-Call-Id"
	HeaderDirection = "Lndkit-Direction"
	HeaderStream    = "Lndkit-Stream"
	HeaderError     = "Lndkit-Error"
)

const DefaultSubjectPrefix = "lndkit"

// Options configures a Publisher. Nil or zero values use defaults.
type Options struct {
	// SubjectPrefix is the first subject token, "lndkit" by default.
	SubjectPrefix string `envconfig:"RELAY_SUBJECT_PREFIX" default:"lndkit"`
	// InboundOnly skips frames sent to the native side.
	InboundOnly bool `envconfig:"RELAY_INBOUND_ONLY" default:"false"`
}

// LoadOptions reads options from LNDKIT_RELAY_* environment variables.
func LoadOptions() (*Options, error) {
	var o Options
	if err := envconfig.Process("LNDKIT", &o); err != nil {
		return nil, fmt.Errorf("%s - failed to load options: %w", logPrefix, err)
	}
	return &o, nil
}

// Publisher publishes frames to <prefix>.<method>.<kind>. Payloads are sent
// as-is; frame metadata travels in headers. It implements bridge.FrameTap.
type Publisher struct {
	nc          *nats.Conn
	prefix      string
	inboundOnly bool
}

// NewPublisher creates a Publisher on an established connection.
func NewPublisher(nc *nats.Conn, opts *Options) *Publisher {
	p := &Publisher{nc: nc, prefix: DefaultSubjectPrefix}
	if opts != nil {
		if opts.SubjectPrefix != "" {
			p.prefix = opts.SubjectPrefix
		}
		p.inboundOnly = opts.InboundOnly
	}
	return p
}

// Subject returns the subject f is published on.
func (p *Publisher) Subject(f bridge.Frame) string {
	return p.prefix + "." + token(f.Method) + "." + f.Kind.String()
}

// Publish sends one frame. Frames filtered out by the options are ignored.
func (p *Publisher) Publish(f bridge.Frame) error {
	if p.inboundOnly && f.Direction != bridge.Inbound {
		return nil
	}
	msg := nats.NewMsg(p.Subject(f))
	msg.Data = f.Data
	msg.Header.Set(HeaderCallID, f.CallID.String())
	msg.Header.Set(HeaderDirection, f.Direction.String())
	if f.Stream != 0 {
		msg.Header.Set(HeaderStream, strconv.FormatUint(uint64(f.Stream), 10))
	}
	if f.Error != "" {
		msg.Header.Set(HeaderError, f.Error)
	}
	if err := p.nc.PublishMsg(msg); err != nil {
		return fmt.Errorf("%s - failed to publish to %s: %w", logPrefix, msg.Subject, err)
	}
	return nil
}

// Tap publishes f, logging rather than returning any failure.
func (p *Publisher) Tap(f bridge.Frame) {
	if err := p.Publish(f); err != nil {
		slog.Warn(err.Error(), slog.String("call_id", f.CallID.String()))
	}
}

// token makes s safe to use as a single subject token.
func token(s string) string {
	if s == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\r', '\n':
			return '_'
		}
		return r
	}, s)
}

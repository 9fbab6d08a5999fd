package mirror

import (
	"context"
	"fmt"
)

// Identity is one of the two sending accounts in the destination group.
type Identity interface {
	Name() string
	SendText(ctx context.Context, body string, replyTo DestID) (DestID, error)
	SendFile(ctx context.Context, path, caption string, replyTo DestID) (DestID, error)
	SendMediaReference(ctx context.Context, ref *MediaRef, caption string, replyTo DestID) (DestID, error)
}

// Dispatcher routes outbound messages to the identity matching their origin.
// Every call produces at most one destination message and nothing is retried here.
type Dispatcher struct {
	self Identity
	peer Identity
}

func NewDispatcher(self, peer Identity) (*Dispatcher, error) {
	var problems []string
	if self == nil {
		problems = append(problems, "missing identity for outgoing messages")
	}
	if peer == nil {
		problems = append(problems, "missing identity for incoming messages")
	}
	if len(problems) > 0 {
		return nil, &ConfigurationError{Problems: problems}
	}
	return &Dispatcher{self: self, peer: peer}, nil
}

// IdentityFor returns the identity that sends messages of the given origin.
func (d *Dispatcher) IdentityFor(origin Origin) (Identity, error) {
	switch origin {
	case OriginSelf:
		return d.self, nil
	case OriginPeer:
		return d.peer, nil
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownOrigin, origin)
	}
}

func (d *Dispatcher) SendText(ctx context.Context, body string, origin Origin, replyTo DestID) (DestID, error) {
	ident, err := d.IdentityFor(origin)
	if err != nil {
		return 0, err
	}
	return ident.SendText(ctx, body, replyTo)
}

func (d *Dispatcher) SendFile(ctx context.Context, path string, origin Origin, caption string, replyTo DestID) (DestID, error) {
	ident, err := d.IdentityFor(origin)
	if err != nil {
		return 0, err
	}
	return ident.SendFile(ctx, path, caption, replyTo)
}

func (d *Dispatcher) SendMediaReference(ctx context.Context, ref *MediaRef, origin Origin, caption string, replyTo DestID) (DestID, error) {
	ident, err := d.IdentityFor(origin)
	if err != nil {
		return 0, err
	}
	return ident.SendMediaReference(ctx, ref, caption, replyTo)
}

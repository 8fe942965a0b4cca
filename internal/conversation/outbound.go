package conversation

import "context"

// ReplyMessenger delivers replies back to the customer over the chat transport.
type ReplyMessenger interface {
	// SendReply delivers the reply and returns the transport ids of the
	// messages it produced, so their echoes can be recognized later.
	SendReply(ctx context.Context, reply OutboundReply) ([]string, error)
}

// OutboundReply carries the data required to push a message to the customer.
// MediaURLs are sent in order after the body.
type OutboundReply struct {
	ConversationID string
	To             string
	From           string
	Body           string
	MediaURLs      []string
}

// ReplyMessengerFunc adapts a function to ReplyMessenger.
type ReplyMessengerFunc func(ctx context.Context, reply OutboundReply) ([]string, error)

func (f ReplyMessengerFunc) SendReply(ctx context.Context, reply OutboundReply) ([]string, error) {
	return f(ctx, reply)
}

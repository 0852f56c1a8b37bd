// Package delivery turns the platform's single-use reply token into a
// reliable send: reply while the token is live, fall back to push exactly
// once when the platform rejects the token, and never attempt a reply twice.
package delivery

import (
	"context"
	"fmt"

	"daigo/pkg/chat"
	"daigo/pkg/logger"
)

type State int

const (
	// Fresh: no send attempted yet; the reply token (if any) is unconsumed.
	Fresh State = iota
	// ReplyAttempted: a reply-channel send happened; the token is burned
	// whether or not it succeeded.
	ReplyAttempted
	// Closed: the message reached a channel, or the terminal failure was
	// reported to the caller. No further sends through this Channel.
	Closed
)

// Channel is the per-event delivery state machine. It is used from a single
// goroutine: the reply-vs-push decision is strictly sequential.
type Channel struct {
	sender     chat.Sender
	replyToken string
	recipient  string

	state         State
	tokenConsumed bool
}

func New(sender chat.Sender, replyToken, recipient string) *Channel {
	return &Channel{
		sender:     sender,
		replyToken: replyToken,
		recipient:  recipient,
	}
}

func (c *Channel) State() State { return c.state }

func (c *Channel) TokenConsumed() bool { return c.tokenConsumed }

func (c *Channel) canReply() bool {
	return c.replyToken != "" && !c.tokenConsumed
}

// Send delivers msgs through the reply channel if the token is still live,
// falling back to push when the platform reports the token invalid. Any
// other reply failure is returned to the caller; the token is consumed
// either way so a retry can never reply twice.
func (c *Channel) Send(ctx context.Context, msgs ...chat.Message) error {
	if c.canReply() {
		err := c.sender.Reply(ctx, c.replyToken, msgs...)
		c.tokenConsumed = true
		c.state = ReplyAttempted
		if err == nil {
			c.state = Closed
			return nil
		}
		if !chat.IsInvalidReplyToken(err) {
			c.state = Closed
			return err
		}
		logger.WarnC("delivery", "Reply token invalid, falling back to push")
	}

	err := c.pushTo(ctx, msgs...)
	c.state = Closed
	return err
}

// Ack attempts the reply channel exactly once and never pushes: an
// acknowledgment is not worth spending push quota on. An invalid-token
// failure is swallowed; other failures propagate.
func (c *Channel) Ack(ctx context.Context, msgs ...chat.Message) error {
	if !c.canReply() {
		return nil
	}

	err := c.sender.Reply(ctx, c.replyToken, msgs...)
	c.tokenConsumed = true
	if c.state == Fresh {
		c.state = ReplyAttempted
	}
	if err != nil && chat.IsInvalidReplyToken(err) {
		logger.WarnC("delivery", "Ack reply token invalid, skipping ack")
		return nil
	}
	return err
}

// PushOnly bypasses the reply channel entirely.
func (c *Channel) PushOnly(ctx context.Context, msgs ...chat.Message) error {
	err := c.pushTo(ctx, msgs...)
	c.state = Closed
	return err
}

func (c *Channel) pushTo(ctx context.Context, msgs ...chat.Message) error {
	if c.recipient == "" {
		return fmt.Errorf("cannot push: missing recipient")
	}
	return c.sender.Push(ctx, c.recipient, msgs...)
}

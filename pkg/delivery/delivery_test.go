package delivery

import (
	"context"
	"errors"
	"testing"

	"daigo/pkg/chat"
)

type fakeSender struct {
	replyErr   error
	pushErr    error
	replyCalls int
	pushCalls  int
	replyToken string
	pushTo     string
}

func (f *fakeSender) Reply(ctx context.Context, replyToken string, msgs ...chat.Message) error {
	f.replyCalls++
	f.replyToken = replyToken
	return f.replyErr
}

func (f *fakeSender) Push(ctx context.Context, to string, msgs ...chat.Message) error {
	f.pushCalls++
	f.pushTo = to
	return f.pushErr
}

func (f *fakeSender) Profile(ctx context.Context, userID string) (chat.Profile, error) {
	return chat.Profile{}, nil
}

func (f *fakeSender) Loading(ctx context.Context, chatID string, seconds int) error {
	return nil
}

func invalidTokenErr() error {
	return &chat.APIError{Status: 400, Message: "Invalid reply token"}
}

func TestSendWithValidTokenRepliesOnce(t *testing.T) {
	t.Parallel()

	sender := &fakeSender{}
	ch := New(sender, "rt-1", "U1")

	if err := ch.Send(context.Background(), chat.NewText("hi")); err != nil {
		t.Fatalf("send: %v", err)
	}
	if sender.replyCalls != 1 || sender.pushCalls != 0 {
		t.Fatalf("expected 1 reply / 0 push, got %d / %d", sender.replyCalls, sender.pushCalls)
	}
	if ch.State() != Closed || !ch.TokenConsumed() {
		t.Fatalf("expected closed channel with consumed token")
	}
}

func TestSendInvalidTokenFallsBackToPushOnce(t *testing.T) {
	t.Parallel()

	sender := &fakeSender{replyErr: invalidTokenErr()}
	ch := New(sender, "rt-1", "U1")

	if err := ch.Send(context.Background(), chat.NewText("hi")); err != nil {
		t.Fatalf("send: %v", err)
	}
	if sender.replyCalls != 1 || sender.pushCalls != 1 {
		t.Fatalf("expected 1 reply then 1 push, got %d / %d", sender.replyCalls, sender.pushCalls)
	}
	if sender.pushTo != "U1" {
		t.Fatalf("push recipient mismatch: %q", sender.pushTo)
	}
}

func TestSendOtherReplyFailurePropagatesWithoutPush(t *testing.T) {
	t.Parallel()

	boom := &chat.APIError{Status: 500, Message: "internal error"}
	sender := &fakeSender{replyErr: boom}
	ch := New(sender, "rt-1", "U1")

	err := ch.Send(context.Background(), chat.NewText("hi"))
	if !errors.Is(err, boom) {
		t.Fatalf("expected propagated reply error, got %v", err)
	}
	if sender.pushCalls != 0 {
		t.Fatalf("push must not run on non-token failures")
	}
	if !ch.TokenConsumed() {
		t.Fatalf("token must be consumed even on failure")
	}
}

func TestSendWithoutTokenPushesDirectly(t *testing.T) {
	t.Parallel()

	sender := &fakeSender{}
	ch := New(sender, "", "U1")

	if err := ch.Send(context.Background(), chat.NewText("hi")); err != nil {
		t.Fatalf("send: %v", err)
	}
	if sender.replyCalls != 0 || sender.pushCalls != 1 {
		t.Fatalf("expected direct push, got %d replies / %d pushes", sender.replyCalls, sender.pushCalls)
	}
}

func TestSecondSendUsesPush(t *testing.T) {
	t.Parallel()

	sender := &fakeSender{}
	ch := New(sender, "rt-1", "U1")

	if err := ch.Send(context.Background(), chat.NewText("one")); err != nil {
		t.Fatalf("first send: %v", err)
	}
	if err := ch.Send(context.Background(), chat.NewText("two")); err != nil {
		t.Fatalf("second send: %v", err)
	}
	if sender.replyCalls != 1 || sender.pushCalls != 1 {
		t.Fatalf("second send must push, got %d replies / %d pushes", sender.replyCalls, sender.pushCalls)
	}
}

func TestAckSwallowsInvalidTokenWithoutPush(t *testing.T) {
	t.Parallel()

	sender := &fakeSender{replyErr: invalidTokenErr()}
	ch := New(sender, "rt-1", "U1")

	if err := ch.Ack(context.Background(), chat.NewText("working on it")); err != nil {
		t.Fatalf("ack: %v", err)
	}
	if sender.pushCalls != 0 {
		t.Fatalf("ack must never push")
	}
	if !ch.TokenConsumed() {
		t.Fatalf("ack must consume the token")
	}
}

func TestAckWithoutTokenIsNoop(t *testing.T) {
	t.Parallel()

	sender := &fakeSender{}
	ch := New(sender, "", "U1")

	if err := ch.Ack(context.Background(), chat.NewText("x")); err != nil {
		t.Fatalf("ack: %v", err)
	}
	if sender.replyCalls != 0 || sender.pushCalls != 0 {
		t.Fatalf("expected no sends, got %d / %d", sender.replyCalls, sender.pushCalls)
	}
}

func TestAckThenSendPushes(t *testing.T) {
	t.Parallel()

	sender := &fakeSender{}
	ch := New(sender, "rt-1", "U1")

	if err := ch.Ack(context.Background(), chat.NewText("ack")); err != nil {
		t.Fatalf("ack: %v", err)
	}
	if err := ch.Send(context.Background(), chat.NewText("result")); err != nil {
		t.Fatalf("send: %v", err)
	}
	if sender.replyCalls != 1 || sender.pushCalls != 1 {
		t.Fatalf("send after ack must push, got %d replies / %d pushes", sender.replyCalls, sender.pushCalls)
	}
}

func TestPushWithoutRecipientFails(t *testing.T) {
	t.Parallel()

	sender := &fakeSender{}
	ch := New(sender, "", "")

	if err := ch.Send(context.Background(), chat.NewText("x")); err == nil {
		t.Fatalf("expected error for missing recipient")
	}
}

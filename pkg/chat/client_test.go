package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"daigo/pkg/config"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(config.ChatConfig{
		AccessToken: "token",
		APIBase:     srv.URL,
		TimeoutSec:  5,
	})
}

func TestReplySendsTokenAndMessages(t *testing.T) {
	t.Parallel()

	var gotPath string
	var gotBody map[string]interface{}
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if auth := r.Header.Get("Authorization"); auth != "Bearer token" {
			t.Errorf("unexpected authorization header: %q", auth)
		}
		data, _ := io.ReadAll(r.Body)
		json.Unmarshal(data, &gotBody)
		w.WriteHeader(http.StatusOK)
	})

	err := client.Reply(context.Background(), "rt-1", NewText("hello"))
	if err != nil {
		t.Fatalf("reply: %v", err)
	}
	if gotPath != "/v2/bot/message/reply" {
		t.Fatalf("unexpected path: %s", gotPath)
	}
	if gotBody["replyToken"] != "rt-1" {
		t.Fatalf("replyToken mismatch: %v", gotBody["replyToken"])
	}
	msgs, ok := gotBody["messages"].([]interface{})
	if !ok || len(msgs) != 1 {
		t.Fatalf("expected one message, got %v", gotBody["messages"])
	}
}

func TestInvalidReplyTokenClassification(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		body string
		want bool
	}{
		{"top level", `{"message":"Invalid reply token"}`, true},
		{"nested detail", `{"message":"The request body has 1 error(s)","details":[{"message":"invalid reply token"}]}`, true},
		{"other error", `{"message":"rate limit exceeded"}`, false},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadRequest)
				fmt.Fprint(w, tc.body)
			})
			err := client.Reply(context.Background(), "rt", NewText("x"))
			if err == nil {
				t.Fatalf("expected error")
			}
			if got := IsInvalidReplyToken(err); got != tc.want {
				t.Fatalf("IsInvalidReplyToken = %v, want %v (err: %v)", got, tc.want, err)
			}
		})
	}
}

func TestIsInvalidReplyTokenIgnoresPlainErrors(t *testing.T) {
	t.Parallel()

	if IsInvalidReplyToken(errors.New("invalid reply token")) {
		t.Fatalf("plain error must not classify as invalid token")
	}
}

func TestPushRequiresRecipient(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})
	if err := client.Push(context.Background(), "", NewText("x")); err == nil {
		t.Fatalf("expected error for empty recipient")
	}
}

func TestProfileDecodesDisplayName(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/bot/profile/U123" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		fmt.Fprint(w, `{"userId":"U123","displayName":"Mei"}`)
	})

	profile, err := client.Profile(context.Background(), "U123")
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	if profile.DisplayName != "Mei" {
		t.Fatalf("display name mismatch: %q", profile.DisplayName)
	}
}

func TestFlexCarouselMarshalShape(t *testing.T) {
	t.Parallel()

	msg := NewFlexCarousel("alt", []Bubble{{
		Type: "bubble",
		Size: "mega",
		Body: &FlexNode{Type: "box", Layout: "vertical", Contents: []FlexNode{
			{Type: "text", Text: "title", Weight: "bold"},
		}},
	}})

	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out map[string]interface{}
	json.Unmarshal(data, &out)
	if out["type"] != "flex" || out["altText"] != "alt" {
		t.Fatalf("unexpected envelope: %s", data)
	}
	contents := out["contents"].(map[string]interface{})
	if contents["type"] != "carousel" {
		t.Fatalf("expected carousel contents, got %s", data)
	}
}

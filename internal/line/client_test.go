package line

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestClientReply(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody replyRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient("token-abc", WithBaseURL(srv.URL))
	if err := c.Reply("rtoken", "第一則", "第二則"); err != nil {
		t.Fatalf("reply: %v", err)
	}

	if gotPath != "/v2/bot/message/reply" {
		t.Errorf("path = %q", gotPath)
	}
	if gotAuth != "Bearer token-abc" {
		t.Errorf("authorization = %q", gotAuth)
	}
	if gotBody.ReplyToken != "rtoken" {
		t.Errorf("reply token = %q", gotBody.ReplyToken)
	}
	if len(gotBody.Messages) != 2 || gotBody.Messages[0].Text != "第一則" {
		t.Errorf("messages = %+v", gotBody.Messages)
	}
	if gotBody.Messages[0].Type != "text" {
		t.Errorf("message type = %q, want text", gotBody.Messages[0].Type)
	}
}

func TestClientPush(t *testing.T) {
	var gotBody pushRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/bot/message/push" {
			t.Errorf("path = %q", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient("token-abc", WithBaseURL(srv.URL))
	if err := c.Push("G1", "提醒"); err != nil {
		t.Fatalf("push: %v", err)
	}
	if gotBody.To != "G1" {
		t.Errorf("to = %q, want G1", gotBody.To)
	}
}

func TestClientErrorIncludesResponseBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"message":"Invalid reply token"}`))
	}))
	defer srv.Close()

	c := NewClient("token-abc", WithBaseURL(srv.URL))
	err := c.Reply("stale-token", "hi")
	if err == nil {
		t.Fatal("expected an error for a 400 response")
	}
	if !strings.Contains(err.Error(), "Invalid reply token") {
		t.Errorf("error should include the response body, got: %v", err)
	}
	if !strings.Contains(err.Error(), "400") {
		t.Errorf("error should include the status code, got: %v", err)
	}
}

func TestClientUnconfigured(t *testing.T) {
	c := NewClient("")
	if c.Configured() {
		t.Error("empty token should not be configured")
	}
	if err := c.Reply("rtoken", "hi"); err == nil {
		t.Error("unconfigured client should refuse to send")
	}
}

package mail

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestBrevoClientSendsTemplate(t *testing.T) {
	var got sendRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("api-key") != "key-123" {
			t.Errorf("expected api-key header, got %q", r.Header.Get("api-key"))
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"messageId":"<1@brevo>"}`))
	}))
	defer server.Close()

	client := NewBrevoClient(server.URL, "key-123", Recipient{Email: "no-reply@example.com", Name: "Admissions"}, server.Client())
	err := client.SendTemplate(context.Background(), []Recipient{{Email: "amina@example.com", Name: "Amina"}}, TemplateVerification, map[string]any{"verificationLink": "https://app/verify-email?token=abc"})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if got.TemplateID != 1 || len(got.To) != 1 || got.To[0].Email != "amina@example.com" {
		t.Fatalf("unexpected payload %+v", got)
	}
	if got.Sender.Email != "no-reply@example.com" {
		t.Fatalf("unexpected sender %+v", got.Sender)
	}
	if got.Params["verificationLink"] != "https://app/verify-email?token=abc" {
		t.Fatalf("unexpected params %+v", got.Params)
	}
}

func TestBrevoClientMapsErrors(t *testing.T) {
	cases := []struct {
		status int
		want   error
	}{
		{http.StatusUnauthorized, ErrUnauthorized},
		{http.StatusBadRequest, ErrBadRequest},
		{http.StatusTooManyRequests, ErrRateLimited},
		{http.StatusInternalServerError, ErrDeliveryFailed},
	}
	for _, tc := range cases {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
			_, _ = w.Write([]byte(`{"code":"x","message":"nope"}`))
		}))
		client := NewBrevoClient(server.URL, "key", Recipient{Email: "a@b.c"}, server.Client())
		err := client.SendTemplate(context.Background(), []Recipient{{Email: "x@y.z"}}, TemplateApplicationStatus, nil)
		server.Close()
		if !errors.Is(err, tc.want) {
			t.Fatalf("status %d: expected %v, got %v", tc.status, tc.want, err)
		}
	}
}

func TestBrevoClientWithoutKey(t *testing.T) {
	client := NewBrevoClient("", "", Recipient{}, nil)
	if err := client.SendTemplate(context.Background(), []Recipient{{Email: "x@y.z"}}, TemplateVerification, nil); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

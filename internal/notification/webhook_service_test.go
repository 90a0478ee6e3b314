package notification

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWebhookNotifierSignsAndFilters(t *testing.T) {
	var (
		mu       sync.Mutex
		received []Event
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var evt Event
		if json.Unmarshal(body, &evt) != nil ||
			r.Header.Get("X-Webhook-Signature") != SignWebhookPayload(body, "s3cret") ||
			r.Header.Get("X-Source") != "contracthub" ||
			r.Header.Get("X-Webhook-Event") != string(evt.Type) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		mu.Lock()
		received = append(received, evt)
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	n := NewWebhookNotifier([]WebhookEndpoint{{
		URL:     server.URL,
		Secret:  "s3cret",
		Headers: map[string]string{"X-Source": "contracthub"},
		Events:  []EventType{EventContractStatusChanged},
	}})

	ctx := context.Background()
	now := time.Now()
	require.NoError(t, n.Notify(ctx, Event{Type: EventContractStatusChanged, ContractID: "c-1", ToStatus: "APPROVED", OccurredAt: now}))
	require.NoError(t, n.Notify(ctx, Event{Type: EventApprovalDecided, ContractID: "c-1", OccurredAt: now}))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, received, 1)
	require.Equal(t, "APPROVED", received[0].ToStatus)
}

func TestWebhookNotifierReportsFailures(t *testing.T) {
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer failing.Close()
	ok := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ok.Close()

	n := NewWebhookNotifier([]WebhookEndpoint{{URL: failing.URL}, {URL: ok.URL}},
		WithHTTPClient(&http.Client{Timeout: time.Second}))
	err := n.Notify(context.Background(), Event{Type: EventSignatureSigned, ContractID: "c-2"})
	require.Error(t, err)
	require.Contains(t, err.Error(), failing.URL)
	require.NotContains(t, err.Error(), ok.URL)

	// 未配置端点时为空操作
	require.NoError(t, NewWebhookNotifier(nil).Notify(context.Background(), Event{Type: EventSignatureSigned}))
}

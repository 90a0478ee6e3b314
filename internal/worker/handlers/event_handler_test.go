package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"contracthub/internal/notification"
	"contracthub/internal/worker/tasks"

	"github.com/hibiken/asynq"
	"go.uber.org/zap/zaptest"
)

type fakeNotifier struct {
	events []notification.Event
	retErr error
}

func (f *fakeNotifier) Notify(ctx context.Context, evt notification.Event) error {
	f.events = append(f.events, evt)
	return f.retErr
}

func TestEventHandlerHandleContractEvent_Success(t *testing.T) {
	notifier := &fakeNotifier{}
	h := NewEventHandler(notifier, zaptest.NewLogger(t))
	occurred := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	payload, _ := json.Marshal(notification.ToPayload(notification.Event{
		Type:       notification.EventContractStatusChanged,
		ContractID: "contract-1",
		FromStatus: "UNDER_REVIEW",
		ToStatus:   "APPROVED",
		OccurredAt: occurred,
	}))
	task := asynq.NewTask(tasks.TypeContractEvent, payload)
	if err := h.HandleContractEvent(context.Background(), task); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(notifier.events) != 1 {
		t.Fatalf("expected one delivered event, got %d", len(notifier.events))
	}
	evt := notifier.events[0]
	if evt.ContractID != "contract-1" || evt.ToStatus != "APPROVED" || !evt.OccurredAt.Equal(occurred) {
		t.Fatalf("event not restored correctly: %+v", evt)
	}
}

func TestEventHandlerHandleContractEvent_NotifyError(t *testing.T) {
	expectedErr := errors.New("smtp down")
	notifier := &fakeNotifier{retErr: expectedErr}
	h := NewEventHandler(notifier, zaptest.NewLogger(t))
	payload, _ := json.Marshal(tasks.ContractEventPayload{Type: "approval.decided", ContractID: "contract-2"})
	task := asynq.NewTask(tasks.TypeContractEvent, payload)
	if err := h.HandleContractEvent(context.Background(), task); !errors.Is(err, expectedErr) {
		t.Fatalf("expected error %v, got %v", expectedErr, err)
	}
}

func TestEventHandlerHandleContractEvent_InvalidPayload(t *testing.T) {
	notifier := &fakeNotifier{}
	h := NewEventHandler(notifier, zaptest.NewLogger(t))
	task := asynq.NewTask(tasks.TypeContractEvent, []byte("not-json"))
	err := h.HandleContractEvent(context.Background(), task)
	if err == nil {
		t.Fatalf("expected error for invalid payload")
	}
	if !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("invalid payload should not be retried: %v", err)
	}
	if len(notifier.events) != 0 {
		t.Fatalf("notifier should not be called when payload invalid")
	}
}

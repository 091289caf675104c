package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"newsbot/orchestrator"
	"newsbot/types"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
)

type fakeRunner struct {
	mu      sync.Mutex
	once    []string
	all     int
	onceErr error
}

func (f *fakeRunner) RunOnce(ctx context.Context, channel string) (*types.CycleReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.once = append(f.once, channel)
	if f.onceErr != nil {
		return nil, f.onceErr
	}
	return &types.CycleReport{Channel: channel, Counts: map[types.Outcome]int{types.OutcomeDelivered: 1}}, nil
}

func (f *fakeRunner) RunAll(ctx context.Context) map[string]error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.all++
	return nil
}

func TestTriggerHandlerRunsChannel(t *testing.T) {
	runner := &fakeRunner{}
	h := NewTriggerHandler(runner, nil)

	mark, err := h.HandleMessage(context.Background(), []byte(`{"channel":" breaking ","requested_by":"ops"}`))
	if err != nil || !mark {
		t.Fatalf("HandleMessage = %v, %v", mark, err)
	}
	if len(runner.once) != 1 || runner.once[0] != "breaking" {
		t.Fatalf("RunOnce calls = %v", runner.once)
	}

	if mark, _ := h.HandleMessage(context.Background(), []byte(`{"channel":"all"}`)); !mark || runner.all != 1 {
		t.Fatalf("all trigger should run every channel")
	}
}

func TestTriggerHandlerDropsUnknownAndBusyChannels(t *testing.T) {
	for _, sentinel := range []error{orchestrator.ErrUnknownChannel, orchestrator.ErrCycleInProgress} {
		runner := &fakeRunner{onceErr: fmt.Errorf("%w: x", sentinel)}
		mark, err := NewTriggerHandler(runner, nil).HandleMessage(context.Background(), []byte(`{"channel":"x"}`))
		if err != nil || !mark {
			t.Fatalf("%v: HandleMessage = %v, %v; want acknowledged", sentinel, mark, err)
		}
	}
}

func TestTriggerHandlerKeepsMessageOnShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	runner := &fakeRunner{onceErr: context.Canceled}
	mark, err := NewTriggerHandler(runner, nil).HandleMessage(ctx, []byte(`{"channel":"x"}`))
	if mark || !errors.Is(err, context.Canceled) {
		t.Fatalf("HandleMessage = %v, %v; want unmarked with context error", mark, err)
	}
}

func TestTypedMessageHandler(t *testing.T) {
	h := &TypedMessageHandler[TriggerCommand]{
		Validate:   func(msg *TriggerCommand) bool { return msg.Channel != "" },
		Process:    func(ctx context.Context, msg *TriggerCommand) error { return errors.New("boom") },
		AlwaysMark: true,
	}

	if mark, err := h.HandleMessage(context.Background(), []byte(`not json`)); !mark || err != nil {
		t.Fatalf("invalid JSON should be marked and skipped")
	}
	if mark, err := h.HandleMessage(context.Background(), []byte(`{}`)); !mark || err != nil {
		t.Fatalf("invalid message should be marked when AlwaysMark is set")
	}
	if mark, err := h.HandleMessage(context.Background(), []byte(`{"channel":"a"}`)); mark || err == nil {
		t.Fatalf("processing errors should leave the message unmarked")
	}
}

func TestProducerPublishDelivery(t *testing.T) {
	mp := mocks.NewSyncProducer(t, sarama.NewConfig())
	mp.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var ev types.DeliveryEvent
		if err := json.Unmarshal(val, &ev); err != nil {
			return err
		}
		if ev.ID == "" || ev.Hash != "abc" || !ev.Success {
			return fmt.Errorf("unexpected event %+v", ev)
		}
		return nil
	})
	mp.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	p := NewProducerWith(mp, "newsbot.deliveries", nil)
	if err := p.PublishDelivery(context.Background(), types.DeliveryEvent{Hash: "abc", Success: true}); err != nil {
		t.Fatalf("PublishDelivery: %v", err)
	}
	if err := p.PublishDelivery(context.Background(), types.DeliveryEvent{Hash: "def"}); !errors.Is(err, sarama.ErrOutOfBrokers) {
		t.Fatalf("err = %v; want ErrOutOfBrokers", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

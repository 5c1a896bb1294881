package events

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"

	"github.com/whatscommerce/whatscommerce/internal/models"
)

func TestPublishOrderCreated(t *testing.T) {
	mp := mocks.NewSyncProducer(t, mocks.NewTestConfig())
	mp.ExpectSendMessageWithCheckerFunctionAndSucceed(func(value []byte) error {
		var event OrderCreatedEvent
		if err := json.Unmarshal(value, &event); err != nil {
			return err
		}
		if event.OrderID != 1001 || event.PhoneNumber != "+10000000001" || event.Total != 40.00 {
			t.Errorf("unexpected event payload: %+v", event)
		}
		return nil
	})

	p := NewKafkaPublisherFromProducer(mp, "")
	order := models.Order{ID: 1001, Status: "pending", Total: 40.00}
	if err := p.PublishOrderCreated(context.Background(), order, "+10000000001"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("unexpected close error: %v", err)
	}
}

func TestPublishOrderCreatedFailure(t *testing.T) {
	mp := mocks.NewSyncProducer(t, mocks.NewTestConfig())
	mp.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	p := NewKafkaPublisherFromProducer(mp, "custom.topic")
	err := p.PublishOrderCreated(context.Background(), models.Order{ID: 1}, "+10000000001")
	if err == nil {
		t.Fatal("expected error when broker send fails")
	}
	if err := p.Close(); err != nil {
		t.Fatalf("unexpected close error: %v", err)
	}
}

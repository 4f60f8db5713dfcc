package listener

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fekuna/omnipos-retail-loader/internal/inventory"
	"github.com/fekuna/omnipos-retail-loader/internal/inventory/dto"
	"github.com/fekuna/omnipos-retail-loader/pkg/logger"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const (
	EventSaleRecorded     = "SaleRecorded"
	EventReturnRecorded   = "ReturnRecorded"
	EventDeliveryRecorded = "DeliveryRecorded"
)

type consumer interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
}

type InventoryListener struct {
	consumer consumer
	uc       inventory.UseCase
	logger   logger.ZapLogger
}

func NewInventoryListener(consumer consumer, uc inventory.UseCase, logger logger.ZapLogger) *InventoryListener {
	return &InventoryListener{
		consumer: consumer,
		uc:       uc,
		logger:   logger,
	}
}

func (l *InventoryListener) Start(ctx context.Context) {
	l.logger.Info("Starting Inventory Kafka Listener")
	for {
		select {
		case <-ctx.Done():
			l.logger.Info("Stopping Inventory Kafka Listener")
			return
		default:
			msg, err := l.consumer.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				l.logger.Error("Failed to read kafka message", zap.Error(err))
				time.Sleep(1 * time.Second)
				continue
			}
			if err := l.processMessage(ctx, msg.Value); err != nil {
				l.logger.Error("Failed to process inventory event",
					zap.Int64("offset", msg.Offset),
					zap.Error(err),
				)
			}
		}
	}
}

type Event struct {
	EventID   string          `json:"event_id"`
	EventType string          `json:"event_type"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

// processMessage applies one event. Redelivered events are harmless: the
// fact rows they carry are keyed, so a replay records nothing new.
func (l *InventoryListener) processMessage(ctx context.Context, value []byte) error {
	var event Event
	if err := json.Unmarshal(value, &event); err != nil {
		return fmt.Errorf("unmarshal event: %w", err)
	}

	var (
		result *inventory.Result
		err    error
	)
	switch event.EventType {
	case EventSaleRecorded:
		var p dto.SaleRecorded
		if err := json.Unmarshal(event.Payload, &p); err != nil {
			return fmt.Errorf("unmarshal %s payload: %w", event.EventType, err)
		}
		sale, items := p.Model()
		result, err = l.uc.RecordSale(ctx, sale, items)
	case EventReturnRecorded:
		var p dto.ReturnRecorded
		if err := json.Unmarshal(event.Payload, &p); err != nil {
			return fmt.Errorf("unmarshal %s payload: %w", event.EventType, err)
		}
		result, err = l.uc.RecordReturn(ctx, p.Model())
	case EventDeliveryRecorded:
		var p dto.DeliveryRecorded
		if err := json.Unmarshal(event.Payload, &p); err != nil {
			return fmt.Errorf("unmarshal %s payload: %w", event.EventType, err)
		}
		delivery, items := p.Model()
		result, err = l.uc.RecordDelivery(ctx, delivery, items)
	default:
		return nil
	}
	if err != nil {
		return fmt.Errorf("%s %s: %w", event.EventType, event.EventID, err)
	}

	l.logger.Info("Processed inventory event",
		zap.String("event_id", event.EventID),
		zap.String("event_type", event.EventType),
		zap.Bool("recorded", result.Recorded),
		zap.Int("inventories", len(result.Inventories)),
	)
	return nil
}

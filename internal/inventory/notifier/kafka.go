package notifier

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/fekuna/omnipos-retail-loader/internal/inventory"
)

const EventRestockNeeded = "RestockNeeded"

type publisher interface {
	Publish(ctx context.Context, key string, value []byte, headers map[string]string) error
}

// KafkaNotifier publishes restock transitions keyed by store and sku, so all
// events for one inventory row land on the same partition.
type KafkaNotifier struct {
	producer publisher
}

func NewKafkaNotifier(producer publisher) *KafkaNotifier {
	return &KafkaNotifier{producer: producer}
}

func (n *KafkaNotifier) NotifyRestockNeeded(ctx context.Context, event inventory.RestockEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal restock event: %w", err)
	}
	key := fmt.Sprintf("%d:%s", event.StoreID, event.SKU)
	return n.producer.Publish(ctx, key, value, map[string]string{"event_type": EventRestockNeeded})
}

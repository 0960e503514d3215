package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/autoparts/backend/internal/domain/exchange"
	"github.com/autoparts/backend/internal/domain/orders"
)

// ContractVersion is the version stamp of the outbound integration contract
const ContractVersion = "1.0"

// RawPublisher publishes a pre-serialized payload under a routing key.
// Satisfied by the queue publisher.
type RawPublisher interface {
	PublishRaw(ctx context.Context, routingKey string, body []byte) error
}

// integrationMessage is the stable versioned envelope consumed by the
// ERP-adjacent systems.
type integrationMessage struct {
	ContractVersion string     `json:"contract_version"`
	MessageType     string     `json:"message_type"`
	Timestamp       time.Time  `json:"timestamp"`
	OrderData       *orderData `json:"order_data,omitempty"`
	ReturnData      *orderData `json:"return_data,omitempty"`
}

type orderData struct {
	GUID     string          `json:"guid"`
	Number   string          `json:"number"`
	Status   string          `json:"status"`
	Paid     bool            `json:"paid"`
	Total    string          `json:"total"`
	Currency string          `json:"currency,omitempty"`
	Items    []orderItemData `json:"items,omitempty"`
}

type orderItemData struct {
	ProductGUID string `json:"product_guid"`
	Quantity    string `json:"quantity"`
	Price       string `json:"price"`
	Sum         string `json:"sum"`
}

// IntegrationPushService publishes order and return state changes to the
// integration queues. Pushes are side-effect reporting: a failure here must
// never abort the mutation that triggered it, so callers log and move on.
type IntegrationPushService struct {
	publisher RawPublisher
	now       func() time.Time
}

// NewIntegrationPushService creates a new IntegrationPushService
func NewIntegrationPushService(publisher RawPublisher) *IntegrationPushService {
	return &IntegrationPushService{publisher: publisher, now: time.Now}
}

// PushOrder publishes an order status change
func (s *IntegrationPushService) PushOrder(ctx context.Context, order *orders.Order) error {
	return s.push(ctx, exchange.JobOrdersIntegrationPush.String(), integrationMessage{
		ContractVersion: ContractVersion,
		MessageType:     "order_status_changed",
		Timestamp:       s.now().UTC(),
		OrderData:       buildOrderData(order),
	})
}

// PushReturn publishes an order return
func (s *IntegrationPushService) PushReturn(ctx context.Context, order *orders.Order) error {
	return s.push(ctx, exchange.JobReturnsIntegrationPush.String(), integrationMessage{
		ContractVersion: ContractVersion,
		MessageType:     "order_returned",
		Timestamp:       s.now().UTC(),
		ReturnData:      buildOrderData(order),
	})
}

func (s *IntegrationPushService) push(ctx context.Context, routingKey string, msg integrationMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal integration message: %w", err)
	}
	return s.publisher.PublishRaw(ctx, routingKey, body)
}

func buildOrderData(order *orders.Order) *orderData {
	data := &orderData{
		GUID:     order.GUID,
		Number:   order.Number,
		Status:   order.Status.String(),
		Paid:     order.Paid,
		Total:    order.Total.StringFixed(2),
		Currency: order.Currency,
	}
	for _, item := range order.Items {
		data.Items = append(data.Items, orderItemData{
			ProductGUID: item.ProductGUID,
			Quantity:    item.Quantity.StringFixed(2),
			Price:       item.Price.StringFixed(2),
			Sum:         item.Sum.StringFixed(2),
		})
	}
	return data
}

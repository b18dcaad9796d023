package event

import (
	"encoding/json"
	"fmt"
	"reflect"
	"slices"
	"sync"

	"github.com/wawire/RentCollectionApp-sub000/internal/domain/invoicing"
	"github.com/wawire/RentCollectionApp-sub000/internal/domain/shared"
)

// EventSerializer encodes domain events as JSON and decodes them back by type name
type EventSerializer struct {
	mu       sync.RWMutex
	registry map[string]reflect.Type
}

// NewEventSerializer creates a serializer that knows every billing event
func NewEventSerializer() *EventSerializer {
	s := &EventSerializer{registry: make(map[string]reflect.Type)}
	RegisterBillingEvents(s)
	return s
}

// RegisterBillingEvents registers the invoicing events for decoding
func RegisterBillingEvents(s *EventSerializer) {
	s.Register(invoicing.EventTypeInvoiceIssued, &invoicing.InvoiceIssuedEvent{})
	s.Register(invoicing.EventTypeInvoiceStatusChanged, &invoicing.InvoiceStatusChangedEvent{})
	s.Register(invoicing.EventTypeInvoiceVoided, &invoicing.InvoiceVoidedEvent{})
	s.Register(invoicing.EventTypePaymentCompleted, &invoicing.PaymentCompletedEvent{})
	s.Register(invoicing.EventTypePaymentRejected, &invoicing.PaymentRejectedEvent{})
	s.Register(invoicing.EventTypePaymentAllocated, &invoicing.PaymentAllocatedEvent{})
	s.Register(invoicing.EventTypeAllocationsReversed, &invoicing.AllocationsReversedEvent{})
}

// Register binds an event type name to the concrete struct behind it
func (s *EventSerializer) Register(eventType string, instance shared.DomainEvent) {
	t := reflect.TypeOf(instance)
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	s.mu.Lock()
	s.registry[eventType] = t
	s.mu.Unlock()
}

// Serialize encodes the event
func (s *EventSerializer) Serialize(event shared.DomainEvent) ([]byte, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s event: %w", event.EventType(), err)
	}
	return data, nil
}

// Deserialize decodes data into the struct registered for eventType
func (s *EventSerializer) Deserialize(eventType string, data []byte) (shared.DomainEvent, error) {
	s.mu.RLock()
	t, ok := s.registry[eventType]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown event type: %s", eventType)
	}

	ptr := reflect.New(t).Interface()
	if err := json.Unmarshal(data, ptr); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s event: %w", eventType, err)
	}
	event, ok := ptr.(shared.DomainEvent)
	if !ok {
		return nil, fmt.Errorf("%s does not implement DomainEvent", t)
	}
	return event, nil
}

// RegisteredTypes returns the registered event type names, sorted
func (s *EventSerializer) RegisteredTypes() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	types := make([]string, 0, len(s.registry))
	for t := range s.registry {
		types = append(types, t)
	}
	slices.Sort(types)
	return types
}

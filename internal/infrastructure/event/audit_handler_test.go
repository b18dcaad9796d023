package event

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/wawire/RentCollectionApp-sub000/internal/domain/invoicing"
)

func TestAuditLogHandler(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	h := NewAuditLogHandler(nil, zap.New(core))
	assert.Nil(t, h.EventTypes())

	event := rejected(t)
	require.NoError(t, h.Handle(context.Background(), event))

	entries := logs.FilterMessage("Billing event").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, invoicing.EventTypePaymentRejected, fields["event_type"])
	assert.Equal(t, event.AggregateID().String(), fields["aggregate_id"])

	raw, ok := fields["payload"].(json.RawMessage)
	require.True(t, ok)
	assert.Contains(t, string(raw), "insufficient funds")
}

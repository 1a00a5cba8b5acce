package registry

import (
	"encoding/json"
	"testing"

	"github.com/agrilink/agrilink-backend/pkg/enums"
	"github.com/agrilink/agrilink-backend/pkg/outbox/payloads"
)

func TestDecoderRegistryRoundTrip(t *testing.T) {
	reg := NewDecoderRegistry()
	reg.Register(enums.EventPaymentFailed, 1, func(payload json.RawMessage) (interface{}, error) {
		var decoded payloads.PaymentFailedEvent
		if err := json.Unmarshal(payload, &decoded); err != nil {
			return nil, err
		}
		return &decoded, nil
	})

	input := json.RawMessage(`{"reason":"card_declined"}`)
	output, err := reg.Decode(enums.EventPaymentFailed, 1, input)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	decoded, ok := output.(*payloads.PaymentFailedEvent)
	if !ok {
		t.Fatalf("unexpected type %T", output)
	}
	if decoded.Reason != "card_declined" {
		t.Fatalf("unexpected reason %q", decoded.Reason)
	}
}

func TestDecoderRegistryUnknownVersion(t *testing.T) {
	reg := NewDecoderRegistry()
	if _, err := reg.Decode(enums.EventPaymentFailed, 2, json.RawMessage(`{}`)); err == nil {
		t.Fatal("expected error for unregistered decoder")
	}
}

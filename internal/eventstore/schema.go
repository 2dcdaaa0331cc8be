package eventstore

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/retail-reco/core/internal/domain"
)

var eventValidate = validator.New()

type productRefData struct {
	ProductID string `validate:"required"`
}

type searchData struct {
	Query string `validate:"required"`
}

type conversationIntentData struct {
	Intent string `validate:"required"`
}

// validateEventData enforces the minimal per-type schema described in spec
// §4.6: each event type requires specific fields in data, rejecting anything
// missing or of the wrong shape. Required fields are expressed as
// struct-tag validation on small per-type structs rather than hand-rolled
// field checks.
func validateEventData(eventType domain.EventType, data map[string]any) error {
	switch eventType {
	case domain.EventView, domain.EventAddToCart, domain.EventPurchase:
		productID, _ := stringField(data, "product_id")
		if err := eventValidate.Struct(productRefData{ProductID: productID}); err != nil {
			return fmt.Errorf("%w: %s requires product_id: %v", domain.ErrSchemaInvalid, eventType, err)
		}
	case domain.EventSearch:
		query, _ := stringField(data, "query")
		if err := eventValidate.Struct(searchData{Query: query}); err != nil {
			return fmt.Errorf("%w: search requires query: %v", domain.ErrSchemaInvalid, err)
		}
	case domain.EventConversationIntent:
		intent, _ := stringField(data, "intent")
		if err := eventValidate.Struct(conversationIntentData{Intent: intent}); err != nil {
			return fmt.Errorf("%w: conversation_intent requires intent: %v", domain.ErrSchemaInvalid, err)
		}
	case domain.EventGeneric:
		// No required fields.
	default:
		return fmt.Errorf("%w: unknown event type %q", domain.ErrSchemaInvalid, eventType)
	}
	return nil
}

func stringField(data map[string]any, key string) (string, bool) {
	v, ok := data[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

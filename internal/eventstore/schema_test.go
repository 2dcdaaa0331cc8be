package eventstore

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/retail-reco/core/internal/domain"
)

func TestValidateEventData_RequiresProductIDForViewAddCartPurchase(t *testing.T) {
	for _, et := range []domain.EventType{domain.EventView, domain.EventAddToCart, domain.EventPurchase} {
		require.ErrorIs(t, validateEventData(et, map[string]any{}), domain.ErrSchemaInvalid)
		require.NoError(t, validateEventData(et, map[string]any{"product_id": "p1"}))
	}
}

func TestValidateEventData_RequiresQueryForSearch(t *testing.T) {
	require.ErrorIs(t, validateEventData(domain.EventSearch, map[string]any{}), domain.ErrSchemaInvalid)
	require.NoError(t, validateEventData(domain.EventSearch, map[string]any{"query": "shoes"}))
}

func TestValidateEventData_RequiresIntentForConversationIntent(t *testing.T) {
	require.ErrorIs(t, validateEventData(domain.EventConversationIntent, map[string]any{}), domain.ErrSchemaInvalid)
	require.NoError(t, validateEventData(domain.EventConversationIntent, map[string]any{"intent": "browse"}))
}

func TestValidateEventData_GenericHasNoRequiredFields(t *testing.T) {
	require.NoError(t, validateEventData(domain.EventGeneric, map[string]any{}))
}

func TestValidateEventData_UnknownTypeRejected(t *testing.T) {
	require.ErrorIs(t, validateEventData(domain.EventType("bogus"), map[string]any{}), domain.ErrSchemaInvalid)
}

func TestValidateEventData_RejectsNonStringOrEmptyField(t *testing.T) {
	require.ErrorIs(t, validateEventData(domain.EventView, map[string]any{"product_id": 42}), domain.ErrSchemaInvalid)
	require.ErrorIs(t, validateEventData(domain.EventView, map[string]any{"product_id": ""}), domain.ErrSchemaInvalid)
}

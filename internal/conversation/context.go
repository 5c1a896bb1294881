package conversation

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/whatscommerce/whatscommerce/internal/cart"
	"github.com/whatscommerce/whatscommerce/internal/models"
)

// setJSON stores a JSON-encoded value under a context key.
func setJSON(rec *models.ConversationRecord, key models.DataKey, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode context value %q: %w", key, err)
	}
	rec.Context[key] = string(data)
	return nil
}

// getJSON decodes the value under a context key into v. The boolean reports
// whether the key was present.
func getJSON(rec *models.ConversationRecord, key models.DataKey, v any) (bool, error) {
	raw, ok := rec.Context[key]
	if !ok || raw == "" {
		return false, nil
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return true, fmt.Errorf("failed to decode context value %q: %w", key, err)
	}
	return true, nil
}

// loadCart restores the conversation's cart, returning an empty cart when the
// context has none.
func loadCart(rec *models.ConversationRecord) (*cart.Cart, error) {
	c := cart.New()
	if _, err := getJSON(rec, models.DataKeyCart, c); err != nil {
		return nil, err
	}
	return c, nil
}

// saveCart writes the cart back into the context, dropping the key when empty.
func saveCart(rec *models.ConversationRecord, c *cart.Cart) error {
	if c.Len() == 0 {
		delete(rec.Context, models.DataKeyCart)
		return nil
	}
	return setJSON(rec, models.DataKeyCart, c)
}

// customerID reads the linked commerce customer id from the context.
func customerID(rec *models.ConversationRecord) (int64, bool) {
	raw, ok := rec.Context[models.DataKeyCustomerID]
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// clearFlowContext drops the transient shopping keys but keeps the account
// link, so a reset conversation does not re-register the user.
func clearFlowContext(rec *models.ConversationRecord) {
	delete(rec.Context, models.DataKeySearchResults)
	delete(rec.Context, models.DataKeyCart)
	delete(rec.Context, models.DataKeyPendingOrderID)
	delete(rec.Context, models.DataKeyRepeatOrderID)
}

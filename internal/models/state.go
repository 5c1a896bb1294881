// Package models defines conversation state structures for WhatsCommerce.
package models

import "time"

// StateType represents a conversation state. The set is closed and
// terminal-free: INITIAL doubles as the post-completion resting state.
type StateType string

const (
	StateInitial          StateType = "initial"
	StateRegistration     StateType = "registration"
	StateMenu             StateType = "menu"
	StateSearching        StateType = "searching"
	StateSelectingProduct StateType = "selecting_product"
	StateConfirmingOrder  StateType = "confirming_order"
	StatePayment          StateType = "payment"
)

// IsValidState reports whether s is one of the defined conversation states.
func IsValidState(s StateType) bool {
	switch s {
	case StateInitial, StateRegistration, StateMenu, StateSearching,
		StateSelectingProduct, StateConfirmingOrder, StatePayment:
		return true
	}
	return false
}

// DataKey identifies a value stored in a conversation's context document.
type DataKey string

const (
	// DataKeySearchResults holds the JSON-encoded numbered result set the
	// user is selecting from.
	DataKeySearchResults DataKey = "search_results"
	// DataKeyCart holds the JSON-encoded cart contents.
	DataKeyCart DataKey = "cart"
	// DataKeyPendingOrderID holds the identifier of an order awaiting payment.
	DataKeyPendingOrderID DataKey = "pending_order_id"
	// DataKeyRepeatOrderID holds the identifier of a previous order the user
	// may choose to repeat from the main menu.
	DataKeyRepeatOrderID DataKey = "repeat_order_id"
	// DataKeyUserID holds the commerce backend user linked to this conversation.
	DataKeyUserID DataKey = "user_id"
	// DataKeyCustomerID holds the commerce backend customer linked to this conversation.
	DataKeyCustomerID DataKey = "customer_id"
)

// ConversationRecord is the persisted state of one conversation, keyed by
// phone number. Exactly one record exists per phone number; absence of a
// record is equivalent to StateInitial with empty context.
type ConversationRecord struct {
	PhoneNumber string             `json:"phone_number"`
	State       StateType          `json:"state"`
	Context     map[DataKey]string `json:"context,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

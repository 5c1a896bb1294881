// Package users provides the user directory consumed during registration:
// linking WhatsApp phone numbers to commerce backend customers.
package users

import (
	"context"

	"github.com/whatscommerce/whatscommerce/internal/models"
)

// Directory is the narrow interface the conversation engine depends on.
type Directory interface {
	// FindOrCreate returns the account linked to a phone number, creating it
	// on first registration.
	FindOrCreate(ctx context.Context, phoneNumber string) (models.UserAccount, error)
}

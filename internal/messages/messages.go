// Package messages provides the outgoing message template catalog for WhatsCommerce.
//
// Templates map a symbolic key to a text pattern with named {param}
// placeholders. Administrators may override defaults at runtime; the
// conversation engine only reads them.
package messages

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

// Template keys used by the conversation engine.
const (
	KeyWelcome             = "welcome"
	KeyRegistrationNeeded  = "registration_needed"
	KeyRegistrationSuccess = "registration_success"
	KeyRegistrationDecline = "registration_decline"
	KeyMainMenu            = "main_menu"
	KeyNoPreviousOrder     = "no_previous_order"
	KeyPreviousOrderFound  = "previous_order_found"
	KeyOrderStatus         = "order_status"
	KeyHumanHandoff        = "human_handoff"
	KeyProductSearch       = "product_search"
	KeyNoProductsFound     = "no_products_found"
	KeyProductList         = "product_list"
	KeyAddToCartSuccess    = "add_to_cart_success"
	KeyCartEmpty           = "cart_empty"
	KeyStockError          = "stock_error"
	KeyInvalidOption       = "invalid_option"
	KeyConfirmOrder        = "confirm_order"
	KeyOrderConfirmed      = "order_confirmed"
	KeyPaymentInstructions = "payment_instructions"
	KeyOrderComplete       = "order_complete"
	KeyOrderCancelled      = "order_cancelled"
	KeyError               = "error"
)

// defaultTemplates returns the stock template set. Texts follow the store's
// customer-facing Spanish copy.
func defaultTemplates() map[string]string {
	return map[string]string{
		KeyWelcome: "¡Bienvenido a nuestra tienda! 🛍️\n\n" +
			"Para continuar, necesitamos registrar tu número. " +
			"¿Aceptas nuestros términos y condiciones? (Si/No)",

		KeyRegistrationNeeded: "Para continuar, necesitamos registrar tu número. " +
			"¿Aceptas nuestros términos y condiciones? (Si/No)",

		KeyRegistrationSuccess: "¡Gracias por registrarte! 🎉",

		KeyRegistrationDecline: "Entendido. No podremos procesar pedidos sin tu registro. " +
			"Escribe \"Si\" cuando quieras continuar.",

		KeyMainMenu: "¿Qué te gustaría hacer?\n\n" +
			"1️⃣ Repetir último pedido\n" +
			"2️⃣ Buscar productos\n" +
			"3️⃣ Ver estado de mi pedido\n" +
			"4️⃣ Hablar con un asesor",

		KeyNoPreviousOrder: "No encontramos pedidos anteriores. " +
			"¿Qué producto te gustaría buscar?",

		KeyPreviousOrderFound: "Aquí está tu último pedido:\n\n{order_summary}\n\n" +
			"¿Te gustaría repetir este pedido? (Si/No)",

		KeyOrderStatus: "Este es el estado de tu último pedido:\n\n{order_summary}",

		KeyHumanHandoff: "Un asesor se pondrá en contacto contigo pronto. 🙋\n" +
			"Mientras tanto, puedes seguir usando el menú.",

		KeyProductSearch: "¿Qué producto estás buscando? " +
			"Puedes escribir el nombre o una descripción.",

		KeyNoProductsFound: "Lo siento, no encontramos productos que coincidan " +
			"con tu búsqueda. ¿Podrías intentar con otros términos?",

		KeyProductList: "Productos encontrados:\n\n{product_list}\n" +
			"Envía el número del producto que te interesa.",

		KeyAddToCartSuccess: "✅ ¡Producto agregado al carrito!",

		KeyCartEmpty: "Tu carrito está vacío. Escribe el nombre de un producto para buscarlo.",

		KeyStockError: "❌ Lo siento, no hay suficiente stock de ese producto. " +
			"Elige otro número de la lista.",

		KeyInvalidOption: "Opción no válida. Por favor elige una de las opciones del menú.",

		KeyConfirmOrder: "Por favor revisa tu pedido:\n\n{cart_summary}\n\n" +
			"1️⃣ Confirmar pedido\n2️⃣ Modificar pedido\n3️⃣ Cancelar pedido",

		KeyOrderConfirmed: "🎉 ¡Tu pedido #{order_number} ha sido confirmado!",

		KeyPaymentInstructions: "🎉 ¡Tu pedido #{order_number} ha sido confirmado!\n\n" +
			"Para completar tu pedido, realiza el pago mediante:\n\n" +
			"1️⃣ Transferencia bancaria\n" +
			"2️⃣ Pago en línea\n" +
			"3️⃣ Pago contra entrega",

		KeyOrderComplete: "¡Gracias por tu compra! 🙏\n" +
			"Te notificaremos cuando tu pedido #{order_number} esté en camino.",

		KeyOrderCancelled: "Tu pedido ha sido cancelado y el carrito está vacío. " +
			"Escríbenos cuando quieras empezar de nuevo.",

		KeyError: "Lo siento, ocurrió un error. Por favor, intenta nuevamente " +
			"o contacta a nuestro soporte.",
	}
}

// Catalog holds the template set. Safe for concurrent use.
type Catalog struct {
	mu        sync.RWMutex
	templates map[string]string
}

// NewCatalog creates a Catalog populated with the default templates.
func NewCatalog() *Catalog {
	return &Catalog{templates: defaultTemplates()}
}

// Render resolves a template by key and substitutes {param} placeholders.
// An unknown key is an error; a placeholder without a matching param is left
// literal so the omission is visible rather than fatal.
func (c *Catalog) Render(key string, params map[string]string) (string, error) {
	c.mu.RLock()
	tmpl, ok := c.templates[key]
	c.mu.RUnlock()
	if !ok {
		slog.Error("Catalog.Render: unknown template key", "key", key)
		return "", fmt.Errorf("unknown message template %q", key)
	}

	msg := tmpl
	for param, value := range params {
		msg = strings.ReplaceAll(msg, "{"+param+"}", value)
	}
	return msg, nil
}

// Set overrides a template. Empty keys or templates are rejected.
func (c *Catalog) Set(key, template string) error {
	if key == "" || template == "" {
		slog.Warn("Catalog.Set: rejected empty key or template", "key", key)
		return fmt.Errorf("template key and body must be non-empty")
	}
	c.mu.Lock()
	c.templates[key] = template
	c.mu.Unlock()
	slog.Info("Catalog.Set: template overridden", "key", key)
	return nil
}

// All returns a copy of the current template set.
func (c *Catalog) All() map[string]string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]string, len(c.templates))
	for k, v := range c.templates {
		out[k] = v
	}
	return out
}

// RestoreDefaults discards all overrides.
func (c *Catalog) RestoreDefaults() {
	c.mu.Lock()
	c.templates = defaultTemplates()
	c.mu.Unlock()
	slog.Info("Catalog.RestoreDefaults: default templates restored")
}

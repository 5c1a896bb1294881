package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/whatscommerce/whatscommerce/internal/cart"
	"github.com/whatscommerce/whatscommerce/internal/catalog"
	"github.com/whatscommerce/whatscommerce/internal/messages"
	"github.com/whatscommerce/whatscommerce/internal/models"
	"github.com/whatscommerce/whatscommerce/internal/orders"
	"github.com/whatscommerce/whatscommerce/internal/users"
)

const (
	// DefaultSessionTimeout resets an idle conversation to the initial state.
	DefaultSessionTimeout = 30 * time.Minute
	// DefaultMaxSearchResults caps the numbered product list.
	DefaultMaxSearchResults = 5
)

// Opts holds engine configuration.
type Opts struct {
	SessionTimeout   time.Duration
	MaxSearchResults int
	// TransitionHook is invoked on every state change (used for metrics).
	TransitionHook func(from, to models.StateType)
}

// Option configures Opts.
type Option func(*Opts)

// WithSessionTimeout overrides the idle timeout.
func WithSessionTimeout(d time.Duration) Option {
	return func(o *Opts) { o.SessionTimeout = d }
}

// WithMaxSearchResults overrides the product list cap.
func WithMaxSearchResults(n int) Option {
	return func(o *Opts) { o.MaxSearchResults = n }
}

// WithTransitionHook registers a state change observer.
func WithTransitionHook(hook func(from, to models.StateType)) Option {
	return func(o *Opts) { o.TransitionHook = hook }
}

// Engine drives conversations: one inbound message in, one reply out, with
// the state transition persisted atomically in between.
type Engine struct {
	manager  *Manager
	users    users.Directory
	catalog  catalog.Gateway
	orders   *orders.Assembly
	messages *messages.Catalog
	opts     Opts
	locks    *phoneLocks
}

// NewEngine wires the conversation engine.
func NewEngine(manager *Manager, directory users.Directory, gw catalog.Gateway, assembly *orders.Assembly, catalogMsgs *messages.Catalog, opts ...Option) *Engine {
	cfg := Opts{SessionTimeout: DefaultSessionTimeout, MaxSearchResults: DefaultMaxSearchResults}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Engine{
		manager:  manager,
		users:    directory,
		catalog:  gw,
		orders:   assembly,
		messages: catalogMsgs,
		opts:     cfg,
		locks:    newPhoneLocks(),
	}
}

// HandleMessage processes one inbound message and returns the reply text.
// Messages from the same phone number are serialized; a returned error means
// the conversation could not be loaded or saved and nothing was replied.
func (e *Engine) HandleMessage(ctx context.Context, phoneNumber, text string, now time.Time) (string, error) {
	lock := e.locks.get(phoneNumber)
	lock.Lock()
	defer lock.Unlock()

	rec, err := e.manager.Current(phoneNumber, now)
	if err != nil {
		return "", err
	}

	if rec.State != models.StateInitial && now.Sub(rec.UpdatedAt) > e.opts.SessionTimeout {
		slog.Info("Engine.HandleMessage session expired",
			"phone", phoneNumber, "state", rec.State, "idle", now.Sub(rec.UpdatedAt))
		e.transition(&rec, models.StateInitial)
		clearFlowContext(&rec)
	}

	reply, err := e.dispatch(ctx, &rec, text)
	if err != nil {
		return "", err
	}
	if err := e.manager.Save(rec, now); err != nil {
		return "", err
	}
	slog.Debug("Engine.HandleMessage handled", "phone", phoneNumber, "state", rec.State)
	return reply, nil
}

func (e *Engine) dispatch(ctx context.Context, rec *models.ConversationRecord, text string) (string, error) {
	switch rec.State {
	case models.StateInitial:
		return e.handleInitial(ctx, rec)
	case models.StateRegistration:
		return e.handleRegistration(rec, text)
	case models.StateMenu:
		return e.handleMenu(ctx, rec, text)
	case models.StateSearching:
		return e.handleSearching(ctx, rec, text)
	case models.StateSelectingProduct:
		return e.handleSelectingProduct(ctx, rec, text)
	case models.StateConfirmingOrder:
		return e.handleConfirmingOrder(ctx, rec, text)
	case models.StatePayment:
		return e.handlePayment(rec, text)
	}
	// Unknown persisted state, likely written by a newer version. Reset.
	slog.Warn("Engine.dispatch resetting unknown state", "phone", rec.PhoneNumber, "state", rec.State)
	e.transition(rec, models.StateInitial)
	clearFlowContext(rec)
	return e.handleInitial(ctx, rec)
}

func (e *Engine) transition(rec *models.ConversationRecord, to models.StateType) {
	if rec.State == to {
		return
	}
	if e.opts.TransitionHook != nil {
		e.opts.TransitionHook(rec.State, to)
	}
	rec.State = to
}

// handleInitial links the phone number to a commerce account. New accounts go
// through registration; returning customers land directly on the menu.
func (e *Engine) handleInitial(ctx context.Context, rec *models.ConversationRecord) (string, error) {
	account, err := e.users.FindOrCreate(ctx, rec.PhoneNumber)
	if err != nil {
		slog.Error("Engine.handleInitial account lookup failed", "error", err, "phone", rec.PhoneNumber)
		return e.messages.Render(messages.KeyError, nil)
	}
	rec.Context[models.DataKeyUserID] = strconv.FormatInt(account.UserID, 10)
	rec.Context[models.DataKeyCustomerID] = strconv.FormatInt(account.CustomerID, 10)

	if account.IsNew {
		e.transition(rec, models.StateRegistration)
		return e.messages.Render(messages.KeyWelcome, nil)
	}
	e.transition(rec, models.StateMenu)
	return e.messages.Render(messages.KeyMainMenu, nil)
}

func (e *Engine) handleRegistration(rec *models.ConversationRecord, text string) (string, error) {
	switch {
	case isYes(text):
		e.transition(rec, models.StateMenu)
		success, err := e.messages.Render(messages.KeyRegistrationSuccess, nil)
		if err != nil {
			return "", err
		}
		menu, err := e.messages.Render(messages.KeyMainMenu, nil)
		if err != nil {
			return "", err
		}
		return success + "\n\n" + menu, nil
	case isNo(text):
		return e.messages.Render(messages.KeyRegistrationDecline, nil)
	default:
		return e.messages.Render(messages.KeyRegistrationNeeded, nil)
	}
}

func (e *Engine) handleMenu(ctx context.Context, rec *models.ConversationRecord, text string) (string, error) {
	if _, pending := rec.Context[models.DataKeyRepeatOrderID]; pending {
		if reply, handled, err := e.handleRepeatAnswer(ctx, rec, text); handled {
			return reply, err
		}
		delete(rec.Context, models.DataKeyRepeatOrderID)
	}

	switch normalize(text) {
	case "1":
		return e.offerLastOrder(ctx, rec)
	case "2":
		e.transition(rec, models.StateSearching)
		return e.messages.Render(messages.KeyProductSearch, nil)
	case "3":
		return e.lastOrderStatus(ctx, rec)
	case "4":
		return e.messages.Render(messages.KeyHumanHandoff, nil)
	default:
		invalid, err := e.messages.Render(messages.KeyInvalidOption, nil)
		if err != nil {
			return "", err
		}
		menu, err := e.messages.Render(messages.KeyMainMenu, nil)
		if err != nil {
			return "", err
		}
		return invalid + "\n\n" + menu, nil
	}
}

// handleRepeatAnswer resolves the yes/no follow-up after the user's last
// order was offered for repetition. The boolean reports whether the message
// was consumed.
func (e *Engine) handleRepeatAnswer(ctx context.Context, rec *models.ConversationRecord, text string) (string, bool, error) {
	switch {
	case isYes(text):
		delete(rec.Context, models.DataKeyRepeatOrderID)
		custID, ok := customerID(rec)
		if !ok {
			reply, err := e.messages.Render(messages.KeyError, nil)
			return reply, true, err
		}
		last, err := e.orders.LastOrder(ctx, custID)
		if err != nil {
			reply, rerr := e.messages.Render(messages.KeyError, nil)
			return reply, true, rerr
		}
		c, err := loadCart(rec)
		if err != nil {
			return "", true, err
		}
		for _, line := range last.Lines {
			if err := c.Add(ctx, e.catalog, line.ProductID, line.Quantity); err != nil {
				slog.Warn("Engine.handleRepeatAnswer skipping unavailable line",
					"error", err, "phone", rec.PhoneNumber, "product_id", line.ProductID)
			}
		}
		if c.Len() == 0 {
			reply, err := e.messages.Render(messages.KeyStockError, nil)
			return reply, true, err
		}
		if err := saveCart(rec, c); err != nil {
			return "", true, err
		}
		e.transition(rec, models.StateConfirmingOrder)
		reply, err := e.messages.Render(messages.KeyConfirmOrder,
			map[string]string{"cart_summary": orders.CartSummary(ctx, c, e.catalog)})
		return reply, true, err
	case isNo(text):
		delete(rec.Context, models.DataKeyRepeatOrderID)
		reply, err := e.messages.Render(messages.KeyMainMenu, nil)
		return reply, true, err
	default:
		return "", false, nil
	}
}

func (e *Engine) offerLastOrder(ctx context.Context, rec *models.ConversationRecord) (string, error) {
	custID, ok := customerID(rec)
	if !ok {
		return e.messages.Render(messages.KeyError, nil)
	}
	last, err := e.orders.LastOrder(ctx, custID)
	if errors.Is(err, models.ErrNotFound) {
		e.transition(rec, models.StateSearching)
		return e.messages.Render(messages.KeyNoPreviousOrder, nil)
	}
	if err != nil {
		slog.Error("Engine.offerLastOrder lookup failed", "error", err, "phone", rec.PhoneNumber)
		return e.messages.Render(messages.KeyError, nil)
	}
	rec.Context[models.DataKeyRepeatOrderID] = strconv.FormatInt(last.ID, 10)
	return e.messages.Render(messages.KeyPreviousOrderFound,
		map[string]string{"order_summary": orders.Summary(*last)})
}

func (e *Engine) lastOrderStatus(ctx context.Context, rec *models.ConversationRecord) (string, error) {
	custID, ok := customerID(rec)
	if !ok {
		return e.messages.Render(messages.KeyError, nil)
	}
	last, err := e.orders.LastOrder(ctx, custID)
	if errors.Is(err, models.ErrNotFound) {
		e.transition(rec, models.StateSearching)
		return e.messages.Render(messages.KeyNoPreviousOrder, nil)
	}
	if err != nil {
		slog.Error("Engine.lastOrderStatus lookup failed", "error", err, "phone", rec.PhoneNumber)
		return e.messages.Render(messages.KeyError, nil)
	}
	return e.messages.Render(messages.KeyOrderStatus,
		map[string]string{"order_summary": orders.Summary(*last)})
}

func (e *Engine) handleSearching(ctx context.Context, rec *models.ConversationRecord, text string) (string, error) {
	term := strings.TrimSpace(text)
	if term == "" {
		return e.messages.Render(messages.KeyProductSearch, nil)
	}

	products, err := e.catalog.Search(ctx, term, e.opts.MaxSearchResults)
	if err != nil {
		slog.Error("Engine.handleSearching search failed", "error", err, "phone", rec.PhoneNumber, "term", term)
		return e.messages.Render(messages.KeyError, nil)
	}
	if len(products) == 0 {
		return e.messages.Render(messages.KeyNoProductsFound, nil)
	}

	var list strings.Builder
	for i, p := range products {
		fmt.Fprintf(&list, "%d. %s - $%.2f\n", i+1, p.Name, p.Price)
	}
	if err := setJSON(rec, models.DataKeySearchResults, products); err != nil {
		return "", err
	}
	e.transition(rec, models.StateSelectingProduct)
	return e.messages.Render(messages.KeyProductList,
		map[string]string{"product_list": list.String()})
}

func (e *Engine) handleSelectingProduct(ctx context.Context, rec *models.ConversationRecord, text string) (string, error) {
	var results []models.Product
	ok, err := getJSON(rec, models.DataKeySearchResults, &results)
	if err != nil {
		return "", err
	}
	if !ok || len(results) == 0 {
		e.transition(rec, models.StateSearching)
		return e.messages.Render(messages.KeyProductSearch, nil)
	}

	n, valid := parseIndex(text)
	if !valid || n > len(results) {
		return e.messages.Render(messages.KeyInvalidOption, nil)
	}
	product := results[n-1]

	c, err := loadCart(rec)
	if err != nil {
		return "", err
	}
	if err := c.Add(ctx, e.catalog, product.ID, 1); err != nil {
		if errors.Is(err, models.ErrOutOfStock) || errors.Is(err, models.ErrNotFound) {
			return e.messages.Render(messages.KeyStockError, nil)
		}
		slog.Error("Engine.handleSelectingProduct add failed", "error", err, "phone", rec.PhoneNumber, "product_id", product.ID)
		return e.messages.Render(messages.KeyError, nil)
	}
	if err := saveCart(rec, c); err != nil {
		return "", err
	}
	delete(rec.Context, models.DataKeySearchResults)
	e.transition(rec, models.StateConfirmingOrder)

	added, err := e.messages.Render(messages.KeyAddToCartSuccess, nil)
	if err != nil {
		return "", err
	}
	confirm, err := e.messages.Render(messages.KeyConfirmOrder,
		map[string]string{"cart_summary": orders.CartSummary(ctx, c, e.catalog)})
	if err != nil {
		return "", err
	}
	return added + "\n\n" + confirm, nil
}

func (e *Engine) handleConfirmingOrder(ctx context.Context, rec *models.ConversationRecord, text string) (string, error) {
	c, err := loadCart(rec)
	if err != nil {
		return "", err
	}

	switch input := normalize(text); {
	case input == "confirmar" || input == "1" || isYes(input):
		return e.confirmOrder(ctx, rec, c)
	case input == "modificar" || input == "2":
		e.transition(rec, models.StateSearching)
		return e.messages.Render(messages.KeyProductSearch, nil)
	case input == "cancelar" || input == "3" || isNo(input):
		clearFlowContext(rec)
		e.transition(rec, models.StateInitial)
		return e.messages.Render(messages.KeyOrderCancelled, nil)
	default:
		return e.messages.Render(messages.KeyConfirmOrder,
			map[string]string{"cart_summary": orders.CartSummary(ctx, c, e.catalog)})
	}
}

func (e *Engine) confirmOrder(ctx context.Context, rec *models.ConversationRecord, c *cart.Cart) (string, error) {
	custID, ok := customerID(rec)
	if !ok {
		return e.messages.Render(messages.KeyError, nil)
	}
	order, err := e.orders.Create(ctx, custID, c, rec.PhoneNumber)
	if errors.Is(err, models.ErrEmptyCart) {
		clearFlowContext(rec)
		e.transition(rec, models.StateSearching)
		return e.messages.Render(messages.KeyCartEmpty, nil)
	}
	if err != nil {
		slog.Error("Engine.confirmOrder order creation failed", "error", err, "phone", rec.PhoneNumber)
		return e.messages.Render(messages.KeyError, nil)
	}

	c.Clear()
	if err := saveCart(rec, c); err != nil {
		return "", err
	}
	delete(rec.Context, models.DataKeySearchResults)
	rec.Context[models.DataKeyPendingOrderID] = strconv.FormatInt(order.ID, 10)
	e.transition(rec, models.StatePayment)
	return e.messages.Render(messages.KeyPaymentInstructions,
		map[string]string{"order_number": strconv.FormatInt(order.ID, 10)})
}

// handlePayment treats any reply as acknowledgment: the order is already
// placed, so whatever the user sends closes the exchange and returns the
// conversation to the start.
func (e *Engine) handlePayment(rec *models.ConversationRecord, text string) (string, error) {
	orderNumber := rec.Context[models.DataKeyPendingOrderID]
	delete(rec.Context, models.DataKeyPendingOrderID)
	e.transition(rec, models.StateInitial)
	return e.messages.Render(messages.KeyOrderComplete,
		map[string]string{"order_number": orderNumber})
}

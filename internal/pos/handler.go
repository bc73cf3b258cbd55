package pos

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/aquamarinepk/aqm"
	"github.com/aquamarinepk/aqm/telemetry"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const MaxBodyBytes = 1 << 20

// Handler exposes the counter core to the presentation layer.
type Handler struct {
	logger      aqm.Logger
	config      *aqm.Config
	tlm         *telemetry.HTTP
	authnClient *aqm.ServiceClient
	sessions    *SessionStore
	carts       *CartStore
	orders      *OrderCollection
	sync        *Synchronizer
	menuData    *MenuDataAccess
	orderData   *OrderDataAccess
	billingData *BillingDataAccess
	billing     *BillingService
	hub         *NoticeHub
	sseHandler  http.Handler
}

// HandlerDeps bundles the collaborators main wires together.
type HandlerDeps struct {
	Sessions     *SessionStore
	Carts        *CartStore
	Orders       *OrderCollection
	Synchronizer *Synchronizer
	MenuData     *MenuDataAccess
	OrderData    *OrderDataAccess
	BillingData  *BillingDataAccess
	Billing      *BillingService
	Hub          *NoticeHub
}

func NewHandler(hd HandlerDeps, config *aqm.Config, logger aqm.Logger) *Handler {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}

	authnURL, _ := config.GetString("services.authn.url")
	authnClient := aqm.NewServiceClient(authnURL)

	return &Handler{
		logger:      logger,
		config:      config,
		tlm:         telemetry.NewHTTP(),
		authnClient: authnClient,
		sessions:    hd.Sessions,
		carts:       hd.Carts,
		orders:      hd.Orders,
		sync:        hd.Synchronizer,
		menuData:    hd.MenuData,
		orderData:   hd.OrderData,
		billingData: hd.BillingData,
		billing:     hd.Billing,
		hub:         hd.Hub,
	}
}

// SetSSEHandler attaches the event stream endpoint.
func (h *Handler) SetSSEHandler(sse http.Handler) {
	h.sseHandler = sse
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/signin", h.HandleSignIn)
	r.Post("/signout", h.HandleSignOut)

	r.Group(func(r chi.Router) {
		r.Use(h.SessionMiddleware)

		r.Get("/orders", h.ListOrders)
		r.Post("/orders", h.CreateOrder)
		r.Post("/orders/refresh", h.RefreshOrders)
		r.Post("/orders/{id}/advance", h.AdvanceOrder)
		r.Get("/kitchen", h.KitchenBoard)

		r.Get("/menu-items", h.ListMenuItems)
		r.Get("/menu-items/{id}/modifier-groups", h.GetModifierGroups)
		r.Post("/menu-items/{id}/modifiers/toggle", h.ToggleModifier)

		r.Get("/tables/{id}/session", h.TableSession)
		r.Get("/tables/{id}/cart", h.GetCart)
		r.Post("/tables/{id}/cart/lines", h.AddCartLine)
		r.Delete("/tables/{id}/cart/lines/{pos}", h.RemoveCartLine)
		r.Post("/tables/{id}/cart/submit", h.SubmitCart)

		r.Post("/billing/orders/{id}", h.GenerateOrderBill)
		r.Post("/billing/tables/{id}", h.GenerateTableBill)
		r.Get("/billing/{id}/items", h.BillItems)
		r.Get("/billing/{id}/invoice", h.DownloadInvoice)

		if h.sseHandler != nil {
			r.Get("/events", h.sseHandler.ServeHTTP)
		}
	})
}

func (h *Handler) log() aqm.Logger {
	return h.logger
}

// respondError maps the error taxonomy to HTTP statuses and guarantees a
// user-visible notification.
func (h *Handler) respondError(w http.ResponseWriter, err error) {
	if h.hub != nil {
		h.hub.NotifyError(err)
	}

	switch {
	case IsValidationError(err):
		aqm.RespondError(w, http.StatusBadRequest, err.Error())
	case IsAuthError(err):
		aqm.RespondError(w, http.StatusUnauthorized, err.Error())
	case IsPermissionError(err):
		aqm.RespondError(w, http.StatusForbidden, err.Error())
	case IsConflictError(err):
		aqm.RespondError(w, http.StatusConflict, err.Error())
	default:
		aqm.RespondError(w, http.StatusInternalServerError, err.Error())
	}
}

func (h *Handler) decodeBody(w http.ResponseWriter, r *http.Request, dest interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		h.log().Debug("failed to decode request body", "error", err)
		aqm.RespondError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// Auth

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// HandleSignIn authenticates against the auth service and opens a terminal
// session carrying the bearer token and role.
func (h *Handler) HandleSignIn(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.HandleSignIn")
	defer finish()

	var req signInRequest
	if !h.decodeBody(w, r, &req) {
		return
	}
	if req.Email == "" || req.Password == "" {
		aqm.RespondError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	resp, err := h.authnClient.Request(r.Context(), http.MethodPost, "/authn/signin", map[string]interface{}{
		"email":    req.Email,
		"password": req.Password,
	})
	if err != nil {
		h.log().Debug("authentication failed", "error", err)
		aqm.RespondError(w, http.StatusUnauthorized, "invalid email or password")
		return
	}

	var auth struct {
		Token string `json:"token"`
		Role  string `json:"role"`
		User  struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"user"`
	}
	if err := decodeSuccessResponse(resp, &auth); err != nil || auth.Token == "" {
		h.log().Error("unexpected signin response", "error", err)
		aqm.RespondError(w, http.StatusBadGateway, "authentication service unavailable")
		return
	}

	session := &Session{
		ID:        uuid.New().String(),
		UserID:    auth.User.ID,
		Name:      auth.User.Name,
		Role:      auth.Role,
		Token:     auth.Token,
		CreatedAt: time.Now(),
		ExpiresAt: time.Now().Add(h.sessions.TTL()),
	}
	if err := h.sessions.Save(session); err != nil {
		h.log().Error("failed to save session", "error", err)
		aqm.RespondError(w, http.StatusInternalServerError, "session error")
		return
	}

	aqm.RespondSuccess(w, map[string]interface{}{
		"session_id": session.ID,
		"role":       session.Role,
		"name":       session.Name,
	})
}

// HandleSignOut invalidates every credential in one operation.
func (h *Handler) HandleSignOut(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.HandleSignOut")
	defer finish()

	h.sessions.Invalidate("signed out")
	aqm.RespondSuccess(w, map[string]interface{}{"signed_out": true})
}

// SessionMiddleware resolves the terminal session from the X-Session-ID
// header and puts it on the request context.
func (h *Handler) SessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sessionID := r.Header.Get("X-Session-ID")
		if sessionID == "" {
			aqm.RespondError(w, http.StatusUnauthorized, "missing session")
			return
		}

		session, err := h.sessions.Get(sessionID)
		if err != nil {
			aqm.RespondError(w, http.StatusUnauthorized, "session expired")
			return
		}

		ctx := context.WithValue(r.Context(), contextKeySession, session)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Orders

func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.ListOrders")
	defer finish()

	aqm.RespondSuccess(w, h.orders.Snapshot())
}

// CreateOrder opens a counter-initiated order, outside any table cart flow.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.CreateOrder")
	defer finish()

	var req SubmitOrderRequest
	if !h.decodeBody(w, r, &req) {
		return
	}
	if len(req.Items) == 0 {
		aqm.RespondError(w, http.StatusBadRequest, "order needs at least one item")
		return
	}

	order, err := h.orderData.CreateOrder(r.Context(), req)
	if err != nil {
		h.respondError(w, err)
		return
	}

	h.orders.Upsert(*order)
	aqm.RespondSuccess(w, order)
}

// RefreshOrders re-fetches the full snapshot on user request; it funnels
// through the same replacement primitive as the polling backstop.
func (h *Handler) RefreshOrders(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.RefreshOrders")
	defer finish()

	if err := h.sync.Refresh(r.Context(), h.orderData.ListOrders); err != nil {
		h.respondError(w, err)
		return
	}
	aqm.RespondSuccess(w, h.orders.Snapshot())
}

// AdvanceOrder requests the single legal next status transition.
func (h *Handler) AdvanceOrder(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.AdvanceOrder")
	defer finish()

	orderID := chi.URLParam(r, "id")
	order, ok := h.orders.Get(orderID)
	if !ok {
		aqm.RespondError(w, http.StatusNotFound, "order not found")
		return
	}

	updated, err := h.orderData.AdvanceOrderStatus(r.Context(), order)
	if err != nil {
		h.respondError(w, err)
		return
	}

	h.orders.Upsert(*updated)
	aqm.RespondSuccess(w, updated)
}

// KitchenBoard lists orders for the kitchen display, optionally filtered by
// status.
func (h *Handler) KitchenBoard(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.KitchenBoard")
	defer finish()

	status := r.URL.Query().Get("status")
	if status == "" {
		aqm.RespondSuccess(w, map[string]interface{}{
			"created":     h.orders.ByStatus(StatusCreated),
			"in_progress": h.orders.ByStatus(StatusInProgress),
		})
		return
	}
	aqm.RespondSuccess(w, h.orders.ByStatus(status))
}

// Menu

func (h *Handler) ListMenuItems(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.ListMenuItems")
	defer finish()

	items, err := h.menuData.ListMenuItems(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}
	aqm.RespondSuccess(w, items)
}

func (h *Handler) GetModifierGroups(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.GetModifierGroups")
	defer finish()

	groups, err := h.menuData.GetModifierGroups(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	aqm.RespondSuccess(w, groups)
}

type toggleRequest struct {
	Selections []SelectedModifier `json:"selections"`
	ModifierID string             `json:"modifier_id"`
}

// ToggleModifier applies a tentative selection, replacing siblings in
// single-select groups.
func (h *Handler) ToggleModifier(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.ToggleModifier")
	defer finish()

	var req toggleRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	groups, err := h.menuData.GetModifierGroups(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, err)
		return
	}

	selections, err := Toggle(groups, req.Selections, req.ModifierID)
	if err != nil {
		h.respondError(w, err)
		return
	}

	aqm.RespondSuccess(w, map[string]interface{}{
		"selections": selections,
		"surcharge":  Surcharge(selections),
	})
}

// Table session & cart

// TableSession fetches the authoritative table snapshot and applies it to
// the table's cart, clearing any stale flag.
func (h *Handler) TableSession(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.TableSession")
	defer finish()

	tableID := chi.URLParam(r, "id")
	snapshot, err := h.orderData.GetTableSession(r.Context(), tableID)
	if err != nil {
		h.respondError(w, err)
		return
	}

	cart, err := h.carts.ForTable(tableID)
	if err != nil {
		aqm.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	cart.ApplySnapshot(*snapshot)

	aqm.RespondSuccess(w, snapshot)
}

func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.GetCart")
	defer finish()

	cart, err := h.carts.ForTable(chi.URLParam(r, "id"))
	if err != nil {
		aqm.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	aqm.RespondSuccess(w, map[string]interface{}{
		"lines":              cart.Lines(),
		"cart_total":         cart.CartTotal(),
		"active_order_total": cart.ActiveOrderTotal(),
		"running_total":      cart.RunningTotal(),
		"has_active_order":   cart.HasActiveOrder(),
	})
}

type addLineRequest struct {
	MenuItemID string             `json:"menu_item_id"`
	Quantity   int                `json:"quantity"`
	Selections []SelectedModifier `json:"selections"`
}

// AddCartLine validates modifier selections against their groups, snapshots
// the unit price, and appends the line.
func (h *Handler) AddCartLine(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.AddCartLine")
	defer finish()

	var req addLineRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	item, err := h.menuData.GetMenuItem(r.Context(), req.MenuItemID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	if !item.Available {
		h.respondError(w, &ValidationError{Message: fmt.Sprintf("%s is not available", item.Name)})
		return
	}

	groups, err := h.menuData.GetModifierGroups(r.Context(), req.MenuItemID)
	if err != nil {
		h.respondError(w, err)
		return
	}

	accepted, err := ValidateSelections(groups, req.Selections)
	if err != nil {
		h.respondError(w, err)
		return
	}

	cart, err := h.carts.ForTable(chi.URLParam(r, "id"))
	if err != nil {
		aqm.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	line := CartLine{
		MenuItemID: item.ID,
		Name:       item.Name,
		Quantity:   req.Quantity,
		UnitPrice:  item.UnitPrice,
		Modifiers:  accepted,
	}
	if err := cart.AddLine(line); err != nil {
		h.respondError(w, err)
		return
	}

	aqm.RespondSuccess(w, map[string]interface{}{
		"lines":         cart.Lines(),
		"running_total": cart.RunningTotal(),
	})
}

func (h *Handler) RemoveCartLine(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.RemoveCartLine")
	defer finish()

	cart, err := h.carts.ForTable(chi.URLParam(r, "id"))
	if err != nil {
		aqm.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	pos, err := strconv.Atoi(chi.URLParam(r, "pos"))
	if err != nil {
		aqm.RespondError(w, http.StatusBadRequest, "invalid line position")
		return
	}

	if err := cart.RemoveLine(pos); err != nil {
		h.respondError(w, err)
		return
	}

	aqm.RespondSuccess(w, map[string]interface{}{
		"lines":         cart.Lines(),
		"running_total": cart.RunningTotal(),
	})
}

// SubmitCart sends the cart to the order service. Any 4xx means local table
// state is stale: the cart is marked and fresh state is fetched before the
// user can retry.
func (h *Handler) SubmitCart(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.SubmitCart")
	defer finish()

	tableID := chi.URLParam(r, "id")
	cart, err := h.carts.ForTable(tableID)
	if err != nil {
		aqm.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	req, err := cart.BuildSubmission()
	if err != nil {
		h.respondError(w, err)
		return
	}

	result, err := h.orderData.SubmitCustomerOrder(r.Context(), req)
	if err != nil {
		if IsConflictError(err) {
			cart.MarkStale()
			if snapshot, refetchErr := h.orderData.GetTableSession(r.Context(), tableID); refetchErr == nil {
				cart.ApplySnapshot(*snapshot)
			}
		}
		h.respondError(w, err)
		return
	}

	cart.ApplyPlacement(*result)
	if h.hub != nil {
		if result.IsNewOrder {
			h.hub.Publish(NoticeInfo, "order placed")
		} else {
			h.hub.Publish(NoticeInfo, "items added to the open order")
		}
	}

	aqm.RespondSuccess(w, result)
}

// Billing

type generateBillRequest struct {
	CustomerID string `json:"customer_id"`
}

func (h *Handler) GenerateOrderBill(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.GenerateOrderBill")
	defer finish()

	var req generateBillRequest
	if r.ContentLength > 0 && !h.decodeBody(w, r, &req) {
		return
	}

	bill, err := h.billing.GenerateForOrder(r.Context(), chi.URLParam(r, "id"), req.CustomerID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	aqm.RespondSuccess(w, bill)
}

func (h *Handler) GenerateTableBill(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.GenerateTableBill")
	defer finish()

	var req generateBillRequest
	if r.ContentLength > 0 && !h.decodeBody(w, r, &req) {
		return
	}

	bill, err := h.billing.GenerateForTable(r.Context(), chi.URLParam(r, "id"), req.CustomerID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	aqm.RespondSuccess(w, bill)
}

func (h *Handler) BillItems(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.BillItems")
	defer finish()

	view, err := h.billing.BillItems(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, err)
		return
	}

	aqm.RespondSuccess(w, map[string]interface{}{
		"items":            view.Items,
		"is_combined_bill": view.IsCombinedBill,
		"order_count":      view.OrderCount,
		"label":            view.Label(),
	})
}

func (h *Handler) DownloadInvoice(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.DownloadInvoice")
	defer finish()

	billID := chi.URLParam(r, "id")
	payload, err := h.billingData.DownloadInvoice(r.Context(), billID)
	if err != nil {
		h.respondError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=invoice-%s.pdf", billID))
	w.WriteHeader(http.StatusOK)
	w.Write(payload)
}

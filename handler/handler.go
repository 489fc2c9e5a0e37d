package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"pos-backend/cart"
	models "pos-backend/model"
	"pos-backend/service"
)

// SessionHeader names the cart session a request works on. Requests without
// it share the default cart.
const SessionHeader = "X-Cart-Session"

// Handler is the HTTP layer that talks to service.Service
type Handler struct {
	svc      service.ServiceInterface
	validate *validator.Validate
	log      *slog.Logger
}

// NewHandler returns a Handler instance
func NewHandler(s service.ServiceInterface, log *slog.Logger) *Handler {
	return &Handler{svc: s, validate: newValidator(), log: log}
}

// RegisterRoutes registers all routes on the provided router
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/", h.Root).Methods("GET")

	// Catalog
	r.HandleFunc("/product/{code}", h.GetProduct).Methods("GET")

	// Cart
	r.HandleFunc("/cart/add", h.AddToCart).Methods("POST")
	r.HandleFunc("/cart/session", h.NewCartSession).Methods("POST")
	r.HandleFunc("/cart", h.GetCart).Methods("GET")

	// Purchase
	r.HandleFunc("/purchase", h.Purchase).Methods("POST")
	r.HandleFunc("/transaction/{id}", h.GetTransaction).Methods("GET")

	r.NotFoundHandler = h.unmatched(http.StatusNotFound, "Not Found")
	r.MethodNotAllowedHandler = h.unmatched(http.StatusMethodNotAllowed, "Method Not Allowed")
}

// --- request / response shapes ---
type cartLineReq struct {
	Code     string `json:"code" validate:"required"`
	Name     string `json:"name" validate:"required"`
	Price    *int64 `json:"price" validate:"required,gte=0,lte=2147483647"`
	Quantity *int   `json:"quantity" validate:"omitempty,gte=1,lte=2147483647"`
}

func (c cartLineReq) line() models.CartLine {
	l := models.CartLine{Code: c.Code, Name: c.Name, Price: *c.Price, Quantity: 1}
	if c.Quantity != nil {
		l.Quantity = *c.Quantity
	}
	return l
}

type purchaseReq struct {
	EmpCD   string        `json:"emp_cd"`
	StoreCD string        `json:"store_cd"`
	PosNo   string        `json:"pos_no"`
	Cart    []cartLineReq `json:"cart" validate:"dive"`
}

type purchaseResp struct {
	Message       string `json:"message"`
	TotalPrice    int64  `json:"total_price"`
	TransactionID int64  `json:"transaction_id"`
}

// --- helpers ---
func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, detail string) {
	writeJSON(w, code, map[string]string{"detail": detail})
}

// writeServiceErr maps service errors to HTTP statuses. A product missing
// from the catalog is 404 on lookup but 400 on purchase.
func (h *Handler) writeServiceErr(w http.ResponseWriter, r *http.Request, err error, productNotFound int) {
	var storeErr *models.StoreError
	switch {
	case errors.Is(err, models.ErrProductNotFound):
		writeErr(w, productNotFound, err.Error())
	case errors.Is(err, models.ErrEmptyCart),
		errors.Is(err, models.ErrPriceMismatch),
		errors.Is(err, models.ErrAmountOutOfRange),
		errors.Is(err, cart.ErrInvalidQuantity):
		writeErr(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, models.ErrTransactionNotFound):
		writeErr(w, http.StatusNotFound, "Transaction not found")
	case errors.As(err, &storeErr):
		h.log.ErrorContext(r.Context(), "store failure", "request_id", middleware.GetReqID(r.Context()), "path", r.URL.Path, "error", err)
		writeErr(w, http.StatusInternalServerError, err.Error())
	default:
		h.log.ErrorContext(r.Context(), "unexpected failure", "request_id", middleware.GetReqID(r.Context()), "path", r.URL.Path, "error", err)
		writeErr(w, http.StatusInternalServerError, "Internal Server Error: "+err.Error())
	}
}

func (h *Handler) unmatched(code int, detail string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.log.InfoContext(r.Context(), "route not matched", "request_id", middleware.GetReqID(r.Context()), "method", r.Method, "path", r.URL.Path, "status", code)
		writeErr(w, code, detail)
	}
}

// --- Handler ---

// Root handles GET /
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "Hello World"})
}

// GetProduct handles GET /product/{code}
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]
	p, err := h.svc.GetProduct(r.Context(), code)
	if err != nil {
		if errors.Is(err, models.ErrProductNotFound) {
			writeErr(w, http.StatusNotFound, "Product not found")
			return
		}
		h.writeServiceErr(w, r, err, http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]models.Product{"product": p})
}

// AddToCart handles POST /cart/add
// body: { "code": "A1", "name": "Pen", "price": 100, "quantity": 2 }
func (h *Handler) AddToCart(w http.ResponseWriter, r *http.Request) {
	var req cartLineReq
	if !h.decode(w, r, &req) {
		return
	}
	c, err := h.svc.AddToCart(r.Context(), r.Header.Get(SessionHeader), req.line())
	if err != nil {
		h.writeServiceErr(w, r, err, http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// GetCart handles GET /cart
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	c, err := h.svc.GetCart(r.Context(), r.Header.Get(SessionHeader))
	if err != nil {
		h.writeServiceErr(w, r, err, http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// NewCartSession handles POST /cart/session
func (h *Handler) NewCartSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusCreated, map[string]string{"session_id": h.svc.NewCartSession()})
}

// Purchase handles POST /purchase
// body: { "emp_cd": "...", "store_cd": "30", "pos_no": "90", "cart": [ ... ] }
func (h *Handler) Purchase(w http.ResponseWriter, r *http.Request) {
	var req purchaseReq
	if !h.decode(w, r, &req) {
		return
	}

	lines := make([]models.CartLine, 0, len(req.Cart))
	for _, c := range req.Cart {
		lines = append(lines, c.line())
	}

	res, err := h.svc.Purchase(r.Context(), service.PurchaseRequest{
		EmpCD:   req.EmpCD,
		StoreCD: req.StoreCD,
		PosNo:   req.PosNo,
		Lines:   lines,
		Session: r.Header.Get(SessionHeader),
	})
	if err != nil {
		h.writeServiceErr(w, r, err, http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, purchaseResp{
		Message:       "Purchase successful",
		TotalPrice:    res.TotalPrice,
		TransactionID: res.TransactionID,
	})
}

// GetTransaction handles GET /transaction/{id}
func (h *Handler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		writeErr(w, http.StatusBadRequest, "id must be a positive integer")
		return
	}
	tr, err := h.svc.GetTransaction(r.Context(), id)
	if err != nil {
		h.writeServiceErr(w, r, err, http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]models.Transaction{"transaction": tr})
}

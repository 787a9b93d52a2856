// Package handler содержит HTTP-обработчики, через которые управляется торговый автомат.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mmeshcher/vending-machine/internal/bank"
	"github.com/mmeshcher/vending-machine/internal/catalog"
	"github.com/mmeshcher/vending-machine/internal/machine"
	"github.com/mmeshcher/vending-machine/internal/middleware"
	"github.com/mmeshcher/vending-machine/internal/model"
	"github.com/mmeshcher/vending-machine/internal/service"
	"github.com/mmeshcher/vending-machine/internal/validation"
)

const defaultSalesLimit = 50

// Service определяет контракт автомата, используемый HTTP-обработчиками.
type Service interface {
	InsertCoin(c model.Coin) (machine.InsertResult, model.Cents)
	SelectProduct(ctx context.Context, id model.ProductID) (machine.Purchase, error)
	ReturnCoins() []model.Coin
	Display() string
	Balance() service.Balance
	Transaction() []model.Coin
	ReturnTray() []model.Coin
	CollectReturnTray() []model.Coin
	Inventory(id model.ProductID) (int, error)
	SetInventory(id model.ProductID, level int) error
	RefillBank(counts map[model.Coin]int) error
	Status() machine.Status
	Sales(ctx context.Context, limit int) ([]model.Sale, error)
}

// Handler реализует HTTP-обработчики автомата.
type Handler struct {
	service Service
	logger  *zap.Logger
	auth    *middleware.OperatorAuth
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger, auth *middleware.OperatorAuth) *Handler {
	return &Handler{
		service: s,
		logger:  logger,
		auth:    auth,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func coinNames(coins []model.Coin) []string {
	out := make([]string, 0, len(coins))
	for _, c := range coins {
		out = append(out, string(c))
	}
	return out
}

type insertRequest struct {
	Coin string `json:"coin" validate:"required,coin_token"`
}

type insertResponse struct {
	Result       string `json:"result"`
	Balance      string `json:"balance"`
	BalanceCents int64  `json:"balance_cents"`
}

// InsertCoin опускает жетон в автомат.
func (h *Handler) InsertCoin(w http.ResponseWriter, r *http.Request) {
	var req insertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	req.Coin = validation.NormalizeToken(req.Coin)
	if err := validation.Struct(req); err != nil {
		http.Error(w, http.StatusText(http.StatusUnprocessableEntity), http.StatusUnprocessableEntity)
		return
	}

	res, balance := h.service.InsertCoin(model.Coin(req.Coin))

	writeJSON(w, http.StatusOK, insertResponse{
		Result:       res.String(),
		Balance:      balance.String(),
		BalanceCents: int64(balance),
	})
}

type purchaseResponse struct {
	Dispensed       bool     `json:"dispensed"`
	Product         string   `json:"product,omitempty"`
	Outcome         string   `json:"outcome"`
	Price           string   `json:"price"`
	Change          []string `json:"change,omitempty"`
	ChangeCents     int64    `json:"change_cents"`
	ChangeOwedCents int64    `json:"change_owed_cents,omitempty"`
	SaleID          string   `json:"sale_id,omitempty"`
}

// SelectProduct нажимает кнопку товара.
func (h *Handler) SelectProduct(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := validation.ProductID(id); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	p, err := h.service.SelectProduct(r.Context(), model.ProductID(id))
	if err != nil {
		if errors.Is(err, catalog.ErrUnknownProduct) {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		h.logger.Error("select product error", zap.Error(err), zap.String("product", id))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	resp := purchaseResponse{
		Dispensed:       p.Dispensed(),
		Product:         string(p.Product),
		Outcome:         p.Outcome.String(),
		Price:           p.Price.String(),
		Change:          coinNames(p.Change),
		ChangeOwedCents: int64(p.ChangeOwed),
	}
	if p.Sale != nil {
		resp.ChangeCents = int64(p.Sale.Change)
		resp.SaleID = p.Sale.ID.String()
	}

	writeJSON(w, http.StatusOK, resp)
}

type coinsResponse struct {
	Coins []string `json:"coins"`
}

// ReturnCoins возвращает внесённые монеты в лоток возврата.
func (h *Handler) ReturnCoins(w http.ResponseWriter, r *http.Request) {
	coins := h.service.ReturnCoins()
	writeJSON(w, http.StatusOK, coinsResponse{Coins: coinNames(coins)})
}

// Display возвращает строку дисплея. Каждый запрос снимает одно одноразовое сообщение,
// поэтому маршрут принимает только POST.
func (h *Handler) Display(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(h.service.Display()))
}

type balanceResponse struct {
	Current  int64 `json:"current"`
	InReturn int64 `json:"in_return"`
}

// GetBalance возвращает сумму текущей покупки и сумму в лотке возврата в центах.
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	b := h.service.Balance()
	writeJSON(w, http.StatusOK, balanceResponse{
		Current:  int64(b.Current),
		InReturn: int64(b.InReturn),
	})
}

// GetTransaction возвращает монеты текущей покупки.
func (h *Handler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, coinsResponse{Coins: coinNames(h.service.Transaction())})
}

// GetReturnTray возвращает содержимое лотка возврата.
func (h *Handler) GetReturnTray(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, coinsResponse{Coins: coinNames(h.service.ReturnTray())})
}

// CollectReturnTray забирает монеты из лотка возврата.
func (h *Handler) CollectReturnTray(w http.ResponseWriter, r *http.Request) {
	coins := h.service.CollectReturnTray()
	if len(coins) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, coinsResponse{Coins: coinNames(coins)})
}

type inventoryResponse struct {
	Product string `json:"product"`
	Level   int    `json:"level"`
}

// GetInventory возвращает остаток товара.
func (h *Handler) GetInventory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := validation.ProductID(id); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	level, err := h.service.Inventory(model.ProductID(id))
	if err != nil {
		if errors.Is(err, catalog.ErrUnknownProduct) {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		h.logger.Error("get inventory error", zap.Error(err), zap.String("product", id))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, inventoryResponse{Product: id, Level: level})
}

type inventoryRequest struct {
	Level *int `json:"level" validate:"required,gte=0"`
}

// SetInventory устанавливает остаток товара. Доступно только оператору.
func (h *Handler) SetInventory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := validation.ProductID(id); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var req inventoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	if err := validation.Struct(req); err != nil {
		http.Error(w, http.StatusText(http.StatusUnprocessableEntity), http.StatusUnprocessableEntity)
		return
	}

	err := h.service.SetInventory(model.ProductID(id), *req.Level)
	if err != nil {
		switch {
		case errors.Is(err, catalog.ErrUnknownProduct):
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		case errors.Is(err, service.ErrInvalidStockLevel), errors.Is(err, catalog.ErrNegativeStock):
			http.Error(w, http.StatusText(http.StatusUnprocessableEntity), http.StatusUnprocessableEntity)
		default:
			h.logger.Error("set inventory error", zap.Error(err), zap.String("product", id))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, http.StatusOK, inventoryResponse{Product: id, Level: *req.Level})
}

type loginRequest struct {
	Key string `json:"key" validate:"required"`
}

// OperatorLogin обменивает ключ оператора на cookie.
func (h *Handler) OperatorLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	if err := validation.Struct(req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if !h.auth.CheckKey(req.Key) {
		h.logger.Warn("operator login rejected", zap.String("remote", r.RemoteAddr))
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	h.auth.SetAuthCookie(w)
	w.WriteHeader(http.StatusOK)
}

type refillRequest struct {
	Coins map[string]int `json:"coins" validate:"required,min=1,dive,keys,coin_token,endkeys,gte=0,lte=1000"`
}

// RefillBank пополняет резерв монет. Доступно только оператору.
func (h *Handler) RefillBank(w http.ResponseWriter, r *http.Request) {
	var req refillRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	if err := validation.Struct(req); err != nil {
		http.Error(w, http.StatusText(http.StatusUnprocessableEntity), http.StatusUnprocessableEntity)
		return
	}

	counts := make(map[model.Coin]int, len(req.Coins))
	for c, n := range req.Coins {
		counts[model.Coin(c)] = n
	}

	if err := h.service.RefillBank(counts); err != nil {
		if errors.Is(err, bank.ErrUnknownCoin) || errors.Is(err, bank.ErrInsufficientCoins) || errors.Is(err, bank.ErrTooManyCoins) {
			http.Error(w, http.StatusText(http.StatusUnprocessableEntity), http.StatusUnprocessableEntity)
			return
		}
		h.logger.Error("refill bank error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}

type productStatus struct {
	ID    string `json:"id"`
	Price string `json:"price"`
	Stock int    `json:"stock"`
}

type statusResponse struct {
	State        string          `json:"state"`
	Balance      int64           `json:"balance"`
	InReturn     int64           `json:"in_return"`
	BaseMessage  string          `json:"base_message"`
	Bank         map[string]int  `json:"bank"`
	BankTotal    int64           `json:"bank_total"`
	Products     []productStatus `json:"products"`
	PendingLines int             `json:"pending_lines"`
}

// GetStatus возвращает снимок состояния автомата. Доступно только оператору.
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	st := h.service.Status()

	resp := statusResponse{
		State:        st.State.String(),
		Balance:      int64(st.Balance),
		InReturn:     int64(st.TrayValue),
		BaseMessage:  st.BaseMessage,
		Bank:         make(map[string]int, len(st.Bank)),
		BankTotal:    int64(st.BankTotal),
		Products:     make([]productStatus, 0, len(st.Products)),
		PendingLines: st.PendingLines,
	}
	for c, n := range st.Bank {
		resp.Bank[string(c)] = n
	}
	for _, p := range st.Products {
		resp.Products = append(resp.Products, productStatus{ID: string(p.ID), Price: p.Price.String(), Stock: p.Stock})
	}

	writeJSON(w, http.StatusOK, resp)
}

type saleResponse struct {
	ID              string `json:"id"`
	Product         string `json:"product"`
	PriceCents      int64  `json:"price_cents"`
	PaidCents       int64  `json:"paid_cents"`
	ChangeCents     int64  `json:"change_cents"`
	ChangeOwedCents int64  `json:"change_owed_cents"`
	SoldAt          string `json:"sold_at"`
}

// GetSales возвращает журнал продаж. Доступно только оператору.
func (h *Handler) GetSales(w http.ResponseWriter, r *http.Request) {
	limit := defaultSalesLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 1000 {
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}
		limit = n
	}

	sales, err := h.service.Sales(r.Context(), limit)
	if err != nil {
		if errors.Is(err, service.ErrPersistenceDisabled) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
			return
		}
		h.logger.Error("get sales error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if len(sales) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	resp := make([]saleResponse, 0, len(sales))
	for _, s := range sales {
		resp = append(resp, saleResponse{
			ID:              s.ID.String(),
			Product:         string(s.Product),
			PriceCents:      int64(s.Price),
			PaidCents:       int64(s.Paid),
			ChangeCents:     int64(s.Change),
			ChangeOwedCents: int64(s.ChangeOwed),
			SoldAt:          s.SoldAt.Format(time.RFC3339),
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

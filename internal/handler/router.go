package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	custommiddleware "github.com/mmeshcher/vending-machine/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware торгового автомата.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	r.Route("/api", func(r chi.Router) {
		r.Post("/coins", h.InsertCoin)
		r.Post("/coins/return", h.ReturnCoins)
		r.Post("/products/{id}/select", h.SelectProduct)

		r.Post("/display", h.Display)
		r.Get("/balance", h.GetBalance)
		r.Get("/transaction", h.GetTransaction)

		r.Get("/tray", h.GetReturnTray)
		r.Post("/tray/collect", h.CollectReturnTray)

		r.Get("/inventory/{id}", h.GetInventory)

		r.Post("/operator/login", h.OperatorLogin)

		r.Group(func(r chi.Router) {
			r.Use(h.auth.Middleware)

			r.Put("/inventory/{id}", h.SetInventory)
			r.Post("/bank/refill", h.RefillBank)
			r.Get("/status", h.GetStatus)
			r.Get("/sales", h.GetSales)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}

/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"bitcoin-gateway-go/internal/gateway"
	"bitcoin-gateway-go/internal/store"
	"bitcoin-gateway-go/internal/upstream"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	reconcilesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_reconciles_total",
		Help: "Reconciliation attempts, labeled by resulting order status or error",
	}, []string{"result"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gateway_http_request_duration_seconds",
		Help:    "Latency distribution of HTTP requests",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"method", "endpoint"})
)

// Handler exposes the reconciliation service to the host platform.
type Handler struct {
	gateway *gateway.Service
}

func NewHandler(svc *gateway.Service) *Handler {
	return &Handler{gateway: svc}
}

// Router builds the chi router for the host-facing API.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", h.HealthCheck)
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/orders", h.CreateOrder)
	r.Get("/orders/{orderId}", h.GetOrder)
	r.Get("/orders/{orderId}/details", h.OrderDetails)
	r.Post("/orders/{orderId}/reconcile", h.Reconcile)
	r.Post("/gateways/{gatewayId}/addresses", h.GenerateAddresses)

	return r
}

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type createOrderRequest struct {
	OrderId   string `json:"order_id"`
	GatewayId string `json:"gateway_id"`
	FiatTotal string `json:"fiat_total"`
	Currency  string `json:"currency"`
}

func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(httpRequestDuration.WithLabelValues("POST", "/orders"))
	defer timer.ObserveDuration()

	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Malformed JSON body")
		return
	}
	if req.OrderId == "" || req.GatewayId == "" {
		respondWithError(w, http.StatusBadRequest, "order_id and gateway_id are required")
		return
	}

	fiatTotal, err := decimal.NewFromString(req.FiatTotal)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "fiat_total must be a decimal string")
		return
	}

	order, err := h.gateway.CreateOrder(r.Context(), gateway.CreateOrderParams{
		OrderId:   req.OrderId,
		GatewayId: req.GatewayId,
		FiatTotal: fiatTotal,
		Currency:  req.Currency,
	})
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, order)
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderId := chi.URLParam(r, "orderId")

	order, err := h.gateway.Order(r.Context(), orderId)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, order)
}

func (h *Handler) OrderDetails(w http.ResponseWriter, r *http.Request) {
	orderId := chi.URLParam(r, "orderId")

	details, err := h.gateway.OrderDetails(r.Context(), orderId)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, details)
}

func (h *Handler) Reconcile(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(httpRequestDuration.WithLabelValues("POST", "/orders/reconcile"))
	defer timer.ObserveDuration()

	orderId := chi.URLParam(r, "orderId")

	order, err := h.gateway.Reconcile(r.Context(), orderId)
	if err != nil {
		reconcilesTotal.WithLabelValues(errorLabel(err)).Inc()
		respondWithServiceError(w, err)
		return
	}

	reconcilesTotal.WithLabelValues(string(order.Status)).Inc()
	respondWithJSON(w, http.StatusOK, order)
}

type generateAddressesRequest struct {
	Count int `json:"count"`
}

func (h *Handler) GenerateAddresses(w http.ResponseWriter, r *http.Request) {
	gatewayId := chi.URLParam(r, "gatewayId")

	var req generateAddressesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Malformed JSON body")
		return
	}
	if req.Count <= 0 {
		respondWithError(w, http.StatusUnprocessableEntity, "Positive count required")
		return
	}

	addresses, err := h.gateway.GenerateNewAddresses(r.Context(), gatewayId, req.Count)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, addresses)
}

func errorLabel(err error) string {
	switch {
	case errors.Is(err, gateway.ErrLatePayment):
		return "late_payment"
	case errors.Is(err, upstream.ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, upstream.ErrNetwork):
		return "network_error"
	default:
		return "error"
	}
}

func respondWithServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrOrderNotFound), errors.Is(err, store.ErrAddressNotFound):
		respondWithError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, gateway.ErrUnknownGateway):
		respondWithError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, store.ErrDuplicateOrder):
		respondWithError(w, http.StatusConflict, err.Error())
	case errors.Is(err, gateway.ErrLatePayment):
		respondWithError(w, http.StatusConflict, err.Error())
	case errors.Is(err, upstream.ErrUnsupportedCurrency), errors.Is(err, upstream.ErrInvalidAddress):
		respondWithError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, upstream.ErrRateLimited):
		respondWithError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, upstream.ErrNetwork), errors.Is(err, upstream.ErrUpstreamFormat):
		respondWithError(w, http.StatusBadGateway, err.Error())
	default:
		zap.L().Error("Unhandled service error", zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "internal error")
	}
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		zap.L().Error("Failed to marshal response", zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err := w.Write(response); err != nil {
		zap.L().Warn("Failed to write response", zap.Error(err))
	}
}

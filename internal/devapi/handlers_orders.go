package devapi

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/example/ec-storefront/internal/apiclient"
	"github.com/example/ec-storefront/internal/devapi/middleware"
)

func (s *Server) createOrder(w http.ResponseWriter, r *http.Request) {
	var req apiclient.CreateOrderRequest
	if !decode(w, r, &req) {
		return
	}
	o, err := s.data.CreateOrder(middleware.GetUserID(r.Context()), req.Items, req.ShippingAddressID)
	if err != nil {
		respondErr(w, err)
		return
	}
	log.Printf("[DevAPI] Order %s created, total %s", o.OrderNumber, o.TotalAmount)
	respondJSON(w, http.StatusCreated, o)
}

func (s *Server) listOrders(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.data.Orders(middleware.GetUserID(r.Context())))
}

func (s *Server) getOrder(w http.ResponseWriter, r *http.Request) {
	o, err := s.data.Order(middleware.GetUserID(r.Context()), chi.URLParam(r, "number"), isAdmin(r))
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, o)
}

func (s *Server) initiatePayment(w http.ResponseWriter, r *http.Request) {
	var req apiclient.PaymentRequest
	if !decode(w, r, &req) {
		return
	}
	p, err := s.data.InitiatePayment(middleware.GetUserID(r.Context()), req.OrderID, req.Provider, req.Amount)
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, p)
}

func (s *Server) verifyPayment(w http.ResponseWriter, r *http.Request) {
	var req apiclient.VerifyPaymentRequest
	if !decode(w, r, &req) {
		return
	}
	p, err := s.data.VerifyPayment(middleware.GetUserID(r.Context()), req.PaymentID, req.Success)
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

func (s *Server) updateOrderStatus(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	if status == "" {
		middleware.RespondError(w, http.StatusBadRequest, "status is required")
		return
	}
	o, err := s.data.SetOrderStatus(chi.URLParam(r, "number"), status)
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, o)
}

package devapi

import (
	"net/http"

	"github.com/example/ec-storefront/internal/apiclient"
	"github.com/example/ec-storefront/internal/devapi/middleware"
)

// cartOwner resolves the cart the request addresses. The body's cartUuid
// wins over the query for item additions.
func cartOwner(r *http.Request, bodyUUID string) CartOwner {
	o := CartOwner{UserID: middleware.GetUserID(r.Context())}
	if o.UserID == 0 {
		o.UUID = bodyUUID
		if o.UUID == "" {
			o.UUID = r.URL.Query().Get("cart_uuid")
		}
	}
	return o
}

func (s *Server) getCart(w http.ResponseWriter, r *http.Request) {
	c, err := s.data.Cart(cartOwner(r, ""))
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

func (s *Server) clearCart(w http.ResponseWriter, r *http.Request) {
	s.data.ClearCart(cartOwner(r, ""))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) addCartItem(w http.ResponseWriter, r *http.Request) {
	var req apiclient.AddItemRequest
	if !decode(w, r, &req) {
		return
	}
	line, err := s.data.AddCartItem(cartOwner(r, req.CartUUID), req.ProductID, req.Quantity)
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, line)
}

func (s *Server) updateCartItem(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req struct {
		Quantity int `json:"quantity"`
	}
	if !decode(w, r, &req) {
		return
	}
	line, err := s.data.UpdateCartItem(cartOwner(r, ""), id, req.Quantity)
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, line)
}

func (s *Server) removeCartItem(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := s.data.RemoveCartItem(cartOwner(r, ""), id); err != nil {
		respondErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

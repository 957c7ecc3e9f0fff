package devapi

import (
	"net/http"

	"github.com/example/ec-storefront/internal/devapi/middleware"
	"github.com/example/ec-storefront/internal/model"
)

func (s *Server) listAddresses(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.data.Addresses(middleware.GetUserID(r.Context())))
}

func (s *Server) createAddress(w http.ResponseWriter, r *http.Request) {
	var in model.Address
	if !decode(w, r, &in) {
		return
	}
	a, err := s.data.AddAddress(middleware.GetUserID(r.Context()), in)
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, a)
}

func (s *Server) deleteAddress(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := s.data.DeleteAddress(middleware.GetUserID(r.Context()), id); err != nil {
		respondErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) getWishlist(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.data.Wishlist(middleware.GetUserID(r.Context())))
}

func (s *Server) addWishlist(w http.ResponseWriter, r *http.Request) {
	var in struct {
		ProductID int64 `json:"productId"`
	}
	if !decode(w, r, &in) {
		return
	}
	e, err := s.data.AddWishlist(middleware.GetUserID(r.Context()), in.ProductID)
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, e)
}

// removeWishlist succeeds whether or not the product was listed
func (s *Server) removeWishlist(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	s.data.RemoveWishlist(middleware.GetUserID(r.Context()), id)
	w.WriteHeader(http.StatusNoContent)
}

package devapi

import (
	"log"
	"net/http"
	"strings"

	"github.com/example/ec-storefront/internal/apiclient"
	"github.com/example/ec-storefront/internal/devapi/middleware"
	"github.com/example/ec-storefront/internal/model"
)

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var req apiclient.RegisterRequest
	if !decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Email) == "" || strings.TrimSpace(req.FullName) == "" {
		middleware.RespondError(w, http.StatusBadRequest, "Full name and email are required")
		return
	}
	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		middleware.RespondError(w, http.StatusBadRequest, "Password must be at least 8 characters")
		return
	}
	u, err := s.data.CreateUser(model.User{
		Email:        req.Email,
		FullName:     req.FullName,
		MobileNumber: req.MobileNumber,
		Role:         model.RoleCustomer,
	}, hash)
	if err != nil {
		respondErr(w, err)
		return
	}
	log.Printf("[DevAPI] Registered user %d", u.ID)
	respondJSON(w, http.StatusCreated, u)
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req apiclient.LoginRequest
	if !decode(w, r, &req) {
		return
	}
	u, hash, found := s.data.Credentials(req.Email)
	if !found || !s.hasher.Check(req.Password, hash) {
		middleware.RespondError(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}
	if !u.Active {
		middleware.RespondError(w, http.StatusForbidden, "Account is deactivated")
		return
	}

	token, _, err := s.jwt.GenerateAccessToken(u.ID, u.Email, u.Role)
	if err != nil {
		respondErr(w, err)
		return
	}
	s.data.AddToken(token, u.ID)

	resp := apiclient.LoginResponse{AccessToken: token, TokenType: "Bearer"}
	if !s.cfg.MinimalLogin {
		resp.UserID = u.ID
		resp.Email = u.Email
		resp.Role = u.Role
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) profile(w http.ResponseWriter, r *http.Request) {
	u, _, err := s.data.User(middleware.GetUserID(r.Context()))
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, u)
}

func (s *Server) updateProfile(w http.ResponseWriter, r *http.Request) {
	var req apiclient.ProfileUpdate
	if !decode(w, r, &req) {
		return
	}
	u, err := s.data.UpdateUser(middleware.GetUserID(r.Context()), func(u *model.User) {
		if name := strings.TrimSpace(req.FullName); name != "" {
			u.FullName = name
		}
		if mobile := strings.TrimSpace(req.MobileNumber); mobile != "" {
			u.MobileNumber = mobile
		}
	})
	if err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, u)
}

func (s *Server) changePassword(w http.ResponseWriter, r *http.Request) {
	var req apiclient.PasswordChange
	if !decode(w, r, &req) {
		return
	}
	userID := middleware.GetUserID(r.Context())
	_, hash, err := s.data.User(userID)
	if err != nil {
		respondErr(w, err)
		return
	}
	if !s.hasher.Check(req.OldPassword, hash) {
		middleware.RespondError(w, http.StatusBadRequest, "Current password is incorrect")
		return
	}
	newHash, err := s.hasher.Hash(req.NewPassword)
	if err != nil {
		middleware.RespondError(w, http.StatusBadRequest, "New password must be at least 8 characters")
		return
	}
	if err := s.data.SetPasswordHash(userID, newHash); err != nil {
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "Password changed successfully"})
}

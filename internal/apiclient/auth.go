package apiclient

import (
	"context"
	"net/http"
	"strconv"

	"github.com/example/ec-storefront/internal/model"
)

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse carries the issued token. Older servers send "token"
// instead of "accessToken"; user fields may be missing.
type LoginResponse struct {
	AccessToken string `json:"accessToken"`
	Token       string `json:"token"`
	TokenType   string `json:"tokenType"`
	UserID      int64  `json:"userId"`
	Email       string `json:"email"`
	Role        string `json:"role"`
}

// BearerToken returns whichever token field the server filled
func (r *LoginResponse) BearerToken() string {
	if r.AccessToken != "" {
		return r.AccessToken
	}
	return r.Token
}

type RegisterRequest struct {
	FullName     string `json:"fullName"`
	Email        string `json:"email"`
	Password     string `json:"password"`
	MobileNumber string `json:"mobileNumber,omitempty"`
}

type ProfileUpdate struct {
	FullName     string `json:"fullName,omitempty"`
	MobileNumber string `json:"mobileNumber,omitempty"`
}

type PasswordChange struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

func (c *Client) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	var out LoginResponse
	if err := c.call(ctx, http.MethodPost, apiPrefix+"/auth/login", req, &out, nil); err != nil {
		return nil, err
	}
	return &out, nil
}

// Register creates an account. It does not log in.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*model.User, error) {
	var out model.User
	if err := c.call(ctx, http.MethodPost, apiPrefix+"/auth/register", req, &out, nil); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Profile(ctx context.Context) (*model.User, error) {
	var out model.User
	if err := c.call(ctx, http.MethodGet, apiPrefix+"/auth/profile", nil, &out, nil); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateProfile(ctx context.Context, update ProfileUpdate) (*model.User, error) {
	var out model.User
	if err := c.call(ctx, http.MethodPut, apiPrefix+"/auth/profile", update, &out, nil); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ChangePassword(ctx context.Context, change PasswordChange) error {
	_, err := c.Send(ctx, http.MethodPut, apiPrefix+"/auth/profile/password", change, nil)
	return err
}

func idPath(base string, id int64) string {
	return base + "/" + strconv.FormatInt(id, 10)
}

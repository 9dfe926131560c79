package api

import (
	"context"
	"net/http"

	"github.com/MrEthical07/goStage/user"
)

const (
	PathLogin    = "/api/auth/login"
	PathRegister = "/api/auth/register"
	PathMe       = "/api/users/me"
)

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse is the login payload: the user record fields plus the
// credential.
type LoginResponse struct {
	ID        int64     `json:"id"`
	Nom       string    `json:"nom"`
	Prenom    string    `json:"prenom"`
	Email     string    `json:"email"`
	Role      user.Role `json:"role"`
	Token     string    `json:"token"`
	FiliereID *int64    `json:"filiereId,omitempty"`
	Annee     *int      `json:"annee,omitempty"`
}

// Record returns the user part of r.
func (r LoginResponse) Record() user.Record {
	return user.Record{
		ID:        r.ID,
		Nom:       r.Nom,
		Prenom:    r.Prenom,
		Email:     r.Email,
		Role:      r.Role,
		FiliereID: r.FiliereID,
		Annee:     r.Annee,
	}
}

type RegisterRequest struct {
	Nom       string    `json:"nom"`
	Prenom    string    `json:"prenom"`
	Email     string    `json:"email"`
	Password  string    `json:"password"`
	Role      user.Role `json:"role,omitempty"`
	FiliereID *int64    `json:"filiereId,omitempty"`
	Annee     *int      `json:"annee,omitempty"`
}

// Login exchanges credentials for a LoginResponse.
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResponse, error) {
	var out LoginResponse
	if err := c.do(ctx, http.MethodPost, PathLogin, nil, LoginRequest{Email: email, Password: password}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Register creates an account and returns its record.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*user.Record, error) {
	var out user.Record
	if err := c.do(ctx, http.MethodPost, PathRegister, nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Me returns the record of the authenticated user.
func (c *Client) Me(ctx context.Context) (*user.Record, error) {
	var out user.Record
	if err := c.do(ctx, http.MethodGet, PathMe, nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

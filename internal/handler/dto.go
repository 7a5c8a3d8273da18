package handler

import (
	"time"

	"github.com/iliyamo/auth-service/internal/model"
	"github.com/iliyamo/auth-service/internal/service"
	"github.com/iliyamo/auth-service/internal/utils"
)

// ----- responses -----

type userResp struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Username  string     `json:"username"`
	Email     string     `json:"email"`
	Role      model.Role `json:"role"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

func toUserResp(u model.User) userResp {
	return userResp{
		ID:        u.ID,
		Name:      u.Name,
		Username:  u.Username,
		Email:     u.Email,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

type tokensResp struct {
	AccessToken           string    `json:"accessToken"`
	RefreshToken          string    `json:"refreshToken"`
	AccessTokenExpiresAt  time.Time `json:"accessTokenExpiresAt"`
	RefreshTokenExpiresAt time.Time `json:"refreshTokenExpiresAt"`
}

func toTokensResp(p utils.TokenPair) tokensResp {
	return tokensResp{
		AccessToken:           p.AccessToken,
		RefreshToken:          p.RefreshToken,
		AccessTokenExpiresAt:  p.AccessExpiresAt,
		RefreshTokenExpiresAt: p.RefreshExpiresAt,
	}
}

type authResp struct {
	User userResp `json:"user"`
	tokensResp
}

type sessionResp struct {
	ID        string    `json:"id"`
	DeviceID  *string   `json:"deviceId"`
	UserAgent *string   `json:"userAgent"`
	ExpiresAt time.Time `json:"expiresAt"`
	CreatedAt time.Time `json:"createdAt"`
	Current   bool      `json:"current"`
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

type apiKeyResp struct {
	ID        string     `json:"id"`
	Name      *string    `json:"name"`
	KeyPrefix string     `json:"keyPrefix"`
	IsActive  bool       `json:"isActive"`
	ExpiresAt *time.Time `json:"expiresAt"`
	LastUsed  *time.Time `json:"lastUsed"`
	CreatedAt time.Time  `json:"createdAt"`
}

func toAPIKeyResp(k model.APIKey) apiKeyResp {
	return apiKeyResp{
		ID:        k.ID,
		Name:      k.Name,
		KeyPrefix: k.KeyPrefix,
		IsActive:  k.IsActive,
		ExpiresAt: k.ExpiresAt,
		LastUsed:  k.LastUsed,
		CreatedAt: k.CreatedAt,
	}
}

type createdAPIKeyResp struct {
	apiKeyResp
	Key string `json:"key"`
}

type paginationResp struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

type userPageResp struct {
	Users      []userResp     `json:"users"`
	Pagination paginationResp `json:"pagination"`
}

func toUserPageResp(p service.UserPage) userPageResp {
	users := make([]userResp, 0, len(p.Users))
	for _, u := range p.Users {
		users = append(users, toUserResp(u))
	}
	return userPageResp{
		Users: users,
		Pagination: paginationResp{
			Page:       p.Page,
			Limit:      p.Limit,
			Total:      p.Total,
			TotalPages: p.TotalPages,
		},
	}
}

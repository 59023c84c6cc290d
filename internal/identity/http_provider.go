package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// HTTPProvider implementa Provider contra la API REST del identity
// provider gestionado.
type HTTPProvider struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *zap.Logger
}

// NewHTTPProvider construye un cliente HTTP apuntando a la API del provider.
func NewHTTPProvider(baseURL, apiKey string, logger *zap.Logger) *HTTPProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 10 * time.Second},
		logger:  logger,
	}
}

type verifyRequest struct {
	Token string `json:"token"`
}

type createUserRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name,omitempty"`
}

type updateUserRequest struct {
	DisplayName string `json:"display_name"`
}

type providerUser struct {
	UID           string `json:"uid"`
	Email         string `json:"email"`
	DisplayName   string `json:"display_name"`
	EmailVerified bool   `json:"email_verified"`
}

type providerError struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (p *HTTPProvider) VerifyToken(ctx context.Context, token string) (Token, error) {
	var user providerUser
	status, err := p.do(ctx, http.MethodPost, "/v1/tokens:verify", verifyRequest{Token: token}, &user)
	if err != nil {
		p.logger.Warn("token verification failed", zap.Error(err))
		return Token{}, ErrTokenInvalid
	}
	if status >= 400 {
		return Token{}, ErrTokenInvalid
	}
	if user.UID == "" {
		return Token{}, ErrTokenInvalid
	}
	return Token{
		UID:           user.UID,
		Email:         user.Email,
		Name:          user.DisplayName,
		EmailVerified: user.EmailVerified,
	}, nil
}

func (p *HTTPProvider) CreateUser(ctx context.Context, email, password, name string) (Token, error) {
	var user providerUser
	status, err := p.do(ctx, http.MethodPost, "/v1/users", createUserRequest{
		Email:       email,
		Password:    password,
		DisplayName: name,
	}, &user)
	if err != nil {
		return Token{}, err
	}
	if status == http.StatusConflict {
		return Token{}, ErrEmailTaken
	}
	if status >= 400 {
		return Token{}, fmt.Errorf("identity create user: status=%d", status)
	}
	return Token{
		UID:           user.UID,
		Email:         user.Email,
		Name:          user.DisplayName,
		EmailVerified: user.EmailVerified,
	}, nil
}

func (p *HTTPProvider) UpdateUser(ctx context.Context, uid, name string) error {
	status, err := p.do(ctx, http.MethodPatch, "/v1/users/"+uid, updateUserRequest{DisplayName: name}, nil)
	if err != nil {
		return err
	}
	if status == http.StatusNotFound {
		return ErrUserMissing
	}
	if status >= 400 {
		return fmt.Errorf("identity update user: status=%d", status)
	}
	return nil
}

func (p *HTTPProvider) DeleteUser(ctx context.Context, uid string) error {
	status, err := p.do(ctx, http.MethodDelete, "/v1/users/"+uid, nil, nil)
	if err != nil {
		return err
	}
	if status == http.StatusNotFound {
		return ErrUserMissing
	}
	if status >= 400 {
		return fmt.Errorf("identity delete user: status=%d", status)
	}
	return nil
}

// do ejecuta un request JSON y decodifica el body en out si aplica.
// Devuelve el status HTTP para que el caller distinga conflictos y 404.
func (p *HTTPProvider) do(ctx context.Context, method, path string, body, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, reader)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var pe providerError
		if json.Unmarshal(respBody, &pe) == nil && pe.Error.Message != "" {
			p.logger.Warn("identity provider error",
				zap.Int("status", resp.StatusCode),
				zap.String("code", pe.Error.Code),
				zap.String("message", pe.Error.Message),
			)
		}
		return resp.StatusCode, nil
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return resp.StatusCode, fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

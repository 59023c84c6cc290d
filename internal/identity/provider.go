package identity

import (
	"context"
	"errors"
)

// Token es la identidad normalizada que devuelve el provider al
// verificar un bearer token. Contiene hechos, no decisiones.
type Token struct {
	UID           string `json:"uid"`
	Email         string `json:"email,omitempty"`
	Name          string `json:"name,omitempty"`
	EmailVerified bool   `json:"email_verified"`
}

var (
	// ErrTokenInvalid cubre token expirado, malformado, revocado o
	// provider inalcanzable; el detalle queda en los logs del caller.
	ErrTokenInvalid = errors.New("identity token invalid")
	ErrEmailTaken   = errors.New("identity email already exists")
	ErrUserMissing  = errors.New("identity user not found")
)

// Provider define el contrato con el identity provider externo.
// Las implementaciones no crean perfiles ni toman decisiones de acceso.
type Provider interface {
	// VerifyToken valida el token contra el provider en cada llamada;
	// no hay cache ni reintentos.
	VerifyToken(ctx context.Context, token string) (Token, error)

	// CreateUser da de alta una identidad con email y password.
	CreateUser(ctx context.Context, email, password, name string) (Token, error)

	// UpdateUser actualiza el display name de una identidad existente.
	UpdateUser(ctx context.Context, uid, name string) error

	// DeleteUser elimina la identidad. Devuelve ErrUserMissing si el
	// uid no existe.
	DeleteUser(ctx context.Context, uid string) error
}

package identity

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const localIssuer = "syncly-local"

// LocalProvider implementa Provider en memoria para desarrollo y tests:
// firma y valida ID tokens HS256 y guarda usuarios con hash bcrypt.
type LocalProvider struct {
	secret   []byte
	tokenTTL time.Duration

	mu      sync.Mutex
	byUID   map[string]localUser
	byEmail map[string]string
}

type localUser struct {
	uid          string
	email        string
	name         string
	passwordHash string
}

type localClaims struct {
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// NewLocalProvider crea un provider local con el secreto HS256 dado.
func NewLocalProvider(secret string) *LocalProvider {
	return &LocalProvider{
		secret:   []byte(secret),
		tokenTTL: time.Hour,
		byUID:    make(map[string]localUser),
		byEmail:  make(map[string]string),
	}
}

func (p *LocalProvider) VerifyToken(_ context.Context, token string) (Token, error) {
	if strings.TrimSpace(token) == "" || len(p.secret) == 0 {
		return Token{}, ErrTokenInvalid
	}

	var claims localClaims
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	_, err := parser.ParseWithClaims(token, &claims, func(_ *jwt.Token) (any, error) {
		return p.secret, nil
	})
	if err != nil {
		return Token{}, ErrTokenInvalid
	}
	if claims.Issuer != localIssuer || strings.TrimSpace(claims.Subject) == "" {
		return Token{}, ErrTokenInvalid
	}

	return Token{
		UID:           claims.Subject,
		Email:         claims.Email,
		Name:          claims.Name,
		EmailVerified: true,
	}, nil
}

func (p *LocalProvider) CreateUser(_ context.Context, email, password, name string) (Token, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return Token{}, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.byEmail[email]; exists {
		return Token{}, ErrEmailTaken
	}

	user := localUser{
		uid:          uuid.NewString(),
		email:        email,
		name:         strings.TrimSpace(name),
		passwordHash: string(hash),
	}
	p.byUID[user.uid] = user
	p.byEmail[email] = user.uid

	return Token{UID: user.uid, Email: user.email, Name: user.name}, nil
}

func (p *LocalProvider) UpdateUser(_ context.Context, uid, name string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	user, ok := p.byUID[uid]
	if !ok {
		return ErrUserMissing
	}
	user.name = strings.TrimSpace(name)
	p.byUID[uid] = user
	return nil
}

func (p *LocalProvider) DeleteUser(_ context.Context, uid string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	user, ok := p.byUID[uid]
	if !ok {
		return ErrUserMissing
	}
	delete(p.byUID, uid)
	delete(p.byEmail, user.email)
	return nil
}

// IssueToken firma un ID token para el uid dado. Lo usan los tests y el
// modo local; en producción los tokens los emite el provider gestionado.
func (p *LocalProvider) IssueToken(uid string) (string, error) {
	p.mu.Lock()
	user, ok := p.byUID[uid]
	p.mu.Unlock()
	if !ok {
		return "", ErrUserMissing
	}

	now := time.Now().UTC()
	claims := localClaims{
		Email: user.email,
		Name:  user.name,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    localIssuer,
			Subject:   user.uid,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(p.tokenTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(p.secret)
}

package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"syncly-backend/internal/domain"
	"syncly-backend/internal/email"
	"syncly-backend/internal/identity"
	"syncly-backend/internal/repository"
)

var (
	ErrTokenInvalid    = errors.New("token invalid")
	ErrEmailExists     = errors.New("email already registered")
	ErrProfileNotFound = errors.New("profile not found")
	ErrInvalidRole     = errors.New("invalid role")
	ErrInvalidEmail    = errors.New("invalid email")
)

// AuthService coordina el identity provider externo y la tabla de
// perfiles. Cada operación son llamadas secuenciales sin reintentos;
// las fallas parciales en flujos de dos sistemas dejan un registro de
// reconciliación en lugar de esconderse.
type AuthService struct {
	logger          *zap.Logger
	provider        identity.Provider
	profiles        repository.ProfileRepository
	reconciliations repository.ReconciliationRepository
	welcome         email.Sender
}

func NewAuthService(
	logger *zap.Logger,
	provider identity.Provider,
	profiles repository.ProfileRepository,
	reconciliations repository.ReconciliationRepository,
	welcome email.Sender,
) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		logger:          logger,
		provider:        provider,
		profiles:        profiles,
		reconciliations: reconciliations,
		welcome:         welcome,
	}
}

// Login verifica el token contra el provider y hace upsert del perfil
// con clave uid, estampando last_login. El rol solo se asigna cuando la
// fila es nueva; un rol elevado existente nunca se revalida ni degrada.
func (s *AuthService) Login(ctx context.Context, token string) (domain.Profile, error) {
	decoded, err := s.provider.VerifyToken(ctx, token)
	if err != nil {
		return domain.Profile{}, ErrTokenInvalid
	}

	role := domain.RoleUser
	patch := domain.ProfilePatch{
		Email:      &decoded.Email,
		Role:       &role,
		StampLogin: true,
	}
	if decoded.Name != "" {
		patch.Name = &decoded.Name
	}

	profile, err := s.profiles.Upsert(ctx, decoded.UID, patch)
	if err != nil {
		return domain.Profile{}, fmt.Errorf("login upsert: %w", err)
	}
	return profile, nil
}

type RegisterInput struct {
	Email          string
	Password       string
	Name           string
	OrganizationID string
	Role           string
}

type RegisterOutput struct {
	UserID  string         `json:"userId"`
	Email   string         `json:"email"`
	Profile domain.Profile `json:"profile"`
}

// Register crea la identidad y luego el perfil. Si el perfil falla se
// intenta borrar la identidad recién creada; si ese borrado también
// falla, la identidad huérfana queda registrada para reconciliación.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (RegisterOutput, error) {
	emailAddr := normalizeEmail(input.Email)
	if emailAddr == "" {
		return RegisterOutput{}, ErrInvalidEmail
	}

	role := strings.TrimSpace(input.Role)
	if role == "" {
		role = domain.RoleUser
	}
	if !domain.ValidRole(role) {
		return RegisterOutput{}, ErrInvalidRole
	}

	// Chequeo previo por email; dos registros concurrentes pueden pasar
	// ambos, el conflicto real lo resuelve el provider.
	_, err := s.profiles.GetByEmail(ctx, emailAddr)
	if err == nil {
		return RegisterOutput{}, ErrEmailExists
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return RegisterOutput{}, fmt.Errorf("register precheck: %w", err)
	}

	created, err := s.provider.CreateUser(ctx, emailAddr, input.Password, input.Name)
	if err != nil {
		if errors.Is(err, identity.ErrEmailTaken) {
			return RegisterOutput{}, ErrEmailExists
		}
		return RegisterOutput{}, fmt.Errorf("register identity: %w", err)
	}

	name := strings.TrimSpace(input.Name)
	patch := domain.ProfilePatch{
		Email: &emailAddr,
		Role:  &role,
		Preferences: map[string]any{
			"organizationId": nil,
		},
	}
	if input.OrganizationID != "" {
		patch.Preferences["organizationId"] = input.OrganizationID
	}
	if name != "" {
		patch.Name = &name
	}

	profile, err := s.profiles.Upsert(ctx, created.UID, patch)
	if err != nil {
		s.compensateIdentity(ctx, created.UID, emailAddr, err)
		return RegisterOutput{}, fmt.Errorf("register profile: %w", err)
	}

	if s.welcome != nil {
		if err := s.welcome.SendWelcome(ctx, emailAddr, name); err != nil {
			s.logger.Warn("welcome email failed", zap.Error(err), zap.String("email", emailAddr))
		}
	}

	return RegisterOutput{
		UserID:  created.UID,
		Email:   created.Email,
		Profile: profile,
	}, nil
}

// compensateIdentity borra la identidad recién creada tras un fallo del
// perfil. El borrado es best-effort: su propio fallo persiste un registro
// de reconciliación con la identidad huérfana.
func (s *AuthService) compensateIdentity(ctx context.Context, uid, emailAddr string, cause error) {
	err := s.provider.DeleteUser(ctx, uid)
	if err == nil || errors.Is(err, identity.ErrUserMissing) {
		return
	}
	s.logger.Error("identity rollback failed, orphan identity remains",
		zap.String("uid", uid),
		zap.Error(err),
	)

	if s.reconciliations == nil {
		return
	}
	rec := domain.ReconciliationRecord{
		ID:        uuid.NewString(),
		UID:       uid,
		Email:     emailAddr,
		Action:    domain.ReconcileDeleteIdentity,
		Reason:    fmt.Sprintf("profile write failed: %v", cause),
		CreatedAt: time.Now().UTC(),
	}
	if err := s.reconciliations.Record(ctx, rec); err != nil {
		s.logger.Error("record reconciliation failed", zap.String("uid", uid), zap.Error(err))
	}
}

// GetProfile distingue fila ausente de fallo del backend.
func (s *AuthService) GetProfile(ctx context.Context, uid string) (domain.Profile, error) {
	profile, err := s.profiles.GetByID(ctx, uid)
	if errors.Is(err, repository.ErrNotFound) {
		return domain.Profile{}, ErrProfileNotFound
	}
	if err != nil {
		return domain.Profile{}, err
	}
	return profile, nil
}

// UpdateProfile aplica un patch parcial. Email y rol ya vienen
// despojados por el handler; un cambio de nombre se propaga primero al
// identity provider.
func (s *AuthService) UpdateProfile(ctx context.Context, uid string, patch domain.ProfilePatch) (domain.Profile, error) {
	patch.Email = nil
	patch.Role = nil
	patch.StampLogin = false

	if patch.Name != nil {
		if err := s.provider.UpdateUser(ctx, uid, *patch.Name); err != nil {
			return domain.Profile{}, fmt.Errorf("update identity name: %w", err)
		}
	}

	profile, err := s.profiles.Upsert(ctx, uid, patch)
	if err != nil {
		return domain.Profile{}, fmt.Errorf("update profile: %w", err)
	}
	return profile, nil
}

// UpdatePreferences reemplaza el mapa completo; no hace merge.
func (s *AuthService) UpdatePreferences(ctx context.Context, uid string, prefs map[string]any) (domain.Profile, error) {
	profile, err := s.profiles.ReplacePreferences(ctx, uid, prefs)
	if errors.Is(err, repository.ErrNotFound) {
		return domain.Profile{}, ErrProfileNotFound
	}
	if err != nil {
		return domain.Profile{}, err
	}
	return profile, nil
}

// DeleteAccount borra identidad y perfil en ese orden. Los dos borrados
// no son atómicos: si el segundo falla, el perfil huérfano queda
// registrado para reconciliación y la operación devuelve error.
func (s *AuthService) DeleteAccount(ctx context.Context, uid string) error {
	if err := s.provider.DeleteUser(ctx, uid); err != nil && !errors.Is(err, identity.ErrUserMissing) {
		return fmt.Errorf("delete identity: %w", err)
	}

	err := s.profiles.Delete(ctx, uid)
	if err == nil || errors.Is(err, repository.ErrNotFound) {
		return nil
	}

	s.logger.Error("profile delete failed after identity delete",
		zap.String("uid", uid),
		zap.Error(err),
	)
	if s.reconciliations != nil {
		rec := domain.ReconciliationRecord{
			ID:        uuid.NewString(),
			UID:       uid,
			Action:    domain.ReconcileDeleteProfile,
			Reason:    fmt.Sprintf("profile delete failed: %v", err),
			CreatedAt: time.Now().UTC(),
		}
		if recErr := s.reconciliations.Record(ctx, rec); recErr != nil {
			s.logger.Error("record reconciliation failed", zap.String("uid", uid), zap.Error(recErr))
		}
	}
	return fmt.Errorf("delete profile: %w", err)
}

// UpdateRole valida contra el conjunto fijo antes de escribir.
func (s *AuthService) UpdateRole(ctx context.Context, uid, role string) (domain.Profile, error) {
	if !domain.ValidRole(role) {
		return domain.Profile{}, ErrInvalidRole
	}
	profile, err := s.profiles.UpdateRole(ctx, uid, role)
	if errors.Is(err, repository.ErrNotFound) {
		return domain.Profile{}, ErrProfileNotFound
	}
	if err != nil {
		return domain.Profile{}, err
	}
	return profile, nil
}

// PendingReconciliations lista las mitades fallidas aún sin resolver,
// para que un operador las limpie fuera de banda.
func (s *AuthService) PendingReconciliations(ctx context.Context) ([]domain.ReconciliationRecord, error) {
	if s.reconciliations == nil {
		return nil, nil
	}
	return s.reconciliations.Pending(ctx)
}

// RolesFor devuelve los roles del uid como slice de un elemento. Sin
// perfil, o si la lectura falla en este camino, se degrada al privilegio
// mínimo en lugar de rechazar el request.
func (s *AuthService) RolesFor(ctx context.Context, uid string) []string {
	profile, err := s.profiles.GetByID(ctx, uid)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			s.logger.Warn("role lookup failed, defaulting to user", zap.String("uid", uid), zap.Error(err))
		}
		return []string{domain.RoleUser}
	}
	return []string{profile.Role}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

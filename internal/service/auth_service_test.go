package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap"

	"syncly-backend/internal/domain"
	"syncly-backend/internal/identity"
	"syncly-backend/internal/repository"
)

type mockProvider struct {
	tokens      map[string]identity.Token
	users       map[string]identity.Token
	createErr   error
	deleteErr   error
	deleted     []string
	created     int
	updatedName map[string]string
}

func newMockProvider() *mockProvider {
	return &mockProvider{
		tokens:      make(map[string]identity.Token),
		users:       make(map[string]identity.Token),
		updatedName: make(map[string]string),
	}
}

func (m *mockProvider) VerifyToken(_ context.Context, token string) (identity.Token, error) {
	decoded, ok := m.tokens[token]
	if !ok {
		return identity.Token{}, identity.ErrTokenInvalid
	}
	return decoded, nil
}

func (m *mockProvider) CreateUser(_ context.Context, email, _, name string) (identity.Token, error) {
	if m.createErr != nil {
		return identity.Token{}, m.createErr
	}
	for _, u := range m.users {
		if u.Email == email {
			return identity.Token{}, identity.ErrEmailTaken
		}
	}
	m.created++
	user := identity.Token{UID: fmt.Sprintf("uid-%d", m.created), Email: email, Name: name}
	m.users[user.UID] = user
	return user, nil
}

func (m *mockProvider) UpdateUser(_ context.Context, uid, name string) error {
	if _, ok := m.users[uid]; !ok {
		return identity.ErrUserMissing
	}
	m.updatedName[uid] = name
	return nil
}

func (m *mockProvider) DeleteUser(_ context.Context, uid string) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	if _, ok := m.users[uid]; !ok {
		return identity.ErrUserMissing
	}
	delete(m.users, uid)
	m.deleted = append(m.deleted, uid)
	return nil
}

type mockProfileRepo struct {
	profiles   map[string]domain.Profile
	upsertErr  error
	getErr     error
	deleteErr  error
	roleWrites int
}

func newMockProfileRepo() *mockProfileRepo {
	return &mockProfileRepo{profiles: make(map[string]domain.Profile)}
}

func (m *mockProfileRepo) Upsert(_ context.Context, uid string, patch domain.ProfilePatch) (domain.Profile, error) {
	if m.upsertErr != nil {
		return domain.Profile{}, m.upsertErr
	}
	profile, exists := m.profiles[uid]
	if !exists {
		profile = domain.Profile{ID: uid, Role: domain.RoleUser, CreatedAt: time.Now().UTC()}
		if patch.Role != nil {
			profile.Role = *patch.Role
		}
	}
	if patch.Email != nil {
		profile.Email = *patch.Email
	}
	if patch.Name != nil {
		profile.Name = *patch.Name
	}
	if patch.AvatarURL != nil {
		profile.AvatarURL = *patch.AvatarURL
	}
	if patch.Preferences != nil {
		profile.Preferences = patch.Preferences
	}
	if patch.StampLogin {
		now := time.Now().UTC()
		profile.LastLogin = &now
	}
	m.profiles[uid] = profile
	return profile, nil
}

func (m *mockProfileRepo) GetByID(_ context.Context, uid string) (domain.Profile, error) {
	if m.getErr != nil {
		return domain.Profile{}, m.getErr
	}
	profile, ok := m.profiles[uid]
	if !ok {
		return domain.Profile{}, repository.ErrNotFound
	}
	return profile, nil
}

func (m *mockProfileRepo) GetByEmail(_ context.Context, email string) (domain.Profile, error) {
	if m.getErr != nil {
		return domain.Profile{}, m.getErr
	}
	for _, p := range m.profiles {
		if p.Email == email {
			return p, nil
		}
	}
	return domain.Profile{}, repository.ErrNotFound
}

func (m *mockProfileRepo) ReplacePreferences(_ context.Context, uid string, prefs map[string]any) (domain.Profile, error) {
	profile, ok := m.profiles[uid]
	if !ok {
		return domain.Profile{}, repository.ErrNotFound
	}
	profile.Preferences = prefs
	m.profiles[uid] = profile
	return profile, nil
}

func (m *mockProfileRepo) UpdateRole(_ context.Context, uid, role string) (domain.Profile, error) {
	profile, ok := m.profiles[uid]
	if !ok {
		return domain.Profile{}, repository.ErrNotFound
	}
	profile.Role = role
	m.profiles[uid] = profile
	m.roleWrites++
	return profile, nil
}

func (m *mockProfileRepo) Delete(_ context.Context, uid string) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	if _, ok := m.profiles[uid]; !ok {
		return repository.ErrNotFound
	}
	delete(m.profiles, uid)
	return nil
}

type mockReconciliationRepo struct {
	records []domain.ReconciliationRecord
}

func (m *mockReconciliationRepo) Record(_ context.Context, rec domain.ReconciliationRecord) error {
	m.records = append(m.records, rec)
	return nil
}

func (m *mockReconciliationRepo) Pending(_ context.Context) ([]domain.ReconciliationRecord, error) {
	return m.records, nil
}

func (m *mockReconciliationRepo) Resolve(_ context.Context, _ string) error {
	return nil
}

func newTestService(provider *mockProvider, profiles *mockProfileRepo, recs *mockReconciliationRepo) *AuthService {
	return NewAuthService(zap.NewNop(), provider, profiles, recs, nil)
}

func TestLogin_CreatesProfileWithDefaultRole(t *testing.T) {
	provider := newMockProvider()
	provider.tokens["tok-1"] = identity.Token{UID: "u1", Email: "a@x.com", Name: "Ana"}
	profiles := newMockProfileRepo()
	svc := newTestService(provider, profiles, &mockReconciliationRepo{})

	profile, err := svc.Login(context.Background(), "tok-1")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if profile.ID != "u1" || profile.Role != domain.RoleUser {
		t.Fatalf("unexpected profile %+v", profile)
	}
	if profile.LastLogin == nil {
		t.Fatalf("expected last_login stamp")
	}
}

func TestLogin_PreservesElevatedRole(t *testing.T) {
	provider := newMockProvider()
	provider.tokens["tok-1"] = identity.Token{UID: "u1", Email: "a@x.com"}
	profiles := newMockProfileRepo()
	profiles.profiles["u1"] = domain.Profile{ID: "u1", Email: "a@x.com", Role: domain.RoleAdmin}
	svc := newTestService(provider, profiles, &mockReconciliationRepo{})

	profile, err := svc.Login(context.Background(), "tok-1")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if profile.Role != domain.RoleAdmin {
		t.Fatalf("expected admin role preserved, got %q", profile.Role)
	}
}

func TestLogin_InvalidTokenNoMutation(t *testing.T) {
	provider := newMockProvider()
	profiles := newMockProfileRepo()
	svc := newTestService(provider, profiles, &mockReconciliationRepo{})

	_, err := svc.Login(context.Background(), "bad-token")
	if !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
	if len(profiles.profiles) != 0 {
		t.Fatalf("expected no store mutation")
	}
}

func TestRegister_Success(t *testing.T) {
	provider := newMockProvider()
	profiles := newMockProfileRepo()
	svc := newTestService(provider, profiles, &mockReconciliationRepo{})

	out, err := svc.Register(context.Background(), RegisterInput{
		Email:          "a@x.com",
		Password:       "Abc12345",
		OrganizationID: "org-1",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if out.Profile.Role != domain.RoleUser {
		t.Fatalf("expected default role user, got %q", out.Profile.Role)
	}
	if out.Profile.Preferences["organizationId"] != "org-1" {
		t.Fatalf("expected organizationId in preferences, got %+v", out.Profile.Preferences)
	}
	if out.UserID == "" || out.Email != "a@x.com" {
		t.Fatalf("unexpected output %+v", out)
	}
}

func TestRegister_DuplicateEmailCreatesNoIdentity(t *testing.T) {
	provider := newMockProvider()
	profiles := newMockProfileRepo()
	profiles.profiles["u1"] = domain.Profile{ID: "u1", Email: "a@x.com", Role: domain.RoleUser}
	svc := newTestService(provider, profiles, &mockReconciliationRepo{})

	_, err := svc.Register(context.Background(), RegisterInput{Email: "a@x.com", Password: "Abc12345"})
	if !errors.Is(err, ErrEmailExists) {
		t.Fatalf("expected ErrEmailExists, got %v", err)
	}
	if provider.created != 0 {
		t.Fatalf("expected no identity created")
	}
}

func TestRegister_ProfileFailureRollsBackIdentity(t *testing.T) {
	provider := newMockProvider()
	profiles := newMockProfileRepo()
	profiles.upsertErr = errors.New("store down")
	svc := newTestService(provider, profiles, &mockReconciliationRepo{})

	_, err := svc.Register(context.Background(), RegisterInput{Email: "a@x.com", Password: "Abc12345"})
	if err == nil {
		t.Fatalf("expected error")
	}
	if len(provider.deleted) != 1 {
		t.Fatalf("expected identity rollback, deleted=%v", provider.deleted)
	}
}

func TestRegister_DoubleFailureRecordsOrphan(t *testing.T) {
	provider := newMockProvider()
	provider.deleteErr = errors.New("provider down")
	profiles := newMockProfileRepo()
	profiles.upsertErr = errors.New("store down")
	recs := &mockReconciliationRepo{}
	svc := newTestService(provider, profiles, recs)

	_, err := svc.Register(context.Background(), RegisterInput{Email: "a@x.com", Password: "Abc12345"})
	if err == nil {
		t.Fatalf("expected error")
	}
	if len(recs.records) != 1 {
		t.Fatalf("expected one reconciliation record, got %d", len(recs.records))
	}
	if recs.records[0].Action != domain.ReconcileDeleteIdentity {
		t.Fatalf("unexpected action %q", recs.records[0].Action)
	}
	// La identidad huérfana persiste, documentada, no arreglada en silencio.
	if len(provider.users) != 1 {
		t.Fatalf("expected orphan identity to remain")
	}
}

func TestRegister_InvalidRoleRejected(t *testing.T) {
	provider := newMockProvider()
	profiles := newMockProfileRepo()
	svc := newTestService(provider, profiles, &mockReconciliationRepo{})

	_, err := svc.Register(context.Background(), RegisterInput{Email: "a@x.com", Password: "Abc12345", Role: "superadmin"})
	if !errors.Is(err, ErrInvalidRole) {
		t.Fatalf("expected ErrInvalidRole, got %v", err)
	}
	if provider.created != 0 {
		t.Fatalf("expected no identity created")
	}
}

func TestGetProfile_DistinguishesAbsenceFromFailure(t *testing.T) {
	provider := newMockProvider()
	profiles := newMockProfileRepo()
	svc := newTestService(provider, profiles, &mockReconciliationRepo{})

	_, err := svc.GetProfile(context.Background(), "missing")
	if !errors.Is(err, ErrProfileNotFound) {
		t.Fatalf("expected ErrProfileNotFound, got %v", err)
	}

	profiles.getErr = errors.New("store down")
	_, err = svc.GetProfile(context.Background(), "missing")
	if errors.Is(err, ErrProfileNotFound) {
		t.Fatalf("backend failure must not surface as not found")
	}
	if err == nil {
		t.Fatalf("expected error")
	}
}

func TestUpdateProfile_StripsEmailAndRoleAndSyncsName(t *testing.T) {
	provider := newMockProvider()
	provider.users["u1"] = identity.Token{UID: "u1", Email: "a@x.com"}
	profiles := newMockProfileRepo()
	profiles.profiles["u1"] = domain.Profile{ID: "u1", Email: "a@x.com", Role: domain.RoleAdmin}
	svc := newTestService(provider, profiles, &mockReconciliationRepo{})

	newEmail := "evil@x.com"
	newRole := domain.RoleAdmin
	newName := "Ana María"
	profile, err := svc.UpdateProfile(context.Background(), "u1", domain.ProfilePatch{
		Email: &newEmail,
		Role:  &newRole,
		Name:  &newName,
	})
	if err != nil {
		t.Fatalf("update profile: %v", err)
	}
	if profile.Email != "a@x.com" {
		t.Fatalf("email must not be updatable, got %q", profile.Email)
	}
	if provider.updatedName["u1"] != "Ana María" {
		t.Fatalf("expected display name forwarded to provider")
	}
}

func TestUpdateRole_InvalidValueNoWrite(t *testing.T) {
	provider := newMockProvider()
	profiles := newMockProfileRepo()
	profiles.profiles["u1"] = domain.Profile{ID: "u1", Role: domain.RoleUser}
	svc := newTestService(provider, profiles, &mockReconciliationRepo{})

	_, err := svc.UpdateRole(context.Background(), "u1", "root")
	if !errors.Is(err, ErrInvalidRole) {
		t.Fatalf("expected ErrInvalidRole, got %v", err)
	}
	if profiles.roleWrites != 0 {
		t.Fatalf("expected no role write")
	}
	if profiles.profiles["u1"].Role != domain.RoleUser {
		t.Fatalf("role must remain unchanged")
	}
}

func TestDeleteAccount_ProfileFailureRecordsReconciliation(t *testing.T) {
	provider := newMockProvider()
	provider.users["u1"] = identity.Token{UID: "u1", Email: "a@x.com"}
	profiles := newMockProfileRepo()
	profiles.profiles["u1"] = domain.Profile{ID: "u1", Email: "a@x.com", Role: domain.RoleUser}
	profiles.deleteErr = errors.New("store down")
	recs := &mockReconciliationRepo{}
	svc := newTestService(provider, profiles, recs)

	err := svc.DeleteAccount(context.Background(), "u1")
	if err == nil {
		t.Fatalf("expected error")
	}
	if len(recs.records) != 1 || recs.records[0].Action != domain.ReconcileDeleteProfile {
		t.Fatalf("expected delete_profile reconciliation, got %+v", recs.records)
	}
	if _, ok := provider.users["u1"]; ok {
		t.Fatalf("identity should be deleted")
	}
}

func TestDeleteAccount_Success(t *testing.T) {
	provider := newMockProvider()
	provider.users["u1"] = identity.Token{UID: "u1", Email: "a@x.com"}
	profiles := newMockProfileRepo()
	profiles.profiles["u1"] = domain.Profile{ID: "u1", Email: "a@x.com", Role: domain.RoleUser}
	svc := newTestService(provider, profiles, &mockReconciliationRepo{})

	if err := svc.DeleteAccount(context.Background(), "u1"); err != nil {
		t.Fatalf("delete account: %v", err)
	}
	if len(profiles.profiles) != 0 || len(provider.users) != 0 {
		t.Fatalf("expected both identity and profile removed")
	}
}

func TestRolesFor_DefaultsToUser(t *testing.T) {
	provider := newMockProvider()
	profiles := newMockProfileRepo()
	svc := newTestService(provider, profiles, &mockReconciliationRepo{})

	roles := svc.RolesFor(context.Background(), "missing")
	if len(roles) != 1 || roles[0] != domain.RoleUser {
		t.Fatalf("expected [user], got %v", roles)
	}

	profiles.getErr = errors.New("store down")
	roles = svc.RolesFor(context.Background(), "missing")
	if len(roles) != 1 || roles[0] != domain.RoleUser {
		t.Fatalf("expected fail-open [user], got %v", roles)
	}
}

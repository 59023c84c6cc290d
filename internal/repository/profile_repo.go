package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"syncly-backend/internal/domain"
)

// ErrNotFound indica fila ausente. Los fallos del backend se devuelven
// envueltos, nunca colapsados en ErrNotFound, para que el caller pueda
// distinguir un 404 de una caída del store.
var ErrNotFound = errors.New("profile not found")

// ProfileRepository define el contrato de persistencia para perfiles.
type ProfileRepository interface {
	Upsert(ctx context.Context, uid string, patch domain.ProfilePatch) (domain.Profile, error)
	GetByID(ctx context.Context, uid string) (domain.Profile, error)
	GetByEmail(ctx context.Context, email string) (domain.Profile, error)
	ReplacePreferences(ctx context.Context, uid string, prefs map[string]any) (domain.Profile, error)
	UpdateRole(ctx context.Context, uid, role string) (domain.Profile, error)
	Delete(ctx context.Context, uid string) error
}

// PgProfileRepository implementa ProfileRepository usando pgxpool.
type PgProfileRepository struct {
	pool *pgxpool.Pool
}

func NewPgProfileRepository(pool *pgxpool.Pool) *PgProfileRepository {
	return &PgProfileRepository{pool: pool}
}

const profileColumns = "id, email, name, role, avatar_url, preferences, last_login, created_at"

// Upsert inserta o actualiza la fila con clave id=uid. Solo las columnas
// presentes en el patch se escriben y en conflicto las demás quedan como
// estaban. El rol solo aplica en el insert: un login repetido nunca pisa
// un rol elevado; los cambios de rol pasan por UpdateRole.
func (r *PgProfileRepository) Upsert(ctx context.Context, uid string, patch domain.ProfilePatch) (domain.Profile, error) {
	cols := []string{"id"}
	args := []any{uid}

	addCol := func(name string, value any) {
		cols = append(cols, name)
		args = append(args, value)
	}
	if patch.Email != nil {
		addCol("email", *patch.Email)
	}
	if patch.Name != nil {
		addCol("name", *patch.Name)
	}
	if patch.Role != nil {
		addCol("role", *patch.Role)
	}
	if patch.AvatarURL != nil {
		addCol("avatar_url", *patch.AvatarURL)
	}
	if patch.Preferences != nil {
		addCol("preferences", patch.Preferences)
	}

	placeholders := make([]string, len(cols))
	for i := range cols {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}

	updates := make([]string, 0, len(cols))
	for _, col := range cols[1:] {
		if col == "role" {
			continue
		}
		updates = append(updates, fmt.Sprintf("%s = EXCLUDED.%s", col, col))
	}
	if patch.StampLogin {
		cols = append(cols, "last_login")
		placeholders = append(placeholders, "now()")
		updates = append(updates, "last_login = now()")
	}
	if len(updates) == 0 {
		updates = append(updates, "id = EXCLUDED.id")
	}

	query := fmt.Sprintf(`
		INSERT INTO profiles (%s)
		VALUES (%s)
		ON CONFLICT (id) DO UPDATE SET %s
		RETURNING %s
	`,
		strings.Join(cols, ", "),
		strings.Join(placeholders, ", "),
		strings.Join(updates, ", "),
		profileColumns,
	)

	profile, err := scanProfile(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		return domain.Profile{}, fmt.Errorf("upsert profile: %w", err)
	}
	return profile, nil
}

func (r *PgProfileRepository) GetByID(ctx context.Context, uid string) (domain.Profile, error) {
	const query = `
		SELECT ` + profileColumns + `
		FROM profiles
		WHERE id = $1
	`
	profile, err := scanProfile(r.pool.QueryRow(ctx, query, uid))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Profile{}, ErrNotFound
	}
	if err != nil {
		return domain.Profile{}, fmt.Errorf("get profile: %w", err)
	}
	return profile, nil
}

func (r *PgProfileRepository) GetByEmail(ctx context.Context, email string) (domain.Profile, error) {
	const query = `
		SELECT ` + profileColumns + `
		FROM profiles
		WHERE email = $1
	`
	profile, err := scanProfile(r.pool.QueryRow(ctx, query, email))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Profile{}, ErrNotFound
	}
	if err != nil {
		return domain.Profile{}, fmt.Errorf("get profile by email: %w", err)
	}
	return profile, nil
}

// ReplacePreferences reemplaza la columna completa; no hace merge.
func (r *PgProfileRepository) ReplacePreferences(ctx context.Context, uid string, prefs map[string]any) (domain.Profile, error) {
	const query = `
		UPDATE profiles
		SET preferences = $2
		WHERE id = $1
		RETURNING ` + profileColumns + `
	`
	profile, err := scanProfile(r.pool.QueryRow(ctx, query, uid, prefs))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Profile{}, ErrNotFound
	}
	if err != nil {
		return domain.Profile{}, fmt.Errorf("replace preferences: %w", err)
	}
	return profile, nil
}

func (r *PgProfileRepository) UpdateRole(ctx context.Context, uid, role string) (domain.Profile, error) {
	const query = `
		UPDATE profiles
		SET role = $2
		WHERE id = $1
		RETURNING ` + profileColumns + `
	`
	profile, err := scanProfile(r.pool.QueryRow(ctx, query, uid, role))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Profile{}, ErrNotFound
	}
	if err != nil {
		return domain.Profile{}, fmt.Errorf("update role: %w", err)
	}
	return profile, nil
}

func (r *PgProfileRepository) Delete(ctx context.Context, uid string) error {
	const query = `
		DELETE FROM profiles
		WHERE id = $1
	`
	tag, err := r.pool.Exec(ctx, query, uid)
	if err != nil {
		return fmt.Errorf("delete profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(row rowScanner) (domain.Profile, error) {
	var p domain.Profile
	err := row.Scan(
		&p.ID,
		&p.Email,
		&p.Name,
		&p.Role,
		&p.AvatarURL,
		&p.Preferences,
		&p.LastLogin,
		&p.CreatedAt,
	)
	return p, err
}

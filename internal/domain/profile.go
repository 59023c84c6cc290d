package domain

import "time"

// Roles válidos para un perfil. No existe jerarquía: cada chequeo
// compara el rol literal.
const (
	RoleUser    = "user"
	RoleManager = "manager"
	RoleAdmin   = "admin"
	RoleSupport = "support"
)

var validRoles = map[string]bool{
	RoleUser:    true,
	RoleManager: true,
	RoleAdmin:   true,
	RoleSupport: true,
}

// ValidRole indica si el string pertenece al conjunto fijo de roles.
func ValidRole(role string) bool {
	return validRoles[role]
}

// Profile es el registro local de un usuario, con clave primaria igual
// al uid del identity provider. Exactamente una fila por uid.
type Profile struct {
	ID          string         `json:"id"`
	Email       string         `json:"email"`
	Name        string         `json:"name,omitempty"`
	Role        string         `json:"role"`
	AvatarURL   string         `json:"avatar_url,omitempty"`
	Preferences map[string]any `json:"preferences,omitempty"`
	LastLogin   *time.Time     `json:"last_login,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// ProfilePatch describe una actualización parcial: los punteros nil se
// dejan sin tocar, los no nil sobreescriben la columna (incluso con el
// valor vacío).
type ProfilePatch struct {
	Email       *string
	Name        *string
	Role        *string
	AvatarURL   *string
	Preferences map[string]any
	StampLogin  bool
}

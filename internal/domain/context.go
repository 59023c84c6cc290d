package domain

// UserContext viaja adjunto a un request autenticado y se descarta al
// terminar el request; nunca se persiste.
type UserContext struct {
	UID   string   `json:"uid"`
	Email string   `json:"email,omitempty"`
	Name  string   `json:"name,omitempty"`
	Roles []string `json:"roles"`
}

// HasAnyRole evalúa pertenencia literal contra los roles del contexto.
func (u UserContext) HasAnyRole(roles ...string) bool {
	for _, required := range roles {
		for _, have := range u.Roles {
			if have == required {
				return true
			}
		}
	}
	return false
}

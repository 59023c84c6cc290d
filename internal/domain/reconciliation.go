package domain

import "time"

// Acciones pendientes cuando una escritura en dos sistemas queda a medias.
const (
	ReconcileDeleteIdentity = "delete_identity"
	ReconcileDeleteProfile  = "delete_profile"
)

// ReconciliationRecord registra la mitad fallida de una operación que
// toca identity provider y tabla de perfiles, para limpieza fuera de banda.
type ReconciliationRecord struct {
	ID         string     `json:"id"`
	UID        string     `json:"uid"`
	Email      string     `json:"email,omitempty"`
	Action     string     `json:"action"`
	Reason     string     `json:"reason"`
	CreatedAt  time.Time  `json:"created_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
}

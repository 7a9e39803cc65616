// Package notification mirrors the notifications addressed to the signed in
// user and keeps the mirror in sync with a live query.
package notification

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/uptrace/bun"

	auth "github.com/carebridge/go-care-auth"
)

// Type is the kind of notification
type Type string

const (
	TypePatientInvite   Type = "patient_invite"
	TypeBundleAssigned  Type = "bundle_assigned"
	TypeTherapistAdded  Type = "therapist_added"
	TypeTherapistInvite Type = "therapist_invite"
)

// IsValid checks the type against the known kinds
func (t Type) IsValid() bool {
	switch t {
	case TypePatientInvite, TypeBundleAssigned, TypeTherapistAdded, TypeTherapistInvite:
		return true
	default:
		return false
	}
}

// SenderRole is the role allowed to send notifications of this type
func (t Type) SenderRole() auth.UserRole {
	switch t {
	case TypePatientInvite, TypeBundleAssigned:
		return auth.RoleTherapist
	case TypeTherapistInvite, TypeTherapistAdded:
		return auth.RolePatient
	default:
		return ""
	}
}

// Notification is a record in the notifications collection
type Notification struct {
	bun.BaseModel `bun:"table:notifications,alias:ntf"`
	ID            string         `bun:"id,pk" json:"id"`
	Type          Type           `bun:"type,notnull" json:"type"`
	FromUserID    string         `bun:"from_user_id" json:"from_user_id"`
	FromUserEmail string         `bun:"from_user_email" json:"from_user_email"`
	FromUserName  string         `bun:"from_user_name" json:"from_user_name"`
	Message       string         `bun:"message,notnull" json:"message"`
	ToUserID      string         `bun:"to_user_id,notnull" json:"to_user_id"`
	Read          bool           `bun:"read,notnull" json:"read"`
	Data          map[string]any `bun:"data" json:"data,omitempty"`
	CreatedAt     time.Time      `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
}

// Clone copies the record and its data map
func (n Notification) Clone() Notification {
	if n.Data != nil {
		data := make(map[string]any, len(n.Data))
		for k, v := range n.Data {
			data[k] = v
		}
		n.Data = data
	}
	return n
}

// DataString returns a string linkage id from Data
func (n Notification) DataString(key string) string {
	if n.Data == nil {
		return ""
	}
	if v, ok := n.Data[key].(string); ok {
		return v
	}
	return ""
}

// New builds an unread notification from the given sender
func New(typ Type, from *auth.User, toUserID, message string, data map[string]any) *Notification {
	n := &Notification{
		Type:     typ,
		ToUserID: toUserID,
		Message:  message,
		Data:     data,
	}
	if from != nil {
		n.FromUserID = from.ID
		n.FromUserEmail = from.Email
		n.FromUserName = from.Label()
	}
	if n.Data == nil {
		n.Data = map[string]any{}
	}
	return n
}

// NewPatientInvite a therapist invites a patient to connect
func NewPatientInvite(therapist *auth.User, patientID, inviteID string) *Notification {
	return New(TypePatientInvite, therapist, patientID,
		fmt.Sprintf("%s invited you to join their care team", therapist.Label()),
		map[string]any{"therapistId": therapist.ID, "inviteId": inviteID})
}

// NewTherapistInvite a patient asks a therapist to connect
func NewTherapistInvite(patient *auth.User, therapistID, inviteID string) *Notification {
	return New(TypeTherapistInvite, patient, therapistID,
		fmt.Sprintf("%s would like you to be their therapist", patient.Label()),
		map[string]any{"patientId": patient.ID, "inviteId": inviteID})
}

// NewTherapistAdded the patient accepted, the therapist is told
func NewTherapistAdded(patient *auth.User, therapistID string) *Notification {
	return New(TypeTherapistAdded, patient, therapistID,
		fmt.Sprintf("%s added you as their therapist", patient.Label()),
		map[string]any{"patientId": patient.ID})
}

// NewBundleAssigned a therapist assigned an exercise bundle to a patient
func NewBundleAssigned(therapist *auth.User, patientID, bundleID, bundleName string) *Notification {
	name := strings.TrimSpace(bundleName)
	if name == "" {
		name = "a new bundle"
	}
	return New(TypeBundleAssigned, therapist, patientID,
		fmt.Sprintf("%s assigned you %s", therapist.Label(), name),
		map[string]any{"therapistId": therapist.ID, "bundleId": bundleID})
}

// Normalize dedupes by id, keeping the first occurrence, and orders the
// result by CreatedAt descending
func Normalize(items []Notification) []Notification {
	seen := make(map[string]struct{}, len(items))
	out := make([]Notification, 0, len(items))
	for _, n := range items {
		if _, dup := seen[n.ID]; dup {
			continue
		}
		seen[n.ID] = struct{}{}
		out = append(out, n.Clone())
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// CountUnread counts entries with Read=false
func CountUnread(items []Notification) int {
	count := 0
	for _, n := range items {
		if !n.Read {
			count++
		}
	}
	return count
}

// UnreadIDs returns the ids of unread entries in order
func UnreadIDs(items []Notification) []string {
	ids := []string{}
	for _, n := range items {
		if !n.Read {
			ids = append(ids, n.ID)
		}
	}
	return ids
}

package notification_test

import (
	"testing"

	auth "github.com/carebridge/go-care-auth"
	"github.com/carebridge/go-care-auth/notification"
	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input []notification.Notification
		want  []string
	}{
		{name: "empty", input: nil, want: []string{}},
		{
			name:  "orders newest first",
			input: []notification.Notification{item("a", 1, false), item("b", 3, false), item("c", 2, true)},
			want:  []string{"b", "c", "a"},
		},
		{
			name:  "keeps first duplicate",
			input: []notification.Notification{item("a", 5, false), item("b", 3, false), item("a", 1, true)},
			want:  []string{"a", "b"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := notification.Normalize(tt.input)
			assert.Equal(t, tt.want, ids(got))
		})
	}

	t.Run("duplicate keeps first read flag", func(t *testing.T) {
		got := notification.Normalize([]notification.Notification{item("a", 5, false), item("a", 1, true)})
		assert.Len(t, got, 1)
		assert.False(t, got[0].Read)
	})
}

func TestNormalizeDoesNotAlias(t *testing.T) {
	input := []notification.Notification{item("a", 1, false)}
	input[0].Data = map[string]any{"bundleId": "b1"}

	got := notification.Normalize(input)
	got[0].Data["bundleId"] = "changed"

	assert.Equal(t, "b1", input[0].DataString("bundleId"))
}

func TestUnreadHelpers(t *testing.T) {
	items := []notification.Notification{item("a", 1, false), item("b", 2, true), item("c", 3, false)}

	assert.Equal(t, 2, notification.CountUnread(items))
	assert.Equal(t, []string{"a", "c"}, notification.UnreadIDs(items))
	assert.Equal(t, 0, notification.CountUnread(nil))
	assert.Empty(t, notification.UnreadIDs(nil))
}

func TestConstructors(t *testing.T) {
	therapist := &auth.User{ID: "t1", Email: "dr@example.com", Name: "Dr. Who", Role: auth.RoleTherapist}
	patient := &auth.User{ID: "p1", Email: "pat@example.com", Role: auth.RolePatient}

	invite := notification.NewPatientInvite(therapist, "p1", "inv1")
	assert.Equal(t, notification.TypePatientInvite, invite.Type)
	assert.Equal(t, "p1", invite.ToUserID)
	assert.Equal(t, "t1", invite.FromUserID)
	assert.Equal(t, "dr@example.com", invite.FromUserEmail)
	assert.Equal(t, "Dr. Who", invite.FromUserName)
	assert.Equal(t, "inv1", invite.DataString("inviteId"))
	assert.False(t, invite.Read)
	assert.Contains(t, invite.Message, "Dr. Who")

	request := notification.NewTherapistInvite(patient, "t1", "inv2")
	assert.Equal(t, notification.TypeTherapistInvite, request.Type)
	assert.Equal(t, "t1", request.ToUserID)
	assert.Equal(t, "p1", request.DataString("patientId"))

	added := notification.NewTherapistAdded(patient, "t1")
	assert.Equal(t, notification.TypeTherapistAdded, added.Type)
	assert.Equal(t, "p1", added.DataString("patientId"))

	bundle := notification.NewBundleAssigned(therapist, "p1", "b1", "  ")
	assert.Equal(t, notification.TypeBundleAssigned, bundle.Type)
	assert.Equal(t, "b1", bundle.DataString("bundleId"))
	assert.Contains(t, bundle.Message, "a new bundle")

	system := notification.New(notification.TypeBundleAssigned, nil, "p1", "hello", nil)
	assert.Empty(t, system.FromUserID)
	assert.NotNil(t, system.Data)
	assert.Empty(t, system.DataString("missing"))
}

func TestTypeIsValid(t *testing.T) {
	assert.True(t, notification.TypePatientInvite.IsValid())
	assert.True(t, notification.TypeTherapistInvite.IsValid())
	assert.False(t, notification.Type("").IsValid())
	assert.False(t, notification.Type("promo").IsValid())
}

func TestTypeSenderRole(t *testing.T) {
	assert.Equal(t, auth.RoleTherapist, notification.TypePatientInvite.SenderRole())
	assert.Equal(t, auth.RoleTherapist, notification.TypeBundleAssigned.SenderRole())
	assert.Equal(t, auth.RolePatient, notification.TypeTherapistInvite.SenderRole())
	assert.Equal(t, auth.RolePatient, notification.TypeTherapistAdded.SenderRole())
	assert.Empty(t, notification.Type("promo").SenderRole())
}

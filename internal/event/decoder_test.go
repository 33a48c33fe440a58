package event

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_CanonicalShape(t *testing.T) {
	raw := []byte(`{
		"eventId": "evt-1",
		"eventType": "USER_CREATED",
		"source": "auth-service",
		"version": "1.0",
		"timestamp": "2026-03-01T10:30:00Z",
		"data": {"userEmail": "a@x.com", "userName": "Ana Silva"},
		"metadata": {"origin": "signup"}
	}`)

	ev := Decode(raw)

	assert.Equal(t, "evt-1", ev.EventID)
	assert.Equal(t, "USER_CREATED", ev.EventType)
	assert.Equal(t, "auth-service", ev.Source)
	assert.Equal(t, "1.0", ev.Version)
	assert.Equal(t, time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC), ev.Timestamp)
	assert.Equal(t, "a@x.com", ev.StringField("userEmail"))
	assert.Equal(t, "Ana Silva", ev.StringField("userName"))
	assert.Equal(t, "signup", ev.Metadata["origin"])
}

func TestDecode_FlatShape(t *testing.T) {
	raw := []byte(`{
		"eventId": "evt-2",
		"eventType": "user.created",
		"email": "b@x.com",
		"firstName": "Bruno",
		"lastName": "Costa",
		"ignored": "value"
	}`)

	ev := Decode(raw)

	assert.Equal(t, "evt-2", ev.EventID)
	assert.Equal(t, "b@x.com", ev.StringField("email"))
	assert.Equal(t, "Bruno", ev.StringField("firstName"))
	assert.Equal(t, "Costa", ev.StringField("lastName"))
	assert.Empty(t, ev.StringField("ignored"))
}

func TestDecode_MalformedInput(t *testing.T) {
	tests := []struct {
		name string
		raw  []byte
	}{
		{name: "not json", raw: []byte(`not json at all`)},
		{name: "json array", raw: []byte(`[1,2,3]`)},
		{name: "empty", raw: nil},
		{name: "null", raw: []byte(`null`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := Decode(tt.raw)

			require.NotEmpty(t, ev.EventID)
			assert.Equal(t, TypeUnknown, ev.EventType)
			assert.Equal(t, TypeUnknown, ev.Source)
			assert.Equal(t, "1.0", ev.Version)
			assert.False(t, ev.Timestamp.IsZero())
			assert.NotNil(t, ev.Data)
		})
	}
}

func TestDecode_MissingFieldsGetDefaults(t *testing.T) {
	ev := Decode([]byte(`{"data": {"userName": "Carla"}}`))

	require.NotEmpty(t, ev.EventID)
	assert.Equal(t, TypeUnknown, ev.EventType)
	assert.WithinDuration(t, time.Now(), ev.Timestamp, time.Minute)
	assert.Equal(t, "Carla", ev.StringField("userName"))
}

func TestDecode_GeneratedIDsAreUnique(t *testing.T) {
	first := Decode([]byte(`{}`))
	second := Decode([]byte(`{}`))
	assert.NotEqual(t, first.EventID, second.EventID)
}

func TestDecode_LocalDateTimeTimestamp(t *testing.T) {
	ev := Decode([]byte(`{"eventId": "evt-3", "timestamp": "2026-03-01T10:30:00"}`))
	assert.Equal(t, 2026, ev.Timestamp.Year())
	assert.Equal(t, 30, ev.Timestamp.Minute())
}

func TestNormalizeType(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"USER_CREATED", "user.created"},
		{"user.created", "user.created"},
		{"User_Disabled", "user.disabled"},
		{"TEACHER_CREATED", "teacher.created"},
		{"", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeType(tt.in), "input %q", tt.in)
	}
}

func TestShouldNotify(t *testing.T) {
	notifiable := []string{
		"user.created", "USER_CREATED", "user_created",
		"user.disabled", "USER_DISABLED",
		"teacher.created", "TEACHER_CREATED", "Teacher_Created",
	}
	for _, eventType := range notifiable {
		assert.True(t, ShouldNotify(eventType), "type %q", eventType)
	}

	ignored := []string{"unknown", "user.updated", "STUDENT_CREATED", "", "user.deleted"}
	for _, eventType := range ignored {
		assert.False(t, ShouldNotify(eventType), "type %q", eventType)
	}
}

func TestStringField_NumericValue(t *testing.T) {
	ev := Decode([]byte(`{"eventId": "evt-4", "data": {"count": 3}}`))
	assert.Equal(t, "3", ev.StringField("count"))
}

package models

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignupRequest_Validate(t *testing.T) {
	testCases := []struct {
		name    string
		req     SignupRequest
		wantErr string
	}{
		{
			name: "valid",
			req:  SignupRequest{Username: "alice_01", Email: "alice@x.com", Password: "Abcdef1!"},
		},
		{
			name:    "username too short",
			req:     SignupRequest{Username: "al", Email: "alice@x.com", Password: "Abcdef1!"},
			wantErr: "Username must be 3-20 characters",
		},
		{
			name:    "username with dash",
			req:     SignupRequest{Username: "al-ice", Email: "alice@x.com", Password: "Abcdef1!"},
			wantErr: "Username must be 3-20 characters",
		},
		{
			name:    "username too long",
			req:     SignupRequest{Username: "abcdefghijklmnopqrstu", Email: "alice@x.com", Password: "Abcdef1!"},
			wantErr: "Username must be 3-20 characters",
		},
		{
			name:    "email without domain segment",
			req:     SignupRequest{Username: "alice", Email: "alice@x", Password: "Abcdef1!"},
			wantErr: "Invalid email format.",
		},
		{
			name:    "missing password",
			req:     SignupRequest{Username: "alice", Email: "alice@x.com"},
			wantErr: "Password is required.",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.req.Validate()
			if tc.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestSignupRequest_Normalize(t *testing.T) {
	req := SignupRequest{Username: "  alice ", Email: " alice@x.com\n", Password: " keep "}
	req.Normalize()
	assert.Equal(t, "alice", req.Username)
	assert.Equal(t, "alice@x.com", req.Email)
	assert.Equal(t, " keep ", req.Password)
}

func TestPayload_ValueScan(t *testing.T) {
	var in Payload
	require.NoError(t, json.Unmarshal([]byte(`{
		"items": [
			{"question": "7x6", "answer": "42", "correct": true, "time": 1700000000000},
			{"question": "7x6", "answer": "41", "correct": false, "time": 1700000001000}
		],
		"at": "2024-01-15T12:00:00Z",
		"meta": {"nested": [1, [2, 3]]}
	}`), &in))

	v, err := in.Value()
	require.NoError(t, err)
	s, ok := v.(string)
	require.True(t, ok, "payload must be written as text")

	t.Run("from string", func(t *testing.T) {
		var out Payload
		require.NoError(t, out.Scan(s))
		assert.Equal(t, in, out)
	})

	t.Run("from bytes", func(t *testing.T) {
		var out Payload
		require.NoError(t, out.Scan([]byte(s)))
		assert.Equal(t, in, out)
	})

	t.Run("non object is rejected", func(t *testing.T) {
		var out Payload
		assert.Error(t, out.Scan(`[1,2]`))
	})

	t.Run("canonical ignores key order", func(t *testing.T) {
		a := Payload{"b": 1.0, "a": 2.0}
		b := Payload{"a": 2.0, "b": 1.0}
		ca, err := a.Canonical()
		require.NoError(t, err)
		cb, err := b.Canonical()
		require.NoError(t, err)
		assert.Equal(t, ca, cb)
	})
}

func TestSubmissionPatch_Validate(t *testing.T) {
	str := func(s string) *string { return &s }

	tests := []struct {
		name    string
		patch   SubmissionPatch
		wantErr string
	}{
		{"status only", SubmissionPatch{Status: str(StatusGraded)}, ""},
		{"all fields", SubmissionPatch{Title: str("HW1"), Status: str(StatusReviewed), Notes: str("ok")}, ""},
		{"unknown status", SubmissionPatch{Status: str("lost")}, "Invalid Status."},
		{"empty status", SubmissionPatch{Status: str("")}, "Invalid Status."},
		{"blank title", SubmissionPatch{Title: str("   ")}, "Title is required."},
		{"long notes", SubmissionPatch{Notes: str(strings.Repeat("n", 2001))}, "Notes is too long."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.patch.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.wantErr, err.Error())
		})
	}

	t.Run("title is trimmed", func(t *testing.T) {
		p := SubmissionPatch{Title: str("  HW2 ")}
		require.NoError(t, p.Validate())
		assert.Equal(t, "HW2", *p.Update().Title)
		assert.False(t, p.Update().Empty())
	})
}

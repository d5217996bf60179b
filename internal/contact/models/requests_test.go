package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentifyRequestDecodesPhoneVariants(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		phone string
		email string
	}{
		{name: "string phone", body: `{"email":"doc@hill.edu","phoneNumber":"123456"}`, phone: "123456", email: "doc@hill.edu"},
		{name: "numeric phone", body: `{"phoneNumber":123456}`, phone: "123456"},
		{name: "null phone", body: `{"email":"doc@hill.edu","phoneNumber":null}`, email: "doc@hill.edu"},
		{name: "null email", body: `{"email":null,"phoneNumber":"717171"}`, phone: "717171"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req IdentifyRequest
			require.NoError(t, json.Unmarshal([]byte(tt.body), &req))
			assert.Equal(t, tt.phone, req.PhoneNumber.String())
			assert.Equal(t, tt.email, req.Email)
		})
	}
}

func TestIdentifyRequestRejectsObjectPhone(t *testing.T) {
	var req IdentifyRequest
	err := json.Unmarshal([]byte(`{"phoneNumber":{"n":1}}`), &req)
	assert.Error(t, err)
}

func TestIdentifyRequestIsEmpty(t *testing.T) {
	req := IdentifyRequest{Email: "  ", PhoneNumber: " "}
	assert.True(t, req.IsEmpty())

	req = IdentifyRequest{Email: " doc@hill.edu "}
	assert.False(t, req.IsEmpty())
	req.Normalize()
	assert.Equal(t, "doc@hill.edu", req.Email)
}

func TestNewIdentifyResponseEncodesEmptyLists(t *testing.T) {
	resp := NewIdentifyResponse(IdentityView{PrimaryID: 7, Emails: []string{"doc@hill.edu"}})
	body, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.JSONEq(t, `{"contact":{"primaryContactId":7,"emails":["doc@hill.edu"],"phoneNumbers":[],"secondaryContactIds":[]}}`, string(body))
}

func TestIdentifyResponseUsesPrimaryContactIDKey(t *testing.T) {
	body, err := json.Marshal(NewIdentifyResponse(IdentityView{PrimaryID: 1}))
	require.NoError(t, err)

	var decoded map[string]map[string]any
	require.NoError(t, json.Unmarshal(body, &decoded))
	assert.Contains(t, decoded["contact"], "primaryContactId")
	assert.EqualValues(t, 1, decoded["contact"]["primaryContactId"])
}

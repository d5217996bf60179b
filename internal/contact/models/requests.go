package models

import (
	"bytes"
	"encoding/json"
	"strings"
)

// IdentifyRequest is the partial identifier pair submitted by a caller.
type IdentifyRequest struct {
	Email       string     `json:"email"`
	PhoneNumber PhoneInput `json:"phoneNumber"`
}

// Normalize trims both fields in place.
func (r *IdentifyRequest) Normalize() {
	r.Email = strings.TrimSpace(r.Email)
	r.PhoneNumber = PhoneInput(strings.TrimSpace(string(r.PhoneNumber)))
}

// IsEmpty reports whether neither identifier carries a value.
func (r *IdentifyRequest) IsEmpty() bool {
	return strings.TrimSpace(r.Email) == "" && strings.TrimSpace(string(r.PhoneNumber)) == ""
}

// PhoneInput accepts a JSON string, number or null. Existing clients send
// phone numbers both ways.
type PhoneInput string

func (p *PhoneInput) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*p = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*p = PhoneInput(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*p = PhoneInput(n.String())
	return nil
}

func (p PhoneInput) String() string {
	return string(p)
}

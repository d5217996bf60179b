package models

// IdentifyResponse is the wire shape returned by POST /identify.
type IdentifyResponse struct {
	Contact ContactSummary `json:"contact"`
}

// ContactSummary is the consolidated identity as callers see it.
type ContactSummary struct {
	PrimaryContactID    int64    `json:"primaryContactId"`
	Emails              []string `json:"emails"`
	PhoneNumbers        []string `json:"phoneNumbers"`
	SecondaryContactIDs []int64  `json:"secondaryContactIds"`
}

// NewIdentifyResponse maps a view to its wire shape. Empty lists encode as [].
func NewIdentifyResponse(view IdentityView) *IdentifyResponse {
	return &IdentifyResponse{Contact: ContactSummary{
		PrimaryContactID:    view.PrimaryID,
		Emails:              nonNil(view.Emails),
		PhoneNumbers:        nonNil(view.PhoneNumbers),
		SecondaryContactIDs: nonNil(view.SecondaryIDs),
	}}
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

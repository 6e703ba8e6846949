package models

// Principal is an authenticated identity owned by the identity provider.
type Principal struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name,omitempty"`
	Email       string `json:"email,omitempty"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}

// SenderName is the display name snapshot stored on messages.
func (p Principal) SenderName() string {
	if p.DisplayName != "" {
		return p.DisplayName
	}
	if p.Email != "" {
		return p.Email
	}
	return "Anonymous"
}

// Avatar returns the avatar reference or nil when the principal has none.
func (p Principal) Avatar() *string {
	if p.AvatarURL == "" {
		return nil
	}
	avatar := p.AvatarURL
	return &avatar
}

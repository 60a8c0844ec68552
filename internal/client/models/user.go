// Package models defines the client-side data exchanged with the Collabry API.
package models

// User is the profile returned by the current-user and profile endpoints.
type User struct {
	ID                 int64  `json:"id"`
	Email              string `json:"email"`
	FirstName          string `json:"firstName"`
	LastName           string `json:"lastName"`
	PhoneNumber        string `json:"phoneNumber"`
	AvatarURL          string `json:"avatarUrl"`
	Role               string `json:"role"`
	IsOnboarded        bool   `json:"isOnboarded"`
	IsTwoFactorEnabled bool   `json:"isTwoFactorAuthenticationEnabled"`
}

// SignUpRequest carries a completed onboarding draft.
type SignUpRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	PhoneNumber string `json:"phoneNumber"`
}

// SignInResult is returned by sign-in and by the login-time 2FA challenge.
type SignInResult struct {
	AccessToken        string `json:"access_token"`
	IsTwoFactorEnabled bool   `json:"isTwoFactorAuthenticationEnabled"`
}

// TwoFactorSecret is issued when 2FA enrollment starts. QRCode is an image
// payload (data URL); AuthURL is the equivalent otpauth:// URL for manual entry.
type TwoFactorSecret struct {
	QRCode  string `json:"qrCode"`
	AuthURL string `json:"authUrl"`
}

// ProfileUpdate is a partial profile change; nil fields are left untouched.
type ProfileUpdate struct {
	FirstName   *string `json:"firstName,omitempty" validate:"omitempty,min=1,max=50" label:"First name"`
	LastName    *string `json:"lastName,omitempty" validate:"omitempty,min=1,max=50" label:"Last name"`
	PhoneNumber *string `json:"phoneNumber,omitempty" validate:"omitempty,phone" label:"Phone number"`
}

// Empty reports whether the update changes nothing.
func (p ProfileUpdate) Empty() bool {
	return p.FirstName == nil && p.LastName == nil && p.PhoneNumber == nil
}

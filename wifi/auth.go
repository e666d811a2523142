package wifi

// AuthRequest carries the credentials for a connect attempt and knows how to
// turn them into a stored profile.
type AuthRequest interface {
	// IsPasswordValid reports whether the credentials fit the target network.
	IsPasswordValid() bool
	// Process writes a profile for the target network.
	Process() error
}

// PasswordRequest is an AuthRequest for open, WEP and PSK networks.
type PasswordRequest struct {
	Password string

	ap *AccessPoint
}

// NewAuthRequest creates a PasswordRequest targeting ap.
func NewAuthRequest(ap *AccessPoint, password string) *PasswordRequest {
	return &PasswordRequest{Password: password, ap: ap}
}

func (r *PasswordRequest) IsPasswordValid() bool {
	if !r.ap.IsSecure() {
		return true
	}
	return r.ap.IsValidPassword(r.Password)
}

// Process builds a profile named after the access point and stores it on the
// access point's adapter, replacing any existing profile of that name.
func (r *PasswordRequest) Process() error {
	profile, err := BuildProfile(r.ap.Name(), r.ap.Network(), r.Password)
	if err != nil {
		return err
	}
	doc, err := profile.Marshal()
	if err != nil {
		return err
	}
	return r.ap.Adapter().SetProfile(doc, true)
}

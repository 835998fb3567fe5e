package core

// RegisterInput represents a registration request
type RegisterInput struct {
	Email       string  `json:"email"`
	Secret      string  `json:"password"`
	DisplayName string  `json:"displayName"`
	Profile     Profile `json:"profile"`
}

// LoginInput represents a login request
type LoginInput struct {
	Email  string `json:"email"`
	Secret string `json:"password"`
}

// LoginResult is returned by a successful login
type LoginResult struct {
	Account *Account `json:"account"`
	Session *Session `json:"session"`
	Token   string   `json:"token"`
}

// Profile field names accepted by profile updates. Other keys are ignored.
const (
	FieldDisplayName        = "display_name"
	FieldCulturalBackground = "cultural_background"
	FieldProfession         = "profession"
	FieldLocation           = "location"
)

package models

// Profile is the structured student record kept alongside the session token.
type Profile struct {
	Reg   string `json:"reg"`
	Name  string `json:"name"`
	Hall  string `json:"hall,omitempty"`
	Photo string `json:"photo,omitempty"`
	Email string `json:"email,omitempty"`
}

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type LoginResult struct {
	Token   string  `json:"token"`
	Profile Profile `json:"profile"`
}

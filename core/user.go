package core

type (
	// User identifies the owner of projects and assets. Subject is the stable
	// id projects are scoped by.
	User struct {
		Subject   string `json:"subject"`
		Login     string `json:"login"`
		Email     string `json:"email,omitempty"`
		AvatarURL string `json:"avatarUrl,omitempty"`
		Name      string `json:"name,omitempty"`
	}
)

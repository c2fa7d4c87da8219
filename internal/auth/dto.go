package auth

// LoginDTO is the transport shape used by the HTTP handler to accept login requests.
type LoginDTO struct {
	Username string `json:"username" validate:"required,max=150"`
	Password string `json:"password" validate:"required"`
	Next     string `json:"next,omitempty" validate:"omitempty,max=2048"`
}

type LoginResponse struct {
	Message     string `json:"message"`
	RedirectURL string `json:"redirect_url"`
}

type MessagesResponse struct {
	Messages []MessageResponse `json:"messages"`
}

type MessageResponse struct {
	Level string `json:"level"`
	Text  string `json:"text"`
}

package authapi

import "time"

type userInput struct {
	Name     *string `json:"name"`
	Username *string `json:"username"`
	Password *string `json:"password"`
}

type signupRequest struct {
	User userInput `json:"user"`
}

type updateRequest struct {
	User userInput `json:"user"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type userResponse struct {
	ID        string    `json:"id"`
	Name      *string   `json:"name"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type sessionResponse struct {
	User  userResponse `json:"user"`
	Token string       `json:"token"`
}

type userEnvelope struct {
	User userResponse `json:"user"`
}

type usersResponse struct {
	Users []userResponse `json:"users"`
}

type deleteResponse struct {
	Success bool `json:"success"`
}

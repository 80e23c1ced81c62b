package viewmodels

type LoginRequest struct {
	Tenant   string `json:"tenant" validate:"required,max=100"`
	Password string `json:"password" validate:"required,max=200"`
}

type LoginResponse struct {
	Tenant string `json:"tenant"`
	Name   string `json:"name"`
}

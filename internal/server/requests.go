package server

// SignupRequest is the body of POST /auth/signup. Password strength is
// checked by the user service.
type SignupRequest struct {
	Email     string `json:"email" validate:"required,email,max=254"`
	Password  string `json:"password" validate:"required"`
	FirstName string `json:"first_name" validate:"max=150"`
	LastName  string `json:"last_name" validate:"max=150"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type ResetPasswordRequest struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// UpdateProfileRequest carries only the fields the caller wants changed.
type UpdateProfileRequest struct {
	Email     *string `json:"email" validate:"omitempty,email,max=254"`
	FirstName *string `json:"first_name" validate:"omitempty,max=150"`
	LastName  *string `json:"last_name" validate:"omitempty,max=150"`
}

// CreatePostRequest is the JSON form of POST /posts. Multipart requests use
// the same field names plus a "file" part.
type CreatePostRequest struct {
	Description string `json:"description" form:"description"`
	Link        string `json:"link" form:"link"`
}

type UpdatePostRequest struct {
	Description *string `json:"description"`
	Link        *string `json:"link"`
}

type CreateCommentRequest struct {
	Description string `json:"description" validate:"required"`
}

type SetStaffRequest struct {
	IsStaff     bool `json:"is_staff"`
	IsSuperuser bool `json:"is_superuser"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type WSTicketResponse struct {
	Ticket    string `json:"ticket"`
	ExpiresIn int    `json:"expires_in"`
}

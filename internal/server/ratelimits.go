package server

import (
	"time"

	"nexify/internal/middleware"
)

// Per-action limits. Credential endpoints fail closed when Redis is down.
var (
	signupRule         = middleware.Rule{Name: "signup", Limit: 3, Window: 10 * time.Minute, Policy: middleware.FailClosed}
	loginRule          = middleware.Rule{Name: "login", Limit: 10, Window: 5 * time.Minute, Policy: middleware.FailClosed}
	forgotPasswordRule = middleware.Rule{Name: "forgot_password", Limit: 3, Window: 15 * time.Minute, Policy: middleware.FailClosed}
	resetPasswordRule  = middleware.Rule{Name: "reset_password", Limit: 5, Window: 15 * time.Minute, Policy: middleware.FailClosed}

	followRule        = middleware.Rule{Name: "follow", Limit: 30, Window: time.Minute}
	createPostRule    = middleware.Rule{Name: "create_post", Limit: 10, Window: 5 * time.Minute}
	reportPostRule    = middleware.Rule{Name: "report_post", Limit: 10, Window: time.Hour}
	createCommentRule = middleware.Rule{Name: "create_comment", Limit: 10, Window: time.Minute}
	uploadRule        = middleware.Rule{Name: "upload", Limit: 20, Window: 10 * time.Minute}
)

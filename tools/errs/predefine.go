package errs

var (
	ErrArgs         = NewCodeError(ArgsError, "args error")
	ErrTokenExpired = NewCodeError(TokenExpiredError, "token expired")
	ErrTokenInvalid = NewCodeError(TokenInvalidError, "token invalid")
)

package errs

// 错误码
const (
	ServerInternalError = 500  // 服务器内部错误
	ArgsError           = 1001 // 参数错误
	TokenExpiredError   = 1501 // token 过期
	TokenInvalidError   = 1502 // token 非法
)

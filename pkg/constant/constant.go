package constants

// gin.Context 中使用的键
const (
	DbField        = "_citywatch_db"
	UserField      = "_citywatch_user"
	UserIDField    = "user_id"
	UsernameField  = "username"
	RoleField      = "role"
	RequestIDField = "request_id"
)

const (
	RequestIDHeader = "X-Request-ID"
	SessionName     = "citywatch"
	SessionUserKey  = "uid"
)

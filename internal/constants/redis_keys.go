package constants

// Redis Key 前缀和格式常量
// 使用统一的命名规范: app:{module}:{entity}:{unique_id}
const (
	// AppPrefix 是所有Redis Key的统一应用前缀
	AppPrefix = "app"

	// SessionModulePrefix 会话模块
	SessionModulePrefix = "session"

	// EntityCookies 后端会话cookie
	EntityCookies = "cookies"
	// EntityRecent 最近的分析结果
	EntityRecent = "recent"

	// KeySessionCookies 会话cookie (HASH, field为cookie名)
	// 格式: app:session:cookies:{sessionID}
	KeySessionCookies = AppPrefix + ":" + SessionModulePrefix + ":" + EntityCookies + ":%s"

	// KeySessionRecentResults 最近的分析结果摘要 (LIST, 新的在前)
	// 格式: app:session:recent:{sessionID}
	KeySessionRecentResults = AppPrefix + ":" + SessionModulePrefix + ":" + EntityRecent + ":%s"
)

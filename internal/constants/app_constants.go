package constants

import "time"

const (
	// 后端接口路径
	PathUpload  = "/upload"
	PathJDMatch = "/jd_match"
	PathChat    = "/chat"

	// multipart 表单字段
	FormFieldResume = "resume"
	FormFieldJD     = "jd"

	// 后端会话cookie名(Flask默认)
	DefaultSessionCookie = "session"

	// 展示给用户的通用提示，具体错误写日志
	MsgTransportFailure = "Request failed. Please check that the screening service is reachable and try again."
	MsgChatFailure      = "Sorry, I couldn't reach the assistant. Please try again."
	MsgInvalidFileType  = "Invalid file type. Please upload one of: %s."
	MsgFileTooLarge     = "File size exceeds %s limit."
	MsgFileUnreadable   = "Could not read the selected file."
	MsgNoSelection      = "Please select a resume file first."
	MsgEmptyDescription = "Please enter a job description."

	// 最近结果列表保留条数
	RecentResultsLimit = 50
	// 发件箱一次处理的最大消息数
	OutboxBatchSize = 20
	// 发件箱消息最大重试次数
	OutboxMaxRetries = 5

	DefaultRelayInterval = 5 * time.Second
)

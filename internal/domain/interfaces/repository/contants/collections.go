package contants

const (
	COMMAND_LOG_COLLECTION = "CommandLog"
)

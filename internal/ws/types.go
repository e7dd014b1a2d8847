package ws

const (
	// client - server
	MsgSubscribe = "subscribe"
	MsgPing      = "ping"

	// server - client
	MsgReady         = "ready"
	MsgPong          = "pong"
	MsgPoolUpdated   = "pool.updated"
	MsgDrawCompleted = "draw.completed"
	MsgBurnCompleted = "burn.completed"
	MsgError         = "error"
)

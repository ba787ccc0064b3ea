package gateway

// OpCode tags every payload exchanged over the Discord/Spacebar gateway
// websocket.
type OpCode int

const (
	OpDispatch            OpCode = 0
	OpHeartbeat           OpCode = 1
	OpIdentify            OpCode = 2
	OpPresenceUpdate      OpCode = 3
	OpVoiceStateUpdate    OpCode = 4
	OpResume              OpCode = 6
	OpReconnect           OpCode = 7
	OpRequestGuildMembers OpCode = 8
	OpInvalidSession      OpCode = 9
	OpHello               OpCode = 10
	OpHeartbeatAck        OpCode = 11
)

// Intents is the fixed intents bitfield the bridge identifies with:
// GUILD_MESSAGES (1<<9) | GUILD_MESSAGE_REACTIONS (1<<10).
const Intents = 1<<9 | 1<<10

// resumable reports whether a gateway close code permits a resume attempt
// rather than a fresh identify.
func resumableCloseCode(code int) bool {
	return code == 4000 || code == 4009
}

// fatalCloseCode reports whether a gateway close code means the session
// cannot recover at all (invalid token).
func fatalCloseCode(code int) bool {
	return code == 4004
}

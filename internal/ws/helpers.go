package ws

import "github.com/google/uuid"

// newConnID tags a websocket connection in logs.
func newConnID() string {
	return "ws-" + uuid.NewString()
}

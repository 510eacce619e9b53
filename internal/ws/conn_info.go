package ws

import (
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ConnInfo captures identity metadata for one websocket connection.
type ConnInfo struct {
	ConnID      string
	UserID      int
	DeviceID    string
	IP          string
	RequestID   string
	ConnectedAt time.Time
}

func newConnInfo(r *http.Request, userID int) ConnInfo {
	return ConnInfo{
		ConnID:      uuid.NewString(),
		UserID:      userID,
		DeviceID:    r.Header.Get("X-Device-Id"),
		IP:          clientIP(r),
		RequestID:   handshakeRequestID(r),
		ConnectedAt: time.Now(),
	}
}

// handshakeRequestID reuses the caller's id when the handshake carries one,
// and mints a fresh one otherwise so the session is always traceable.
func handshakeRequestID(r *http.Request) string {
	if id := r.Header.Get("X-Request-Id"); id != "" {
		return id
	}
	return uuid.NewString()
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		if idx := strings.IndexByte(forwarded, ','); idx >= 0 {
			forwarded = forwarded[:idx]
		}
		return strings.TrimSpace(forwarded)
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil {
		return host
	}
	return r.RemoteAddr
}

package ws

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

type Server struct {
	hub      *Hub
	logger   zerolog.Logger
	upgrader *websocket.Upgrader
}

func NewServer(hub *Hub, logger zerolog.Logger) *Server {
	return &Server{
		hub:    hub,
		logger: logger,
		upgrader: &websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins for now
			},
		},
	}
}

// HandleConnections upgrades the request and runs the connection's pump until
// the client goes away. The connection ID is the transport-level handle the
// coordinator keys sessions by.
func (s *Server) HandleConnections(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error().Err(err).Msg("error upgrading to websocket")
		return
	}

	connID := uuid.NewString()
	conn := NewConnection(s.hub, ws, connID)

	s.logger.Debug().Str("conn", connID).Str("remote", r.RemoteAddr).Msg("connection attached")
	if err := conn.Handle(r.Context()); err != nil {
		s.logger.Debug().Err(err).Str("conn", connID).Msg("connection closed")
	}
}

package ws

import (
	"context"
	"errors"
	"sync"

	"palaver/internal/models"
)

type wsConnection interface {
	Close() error
	WriteJSON(v interface{}) error
	ReadJSON(v interface{}) error
}

// coordinator is the slice of Hub a connection needs. Actions on a
// connection that never logged in (or already disconnected) come back as
// ErrNotFound and are dropped silently: that is client staleness, not a
// reportable fault.
type coordinator interface {
	Attach(connID string) chan models.ServerMessage
	Detach(connID string)
	Login(connID, name string) (string, error)
	JoinRoom(connID, room string) (string, error)
	SendRoom(connID, room, text string)
	SendPrivate(connID, to, text string) error
	History(connID, key string) error
	PrivateHistory(connID, counterpart string) error
	SetTyping(connID, room, to string)
	ClearTyping(connID, room, to string)
}

type Connection struct {
	ws         wsConnection
	hub        coordinator
	connID     string
	fromClient chan models.ClientMessage
	fromServer chan models.ServerMessage
	errorCh    chan error
}

func NewConnection(hub coordinator, ws wsConnection, connID string) *Connection {
	return &Connection{
		ws:         ws,
		hub:        hub,
		connID:     connID,
		fromClient: make(chan models.ClientMessage),
		fromServer: hub.Attach(connID),
		errorCh:    make(chan error, 2),
	}
}

func (c *Connection) Handle(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer func() {
		close(c.fromClient)
		close(c.errorCh)
		c.hub.Detach(c.connID)
	}()

	var wg sync.WaitGroup
	wg.Go(func() {
		c.errorCh <- c.pumpMessages(ctx)
		cancel()
	})

	wg.Go(func() {
		c.errorCh <- c.mainLoop(ctx)
		cancel()
	})

	var err error
	select {
	case err = <-c.errorCh:
	case <-ctx.Done():
	}
	c.ws.Close()
	wg.Wait()

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	return nil
}

func (c *Connection) pumpMessages(ctx context.Context) error {
	for {
		var msg models.ClientMessage
		if err := c.ws.ReadJSON(&msg); err != nil {
			return err
		}
		select {
		case c.fromClient <- msg:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *Connection) mainLoop(ctx context.Context) error {
	for {
		select {
		case msg := <-c.fromClient:
			if err := c.processClientMessage(msg); err != nil {
				return err
			}
		case msg, ok := <-c.fromServer:
			if !ok {
				// Hub released this connection.
				return nil
			}
			if err := c.ws.WriteJSON(msg); err != nil {
				return err
			}
		case <-ctx.Done():
			return nil
		}
	}
}

func (c *Connection) processClientMessage(msg models.ClientMessage) error {
	switch msg.Type {
	case models.ClientMessageTypeLogin:
		if _, err := c.hub.Login(c.connID, msg.Name); err != nil {
			return c.writeError(err)
		}
	case models.ClientMessageTypeJoin:
		if _, err := c.hub.JoinRoom(c.connID, msg.Room); err != nil {
			return c.writeError(err)
		}
	case models.ClientMessageTypeSend:
		c.hub.SendRoom(c.connID, msg.Room, msg.Text)
	case models.ClientMessageTypeSendPrivate:
		if err := c.hub.SendPrivate(c.connID, msg.To, msg.Text); err != nil {
			return c.writeError(err)
		}
	case models.ClientMessageTypeHistory:
		if err := c.hub.History(c.connID, msg.Room); err != nil {
			return c.writeError(err)
		}
	case models.ClientMessageTypePrivateHistory:
		if err := c.hub.PrivateHistory(c.connID, msg.To); err != nil {
			return c.writeError(err)
		}
	case models.ClientMessageTypeTyping:
		c.hub.SetTyping(c.connID, msg.Room, msg.To)
	case models.ClientMessageTypeStopTyping:
		c.hub.ClearTyping(c.connID, msg.Room, msg.To)
	}

	return nil
}

// writeError reports a named domain error back to the originating caller.
// ErrNotFound marks a stale or pre-login action and is swallowed.
func (c *Connection) writeError(err error) error {
	var code string
	switch {
	case errors.Is(err, models.ErrNotFound):
		return nil
	case errors.Is(err, models.ErrNameTaken):
		code = models.ErrCodeNameTaken
	case errors.Is(err, models.ErrAlreadyInRoom):
		code = models.ErrCodeAlreadyInRoom
	case errors.Is(err, models.ErrSelfMessage):
		code = models.ErrCodeSelfMessage
	case errors.Is(err, models.ErrReservedName), errors.Is(err, models.ErrBadRoomName):
		code = models.ErrCodeBadRoom
	default:
		code = models.ErrCodeBadName
	}

	return c.ws.WriteJSON(models.ServerMessage{
		Type: models.ServerMessageTypeError,
		Code: code,
		Text: err.Error(),
	})
}

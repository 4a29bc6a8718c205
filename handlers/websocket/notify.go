package websocket

import (
	"fmt"
	"reflect"
	"sync"
	"time"

	"nocap-editor/core"

	"github.com/sirupsen/logrus"
	"github.com/zishang520/engine.io/v2/types"
	socketio "github.com/zishang520/socket.io/v2/socket"
)

// EventProjectUpdated is emitted to a project's room after its record changed.
const EventProjectUpdated = "project-updated"

type ackInvoker func(err error, payload map[string]any)

// ProjectRoom names the room clients editing a project join.
func ProjectRoom(projectID string) socketio.Room {
	return socketio.Room("project:" + projectID)
}

// Hub tracks which projects have listeners and pushes project updates to them.
type Hub struct {
	srv *socketio.Server

	mu       sync.RWMutex
	watchers map[string]int
}

// SetupSocketIO creates the socket.io server and wires the project rooms.
func SetupSocketIO(allowedOrigins ...string) *Hub {
	opts := socketio.DefaultServerOptions()
	opts.SetMaxHttpBufferSize(1000000)
	opts.SetPath("/socket.io")
	opts.SetAllowEIO3(true)
	origin := any("*")
	if len(allowedOrigins) > 0 {
		origins := make([]any, 0, len(allowedOrigins))
		for _, o := range allowedOrigins {
			origins = append(origins, o)
		}
		origin = origins
	}
	opts.SetCors(&types.Cors{
		Origin:      origin,
		Credentials: true,
	})

	h := &Hub{
		srv:      socketio.NewServer(nil, opts),
		watchers: make(map[string]int),
	}
	h.srv.On("connection", func(clients ...any) {
		socket, ok := clients[0].(*socketio.Socket)
		if !ok {
			return
		}
		h.handleSocket(socket)
	})
	return h
}

// Server returns the underlying socket.io server for mounting.
func (h *Hub) Server() *socketio.Server {
	return h.srv
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.srv.Close(nil)
}

func (h *Hub) handleSocket(socket *socketio.Socket) {
	log := logrus.WithField("socket_id", socket.Id())
	log.Debug("Socket connected")

	socket.On("join-project", func(datas ...any) {
		ack, args := extractAck(datas)
		projectID, err := projectArg(args)
		if err != nil {
			respondWithAck(socket, ack, "join-project-ack", map[string]any{"status": "error", "error": err.Error()}, err)
			return
		}
		socket.Join(ProjectRoom(projectID))
		h.adjust(projectID, 1)
		log.WithField("project_id", projectID).Debug("Socket joined project")
		respondWithAck(socket, ack, "join-project-ack", map[string]any{"status": "ok", "project_id": projectID}, nil)
	})

	socket.On("leave-project", func(datas ...any) {
		ack, args := extractAck(datas)
		projectID, err := projectArg(args)
		if err != nil {
			respondWithAck(socket, ack, "leave-project-ack", map[string]any{"status": "error", "error": err.Error()}, err)
			return
		}
		h.leave(socket, projectID)
		respondWithAck(socket, ack, "leave-project-ack", map[string]any{"status": "ok", "project_id": projectID}, nil)
	})

	socket.On("disconnecting", func(...any) {
		for _, room := range socket.Rooms().Keys() {
			if id, ok := projectOfRoom(room); ok {
				h.adjust(id, -1)
			}
		}
	})

	socket.On("disconnect", func(...any) {
		socket.RemoveAllListeners("")
		log.Debug("Socket disconnected")
	})
}

func (h *Hub) leave(socket *socketio.Socket, projectID string) {
	room := ProjectRoom(projectID)
	for _, joined := range socket.Rooms().Keys() {
		if joined == room {
			socket.Leave(room)
			h.adjust(projectID, -1)
			return
		}
	}
}

func (h *Hub) adjust(projectID string, delta int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := h.watchers[projectID] + delta
	if n <= 0 {
		delete(h.watchers, projectID)
		return
	}
	h.watchers[projectID] = n
}

// Watchers returns how many sockets listen to each project.
func (h *Hub) Watchers() map[string]int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make(map[string]int, len(h.watchers))
	for k, v := range h.watchers {
		out[k] = v
	}
	return out
}

// ProjectUpdated notifies the project's room. Content is left out; clients
// refetch when they need it.
func (h *Hub) ProjectUpdated(p *core.Project) {
	if p == nil {
		return
	}
	payload := map[string]any{
		"id":        p.ID,
		"name":      p.Name,
		"thumbnail": p.Thumbnail,
		"updatedAt": p.UpdatedAt.Format(time.RFC3339Nano),
	}
	if err := h.srv.To(ProjectRoom(p.ID)).Emit(EventProjectUpdated, payload); err != nil {
		logrus.WithError(err).WithField("project_id", p.ID).Warn("Failed to emit project update")
	}
}

func projectArg(args []any) (string, error) {
	if len(args) == 0 {
		return "", fmt.Errorf("project id is required")
	}
	id, ok := args[0].(string)
	if !ok || id == "" {
		return "", fmt.Errorf("invalid project id")
	}
	return id, nil
}

func projectOfRoom(room socketio.Room) (string, bool) {
	const prefix = "project:"
	s := string(room)
	if len(s) <= len(prefix) || s[:len(prefix)] != prefix {
		return "", false
	}
	return s[len(prefix):], true
}

// extractAck splits a trailing acknowledgement callback off the event args.
func extractAck(datas []any) (ackInvoker, []any) {
	if len(datas) == 0 {
		return nil, datas
	}
	ack := wrapAck(datas[len(datas)-1])
	if ack == nil {
		return nil, datas
	}
	return ack, datas[:len(datas)-1]
}

// wrapAck adapts any func value to an ackInvoker. Callbacks with one
// parameter receive the error or the payload; with two they receive both.
func wrapAck(candidate any) ackInvoker {
	if candidate == nil {
		return nil
	}
	value := reflect.ValueOf(candidate)
	if value.Kind() != reflect.Func {
		return nil
	}
	typ := value.Type()
	return func(err error, payload map[string]any) {
		args := make([]reflect.Value, typ.NumIn())
		for i := range args {
			var v any
			switch {
			case typ.NumIn() == 1 && err != nil:
				v = err
			case typ.NumIn() == 1:
				v = payload
			case i == 0:
				v = err
			case i == 1:
				v = payload
			}
			args[i] = coerce(v, typ.In(i))
		}
		value.Call(args)
	}
}

func coerce(v any, target reflect.Type) reflect.Value {
	if v == nil {
		return reflect.Zero(target)
	}
	rv := reflect.ValueOf(v)
	switch {
	case rv.Type().AssignableTo(target):
		return rv
	case rv.Type().ConvertibleTo(target):
		return rv.Convert(target)
	case target.Kind() == reflect.String:
		return reflect.ValueOf(fmt.Sprint(v)).Convert(target)
	}
	return reflect.Zero(target)
}

func respondWithAck(socket *socketio.Socket, ack ackInvoker, event string, payload map[string]any, err error) {
	if ack != nil {
		ack(err, payload)
		return
	}
	_ = socket.Emit(event, payload)
}

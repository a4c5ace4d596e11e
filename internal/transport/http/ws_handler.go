package http

import (
	"encoding/json"
	"log"
	"net/http"

	"answerlab/internal/app"
	"github.com/gorilla/websocket"
)

// WSHandler drives one app.Workspace per connection over a shared store.
type WSHandler struct {
	store    *app.SheetStore
	weights  map[app.Category]string
	upgrader websocket.Upgrader
}

func NewWSHandler(store *app.SheetStore, weights map[app.Category]string) *WSHandler {
	return &WSHandler{
		store:   store,
		weights: weights,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type selectPayload struct {
	ID string `json:"id"`
}

type modePayload struct {
	Mode app.Mode `json:"mode"`
}

type answerPayload struct {
	QuestionIndex int    `json:"questionIndex"`
	Value         string `json:"value"`
}

type weightPayload struct {
	Category app.Category `json:"category"`
	Value    string       `json:"value"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades HTTP requests to websockets. Every inbound event is
// applied to the connection's workspace and answered with a fresh view;
// changes made by other connections arrive as "sheets" messages.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	ws := app.NewWorkspace(h.store, h.weights)
	if id := r.URL.Query().Get("id"); id != "" {
		ws.Select(id)
	}

	updates, cancel := h.store.Subscribe()
	defer cancel()
	<-updates // initial snapshot is part of the first view

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				// Unblocks ReadJSON so the read loop exits too.
				_ = conn.Close()
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case sheets, ok := <-updates:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage[any]{Type: "sheets", Payload: sheets}:
				case <-closeSignals:
					return
				case <-writerDone:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	ok := deliver(send, writerDone, outboundMessage[any]{Type: "view", Payload: ws.View()})
	for ok {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		if err := h.apply(r, ws, inbound); err != nil {
			ok = deliver(send, writerDone, outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}})
			continue
		}
		ok = deliver(send, writerDone, outboundMessage[any]{Type: "view", Payload: ws.View()})
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}

// deliver queues msg for the writer. It reports false once the writer has
// stopped, so callers never block on a dead connection.
func deliver(send chan<- outboundMessage[any], writerDone <-chan struct{}, msg outboundMessage[any]) bool {
	select {
	case send <- msg:
		return true
	case <-writerDone:
		return false
	}
}

// apply dispatches one inbound event. Validation and evaluation problems are
// part of the view, so only malformed messages return an error.
func (h *WSHandler) apply(r *http.Request, ws *app.Workspace, msg inboundMessage) error {
	ctx := r.Context()
	switch msg.Type {
	case "view":
	case "create":
		var form app.SheetForm
		if err := decode(msg.Payload, &form); err != nil {
			return err
		}
		_, _ = ws.CreateSheet(ctx, form)
	case "select":
		var payload selectPayload
		if err := decode(msg.Payload, &payload); err != nil {
			return err
		}
		ws.Select(payload.ID)
	case "mode":
		var payload modePayload
		if err := decode(msg.Payload, &payload); err != nil {
			return err
		}
		ws.SetMode(payload.Mode)
	case "answer":
		var payload answerPayload
		if err := decode(msg.Payload, &payload); err != nil {
			return err
		}
		_ = ws.ChooseAnswer(ctx, payload.QuestionIndex, payload.Value)
	case "check":
		_, _ = ws.Check()
	case "exitReview":
		ws.ExitReview()
	case "requestDelete":
		var payload selectPayload
		if err := decode(msg.Payload, &payload); err != nil {
			return err
		}
		ws.RequestDelete(payload.ID)
	case "cancelDelete":
		ws.CancelDelete()
	case "confirmDelete":
		ws.ConfirmDelete(ctx)
	case "weight":
		var payload weightPayload
		if err := decode(msg.Payload, &payload); err != nil {
			return err
		}
		ws.SetWeight(payload.Category, payload.Value)
	default:
		return errUnsupported
	}
	return nil
}

type protocolError string

func (e protocolError) Error() string { return string(e) }

const (
	errUnsupported = protocolError("unsupported message type")
	errBadPayload  = protocolError("invalid payload")
)

func decode(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return errBadPayload
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return errBadPayload
	}
	return nil
}

package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"
)

// wsRequest is one inbound chat turn over the socket.
type wsRequest struct {
	Message string `json:"message"`
}

// wsResponse is one outbound agent reply.
type wsResponse struct {
	Response string `json:"response"`
	Error    string `json:"error,omitempty"`
}

// handleChatWS upgrades to a WebSocket and relays chat turns to the
// agent, one request/response pair per message.
func (a *API) handleChatWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		a.logger.Printf("websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	userID := a.userID(r)
	ctx := r.Context()

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}

		var req wsRequest
		if err := json.Unmarshal(data, &req); err != nil || req.Message == "" {
			a.writeWS(ctx, conn, wsResponse{Error: "message is required"})
			continue
		}

		response, err := a.runChatTurn(ctx, userID, req.Message)
		if err != nil {
			a.logger.Printf("websocket chat turn failed: %v", err)
			a.writeWS(ctx, conn, wsResponse{Error: "failed to process message"})
			continue
		}
		a.writeWS(ctx, conn, wsResponse{Response: response})
	}
}

func (a *API) writeWS(ctx context.Context, conn *websocket.Conn, resp wsResponse) {
	data, err := json.Marshal(resp)
	if err != nil {
		return
	}
	writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := conn.Write(writeCtx, websocket.MessageText, data); err != nil {
		a.logger.Printf("websocket write failed: %v", err)
	}
}

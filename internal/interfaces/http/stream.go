package http

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/sawpanic/tokenrisk/internal/domain/token"
	"github.com/sawpanic/tokenrisk/internal/engine"
)

const (
	streamWriteWait = 10 * time.Second
	phaseBuffer     = 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type streamOutcome struct {
	result *token.SuperTokenScore
	err    error
}

// handleStream upgrades to a WebSocket, sends one phase frame per analysis
// phase and finishes with a result or error frame.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	address := mux.Vars(r)["address"]
	if _, err := token.ParseAddress(address); err != nil {
		w.Header().Set("Content-Type", "application/json")
		writeError(w, r, http.StatusBadRequest, "invalid_address", err.Error())
		return
	}
	refresh, _ := strconv.ParseBool(r.URL.Query().Get("refresh"))

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Str("token", address).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	if s.deps.Streams != nil {
		s.deps.Streams.StreamOpened()
		defer s.deps.Streams.StreamClosed()
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.config.RequestTimeout)
	defer cancel()

	observer := engine.NewChannelObserver(phaseBuffer)
	done := make(chan streamOutcome, 1)
	go func() {
		res, err := s.deps.Analyzer.AnalyzeToken(ctx, address, engine.Options{ForceRefresh: refresh, Observer: observer})
		observer.Close()
		done <- streamOutcome{result: res, err: err}
	}()

	for phase := range observer.Phases() {
		if err := writeFrame(conn, StreamMessage{Type: MessagePhase, Phase: phase}); err != nil {
			log.Debug().Err(err).Str("token", address).Msg("Stream client went away")
			cancel()
		}
	}

	out := <-done
	if n := observer.Dropped(); n > 0 {
		log.Warn().Int64("dropped", n).Str("token", address).Msg("Stream skipped phase frames for a slow client")
	}
	final := StreamMessage{Type: MessageResult, Result: out.result}
	if out.err != nil {
		status, code := classifyError(out.err)
		e := newErrorResponse(r, status, code, out.err.Error())
		final = StreamMessage{Type: MessageError, Error: &e}
	}
	if err := writeFrame(conn, final); err != nil {
		return
	}
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(streamWriteWait))
}

func writeFrame(conn *websocket.Conn, msg StreamMessage) error {
	if err := conn.SetWriteDeadline(time.Now().Add(streamWriteWait)); err != nil {
		return err
	}
	return conn.WriteJSON(msg)
}

package httpserver

import (
	"encoding/json"
	"fmt"
	"net/http"

	eventsv1 "coai/contracts/gen/events/v1"
)

type councilStreamEvent struct {
	SessionID     string `json:"session_id"`
	SubjectID     string `json:"subject_id"`
	SubjectType   string `json:"subject_type"`
	FinalDecision string `json:"final_decision"`
	Status        string `json:"status"`
	Approve       int    `json:"approve"`
	Reject        int    `json:"reject"`
	Escalate      int    `json:"escalate"`
}

// handleCouncilStream pushes finalized sessions as server-sent events until
// the client disconnects.
func (s *Server) handleCouncilStream(w http.ResponseWriter, r *http.Request) {
	if !requireCouncilRequestID(w, r) {
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeCouncilError(w, http.StatusInternalServerError, "streaming_unsupported", "response does not support streaming")
		return
	}

	notices, cancel := s.council.Events.Subscribe()
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	s.logger.Info("council stream opened",
		"event", "council_stream_opened",
		"module", "internal/platform/httpserver",
		"layer", "platform",
		"request_id", r.Header.Get("X-Request-Id"),
	)
	for {
		select {
		case <-r.Context().Done():
			return
		case notice, ok := <-notices:
			if !ok {
				return
			}
			payload, err := json.Marshal(councilStreamEvent{
				SessionID:     notice.SessionID,
				SubjectID:     notice.SubjectID,
				SubjectType:   string(notice.SubjectType),
				FinalDecision: string(notice.FinalDecision),
				Status:        string(notice.Status),
				Approve:       notice.Tally.Approve,
				Reject:        notice.Tally.Reject,
				Escalate:      notice.Tally.Escalate,
			})
			if err != nil {
				continue
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", eventsv1.EventCouncilSessionFinalized, payload); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

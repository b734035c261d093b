package httpserver

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestCouncilStreamRequiresRequestID(t *testing.T) {
	server := newTestServer()
	rr := doCouncilRequest(t, server, http.MethodGet, "/v1/council/stream", "", nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestCouncilStreamPushesFinalizedSessions(t *testing.T) {
	server := newTestServer()
	ts := httptest.NewServer(server.mux)
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/v1/council/stream", nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("X-Request-Id", "req-stream")
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	reader := bufio.NewReader(resp.Body)
	first, err := reader.ReadString('\n')
	if err != nil || !strings.HasPrefix(first, ": connected") {
		t.Fatalf("expected connected comment, got %q err=%v", first, err)
	}

	sessionID := openCouncilSession(t, server, 3)
	castCouncilVote(t, server, sessionID, "scribe-01", "reject")
	castCouncilVote(t, server, sessionID, "scribe-02", "reject")
	castCouncilVote(t, server, sessionID, "scribe-03", "reject")

	var eventLine, dataLine string
	for dataLine == "" {
		line, err := reader.ReadString('\n')
		if err != nil {
			t.Fatalf("read stream: %v", err)
		}
		switch {
		case strings.HasPrefix(line, "event: "):
			eventLine = strings.TrimSpace(strings.TrimPrefix(line, "event: "))
		case strings.HasPrefix(line, "data: "):
			dataLine = strings.TrimSpace(strings.TrimPrefix(line, "data: "))
		}
	}
	if eventLine != "council.session.finalized" {
		t.Fatalf("unexpected event name %q", eventLine)
	}
	if !strings.Contains(dataLine, sessionID) || !strings.Contains(dataLine, `"final_decision":"rejected"`) {
		t.Fatalf("unexpected event payload %s", dataLine)
	}
}

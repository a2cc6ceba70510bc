package api

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestStreamProgressDeliversFinalEvent(t *testing.T) {
	s := newTestServer(t)
	id := uploadAndWait(t, s)

	srv := httptest.NewServer(s.router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/bugreports/" + id + "/progress"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	// The run already finished; the retained final event arrives first.
	var ev ProgressEvent
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatal(err)
	}
	if ev.RunID != id || !ev.Final || ev.Error != "" {
		t.Errorf("event = %+v", ev)
	}

	// After the final event the server closes the stream.
	if err := conn.ReadJSON(&ev); err == nil {
		t.Errorf("got %+v, want close", ev)
	} else if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		t.Errorf("close err = %v", err)
	}
}

func TestStreamProgressLiveRun(t *testing.T) {
	s := newTestServer(t)

	srv := httptest.NewServer(s.router)
	defer srv.Close()

	// Subscribe before anything happened for this id, then publish.
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/bugreports/live-run/progress"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	// Give the handler a moment to register its subscription.
	deadline := time.Now().Add(2 * time.Second)
	go func() {
		for time.Now().Before(deadline) {
			s.hub.publish(ProgressEvent{RunID: "live-run", Stage: "logcat"})
			time.Sleep(10 * time.Millisecond)
		}
	}()

	var ev ProgressEvent
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatal(err)
	}
	if ev.RunID != "live-run" || ev.Stage != "logcat" {
		t.Errorf("event = %+v", ev)
	}
}

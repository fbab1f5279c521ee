package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/assafrot/api-keys-app/src/models"
	"github.com/assafrot/api-keys-app/src/services"
)

type sseEvent struct {
	name string
	data string
}

// readEvents parses an SSE stream into events until the body closes
func readEvents(body *bufio.Scanner, out chan<- sseEvent) {
	defer close(out)
	var ev sseEvent
	for body.Scan() {
		line := body.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			ev.name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			ev.data = strings.TrimPrefix(line, "data: ")
		case line == "" && ev.name != "":
			out <- ev
			ev = sseEvent{}
		}
	}
}

func nextEvent(t *testing.T, events <-chan sseEvent) sseEvent {
	t.Helper()
	select {
	case ev, ok := <-events:
		if !ok {
			t.Fatal("stream closed")
		}
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	return sseEvent{}
}

func TestHandleStream_SnapshotThenOwnChanges(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := newMemoryStore(t)
	keys := services.NewKeyService(store)
	ctx := context.Background()

	existing, err := keys.Create(ctx, "alice", "existing", nil)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	bobs, _ := keys.Create(ctx, "bob", "bobs", nil)

	router := gin.New()
	router.GET("/api/keys/stream", asOwner(), NewStreamHandler(keys).HandleStream)
	srv := httptest.NewServer(router)
	defer srv.Close()

	reqCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	req, _ := http.NewRequestWithContext(reqCtx, http.MethodGet, srv.URL+"/api/keys/stream", nil)
	req.Header.Set("X-Test-Owner", "alice")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("unexpected content type %q", ct)
	}

	events := make(chan sseEvent, 8)
	go readEvents(bufio.NewScanner(resp.Body), events)

	snap := nextEvent(t, events)
	if snap.name != "snapshot" {
		t.Fatalf("expected snapshot first, got %q", snap.name)
	}
	var payload snapshotPayload
	if err := json.Unmarshal([]byte(snap.data), &payload); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if len(payload.Keys) != 1 || payload.Keys[0].ID != existing.ID {
		t.Fatalf("unexpected snapshot %+v", payload)
	}

	// bob's delete reaches the stream unfiltered and must be dropped;
	// alice's own delete must arrive
	if err := keys.Delete(ctx, "bob", bobs.ID); err != nil {
		t.Fatalf("delete bob's key: %v", err)
	}
	if err := keys.Delete(ctx, "alice", existing.ID); err != nil {
		t.Fatalf("delete alice's key: %v", err)
	}

	change := nextEvent(t, events)
	if change.name != "change" {
		t.Fatalf("expected change event, got %q", change.name)
	}
	var ev models.ChangeEvent
	if err := json.Unmarshal([]byte(change.data), &ev); err != nil {
		t.Fatalf("decode change: %v", err)
	}
	if ev.Type != models.ChangeDelete || ev.Old == nil || ev.Old.ID != existing.ID {
		t.Errorf("expected alice's delete, got %+v", ev)
	}
}

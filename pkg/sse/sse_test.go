package sse

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingObserver struct {
	opened, closed, dropped atomic.Int32
}

func (o *countingObserver) SSEStreamOpened() { o.opened.Add(1) }
func (o *countingObserver) SSEStreamClosed() { o.closed.Add(1) }
func (o *countingObserver) SSEDropped()      { o.dropped.Add(1) }

func recv(t *testing.T, c *Client) string {
	t.Helper()
	select {
	case msg := <-c.ch:
		return string(msg)
	case <-time.After(time.Second):
		t.Fatal("no message received")
		return ""
	}
}

func TestHubSendToUserReachesEveryStream(t *testing.T) {
	hub := NewHub(time.Minute)
	a := hub.AddClient("7")
	b := hub.AddClient("7")
	other := hub.AddClient("8")

	hub.SendToUser("7", Event{ID: "3", Type: "notification", Data: map[string]string{"title": "hi"}})

	for _, c := range []*Client{a, b} {
		msg := recv(t, c)
		assert.Equal(t, "id: 3\nevent: notification\ndata: {\"title\":\"hi\"}\n\n", msg)
	}
	assert.Len(t, other.ch, 0)
	assert.Equal(t, map[string]int{"7": 2, "8": 1}, hub.Online())
}

func TestHubRemoveClientCleansUserSet(t *testing.T) {
	obs := &countingObserver{}
	hub := NewHub(time.Minute).WithObserver(obs)
	a := hub.AddClient("7", "role:officer")
	b := hub.AddClient("7")

	hub.RemoveClient(a.ID())
	assert.Equal(t, map[string]int{"7": 1}, hub.Online())

	hub.RemoveClient(b.ID())
	hub.RemoveClient(b.ID())
	assert.Empty(t, hub.Online())
	assert.Equal(t, 0, hub.StreamCount())
	assert.EqualValues(t, 2, obs.opened.Load())
	assert.EqualValues(t, 2, obs.closed.Load())

	// 已移除的连接收不到消息
	hub.SendToGroup("role:officer", Event{Type: "record.changed", Data: 1})
	assert.Len(t, a.ch, 0)
}

func TestHubGroupsAndBroadcast(t *testing.T) {
	hub := NewHub(time.Minute)
	officer := hub.AddClient("1", "role:officer")
	citizen := hub.AddClient("2", "role:citizen")

	hub.SendToGroup("role:officer", Event{Type: "record.changed", Data: map[string]any{"resource": "crimes"}})
	assert.Contains(t, recv(t, officer), "event: record.changed")
	assert.Len(t, citizen.ch, 0)

	hub.Leave(officer.ID(), "role:officer")
	hub.SendToGroup("role:officer", Event{Type: "record.changed", Data: 2})
	assert.Len(t, officer.ch, 0)

	hub.Broadcast(Event{Type: "system", Data: "maintenance"})
	assert.Contains(t, recv(t, officer), "data: \"maintenance\"")
	assert.Contains(t, recv(t, citizen), "event: system")
}

func TestHubDropsWhenBufferFull(t *testing.T) {
	obs := &countingObserver{}
	hub := NewHub(time.Minute).WithObserver(obs)
	c := hub.AddClient("1")

	for i := 0; i < hub.bufSize+5; i++ {
		hub.SendToUser("1", Event{Type: "n", Data: i})
	}
	assert.Len(t, c.ch, hub.bufSize)
	assert.EqualValues(t, 5, obs.dropped.Load())
}

type loopbackBroker struct {
	deliver func(Envelope)
	sent    atomic.Int32
}

func (b *loopbackBroker) Publish(ctx context.Context, env Envelope) error {
	b.sent.Add(1)
	b.deliver(env)
	return nil
}

func (b *loopbackBroker) Subscribe(ctx context.Context, deliver func(Envelope)) error {
	b.deliver = deliver
	return nil
}

func (b *loopbackBroker) Close() error { return nil }

func TestHubPublishesThroughBroker(t *testing.T) {
	broker := &loopbackBroker{}
	hub, err := NewHub(time.Minute).WithBroker(broker)
	require.NoError(t, err)
	c := hub.AddClient("9")

	hub.SendToUser("9", Event{Type: "notification", Data: "x"})
	assert.Contains(t, recv(t, c), "event: notification")
	assert.EqualValues(t, 1, broker.sent.Load())
	require.NoError(t, hub.Close())
}

func TestServeStreamsEvents(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hub := NewHub(time.Minute)
	r := gin.New()
	r.GET("/stream", func(c *gin.Context) {
		hub.Serve(c, "42", []string{"role:staff"}, func(last string) []Event {
			if last == "" {
				return nil
			}
			return []Event{{ID: "6", Type: "notification", Data: "missed"}}
		})
	})
	srv := httptest.NewServer(r)
	defer srv.Close()

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/stream", nil)
	require.NoError(t, err)
	req.Header.Set("Last-Event-ID", "5")
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	lines := make(chan string, 32)
	go func() {
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()
	waitFor := func(want string) {
		t.Helper()
		deadline := time.After(2 * time.Second)
		for {
			select {
			case line, ok := <-lines:
				require.True(t, ok, "stream closed before %q", want)
				if strings.Contains(line, want) {
					return
				}
			case <-deadline:
				t.Fatalf("timed out waiting for %q", want)
			}
		}
	}

	waitFor("retry: 5000")
	waitFor("event: ready")
	waitFor(`data: "missed"`)

	require.Eventually(t, func() bool { return hub.Online()["42"] == 1 }, time.Second, 10*time.Millisecond)
	hub.SendToUser("42", Event{ID: "7", Type: "notification", Data: map[string]string{"title": "assigned"}})
	waitFor("id: 7")
	waitFor(`data: {"title":"assigned"}`)

	hub.SendToGroup("role:staff", Event{Type: "record.changed", Data: "schedules"})
	waitFor("event: record.changed")
}

package socket

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"sharedpad/broadcast"
	"sharedpad/internal/document/model"
	"sharedpad/internal/document/service"
	"sharedpad/store"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Helper function to read messages from a WebSocket connection with a timeout.
func readMessage(t *testing.T, conn *websocket.Conn) model.Message {
	t.Helper()
	var msg model.Message
	conn.SetReadDeadline(time.Now().Add(time.Second))
	require.NoError(t, conn.ReadJSON(&msg), "Failed to read message from WebSocket")
	return msg
}

func readText(t *testing.T, conn *websocket.Conn) string {
	t.Helper()
	msg := readMessage(t, conn)
	require.Equal(t, model.UpdateType, msg.Type)
	require.NotNil(t, msg.Text, "UPDATE frame without text")
	return *msg.Text
}

func setup(t *testing.T, heartbeat time.Duration) (*service.DocumentService, string) {
	t.Helper()
	svc := service.NewDocumentService(store.New(), broadcast.New())
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ServeWs(svc, heartbeat, w, r)
	}))
	t.Cleanup(server.Close)
	return svc, "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
}

func dial(t *testing.T, svc *service.DocumentService, url string, want int) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err, "Client failed to connect")
	t.Cleanup(func() { conn.Close() })
	require.Eventually(t, func() bool { return svc.Bus.Len() == want }, time.Second, 5*time.Millisecond)
	return conn
}

func TestUpdatesReachEveryClient(t *testing.T) {
	svc, url := setup(t, time.Minute)
	svc.Save("before anyone joined")

	conn1 := dial(t, svc, url, 1)
	conn2 := dial(t, svc, url, 2)

	svc.Save("hello world")

	for _, conn := range []*websocket.Conn{conn1, conn2} {
		assert.Equal(t, "hello world", readText(t, conn))
	}
}

func TestClientWritesAreSavedAndBroadcast(t *testing.T) {
	svc, url := setup(t, time.Minute)
	writer := dial(t, svc, url, 1)
	reader := dial(t, svc, url, 2)

	require.NoError(t, writer.WriteJSON(model.NewUpdateMessage("precious content")))

	assert.Equal(t, "precious content", readText(t, reader))
	assert.Equal(t, "precious content", svc.Content())

	// Frames are handled in order, so if any of these reached the store the
	// reader would see it before the final valid write.
	bad := []string{
		`{not json`,
		`{"type":"UPDATE"}`,
		`{"type":"UPDATE","text":null}`,
		`{"type":"UPDATE","text":"a"} trailing-garbage`,
		"{\"type\":\"UPDATE\",\"text\":\"bad\xff\xfebytes\"}",
		`{"type":"CURSOR"}`,
	}
	for _, frame := range bad {
		require.NoError(t, writer.WriteMessage(websocket.TextMessage, []byte(frame)))
	}
	require.NoError(t, writer.WriteJSON(model.NewUpdateMessage("after bad frames")))

	assert.Equal(t, "after bad frames", readText(t, reader))
	assert.Equal(t, "after bad frames", svc.Content())
	assert.Equal(t, 2, svc.Bus.Len())
}

func TestUpdateWithoutTextKeepsDocument(t *testing.T) {
	svc, url := setup(t, time.Minute)
	svc.Save("precious content")
	conn := dial(t, svc, url, 1)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"UPDATE"}`)))

	assert.Never(t, func() bool { return svc.Content() != "precious content" }, 200*time.Millisecond, 10*time.Millisecond)
	assert.Equal(t, uint64(1), svc.Snapshot().Revision)
	svc.Save("next")
	assert.Equal(t, "next", readText(t, conn))
}

func TestDisconnectUnsubscribes(t *testing.T) {
	svc, url := setup(t, time.Minute)
	conn := dial(t, svc, url, 1)

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	conn.Close()

	assert.Eventually(t, func() bool { return svc.Bus.Len() == 0 }, time.Second, 5*time.Millisecond)
	svc.Save("nobody listening")
}

func TestServerPingsClient(t *testing.T) {
	svc, url := setup(t, 20*time.Millisecond)
	conn := dial(t, svc, url, 1)

	pinged := make(chan struct{}, 1)
	conn.SetPingHandler(func(string) error {
		select {
		case pinged <- struct{}{}:
		default:
		}
		return conn.WriteControl(websocket.PongMessage, nil, time.Now().Add(time.Second))
	})
	// Control frames are handled while reading.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	select {
	case <-pinged:
	case <-time.After(time.Second):
		t.Fatal("no ping received")
	}
}

func TestBusShutdownClosesConnection(t *testing.T) {
	svc, url := setup(t, time.Minute)
	conn := dial(t, svc, url, 1)

	svc.Bus.Close()

	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "unexpected error: %v", err)
}

func TestConnectAfterShutdownIsRejected(t *testing.T) {
	svc, url := setup(t, time.Minute)
	svc.Bus.Close()

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseTryAgainLater), "unexpected error: %v", err)
}

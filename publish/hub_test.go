package publish

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hemtjan.st/mbusmeter/meter"
	"hemtjan.st/mbusmeter/obis"
)

func getJSON(t *testing.T, url string) (int, map[string]interface{}) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]interface{}{}
	require.NoError(t, json.Unmarshal(body, &out), string(body))
	return resp.StatusCode, out
}

func TestHubLatest(t *testing.T) {
	h := NewHub(zerolog.Nop())
	srv := httptest.NewServer(h.Handler())
	defer srv.Close()

	code, body := getJSON(t, srv.URL+"/")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "running", body["status"])

	code, _ = getJSON(t, srv.URL+"/latest")
	assert.Equal(t, http.StatusNotFound, code)

	require.NoError(t, h.Publish(testReading))

	code, body = getJSON(t, srv.URL+"/latest")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "4B464D6750000009", body["system_title"])
	values := body["values"].(map[string]interface{})
	assert.Equal(t, 1234.0, values[obis.PowerImport])

	resp, err := http.Get(srv.URL + "/nope")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHubWebsocket(t *testing.T) {
	h := NewHub(zerolog.Nop())
	srv := httptest.NewServer(h.Handler())
	defer srv.Close()

	require.NoError(t, h.Publish(testReading))

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var r meter.Reading
	require.NoError(t, conn.ReadJSON(&r))
	assert.Equal(t, 1234.0, r.Values[obis.PowerImport])

	next := testReading
	next.Values = obis.Record{obis.PowerImport: 999}
	require.NoError(t, h.Publish(next))

	r = meter.Reading{}
	require.NoError(t, conn.ReadJSON(&r))
	assert.Equal(t, obis.Record{obis.PowerImport: 999}, r.Values)
	assert.True(t, testReading.Time.Equal(r.Time))
}

func (h *Hub) clientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func TestHubDropsStalledClient(t *testing.T) {
	h := NewHub(zerolog.Nop())
	h.WriteTimeout = 50 * time.Millisecond
	srv := httptest.NewServer(h.Handler())
	defer srv.Close()

	// Connected but never reads
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return h.clientCount() == 1 }, 5*time.Second, 10*time.Millisecond)

	big := meter.Reading{Values: obis.Record{}}
	for i := 0; i < 4000; i++ {
		big.Values[fmt.Sprintf("register_%04d", i)] = float64(i)
	}

	done := make(chan int)
	go func() {
		n := 0
		for ; n < 2000 && h.clientCount() > 0; n++ {
			_ = h.Publish(big)
		}
		done <- n
	}()

	select {
	case n := <-done:
		assert.Less(t, n, 2000, "stalled client was never dropped")
	case <-time.After(30 * time.Second):
		t.Fatal("Publish blocked on a client that does not read")
	}
	assert.Equal(t, 0, h.clientCount())
}

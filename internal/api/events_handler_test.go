package api

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/enginehost/internal/command"
	"github.com/mattjoyce/enginehost/internal/events"
)

func TestParseLastEventID(t *testing.T) {
	assert.Equal(t, int64(0), parseLastEventID(""))
	assert.Equal(t, int64(0), parseLastEventID("abc"))
	assert.Equal(t, int64(0), parseLastEventID("-4"))
	assert.Equal(t, int64(42), parseLastEventID("42"))
}

func TestWriteSSE(t *testing.T) {
	rr := httptest.NewRecorder()
	require.NoError(t, writeSSE(rr, events.Event{ID: 7, Type: events.EngineOutput, Data: json.RawMessage(`{"text":"x"}`)}))
	assert.Equal(t, "id: 7\nevent: engine.output\ndata: {\"text\":\"x\"}\n\n", rr.Body.String())
}

func TestEventsStreamEngineOutput(t *testing.T) {
	f := newFixture(t)
	srv := httptest.NewServer(f.handler)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/events", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+readerToken)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	_, err = f.host.SubmitCommand("uci", command.Classical)
	require.NoError(t, err)

	scanner := bufio.NewScanner(resp.Body)
	var sawOutput bool
	for scanner.Scan() {
		line := scanner.Text()
		if line == "event: "+events.EngineOutput {
			require.True(t, scanner.Scan())
			data := strings.TrimPrefix(scanner.Text(), "data: ")
			var out events.OutputData
			require.NoError(t, json.Unmarshal([]byte(data), &out))
			if out.Engine == "classical" && strings.Contains(out.Text, "uciok") {
				sawOutput = true
				break
			}
		}
	}
	assert.True(t, sawOutput)
}

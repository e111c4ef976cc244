// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Thermoquad/kellystat/internal/config"
	"github.com/Thermoquad/kellystat/pkg/kelly"
)

// wsServer starts a bridge stand-in and returns its ws:// URL
func wsServer(t *testing.T, handle func(r *http.Request, c *websocket.Conn)) string {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()
		handle(r, c)
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dialWS(t *testing.T, url, username, password string) *WebSocketConnection {
	t.Helper()
	conn, err := OpenWebSocketConnection(url, username, password, false)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

// drain reads until the peer goes away
func drain(c *websocket.Conn) {
	for {
		if _, _, err := c.ReadMessage(); err != nil {
			return
		}
	}
}

// ============================================================
// WebSocket Transport Tests
// ============================================================

func TestWebSocketDriverExchange(t *testing.T) {
	url := wsServer(t, func(r *http.Request, c *websocket.Conn) {
		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				return
			}
			if kelly.Command(msg[0]) != kelly.CmdGetVersion {
				continue
			}
			// split across two messages
			frame, _ := kelly.EncodeFrame(kelly.CmdGetVersion, []byte{0x01, 0x05})
			_ = c.WriteMessage(websocket.BinaryMessage, frame[:2])
			_ = c.WriteMessage(websocket.BinaryMessage, frame[2:])
		}
	})
	conn := dialWS(t, url, "", "")

	d := kelly.NewDriver(conn, kelly.WithTimeout(time.Second))
	payload, err := d.Do(kelly.CmdGetVersion, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0x05}, payload)
}

func TestWebSocketReadTimeout(t *testing.T) {
	url := wsServer(t, func(r *http.Request, c *websocket.Conn) { drain(c) })
	conn := dialWS(t, url, "", "")

	require.NoError(t, conn.SetReadTimeout(20*time.Millisecond))
	start := time.Now()
	n, err := conn.Read(make([]byte, 8))
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestWebSocketPartialReads(t *testing.T) {
	url := wsServer(t, func(r *http.Request, c *websocket.Conn) {
		_ = c.WriteMessage(websocket.BinaryMessage, []byte{1, 2, 3, 4, 5})
		drain(c)
	})
	conn := dialWS(t, url, "", "")
	require.NoError(t, conn.SetReadTimeout(time.Second))

	buf := make([]byte, 2)
	var got []byte
	for len(got) < 5 {
		n, err := conn.Read(buf)
		require.NoError(t, err)
		got = append(got, buf[:n]...)
	}
	assert.Equal(t, []byte{1, 2, 3, 4, 5}, got)
}

func TestWebSocketResetInputBuffer(t *testing.T) {
	url := wsServer(t, func(r *http.Request, c *websocket.Conn) {
		_ = c.WriteMessage(websocket.BinaryMessage, []byte{0xAA, 0xBB})
		drain(c)
	})
	conn := dialWS(t, url, "", "")

	require.Eventually(t, func() bool { return len(conn.messages) > 0 }, time.Second, 5*time.Millisecond)
	require.NoError(t, conn.ResetInputBuffer())

	require.NoError(t, conn.SetReadTimeout(20*time.Millisecond))
	n, err := conn.Read(make([]byte, 8))
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestWebSocketIgnoresTextMessages(t *testing.T) {
	url := wsServer(t, func(r *http.Request, c *websocket.Conn) {
		_ = c.WriteMessage(websocket.TextMessage, []byte("hello"))
		_ = c.WriteMessage(websocket.BinaryMessage, []byte{0x42})
		drain(c)
	})
	conn := dialWS(t, url, "", "")
	require.NoError(t, conn.SetReadTimeout(time.Second))

	buf := make([]byte, 8)
	n, err := conn.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x42}, buf[:n])
}

func TestWebSocketClosedByPeer(t *testing.T) {
	url := wsServer(t, func(r *http.Request, c *websocket.Conn) {})
	conn := dialWS(t, url, "", "")
	require.NoError(t, conn.SetReadTimeout(2*time.Second))

	_, err := conn.Read(make([]byte, 8))
	assert.ErrorIs(t, err, ErrConnectionClosed)
	assert.True(t, connectionLost(err))
}

func TestWebSocketBasicAuth(t *testing.T) {
	creds := make(chan [2]string, 1)
	url := wsServer(t, func(r *http.Request, c *websocket.Conn) {
		user, pass, _ := r.BasicAuth()
		creds <- [2]string{user, pass}
		drain(c)
	})
	dialWS(t, url, "admin", "secret")

	select {
	case got := <-creds:
		assert.Equal(t, [2]string{"admin", "secret"}, got)
	case <-time.After(time.Second):
		t.Fatal("handler never ran")
	}
}

func TestOpenWebSocketRejectsScheme(t *testing.T) {
	_, err := OpenWebSocketConnection("http://localhost:1/ws", "", "", false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported URL scheme")
}

func TestOpenConnectionNeedsTarget(t *testing.T) {
	_, _, err := OpenConnection(&config.Config{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--port or --url")
}

func TestOpenConnectionPrefersURL(t *testing.T) {
	url := wsServer(t, func(r *http.Request, c *websocket.Conn) { drain(c) })

	cfg := &config.Config{}
	cfg.WebSocket.URL = url
	cfg.Serial.Port = "/dev/does-not-exist"

	conn, info, err := OpenConnection(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	assert.Equal(t, "WebSocket: "+url, info)
}

func TestGetPasswordFromEnv(t *testing.T) {
	t.Setenv("KELLY_PASSWORD", "hunter2")
	pw, err := GetPassword()
	require.NoError(t, err)
	assert.Equal(t, "hunter2", pw)
}

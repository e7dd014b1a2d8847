package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"trivia_backend/internal/logger"
	"trivia_backend/internal/week"
	"trivia_backend/internal/ws"

	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"
)

// Connects to the pool feed of a running server, checks the handshake and
// optionally plays one game so a pool.updated event can be observed.
// A token can be issued with cmd/create_test_user.
func main() {
	_ = godotenv.Load()
	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "8080"
	}
	// use 127.0.0.1 to prefer IPv4 (avoid resolving to [::1])
	host := flag.String("host", "127.0.0.1:"+port, "server address")
	token := flag.String("token", "", "JWT used with -play")
	bet := flag.Int64("bet", 0, "play one game with this bet")
	wait := flag.Duration("wait", 5*time.Second, "how long to wait for feed events")
	flag.Parse()

	weekID := week.ID(time.Now())
	conn, _, err := websocket.DefaultDialer.Dial(fmt.Sprintf("ws://%s/ws/pool?weekId=%s", *host, weekID), nil)
	if err != nil {
		logger.Fatal("dial failed", "error", err)
	}
	defer conn.Close()

	if env := read(conn, 2*time.Second); env.Type != ws.MsgReady {
		logger.Fatal("expected ready", "got", env.Type)
	}
	if err := conn.WriteJSON(ws.Envelope{Type: ws.MsgPing}); err != nil {
		logger.Fatal("write ping failed", "error", err)
	}
	if env := read(conn, 2*time.Second); env.Type != ws.MsgPong {
		logger.Fatal("expected pong", "got", env.Type)
	}
	logger.Info("feed handshake ok", "week_id", weekID)

	if *bet > 0 {
		if *token == "" {
			logger.Fatal("-bet needs -token")
		}
		play(*host, *token, *bet)
	}

	deadline := time.Now().Add(*wait)
	for time.Now().Before(deadline) {
		env := read(conn, time.Until(deadline))
		if env.Type == "" {
			break
		}
		logger.Info("feed event", "type", env.Type, "week_id", env.WeekID, "data", env.Data)
	}
	logger.Info("smoke test finished")
}

// read returns a zero Envelope on timeout.
func read(conn *websocket.Conn, timeout time.Duration) ws.Envelope {
	_ = conn.SetReadDeadline(time.Now().Add(timeout))
	var env ws.Envelope
	if err := conn.ReadJSON(&env); err != nil {
		return ws.Envelope{}
	}
	return env
}

// play starts a game and always answers the first option until it completes.
func play(host, token string, bet int64) {
	var start struct {
		Game struct {
			GameID string `json:"gameId"`
		} `json:"game"`
	}
	post(host, token, "/api/bet-mode/start", map[string]any{"betAmount": bet}, &start)
	logger.Info("game started", "game_id", start.Game.GameID)

	for i := 0; i < 10; i++ {
		var out struct {
			Correct   bool  `json:"correct"`
			Completed bool  `json:"completed"`
			Payout    int64 `json:"payout"`
		}
		post(host, token, "/api/bet-mode/answer", map[string]any{"gameId": start.Game.GameID, "answerIndex": 0}, &out)
		if out.Completed {
			logger.Info("game completed", "correct", out.Correct, "payout", out.Payout)
			return
		}
	}
}

func post(host, token, path string, body, out any) {
	b, _ := json.Marshal(body)
	req, err := http.NewRequest(http.MethodPost, "http://"+host+path, bytes.NewReader(b))
	if err != nil {
		logger.Fatal("build request failed", "error", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		logger.Fatal("request failed", "path", path, "error", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		logger.Fatal("request rejected", "path", path, "status", resp.StatusCode, "error", e.Error)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		logger.Fatal("decode failed", "path", path, "error", err)
	}
}

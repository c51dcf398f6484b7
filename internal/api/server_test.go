package api

import (
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yourorg/classifieds/services/relay-service/internal/config"
	"github.com/yourorg/classifieds/services/relay-service/internal/handlers"
	"github.com/yourorg/classifieds/services/relay-service/internal/relay"
)

func testApp() *fiber.App {
	cfg := &config.Config{
		WS:            config.WSConfig{MaxMessageSizeBytes: 65536, SendBufferSize: 16},
		PingInterval:  25 * time.Second,
		WriteDeadline: 10 * time.Second,
	}
	lg := zap.NewNop().Sugar()
	hub := relay.NewHub(lg)
	return NewServer(handlers.NewWSHandler(hub, cfg, lg))
}

func TestHealthz(t *testing.T) {
	req := require.New(t)
	app := testApp()

	resp, err := app.Test(httptest.NewRequest("GET", "/healthz", nil))
	req.NoError(err)
	req.Equal(200, resp.StatusCode)

	var body struct {
		Status    string `json:"status"`
		Timestamp string `json:"timestamp"`
	}
	req.NoError(json.NewDecoder(resp.Body).Decode(&body))
	req.Equal("ok", body.Status)
	_, err = time.Parse(time.RFC3339, body.Timestamp)
	req.NoError(err)
}

func TestWSRequiresUpgrade(t *testing.T) {
	req := require.New(t)
	app := testApp()

	resp, err := app.Test(httptest.NewRequest("GET", "/ws", nil))
	req.NoError(err)
	req.Equal(426, resp.StatusCode)
}

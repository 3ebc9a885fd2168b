package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	gorillaws "github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cleanzone-api/clock"
	"cleanzone-api/config"
	"cleanzone-api/models"
	"cleanzone-api/repositories"
	"cleanzone-api/services"
	"cleanzone-api/testutil"
	"cleanzone-api/utils"
	"cleanzone-api/websocket"
)

type silentNotifier struct{}

func (silentNotifier) TransferRequested(*models.Event, *models.User, *models.User) {}
func (silentNotifier) EventCancelled(*models.Event, []models.User)                 {}

type testServer struct {
	router *gin.Engine
	hub    *websocket.Hub
	clock  *clock.Manual
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	require.NoError(t, utils.RegisterValidators())

	log := logrus.New()
	log.SetOutput(io.Discard)

	tiles := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("tile:" + r.URL.Path))
	}))
	t.Cleanup(tiles.Close)

	cfg := config.Default()
	cfg.Storage.PhotoDir = t.TempDir()
	cfg.CORS.AllowedOrigins = []string{"*"}

	db := testutil.NewDB(t)
	store := repositories.NewStore(db)
	clk := clock.NewManual(time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC))
	publisher := services.NewLogPublisher(log)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	hub := websocket.NewHub(log)
	go hub.Run(ctx)

	tokens := services.NewTokenService("routes-secret", "cleanzone", 72*time.Hour, clk)
	svc := Services{
		Auth:     services.NewAuthService(store, services.NewPasswordHasher(1000), tokens, log),
		Users:    services.NewUserService(store),
		Zones:    services.NewZoneService(store, clk, publisher, log),
		Photos:   services.NewPhotoService(store, services.NewFileStorage(cfg.Storage.PhotoDir), clk, 1024, log),
		Events:   services.NewEventService(store, clk, publisher, silentNotifier{}, hub, cfg.Events.TransferTTL, log),
		Messages: services.NewMessageService(store, clk, hub),
		Tiles:    services.NewTileService(repositories.NewTileCacheRepository(db), tiles.URL+"/{z}/{x}/{y}.png", "cleanzone-test", time.Second, clk, log),
		Hub:      hub,
	}

	return &testServer{router: NewRouter(cfg, db, svc, log), hub: hub, clock: clk}
}

func (s *testServer) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) register(t *testing.T, name string) models.SessionResponse {
	t.Helper()
	w := s.do(t, http.MethodPost, "/api/v1/auth/register", "", models.RegisterRequest{
		Name: name, Email: strings.ToLower(name) + "@example.com", Password: "Secret#123",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var session models.SessionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &session))
	return session
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func (s *testServer) scheduleEvent(t *testing.T, token string) models.EventResponse {
	t.Helper()
	w := s.do(t, http.MethodPost, "/api/v1/zones", token, models.CreateZoneRequest{
		Latitude: 48.8566, Longitude: 2.3522, RadiusMeters: 80, Description: "Cans in the park", Severity: "HIGH",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	zone := decode[models.ZoneResponse](t, w)
	assert.Equal(t, models.ZoneStatusReported, zone.Status)

	w = s.do(t, http.MethodPost, "/api/v1/events", token, models.CreateEventRequest{
		Title:       "Park cleanup",
		Description: "Meet at the fountain",
		StartAt:     s.clock.Now().Add(24 * time.Hour),
		ZoneID:      zone.ID,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[models.EventResponse](t, w)
}

func TestRoutes_PublicEndpoints(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/tiles/3/2/1.png", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "tile:/3/2/1.png", w.Body.String())
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))

	w = s.do(t, http.MethodGet, "/api/v1/tiles/1/5/0.png", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/does-not-exist", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "route not found", decode[utils.ErrorResponse](t, w).Error)

	w = s.do(t, http.MethodGet, "/api/v1/events", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestRoutes_EventFlow(t *testing.T) {
	s := newTestServer(t)
	olga := s.register(t, "Olga")
	vic := s.register(t, "Vic")

	event := s.scheduleEvent(t, olga.Token)
	assert.Equal(t, models.EventStatusPlanned, event.Status)
	assert.True(t, event.Permissions.IsOrganizer)

	path := fmt.Sprintf("/api/v1/events/%d", event.ID)

	w := s.do(t, http.MethodGet, path, vic.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode[models.EventResponse](t, w).Permissions.CanJoin)

	w = s.do(t, http.MethodPost, path+"/join", vic.Token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	joined := decode[models.EventResponse](t, w)
	assert.Equal(t, 1, joined.ParticipantsCount)
	assert.True(t, joined.Permissions.CanLeave)

	w = s.do(t, http.MethodPost, path+"/join", vic.Token, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(t, http.MethodPost, path+"/complete", olga.Token, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(t, http.MethodPut, path, vic.Token, models.UpdateEventRequest{})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, http.MethodPost, path+"/messages", vic.Token, models.SendMessageRequest{Content: "Bringing two rakes"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, uint32(1), decode[models.MessageResponse](t, w).ChatPosition)

	w = s.do(t, http.MethodGet, path+"/messages", olga.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	messages := decode[[]models.MessageResponse](t, w)
	require.Len(t, messages, 1)
	assert.Equal(t, "Vic", messages[0].SenderName)

	s.clock.Advance(25 * time.Hour)

	w = s.do(t, http.MethodPost, path+"/attendance", vic.Token, nil)
	assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = s.do(t, http.MethodPost, path+"/complete", olga.Token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, models.EventStatusCompleted, decode[models.EventResponse](t, w).Status)

	w = s.do(t, http.MethodGet, path+"/history", olga.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	history := decode[[]models.StateChangeResponse](t, w)
	assert.Len(t, history, 3)

	w = s.do(t, http.MethodGet, fmt.Sprintf("/api/v1/zones/%d", event.ZoneID), olga.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.ZoneStatusCleaned, decode[models.ZoneResponse](t, w).Status)

	w = s.do(t, http.MethodPost, path+"/messages", vic.Token, models.SendMessageRequest{Content: "Thanks all"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(t, http.MethodGet, fmt.Sprintf("/api/v1/users/%d/statistics", vic.User.ID), vic.Token, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRoutes_ChatStream(t *testing.T) {
	s := newTestServer(t)
	olga := s.register(t, "Olga")
	vic := s.register(t, "Vic")
	event := s.scheduleEvent(t, olga.Token)

	srv := httptest.NewServer(s.router)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") +
		fmt.Sprintf("/api/v1/events/%d/chat/ws?token=%s", event.ID, vic.Token)
	_, resp, err := gorillaws.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err, "non-participants cannot subscribe")
	if resp != nil {
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		_ = resp.Body.Close()
	}

	w := s.do(t, http.MethodPost, fmt.Sprintf("/api/v1/events/%d/join", event.ID), vic.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	conn, resp, err := gorillaws.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	_ = resp.Body.Close()

	require.Eventually(t, func() bool { return s.hub.ClientCount(event.ID) == 1 }, 2*time.Second, 10*time.Millisecond)

	w = s.do(t, http.MethodPost, fmt.Sprintf("/api/v1/events/%d/messages", event.ID), olga.Token, models.SendMessageRequest{Content: "See you at nine"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var pushed models.MessageResponse
	require.NoError(t, conn.ReadJSON(&pushed))
	assert.Equal(t, "See you at nine", pushed.Content)
	assert.Equal(t, uint32(1), pushed.ChatPosition)
}

func TestRoutes_ChatStreamClosesAfterLeave(t *testing.T) {
	s := newTestServer(t)
	olga := s.register(t, "Olga")
	vic := s.register(t, "Vic")
	event := s.scheduleEvent(t, olga.Token)

	w := s.do(t, http.MethodPost, fmt.Sprintf("/api/v1/events/%d/join", event.ID), vic.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	srv := httptest.NewServer(s.router)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") +
		fmt.Sprintf("/api/v1/events/%d/chat/ws?token=%s", event.ID, vic.Token)
	conn, resp, err := gorillaws.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	_ = resp.Body.Close()

	require.Eventually(t, func() bool { return s.hub.ClientCount(event.ID) == 1 }, 2*time.Second, 10*time.Millisecond)

	w = s.do(t, http.MethodPost, fmt.Sprintf("/api/v1/events/%d/leave", event.ID), vic.Token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	require.Eventually(t, func() bool { return s.hub.ClientCount(event.ID) == 0 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, gorillaws.IsCloseError(err, gorillaws.CloseNormalClosure, gorillaws.CloseNoStatusReceived), err.Error())
}

func TestRoutes_ZoneSearchRejectsNonFiniteRadius(t *testing.T) {
	s := newTestServer(t)
	olga := s.register(t, "Olga")

	for _, radius := range []string{"NaN", "Inf", "-Inf", "0"} {
		w := s.do(t, http.MethodGet, "/api/v1/zones?lat=48.85&lon=2.35&radius_km="+radius, olga.Token, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, radius)
	}

	w := s.do(t, http.MethodGet, "/api/v1/zones?lat=48.85&lon=2.35&radius_km=2.5", olga.Token, nil)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

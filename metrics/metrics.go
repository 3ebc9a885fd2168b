package metrics

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cleanzone_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cleanzone_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	lifecycleTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cleanzone_lifecycle_transitions_total",
			Help: "Status transitions of events and zones",
		},
		[]string{"entity", "status"},
	)

	chatMessagesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cleanzone_chat_messages_total",
			Help: "Chat messages accepted",
		},
	)

	tileCacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cleanzone_tile_cache_lookups_total",
			Help: "Tile cache lookups by result",
		},
		[]string{"result"}, // hit, miss
	)

	websocketClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "cleanzone_websocket_clients",
			Help: "Connected chat stream clients",
		},
	)

	databaseConnectionsOpen = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "cleanzone_database_connections_open",
			Help: "Open database connections",
		},
	)

	databaseConnectionsIdle = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "cleanzone_database_connections_idle",
			Help: "Idle database connections",
		},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		lifecycleTransitionsTotal,
		chatMessagesTotal,
		tileCacheLookups,
		websocketClients,
		databaseConnectionsOpen,
		databaseConnectionsIdle,
	)
}

func Handler() http.Handler {
	return promhttp.Handler()
}

func RecordHTTPRequest(method, path string, status int, seconds float64) {
	httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(seconds)
}

func RecordTransition(entity, status string) {
	lifecycleTransitionsTotal.WithLabelValues(entity, status).Inc()
}

func RecordChatMessage() {
	chatMessagesTotal.Inc()
}

func RecordTileLookup(hit bool) {
	if hit {
		tileCacheLookups.WithLabelValues("hit").Inc()
		return
	}
	tileCacheLookups.WithLabelValues("miss").Inc()
}

func WebsocketConnected()    { websocketClients.Inc() }
func WebsocketDisconnected() { websocketClients.Dec() }

// UpdateDatabaseConnections samples the connection pool.
func UpdateDatabaseConnections(db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("database connection is nil")
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}
	stats := sqlDB.Stats()
	databaseConnectionsOpen.Set(float64(stats.OpenConnections))
	databaseConnectionsIdle.Set(float64(stats.Idle))
	return nil
}

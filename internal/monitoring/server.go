package monitoring

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
)

const maxAlerts = 500

// MonitoringServer serves the review and ledger event feed plus process stats
// on a side port. It implements services.Notifier.
type MonitoringServer struct {
	db         *pgxpool.Pool
	port       int
	alerts     []Alert
	nextID     int
	alertsMux  sync.RWMutex
	clients    map[*websocket.Conn]bool
	clientsMux sync.Mutex
	broadcast  chan Alert
}

type Alert struct {
	ID        int         `json:"id"`
	Severity  string      `json:"severity"`
	Type      string      `json:"type"`
	Message   string      `json:"message"`
	Payload   interface{} `json:"payload,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

type DashboardStats struct {
	DatabaseStatus string  `json:"database_status"`
	AcquiredConns  int32   `json:"acquired_connections"`
	TotalConns     int32   `json:"total_connections"`
	ResponseTime   int64   `json:"response_time_ms"`
	RecentAlerts   int     `json:"recent_alerts"`
	ConnectedFeeds int     `json:"connected_feeds"`
	CPUPercent     float64 `json:"cpu_percent"`
	MemoryPercent  float64 `json:"memory_percent"`
	DiskPercent    float64 `json:"disk_percent"`
	MemoryUsed     string  `json:"memory_used"`
	MemoryTotal    string  `json:"memory_total"`
	DiskUsed       string  `json:"disk_used"`
	DiskTotal      string  `json:"disk_total"`
	DatabaseUptime string  `json:"database_uptime,omitempty"`
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// NewMonitoringServer builds the server. db may be nil when running on the
// in-memory store.
func NewMonitoringServer(db *pgxpool.Pool, port int) *MonitoringServer {
	return &MonitoringServer{
		db:        db,
		port:      port,
		alerts:    make([]Alert, 0),
		clients:   make(map[*websocket.Conn]bool),
		broadcast: make(chan Alert, 64),
	}
}

// Notify records an event and queues it for connected feeds. It never blocks:
// when the queue is full the event is still kept in the alert history.
func (ms *MonitoringServer) Notify(kind, message string, payload interface{}) {
	severity := "info"
	if kind == "needs_review" || kind == "po_reassigned" {
		severity = "warning"
	}
	alert := ms.record(Alert{Severity: severity, Type: kind, Message: message, Payload: payload})

	select {
	case ms.broadcast <- alert:
	default:
		log.Printf("[Monitoring] broadcast queue full, alert %d not pushed", alert.ID)
	}
}

func (ms *MonitoringServer) record(alert Alert) Alert {
	ms.alertsMux.Lock()
	defer ms.alertsMux.Unlock()

	ms.nextID++
	alert.ID = ms.nextID
	alert.Timestamp = time.Now()
	ms.alerts = append(ms.alerts, alert)
	if len(ms.alerts) > maxAlerts {
		ms.alerts = ms.alerts[len(ms.alerts)-maxAlerts:]
	}
	return alert
}

// Handler exposes the monitoring routes without starting background work.
func (ms *MonitoringServer) Handler() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/api/stats", ms.getStats).Methods("GET")
	r.HandleFunc("/api/alerts", ms.getAlerts).Methods("GET")

	// WebSocket for real-time updates
	r.HandleFunc("/ws", ms.handleWebSocket)
	return r
}

func (ms *MonitoringServer) Start() {
	// Start background alert broadcaster
	go ms.handleBroadcast()

	// Start background health checker
	if ms.db != nil {
		go ms.monitorHealth()
	}

	addr := fmt.Sprintf(":%d", ms.port)
	log.Printf("[Monitoring] feed running on %s", addr)
	log.Fatal(http.ListenAndServe(addr, ms.Handler()))
}

func (ms *MonitoringServer) getStats(w http.ResponseWriter, r *http.Request) {
	stats := ms.collectStats(r.Context())
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stats)
}

func (ms *MonitoringServer) collectStats(parent context.Context) DashboardStats {
	var stats DashboardStats

	ms.alertsMux.RLock()
	stats.RecentAlerts = len(ms.alerts)
	ms.alertsMux.RUnlock()

	ms.clientsMux.Lock()
	stats.ConnectedFeeds = len(ms.clients)
	ms.clientsMux.Unlock()

	stats.DatabaseStatus = "in_memory"
	if ms.db != nil {
		ctx, cancel := context.WithTimeout(parent, 2*time.Second)
		defer cancel()

		start := time.Now()
		err := ms.db.Ping(ctx)
		stats.ResponseTime = time.Since(start).Milliseconds()
		stats.DatabaseStatus = "healthy"
		if err != nil {
			stats.DatabaseStatus = "unhealthy"
		}

		pool := ms.db.Stat()
		stats.AcquiredConns = pool.AcquiredConns()
		stats.TotalConns = pool.TotalConns()

		var uptimeSec int
		if err := ms.db.QueryRow(ctx, "SELECT EXTRACT(EPOCH FROM (NOW() - pg_postmaster_start_time()))::int").Scan(&uptimeSec); err == nil {
			stats.DatabaseUptime = formatUptime(uptimeSec)
		}
	}

	// System metrics (current pod/node)
	if cpuPercents, err := cpu.Percent(200*time.Millisecond, false); err == nil && len(cpuPercents) > 0 {
		stats.CPUPercent = cpuPercents[0]
	}
	if memStats, err := mem.VirtualMemory(); err == nil {
		stats.MemoryPercent = memStats.UsedPercent
		stats.MemoryUsed = formatBytes(memStats.Used)
		stats.MemoryTotal = formatBytes(memStats.Total)
	}
	if diskStats, err := disk.Usage("/"); err == nil {
		stats.DiskPercent = diskStats.UsedPercent
		stats.DiskUsed = formatBytes(diskStats.Used)
		stats.DiskTotal = formatBytes(diskStats.Total)
	}
	return stats
}

func formatBytes(bytes uint64) string {
	gb := float64(bytes) / (1024 * 1024 * 1024)
	if gb < 1 {
		mb := float64(bytes) / (1024 * 1024)
		return fmt.Sprintf("%.1f MB", mb)
	}
	return fmt.Sprintf("%.1f GB", gb)
}

func formatUptime(seconds int) string {
	days := seconds / 86400
	hours := (seconds % 86400) / 3600
	minutes := (seconds % 3600) / 60

	if days > 0 {
		return fmt.Sprintf("%dd %dh", days, hours)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, minutes)
	}
	return fmt.Sprintf("%dm", minutes)
}

// getAlerts lists recorded events, optionally filtered by ?type=.
func (ms *MonitoringServer) getAlerts(w http.ResponseWriter, r *http.Request) {
	kind := r.URL.Query().Get("type")

	ms.alertsMux.RLock()
	out := make([]Alert, 0, len(ms.alerts))
	for _, a := range ms.alerts {
		if kind == "" || a.Type == kind {
			out = append(out, a)
		}
	}
	ms.alertsMux.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(out)
}

func (ms *MonitoringServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println("[Monitoring] WebSocket upgrade error:", err)
		return
	}
	defer conn.Close()

	ms.clientsMux.Lock()
	ms.clients[conn] = true
	ms.clientsMux.Unlock()

	for {
		_, _, err := conn.ReadMessage()
		if err != nil {
			ms.clientsMux.Lock()
			delete(ms.clients, conn)
			ms.clientsMux.Unlock()
			break
		}
	}
}

func (ms *MonitoringServer) handleBroadcast() {
	for alert := range ms.broadcast {
		ms.clientsMux.Lock()
		for client := range ms.clients {
			err := client.WriteJSON(alert)
			if err != nil {
				client.Close()
				delete(ms.clients, client)
			}
		}
		ms.clientsMux.Unlock()
	}
}

func (ms *MonitoringServer) monitorHealth() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		stats := ms.collectStats(context.Background())

		if stats.DatabaseStatus == "unhealthy" {
			alert := ms.record(Alert{Severity: "critical", Type: "database_down", Message: "Database is unreachable"})
			ms.broadcast <- alert
		}

		if stats.ResponseTime > 1000 {
			alert := ms.record(Alert{
				Severity: "warning",
				Type:     "high_latency",
				Message:  fmt.Sprintf("Database response time: %dms", stats.ResponseTime),
			})
			ms.broadcast <- alert
		}
	}
}

package config

import "time"

// Application constants - all hardcoded values for the dashboard
const (
	// Application Info
	AppName = "UDISE School Infrastructure Dashboard"

	// Dataset Constants
	DefaultJoinKey         = "school_code"
	DefaultDatasetCacheTTL = 15 * time.Minute
	DefaultPreviewLimit    = 100
	MaxPreviewLimit        = 500

	// Source file extensions recognized by discovery
	SourceExtCSV  = ".csv"
	SourceExtXLSX = ".xlsx"
	SourceExtXLS  = ".xls"

	// Rate Limiting
	DefaultRateLimit = 100 // requests per second
	DefaultBurstSize = 50

	// Network Timeouts
	WebSocketPingPeriod = 30 * time.Second
	WebSocketPongWait   = 60 * time.Second

	// File Paths (relative to executable)
	DefaultDataDir = "data"
	DefaultLogsDir = "logs"

	// Operation Timeouts
	DefaultOperationTimeout = 5 * time.Minute
	DatasetLoadTimeout      = 2 * time.Minute

	// Export Settings
	DefaultExportPrefix = "schools_export"

	// WebSocket Buffer Sizes
	WebSocketReadBufferSize  = 1024
	WebSocketWriteBufferSize = 1024

	// Log Settings
	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// API endpoint paths mounted by the application router
const (
	APIBasePath       = "/api"
	MetricsEndpoint   = "/metrics"
	WebSocketEndpoint = "/ws"
)

// Feature Flags - compile-time configuration
const (
	FeatureWebSocketEnabled = true
	FeatureMetricsEnabled   = true
)

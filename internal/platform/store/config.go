package store

import "time"

// Config aggregates per backend configuration
type Config struct {
	AppName string

	PG   PGConfig
	CH   CHConfig
	NATS NATSConfig
	RDS  RedisConfig
}

// PGConfig configures postgres connectivity and tracing
type PGConfig struct {
	Enabled     bool
	URL         string
	MaxConns    int32
	LogSQL      bool
	SlowQueryMs int

	// Guard/boot knobs:
	ConnectRetries int           // default 6; backoff between attempts doubles from 150ms up to 2s
	PingTimeout    time.Duration // default 5s
}

// CHConfig configures clickhouse connectivity
type CHConfig struct {
	Enabled bool
	URL     string
	LogSQL  bool

	// ClientName/ClientTag populate the driver's ClientInfo products list,
	// surfaced in clickhouse's system.query_log for operator tracing
	ClientName string
	ClientTag  string

	InsertChunk int
	MaxRetries  int
	RetryBaseMs int
}

// NATSConfig configures nats connectivity
type NATSConfig struct {
	Enabled   bool
	URL       string
	JetStream bool
}

// RedisConfig configures redis connectivity. Backs the job queue, device
// semaphore, result cache, worker heartbeats, and stats counters.
type RedisConfig struct {
	Enabled  bool
	Addr     string
	Username string
	Password string
	DB       int
	TLS      bool

	PoolSize     int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// ConnectRetries/PingTimeout mirror the PG guard knobs above
	ConnectRetries int
	PingTimeout    time.Duration
}

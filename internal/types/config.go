package types

type RunMode string

const (
	// ModeLocal runs the API server, the job workers and the in-process scheduler together
	ModeLocal RunMode = "local"
	// ModeAPI runs just the API server
	ModeAPI RunMode = "api"
	// ModeWorker runs the job workers and the in-process scheduler
	ModeWorker RunMode = "worker"
	// ModeTemporalWorker runs the temporal worker that drives the periodic sweeps
	ModeTemporalWorker RunMode = "temporal_worker"
)

type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// PubSubType selects the transport a queue runs on
type PubSubType string

const (
	// MemoryPubSub keeps messages in process. Single-node and tests only.
	MemoryPubSub PubSubType = "memory"
	KafkaPubSub  PubSubType = "kafka"
)

package constants

import "time"

const (
	KafkaMinBytes      = 10e3
	KafkaMaxBytes      = 10e6
	KafkaFetchBackoff  = time.Second
	ShutdownTimeout    = 10 * time.Second
	DefaultHTTPTimeout = 10 * time.Second
)

const (
	CacheKeyPrefixSeen = "notif:seen:"
)

const (
	FallbackAllow = "allow"
	FallbackDeny  = "deny"
)

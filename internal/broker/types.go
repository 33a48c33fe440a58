package broker

import (
	"context"
	"time"
)

// Record is one raw bus record plus the delivery coordinates used for
// failure logging. The payload is left as bytes; decoding is the
// pipeline's concern because producers disagree on shape.
type Record struct {
	Topic     string
	Partition int
	Offset    int64
	Key       []byte
	Value     []byte
	Time      time.Time
}

type HandlerFunc func(ctx context.Context, rec Record) error

type Consumer interface {
	Consume(ctx context.Context, topics []string, handler HandlerFunc) error
	Close() error
	SetServiceName(name string)
}

package ports

import "time"

const (
	DefaultBurstWindow     = time.Minute     // Rule A trailing window
	DefaultBurstThreshold  = 3               // Rule A count, inclusive of the current transaction
	DefaultAmountThreshold = 5000.0          // Rule B, strict
	DefaultGeoWindow       = 5 * time.Minute // Rule C window, also the tracker retention

	DefaultDispatchWorkers   = 5
	DefaultDispatchQueueSize = 100
	DefaultTaskTimeout       = 30 * time.Second
	DefaultForwardTimeout    = 10 * time.Second
)

package monitoring

import "time"

// Metrics receives monitoring measurements. The Prometheus AppMetrics type
// satisfies it.
type Metrics interface {
	ObserveSourceScan(source string, d time.Duration, err error)
	IncCacheLookup(source string, hit bool)
	AddMatches(source string, n int)
	ObserveTick(d time.Duration, assets, failures int)
	SetRegistrySize(n int)
}

// NopMetrics discards every measurement.
type NopMetrics struct{}

func (NopMetrics) ObserveSourceScan(string, time.Duration, error) {}
func (NopMetrics) IncCacheLookup(string, bool)                    {}
func (NopMetrics) AddMatches(string, int)                         {}
func (NopMetrics) ObserveTick(time.Duration, int, int)            {}
func (NopMetrics) SetRegistrySize(int)                            {}

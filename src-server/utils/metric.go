package utils

// Latency samples in microseconds, drained by the metric package.
type Metric struct {
	Serialize          chan float64
	DatabaseRead       chan float64
	DatabaseWrite      chan float64
	DiscordSendMessage chan float64
}

func NewMetric() *Metric {
	return &Metric{
		Serialize:          make(chan float64, 16),
		DatabaseRead:       make(chan float64, 16),
		DatabaseWrite:      make(chan float64, 16),
		DiscordSendMessage: make(chan float64, 16),
	}
}

// Send a sample without blocking; it is dropped when nobody collects.
func (m *Metric) Report(ch chan float64, value float64) {
	select {
	case ch <- value:
	default:
	}
}

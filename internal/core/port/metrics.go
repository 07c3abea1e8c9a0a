package port

import "github.com/Wyydra/ya-signal/internal/core/domain"

type Metrics interface {
	FrameReceived(kind domain.Kind)
	SignalForwarded(kind domain.Kind)
	ErrorSent(code domain.ErrorCode)
}

// NopMetrics discards everything.
type NopMetrics struct{}

func (NopMetrics) FrameReceived(domain.Kind)   {}
func (NopMetrics) SignalForwarded(domain.Kind) {}
func (NopMetrics) ErrorSent(domain.ErrorCode)  {}

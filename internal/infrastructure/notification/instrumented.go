package notification

import (
	"context"

	"github.com/ZINKUNO/MyIPWhispererBot/internal/application/enforcement"
)

// AlertMetrics is satisfied by the Prometheus AppMetrics.
type AlertMetrics interface {
	ObserveAlert(sink string, err error)
}

type instrumented struct {
	enforcement.Notifier
	metrics AlertMetrics
}

// Instrument counts every delivery attempt of n.
func Instrument(n enforcement.Notifier, metrics AlertMetrics) enforcement.Notifier {
	if metrics == nil {
		return n
	}
	return &instrumented{Notifier: n, metrics: metrics}
}

func (i *instrumented) Notify(ctx context.Context, alert enforcement.Alert) error {
	err := i.Notifier.Notify(ctx, alert)
	i.metrics.ObserveAlert(i.Name(), err)
	return err
}

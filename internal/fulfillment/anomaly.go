package fulfillment

import (
	"context"

	log "github.com/sirupsen/logrus"
)

// AnomalyFlagger marks an order for reconciliation.
type AnomalyFlagger interface {
	SetAnomaly(ctx context.Context, orderID, anomaly string) error
}

// AlarmSink raises an operator alarm.
type AlarmSink interface {
	Anomaly(ctx context.Context, anomaly, orderID string) error
}

// AnomalyRecorder flags the order and raises an alarm. Both are best effort;
// the error log line is the record of last resort.
type AnomalyRecorder struct {
	store  AnomalyFlagger
	alarms AlarmSink
}

// NewAnomalyRecorder returns a recorder. alarms may be nil.
func NewAnomalyRecorder(store AnomalyFlagger, alarms AlarmSink) *AnomalyRecorder {
	return &AnomalyRecorder{store: store, alarms: alarms}
}

func (r *AnomalyRecorder) Record(ctx context.Context, orderID, anomaly string) {
	entry := log.WithFields(log.Fields{"order_id": orderID, "anomaly": anomaly})
	entry.Error("order needs manual reconciliation")

	if err := r.store.SetAnomaly(ctx, orderID, anomaly); err != nil {
		entry.WithError(err).Error("could not flag order anomaly")
	}
	if r.alarms != nil {
		if err := r.alarms.Anomaly(ctx, anomaly, orderID); err != nil {
			entry.WithError(err).Error("could not raise anomaly alarm")
		}
	}
}

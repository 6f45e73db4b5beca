package api

import (
	"time"

	log "github.com/sirupsen/logrus"
)

type boardRequestMetrics struct {
	logger            *log.Logger
	start             time.Time
	fetchDuration     time.Duration
	transformDuration time.Duration
	encodeDuration    time.Duration
	recordsFetched    int
	groupsReturned    int
	ungroupedReturned int
	errorStage        string
}

func newBoardRequestMetrics(logger *log.Logger) *boardRequestMetrics {
	return &boardRequestMetrics{logger: logger, start: time.Now()}
}

func (m *boardRequestMetrics) ObserveFetch(duration time.Duration) {
	if duration <= 0 {
		return
	}
	m.fetchDuration = duration
}

func (m *boardRequestMetrics) ObserveTransform(duration time.Duration) {
	if duration <= 0 {
		return
	}
	m.transformDuration = duration
}

func (m *boardRequestMetrics) ObserveEncode(duration time.Duration) {
	if duration <= 0 {
		return
	}
	m.encodeDuration = duration
}

func (m *boardRequestMetrics) SetCounts(fetched, groups, ungrouped int) {
	m.recordsFetched = fetched
	m.groupsReturned = groups
	m.ungroupedReturned = ungrouped
}

func (m *boardRequestMetrics) SetErrorStage(stage string) {
	if stage == "" {
		return
	}
	m.errorStage = stage
}

func (m *boardRequestMetrics) Log(status int, err error) {
	if m == nil || m.logger == nil {
		return
	}

	fields := log.Fields{
		"route":              "/api/board",
		"status":             status,
		"total_ms":           durationToMillis(time.Since(m.start)),
		"records_fetched":    m.recordsFetched,
		"groups_returned":    m.groupsReturned,
		"ungrouped_returned": m.ungroupedReturned,
	}

	if m.fetchDuration > 0 {
		fields["fetch_ms"] = durationToMillis(m.fetchDuration)
	}
	if m.transformDuration > 0 {
		fields["transform_ms"] = durationToMillis(m.transformDuration)
	}
	if m.encodeDuration > 0 {
		fields["encode_ms"] = durationToMillis(m.encodeDuration)
	}
	if m.errorStage != "" {
		fields["error_stage"] = m.errorStage
	}
	if err != nil {
		fields["error"] = err.Error()
	}

	m.logger.WithFields(fields).Info("board.request.metrics")
}

func durationToMillis(d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(d) / float64(time.Millisecond)
}

package prometheus

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

var numMessagesDesc = prometheus.NewDesc(
	"deploy_packager_log_messages_total",
	"The number of warning and error messages logged while packaging.",
	[]string{"level"},
	nil,
)

// LogHook counts warnings and errors, e.g. ignored files, and exposes the
// counts as a collector.
type LogHook struct {
	mu       sync.Mutex
	messages map[logrus.Level]float64
}

func NewLogHook() *LogHook {
	lh := &LogHook{}

	levels := lh.Levels()
	lh.messages = make(map[logrus.Level]float64, len(levels))
	for _, level := range levels {
		lh.messages[level] = 0
	}

	return lh
}

func (lh *LogHook) Levels() []logrus.Level {
	return []logrus.Level{
		logrus.PanicLevel,
		logrus.FatalLevel,
		logrus.ErrorLevel,
		logrus.WarnLevel,
	}
}

func (lh *LogHook) Fire(entry *logrus.Entry) error {
	lh.mu.Lock()
	defer lh.mu.Unlock()

	lh.messages[entry.Level]++

	return nil
}

func (lh *LogHook) Describe(ch chan<- *prometheus.Desc) {
	ch <- numMessagesDesc
}

func (lh *LogHook) Collect(ch chan<- prometheus.Metric) {
	lh.mu.Lock()
	defer lh.mu.Unlock()

	for level, number := range lh.messages {
		ch <- prometheus.MustNewConstMetric(numMessagesDesc, prometheus.CounterValue, number, level.String())
	}
}

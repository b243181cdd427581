package logging

import log "github.com/sirupsen/logrus"

// LogFieldFormatter wraps a logrus.Formatter and injects a fixed set of
// fields (e.g. the process/app name) into every log entry before
// delegating to the wrapped formatter.
type LogFieldFormatter struct {
	log.Formatter
	Fields log.Fields
}

// Format implements logrus.Formatter.
func (f *LogFieldFormatter) Format(e *log.Entry) ([]byte, error) {
	for k, v := range f.Fields {
		if _, exists := e.Data[k]; !exists {
			e.Data[k] = v
		}
	}
	return f.Formatter.Format(e)
}

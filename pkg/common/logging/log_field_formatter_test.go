package logging

import (
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestLogFieldFormatterFormat(t *testing.T) {
	logFields := log.Fields{
		"dk1": "dv1",
		"dk2": "dv2",
	}

	formatter := LogFieldFormatter{Fields: logFields, Formatter: &log.JSONFormatter{}}
	b, err := formatter.Format(log.WithField("k1", "v1"))
	assert.NoError(t, err)

	s := string(b)
	assert.Contains(t, s, `"dk1":"dv1"`)
	assert.Contains(t, s, `"dk2":"dv2"`)
	assert.Contains(t, s, `"k1":"v1"`)
}

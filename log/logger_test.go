package log_test

import (
	"bytes"
	"testing"

	"github.com/google/logger"
	"github.com/stretchr/testify/assert"

	"github.com/godaddy/asherah/go/maskedmemory/log"
)

// infoLogger routes debug events to the info level of a google/logger Logger.
type infoLogger struct {
	*logger.Logger
}

func (l infoLogger) Debugf(format string, v ...interface{}) {
	l.Infof(format, v...)
}

func TestSetLogger_GoogleLogger(t *testing.T) {
	var buf bytes.Buffer

	l := logger.Init("maskedmemory", false, false, &buf)
	defer l.Close()

	log.SetLogger(infoLogger{l})
	defer log.SetLogger(nil)

	assert.True(t, log.DebugEnabled())

	log.Debugf("deinit released %d segment(s) that were never freed", 2)

	assert.Contains(t, buf.String(), "deinit released 2 segment(s) that were never freed")
}

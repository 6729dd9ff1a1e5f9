package runner

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/hiltest/hiltest/internal/batch"
)

func TestWriteTraceOutput(t *testing.T) {
	var buf bytes.Buffer
	step := batch.Step{Kind: batch.KindWaitRun, Cmd: "reboot", Pattern: "login:"}

	WriteTraceOutput(&buf, 4, step, "ok", 1234567*time.Microsecond)

	assert.Equal(t, `[hiltest] step=4 kind=wait_run label="reboot, wait \"login:\"" outcome=ok elapsed=1.235s`+"\n", buf.String())
}

func TestIsTraceEnabled(t *testing.T) {
	for _, v := range []string{"1", "true", "YES", "on"} {
		assert.True(t, IsTraceEnabled(v), v)
	}
	for _, v := range []string{"", "0", "off", "verbose"} {
		assert.False(t, IsTraceEnabled(v), v)
	}
}

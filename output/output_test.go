package output

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func newTestFormatter(quiet bool) (*Formatter, *bytes.Buffer, *bytes.Buffer) {
	var out, errBuf bytes.Buffer
	f := New(quiet, true, WithWriters(&out, &errBuf))
	return f, &out, &errBuf
}

func TestFormatter_Levels(t *testing.T) {
	f, out, errBuf := newTestFormatter(false)

	f.Header("section %d", 1)
	f.Info("info %s", "line")
	f.Step("step")
	f.Success("done")
	f.Warn("careful")
	f.Error("broke: %v", "cause")

	assert.Contains(t, out.String(), "section 1")
	assert.Contains(t, out.String(), "info line")
	assert.Contains(t, out.String(), "step")
	assert.Contains(t, out.String(), "done")
	assert.Contains(t, out.String(), "careful")
	assert.Contains(t, errBuf.String(), "broke: cause")
	assert.NotContains(t, out.String(), "broke")
}

func TestFormatter_QuietSuppressesAllButErrors(t *testing.T) {
	f, out, errBuf := newTestFormatter(true)

	f.Header("section")
	f.Info("info")
	f.Step("step")
	f.Success("done")
	f.Warn("careful")
	f.Error("broke")

	assert.Empty(t, out.String())
	assert.Contains(t, errBuf.String(), "broke")
}

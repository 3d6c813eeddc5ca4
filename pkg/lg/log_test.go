package lg

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFromContext(t *testing.T) {
	assert.Equal(t, defaultLogger{}, FromContext(context.Background()))

	ctx := Attach(context.Background(), Discard)
	assert.Equal(t, Discard, FromContext(ctx))
}

func TestFlatten(t *testing.T) {
	assert.Empty(t, flatten())

	out := flatten(String("host", "db01"), Int("port", 22), Duration("wait", time.Second), Err(errors.New("refused")))
	assert.Contains(t, out, `"host": "db01"`)
	assert.Contains(t, out, `"port": 22`)
	assert.Contains(t, out, `"wait": "1s"`)
	assert.Contains(t, out, `"error": "refused"`)
}

func TestNew(t *testing.T) {
	for _, format := range []string{"", "json", "console"} {
		l := New(&Config{ServiceName: "sshop", Format: format})
		_, ok := l.(*zapLogger)
		assert.True(t, ok, "format %q", format)
	}
}

package observe

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHitcountClassification(t *testing.T) {
	shared := make([]byte, 6)
	observer := NewMapObserver(shared)

	copy(shared, []byte{0, 1, 3, 9, 100, 255})
	observer.PostExec()
	assert.Equal(t, []byte{0, 1, 4, 16, 64, 128}, observer.Snapshot())
}

func TestMapObserverTruncate(t *testing.T) {
	observer := NewMapObserver(make([]byte, 100))
	observer.Truncate(10)
	assert.Equal(t, 10, observer.Len())
	observer.PostExec()
	assert.Len(t, observer.Snapshot(), 10)

	// Growing is not possible; a larger size is ignored.
	observer.Truncate(50)
	assert.Equal(t, 10, observer.Len())
}

func TestTimeObserver(t *testing.T) {
	observer := &TimeObserver{}
	observer.Record(42 * time.Millisecond)
	assert.Equal(t, 42*time.Millisecond, observer.Last())
}

func frame(body string) string {
	return "Content-Length: " + strconv.Itoa(len(body)) + "\r\n\r\n" + body
}

func TestResponseObserverCapture(t *testing.T) {
	observer := &ResponseObserver{}
	observer.PreExec()

	stream := frame(`{"jsonrpc":"2.0","id":1,"result":{}}`) +
		frame(`{"jsonrpc":"2.0","method":"textDocument/publishDiagnostics","params":{}}`) +
		"garbage that is not a frame"
	observer.Capture([]byte(stream))

	messages := observer.Messages()
	require.Len(t, messages, 2, "parsing stops at the first invalid frame")
	assert.True(t, messages[0].IsResponse())
	assert.True(t, messages[1].IsNotification())

	observer.PreExec()
	assert.Empty(t, observer.Messages(), "pre-exec clears the buffer")
}

func TestBacktraceObserver(t *testing.T) {
	observer := &BacktraceObserver{}
	assert.NoError(t, observer.Observe(nil), "no log is not an error")
	assert.Zero(t, observer.Hash())

	log := "==5==ERROR: AddressSanitizer: SEGV on unknown address\n    #0 0x1 in f /a.c:1\n"
	require.NoError(t, observer.Observe([]byte(log)))
	assert.NotZero(t, observer.Hash())
	require.NotNil(t, observer.Report())

	assert.Error(t, observer.Observe([]byte("not a log")))

	observer.PreExec()
	assert.Zero(t, observer.Hash())
	assert.Nil(t, observer.Report())
}

package serial

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/posturekit/PostureWorker/model"
)

// chunkReader yields exactly one predefined chunk per Read call,
// mimicking how a serial port delivers whatever is buffered.
type chunkReader struct {
	chunks [][]byte
}

func (r *chunkReader) Read(p []byte) (int, error) {
	if len(r.chunks) == 0 {
		return 0, io.EOF
	}
	chunk := r.chunks[0]
	r.chunks = r.chunks[1:]
	n := copy(p, chunk)
	return n, nil
}

func chunks(parts ...string) *chunkReader {
	r := &chunkReader{}
	for _, p := range parts {
		r.chunks = append(r.chunks, []byte(p))
	}
	return r
}

func collect(t *testing.T, f Framer) []string {
	var result []string
	for {
		cmd, err := f.Next()
		if err != nil {
			require.ErrorIs(t, err, io.EOF)
			return result
		}
		result = append(result, cmd)
	}
}

func TestByteFramer(t *testing.T) {
	f, err := NewFramer(model.SerialConfig{Framing: model.FramingModeByte}, chunks("1", "ab", "1"))
	require.NoError(t, err)
	require.Equal(t, []string{"1", "a", "b", "1"}, collect(t, f))
}

func TestPacketFramer(t *testing.T) {
	f, err := NewFramer(model.SerialConfig{Framing: model.FramingModePacket}, chunks("BP", "bp", "BP ", "1"))
	require.NoError(t, err)
	// One buffered read is one command; no trimming, no case folding.
	require.Equal(t, []string{"BP", "bp", "BP ", "1"}, collect(t, f))
}

func TestLineFramer(t *testing.T) {
	f, err := NewFramer(model.SerialConfig{Framing: model.FramingModeLine}, chunks("BP/n", "B", "P/nbp/n", " BP /n", "/n"))
	require.NoError(t, err)
	// Commands end at the literal "/n" sequence and are trimmed.
	require.Equal(t, []string{"BP", "BP", "bp", "BP"}, collect(t, f))
}

func TestLineFramerCustomDelimiter(t *testing.T) {
	f, err := NewFramer(model.SerialConfig{Framing: model.FramingModeLine, Delimiter: ";"}, chunks("BP;1;"))
	require.NoError(t, err)
	require.Equal(t, []string{"BP", "1"}, collect(t, f))
}

func TestLineFramerIncompleteCommand(t *testing.T) {
	// A command without delimiter is never delivered.
	f, err := NewFramer(model.SerialConfig{Framing: model.FramingModeLine}, chunks("BP"))
	require.NoError(t, err)
	require.Empty(t, collect(t, f))
}

func TestLineFramerBoundsPendingBuffer(t *testing.T) {
	// A garbage stream without delimiter must not grow the buffer
	// without bound; the oldest bytes are dropped.
	garbage := strings.Repeat("x", 64)
	var parts []string
	for i := 0; i < 40; i++ {
		parts = append(parts, garbage)
	}
	f, err := NewFramer(model.SerialConfig{Framing: model.FramingModeLine}, chunks(parts...))
	require.NoError(t, err)
	require.Empty(t, collect(t, f))
	require.LessOrEqual(t, len(f.(*lineFramer).pending), maxPendingLine)
}

func TestLineFramerRecoversAfterGarbage(t *testing.T) {
	garbage := strings.Repeat("x", 64)
	var parts []string
	for i := 0; i < 40; i++ {
		parts = append(parts, garbage)
	}
	parts = append(parts, "/nBP/n")
	f, err := NewFramer(model.SerialConfig{Framing: model.FramingModeLine}, chunks(parts...))
	require.NoError(t, err)
	cmds := collect(t, f)
	require.Len(t, cmds, 2)
	// The first command is the truncated garbage tail.
	require.LessOrEqual(t, len(cmds[0]), maxPendingLine)
	require.Equal(t, "BP", cmds[1])
}

func TestUnknownFraming(t *testing.T) {
	_, err := NewFramer(model.SerialConfig{Framing: "morse"}, chunks())
	require.Error(t, err)
}

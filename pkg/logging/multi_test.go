package logging

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMultiWriter(t *testing.T) {
	var a, b bytes.Buffer
	w := NewMultiWriter(&a)

	n, err := w.Write([]byte("first\n"))
	require.NoError(t, err)
	require.Equal(t, 6, n)

	w.Add(&b)
	_, err = w.Write([]byte("second\n"))
	require.NoError(t, err)

	require.Equal(t, "first\nsecond\n", a.String())
	require.Equal(t, "second\n", b.String())
}

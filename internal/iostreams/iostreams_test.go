package iostreams

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTestStreams(t *testing.T) {
	ios, _, out, errOut := Test()

	fmt.Fprint(ios.Out, "stdout line")
	fmt.Fprint(ios.ErrOut, "stderr line")

	assert.Equal(t, "stdout line", out.String())
	assert.Equal(t, "stderr line", errOut.String())
}

func TestBufferIsNotTTY(t *testing.T) {
	ios, _, _, _ := Test()
	assert.False(t, ios.IsOutputTTY())
	assert.False(t, ios.IsStderrTTY())
	assert.False(t, ios.ColorEnabled())
}

func TestSetColorEnabled(t *testing.T) {
	ios, _, _, _ := Test()
	ios.SetColorEnabled(true)
	assert.True(t, ios.ColorEnabled())
}

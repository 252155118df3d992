package model

import (
	"github.com/pkg/errors"
)

// FramingMode determines how the raw serial byte stream is split
// into commands.
type FramingMode string

const (
	// FramingModeByte treats every received byte as a single command.
	FramingModeByte FramingMode = "byte"
	// FramingModePacket treats the content of one buffered read as a
	// single command. No trimming is applied.
	FramingModePacket FramingMode = "packet"
	// FramingModeLine splits the stream on a literal delimiter sequence
	// and trims surrounding whitespace from each command.
	FramingModeLine FramingMode = "line"
)

// DefaultLineDelimiter is the delimiter used by line framing unless
// configured otherwise. Note that this is the literal two character
// sequence "/n", not a newline.
const DefaultLineDelimiter = "/n"

// SerialConfig holds the configuration of the serial command channel.
type SerialConfig struct {
	// Device path of the serial port (e.g. /dev/ttyUSB0)
	Device string `json:"device"`
	// Baud rate of the serial port
	Baud int `json:"baud"`
	// Framing mode used to extract commands from the stream
	Framing FramingMode `json:"framing"`
	// Delimiter used by line framing (defaults to "/n")
	Delimiter string `json:"delimiter,omitempty"`
}

// Validate the given configuration, returning nil on ok,
// or an error upon validation issues.
func (c SerialConfig) Validate() error {
	if c.Device == "" {
		return errors.Wrap(ValidationError, "Serial device is empty")
	}
	if c.Baud <= 0 {
		return errors.Wrapf(ValidationError, "Invalid baud rate %d", c.Baud)
	}
	switch c.Framing {
	case FramingModeByte, FramingModePacket, FramingModeLine:
		// Ok
	default:
		return errors.Wrapf(ValidationError, "Unknown framing mode '%s'", c.Framing)
	}
	return nil
}

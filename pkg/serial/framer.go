// Copyright 2025 The PostureKit Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package serial

import (
	"bytes"
	"io"
	"strings"

	"github.com/pkg/errors"

	"github.com/posturekit/PostureWorker/model"
)

// Framer extracts commands from a raw serial byte stream.
// Commands are compared by the worker with exact, case sensitive
// equality, so framers must not alter the received bytes beyond what
// their mode documents.
type Framer interface {
	// Next blocks until the next command has been received.
	Next() (string, error)
}

// NewFramer creates a framer with the given mode, reading from r.
func NewFramer(cfg model.SerialConfig, r io.Reader) (Framer, error) {
	switch cfg.Framing {
	case model.FramingModeByte:
		return &byteFramer{reader: r}, nil
	case model.FramingModePacket:
		return &packetFramer{reader: r}, nil
	case model.FramingModeLine:
		delim := cfg.Delimiter
		if delim == "" {
			delim = model.DefaultLineDelimiter
		}
		return &lineFramer{reader: r, delimiter: []byte(delim)}, nil
	}
	return nil, errors.Wrapf(model.ValidationError, "Unknown framing mode '%s'", cfg.Framing)
}

// byteFramer yields every received byte as a single command.
type byteFramer struct {
	reader io.Reader
	buf    [1]byte
}

func (f *byteFramer) Next() (string, error) {
	for {
		n, err := f.reader.Read(f.buf[:])
		if n == 1 {
			return string(f.buf[:1]), nil
		}
		if err != nil {
			return "", maskAny(err)
		}
	}
}

// packetFramer yields the content of one read as a single command.
// No trimming is applied, so a trailing space makes a command different.
type packetFramer struct {
	reader io.Reader
	buf    [64]byte
}

func (f *packetFramer) Next() (string, error) {
	for {
		n, err := f.reader.Read(f.buf[:])
		if n > 0 {
			return string(f.buf[:n]), nil
		}
		if err != nil {
			return "", maskAny(err)
		}
	}
}

// maxPendingLine bounds the bytes buffered while waiting for a line
// delimiter. A stream that never delivers the delimiter must not grow
// the buffer without bound.
const maxPendingLine = 1024

// lineFramer yields commands separated by a literal delimiter sequence,
// with surrounding whitespace trimmed from each command.
type lineFramer struct {
	reader    io.Reader
	delimiter []byte
	pending   []byte
	buf       [64]byte
}

func (f *lineFramer) Next() (string, error) {
	for {
		if idx := bytes.Index(f.pending, f.delimiter); idx >= 0 {
			cmd := strings.TrimSpace(string(f.pending[:idx]))
			f.pending = append(f.pending[:0:0], f.pending[idx+len(f.delimiter):]...)
			if cmd == "" {
				continue
			}
			return cmd, nil
		}
		n, err := f.reader.Read(f.buf[:])
		if n > 0 {
			f.pending = append(f.pending, f.buf[:n]...)
			// Drop the oldest bytes, keeping enough to detect a
			// delimiter split across reads.
			if overflow := len(f.pending) - maxPendingLine; overflow > 0 {
				f.pending = append(f.pending[:0:0], f.pending[overflow:]...)
			}
			continue
		}
		if err != nil {
			return "", maskAny(err)
		}
	}
}

var maskAny = errors.WithStack

// Package responseformat writes command output as JSON or MessagePack.
package responseformat

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"
)

// Supported output formats
const (
	JSON    = "json"
	Msgpack = "msgpack"
)

// Formatter handles encoding and writing output in JSON or MessagePack format
type Formatter struct {
	format string
}

// NewFormatter creates a new formatter for format. An empty format selects JSON.
func NewFormatter(format string) (*Formatter, error) {
	switch format {
	case "", JSON:
		return &Formatter{format: JSON}, nil
	case Msgpack:
		return &Formatter{format: Msgpack}, nil
	default:
		return nil, fmt.Errorf("unsupported output format %q", format)
	}
}

// Write encodes data to w
func (f *Formatter) Write(w io.Writer, data any) error {
	if f.format == Msgpack {
		return f.writeMsgPack(w, data)
	}
	return f.writeJSON(w, data)
}

func (f *Formatter) writeJSON(w io.Writer, data any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

func (f *Formatter) writeMsgPack(w io.Writer, data any) error {
	encoder := msgpack.NewEncoder(w)
	encoder.SetCustomStructTag("json") // Use json tags for MessagePack
	return encoder.Encode(data)
}

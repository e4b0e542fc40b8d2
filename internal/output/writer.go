package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// Marshal renders v as 2-space indented JSON with a trailing newline.
func Marshal(v any) ([]byte, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling output: %w", err)
	}
	return append(data, '\n'), nil
}

// WriteJSON writes v as indented JSON to path, or to stdout when path is "-".
func WriteJSON(path string, v any) error {
	if path == "-" {
		return Encode(os.Stdout, v)
	}

	data, err := Marshal(v)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Encode writes v as indented JSON to w.
func Encode(w io.Writer, v any) error {
	data, err := Marshal(v)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

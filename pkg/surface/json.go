package surface

import (
	"encoding/json"
	"io"
)

// JSONRenderer marshals the view to indented JSON.
type JSONRenderer struct{}

func (r *JSONRenderer) Render(w io.Writer, view *View) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(view)
}

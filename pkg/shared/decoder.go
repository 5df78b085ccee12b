package shared

import (
	"github.com/go-playground/form"
)

// Decoder decodes url.Values into structs using `form` tags.
var Decoder = form.NewDecoder()

func init() {
	Decoder.SetMode(form.ModeExplicit)
}

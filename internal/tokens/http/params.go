package http

import (
	"encoding/json"
	"mime"
	"net/http"
	"strings"

	"github.com/aussiebroadwan/tabtoken/pkg/authsdk"
)

const maxBodyBytes = 64 << 10

// readParams returns the named string parameters from either a JSON object
// or a urlencoded form body. Values are trimmed. Unknown fields are ignored.
func readParams(w http.ResponseWriter, r *http.Request, names ...string) (map[string]string, *authsdk.APIError) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	ct := r.Header.Get("Content-Type")
	mediaType := ""
	if ct != "" {
		var err error
		if mediaType, _, err = mime.ParseMediaType(ct); err != nil {
			return nil, authsdk.ErrInvalidContentType
		}
	}

	out := make(map[string]string, len(names))

	switch mediaType {
	case "application/json":
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			return nil, authsdk.ErrInvalidBody
		}
		for _, name := range names {
			if s, ok := body[name].(string); ok {
				out[name] = strings.TrimSpace(s)
			}
		}
	case "", "application/x-www-form-urlencoded":
		if err := r.ParseForm(); err != nil {
			return nil, authsdk.ErrInvalidBody
		}
		for _, name := range names {
			out[name] = strings.TrimSpace(r.Form.Get(name))
		}
	default:
		return nil, authsdk.ErrInvalidContentType
	}

	var missing []string
	for _, name := range names {
		if out[name] == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, authsdk.ErrInvalidRequest.WithDescription("missing required parameters: " + strings.Join(missing, ", "))
	}
	return out, nil
}

package middlewarectx

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/render"

	"github.com/magabrotheeeer/vpn-panel/internal/http/response"
	"github.com/magabrotheeeer/vpn-panel/internal/lib/sanitize"
)

// SanitizeInput приводит строковые поля JSON-тела запросов POST, PUT и PATCH
// к простому тексту без разметки, в том числе экранированной.
// Тела, не являющиеся объектом, пропускаются как есть.
func SanitizeInput() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost &&
				r.Method != http.MethodPut &&
				r.Method != http.MethodPatch {
				next.ServeHTTP(w, r)
				return
			}

			buf, err := io.ReadAll(r.Body)
			if err != nil {
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, response.Error("invalid body"))
				return
			}

			var body map[string]any
			dec := json.NewDecoder(bytes.NewReader(buf))
			dec.UseNumber()
			if err := dec.Decode(&body); err != nil {
				r.Body = io.NopCloser(bytes.NewReader(buf))
				next.ServeHTTP(w, r)
				return
			}

			for k, v := range body {
				body[k] = sanitizeValue(v)
			}

			var out bytes.Buffer
			enc := json.NewEncoder(&out)
			enc.SetEscapeHTML(false)
			if err := enc.Encode(body); err != nil {
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, response.Error("invalid body"))
				return
			}
			r.Body = io.NopCloser(&out)
			r.ContentLength = int64(out.Len())
			next.ServeHTTP(w, r)
		})
	}
}

func sanitizeValue(v any) any {
	switch val := v.(type) {
	case string:
		return sanitize.Text(val)
	case []any:
		for i := range val {
			val[i] = sanitizeValue(val[i])
		}
		return val
	case map[string]any:
		for k := range val {
			val[k] = sanitizeValue(val[k])
		}
		return val
	default:
		return v
	}
}

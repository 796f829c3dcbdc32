// Package request разбирает и проверяет JSON-тела запросов.
package request

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/vpn-panel/internal/http/response"
	"github.com/magabrotheeeer/vpn-panel/internal/lib/sl"
)

// Decode читает тело запроса в v и проверяет его. При ошибке ответ уже
// записан и возвращается false. Пустое тело допустимо, если allowEmpty.
func Decode(w http.ResponseWriter, r *http.Request, log *slog.Logger, validate *validator.Validate, v any, allowEmpty bool) bool {
	if err := render.DecodeJSON(r.Body, v); err != nil {
		if !(allowEmpty && errors.Is(err, io.EOF)) {
			log.Error("failed to decode request", sl.Err(err))
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error("invalid request body"))
			return false
		}
	}

	if err := validate.Struct(v); err != nil {
		log.Error("validation failed", sl.Err(err))
		response.Invalid(w, r, err)
		return false
	}
	return true
}

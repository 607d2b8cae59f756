package httpapi

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/crisb2reis/Sistema-Escolar/internal/apperr"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Reason  string `json:"reason,omitempty"`
}

// writeError maps err onto the JSON error envelope. Messages of internal and
// infrastructure failures are not echoed.
func (a *api) writeError(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	body := errorBody{Code: kind.String(), Reason: apperr.ReasonOf(err)}

	switch kind {
	case apperr.KindInternal, apperr.KindInfrastructure:
		a.Log.WithField("path", c.FullPath()).WithError(err).Error("request failed")
		body.Message = "service temporarily unavailable"
		if kind == apperr.KindInternal {
			body.Message = "internal error"
		}
	default:
		body.Message = err.Error()
		var appErr *apperr.Error
		if errors.As(err, &appErr) {
			body.Message = appErr.Message
		}
	}
	c.AbortWithStatusJSON(kind.HTTPStatus(), body)
}

func (a *api) badRequest(c *gin.Context, err error) {
	a.writeError(c, apperr.Wrap(apperr.KindValidation, "invalid request body", err))
}

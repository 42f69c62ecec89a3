package handlers

import (
	"errors"
	"net/http"

	"github.com/julienschmidt/httprouter"

	apiContext "crmhooks/internal/api/context"
	apierrors "crmhooks/internal/pkg/errors"
	"crmhooks/internal/pkg/validator"
)

func param(r *http.Request, name string) string {
	params, _ := r.Context().Value(apiContext.Params).(httprouter.Params)
	return params.ByName(name)
}

func writeValidationError(w http.ResponseWriter, err error) {
	var verr *validator.Error
	if errors.As(err, &verr) {
		code := apierrors.ErrCodeValidation
		if verr.Message == "invalid request body" {
			code = apierrors.ErrCodeInvalidInput
		}
		apierrors.WriteError(w, http.StatusBadRequest, code, verr.Message, verr.Fields)
		return
	}
	apierrors.WriteError(w, http.StatusBadRequest, apierrors.ErrCodeInvalidInput, err.Error(), nil)
}

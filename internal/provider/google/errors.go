package google

import (
	"encoding/json"

	"github.com/sakif/unify/internal/model"
	"github.com/sakif/unify/internal/provider"
)

// apiError is the Google JSON error envelope:
// {"error":{"code":401,"message":"...","status":"UNAUTHENTICATED"}}.
type apiError struct {
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

func classify(transportErr error, resp *provider.Response) *provider.Error {
	if transportErr != nil {
		return provider.Unavailable(model.Google, transportErr)
	}

	var env apiError
	if json.Unmarshal(resp.Body, &env) == nil && env.Error != nil {
		msg := env.Error.Message
		if msg == "" {
			msg = env.Error.Status
		}
		return &provider.Error{
			Provider: model.Google,
			Status:   resp.ErrorStatus(),
			Code:     env.Error.Code,
			Message:  msg,
		}
	}
	// Token endpoint errors use the OAuth shape.
	if msg, ok := provider.OAuthError(resp.Body); ok {
		return &provider.Error{Provider: model.Google, Status: resp.ErrorStatus(), Message: msg}
	}
	if resp.Failed() {
		return provider.StatusError(model.Google, resp.Status)
	}
	return nil
}

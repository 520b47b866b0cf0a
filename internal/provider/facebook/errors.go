package facebook

import (
	"encoding/json"

	"github.com/sakif/unify/internal/model"
	"github.com/sakif/unify/internal/provider"
)

// graphError is the Graph API error envelope:
// {"error":{"message":"...","type":"OAuthException","code":190}}.
type graphError struct {
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    int    `json:"code"`
	} `json:"error"`
}

func classify(transportErr error, resp *provider.Response) *provider.Error {
	if transportErr != nil {
		return provider.Unavailable(model.Facebook, transportErr)
	}

	var env graphError
	if json.Unmarshal(resp.Body, &env) == nil && env.Error != nil && env.Error.Message != "" {
		return &provider.Error{
			Provider: model.Facebook,
			Status:   resp.ErrorStatus(),
			Code:     env.Error.Code,
			Message:  env.Error.Message,
		}
	}
	if msg, ok := provider.OAuthError(resp.Body); ok {
		return &provider.Error{Provider: model.Facebook, Status: resp.ErrorStatus(), Message: msg}
	}
	if resp.Failed() {
		return provider.StatusError(model.Facebook, resp.Status)
	}
	return nil
}

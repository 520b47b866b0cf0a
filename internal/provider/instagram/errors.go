package instagram

import (
	"encoding/json"

	"github.com/sakif/unify/internal/model"
	"github.com/sakif/unify/internal/provider"
)

type meta struct {
	Code         int    `json:"code"`
	ErrorType    string `json:"error_type"`
	ErrorMessage string `json:"error_message"`
}

// apiError covers both shapes Instagram uses: API calls nest the error in
// "meta", the OAuth endpoints put the same fields at the top level.
type apiError struct {
	Meta *meta `json:"meta"`
	meta
}

func classify(transportErr error, resp *provider.Response) *provider.Error {
	if transportErr != nil {
		return provider.Unavailable(model.Instagram, transportErr)
	}

	var env apiError
	if json.Unmarshal(resp.Body, &env) == nil {
		m := env.meta
		if env.Meta != nil {
			m = *env.Meta
		}
		if m.ErrorType != "" {
			msg := m.ErrorMessage
			if msg == "" {
				msg = m.ErrorType
			}
			return &provider.Error{
				Provider: model.Instagram,
				Status:   resp.ErrorStatus(),
				Code:     m.Code,
				Message:  msg,
			}
		}
	}
	if msg, ok := provider.OAuthError(resp.Body); ok {
		return &provider.Error{Provider: model.Instagram, Status: resp.ErrorStatus(), Message: msg}
	}
	if resp.Failed() {
		return provider.StatusError(model.Instagram, resp.Status)
	}
	return nil
}

package twitter

import (
	"encoding/json"
	"net/http"

	"github.com/sakif/unify/internal/model"
	"github.com/sakif/unify/internal/provider"
)

// apiErrors is the v1.1 error envelope:
// {"errors":[{"code":89,"message":"Invalid or expired token."}]}.
// A few endpoints answer {"error":"Not authorized."} instead.
type apiErrors struct {
	Errors []struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"errors"`
	Error string `json:"error"`
}

func classify(transportErr error, resp *provider.Response) *provider.Error {
	if transportErr != nil {
		return provider.Unavailable(model.Twitter, transportErr)
	}

	var env apiErrors
	if json.Unmarshal(resp.Body, &env) == nil {
		if len(env.Errors) > 0 {
			return &provider.Error{
				Provider: model.Twitter,
				Status:   resp.ErrorStatus(),
				Code:     env.Errors[0].Code,
				Message:  env.Errors[0].Message,
			}
		}
		if env.Error != "" {
			return &provider.Error{Provider: model.Twitter, Status: resp.ErrorStatus(), Message: env.Error}
		}
	}
	if resp.Failed() {
		return provider.StatusError(model.Twitter, resp.Status)
	}
	return nil
}

// handshakeError classifies a failed OAuth 1.0a token step. The oauth1
// library reports provider rejections as plain errors without a status.
func handshakeError(err error) *provider.Error {
	if provider.IsTransport(err) {
		return classify(err, nil)
	}
	return &provider.Error{
		Provider: model.Twitter,
		Status:   http.StatusBadRequest,
		Message:  "Twitter rejected the OAuth token, please sign in again",
		Err:      err,
	}
}

package transport

import (
	"encoding/json"

	"github.com/agentstation/nightsync/pkg/errors"
)

// DecodeResponse decodes a JSON response body into target.
func DecodeResponse(resp *Response, target any) error {
	if resp == nil {
		return errors.New("nil response")
	}
	if err := json.Unmarshal(resp.Body, target); err != nil {
		return errors.WrapParse("json", "response", err)
	}
	return nil
}

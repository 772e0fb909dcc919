package upstream

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
)

// maxBodySize bounds how much of a response body is read.
const maxBodySize = 10 << 20

// Deserialize turns a raw response into a typed value or an *Error.
//
// A non-2xx status always yields an error, even when the body would decode
// as T. A decode failure on a 2xx status yields an error, never a partially
// populated T. A null body or trailing data after the document is a decode
// failure. The body is always closed.
func Deserialize[T any](resp *http.Response) (T, error) {
	var zero T
	if resp == nil {
		return zero, NewTransportError(errors.New("no response"))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		if !success(resp.StatusCode) {
			return zero, NewStatusError(resp.StatusCode, nil)
		}
		return zero, NewDecodeError(resp.StatusCode, err)
	}

	if !success(resp.StatusCode) {
		return zero, NewStatusError(resp.StatusCode, body)
	}

	// A null document would leave T at its zero value without complaint.
	if bytes.Equal(bytes.TrimSpace(body), []byte("null")) {
		return zero, NewDecodeError(resp.StatusCode, errors.New("response body is null"))
	}

	// Unmarshal, unlike a streaming Decode, rejects data after the first value.
	var out T
	if err := json.Unmarshal(body, &out); err != nil {
		return zero, NewDecodeError(resp.StatusCode, err)
	}
	return out, nil
}

func success(status int) bool {
	return status >= 200 && status < 300
}

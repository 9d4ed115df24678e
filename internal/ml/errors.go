package ml

import (
	"errors"
	"strings"

	"github.com/openai/openai-go"
)

// ErrParseResponse is returned when the model reply is not a JSON object of
// string pairs
var ErrParseResponse = errors.New("failed to parse JSON response")

// IsInvalidImage reports whether err is the provider's transient
// "invalid image" failure, the only kind worth retrying.
func IsInvalidImage(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		if strings.HasPrefix(apiErr.Code, "invalid_image") {
			return true
		}
		return strings.Contains(apiErr.Message, "Invalid image")
	}
	return err != nil && strings.Contains(err.Error(), "Invalid image")
}

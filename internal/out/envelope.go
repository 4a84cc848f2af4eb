package out

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	clierr "github.com/ggonzalez94/bridgectl/internal/errors"
	"github.com/ggonzalez94/bridgectl/internal/model"
)

func CacheBypass() model.CacheStatus {
	return model.CacheStatus{Status: "bypass"}
}

func CacheHit() model.CacheStatus {
	return model.CacheStatus{Status: "hit"}
}

func CacheMiss() model.CacheStatus {
	return model.CacheStatus{Status: "miss"}
}

func Success(command string, data any, warnings []string, cache model.CacheStatus, now time.Time) model.Envelope {
	return model.Envelope{
		Version:  model.EnvelopeVersion,
		Success:  true,
		Data:     data,
		Warnings: warnings,
		Meta: model.EnvelopeMeta{
			RequestID: uuid.NewString(),
			Timestamp: now.UTC(),
			Command:   command,
			Cache:     cache,
		},
	}
}

// Failure builds the error envelope for err. Data carries partial results
// such as the missing fields of an interpretation.
func Failure(command string, err error, data any, now time.Time) model.Envelope {
	message := err.Error()
	if cErr, ok := clierr.As(err); ok {
		message = cErr.Message
		if cErr.Cause != nil {
			message = fmt.Sprintf("%s: %v", cErr.Message, cErr.Cause)
		}
	}
	if data == nil {
		data = []any{}
	}
	return model.Envelope{
		Version: model.EnvelopeVersion,
		Success: false,
		Data:    data,
		Error: &model.ErrorBody{
			Code:      clierr.ExitCode(err),
			Type:      clierr.Kind(err),
			Message:   message,
			Retryable: clierr.Retryable(err),
		},
		Meta: model.EnvelopeMeta{
			RequestID: uuid.NewString(),
			Timestamp: now.UTC(),
			Command:   command,
			Cache:     CacheBypass(),
		},
	}
}

package perfmon

import (
	"fmt"

	"emperror.dev/errors"
)

const (
	// ErrUnsupportedEntryType is returned by an ObserverSource that cannot
	// observe the requested entry type.
	ErrUnsupportedEntryType = errors.Sentinel("unsupported performance entry type")

	// ErrUnavailable is returned by an Environment for context it cannot provide.
	ErrUnavailable = errors.Sentinel("not available in this environment")
)

// errorData builds the Error sample payload for err.
func errorData(err error, context Data) Data {
	data := cloneData(context)
	if err == nil {
		data["message"] = "unknown error"
		return data
	}
	data["message"] = err.Error()
	data["stack"] = fmt.Sprintf("%+v", errors.WithStackIf(err))
	return data
}

package tools

import (
	"context"
	"time"
)

// timeFormat is ISO 8601 without seconds; the prompt tells the model to
// speak times naturally, it does not need sub-minute precision.
const timeFormat = "2006-01-02T15:04"

// Now returns the current local time formatted for the model.
var Now = func() string {
	return time.Now().Format(timeFormat)
}

// TimeTools provides clock access. It has no dependencies.
type TimeTools struct{}

// NewTimeTools constructs the provider.
func NewTimeTools(Deps) (Provider, error) {
	return &TimeTools{}, nil
}

// Tools implements Provider.
func (t *TimeTools) Tools() []Tool {
	return []Tool{
		{
			Name: "get_current_datetime",
			Description: "Returns the current date and time as an ISO formatted string, without seconds. " +
				"Use this tool whenever the user asks for the current time, date or queries about today, tomorrow, etc. " +
				"This tool does not take any parameters.",
			Parameters: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
			Handler: func(ctx context.Context, args map[string]interface{}) (string, error) {
				return Now(), nil
			},
		},
	}
}

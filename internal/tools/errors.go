package tools

import "errors"

var (
	// ErrUnknownTool indicates a dispatch request for a name that was never
	// registered.
	ErrUnknownTool = errors.New("unknown tool")

	// ErrInvalidArguments indicates tool parameters that violate the tool's
	// schema. The call is never executed.
	ErrInvalidArguments = errors.New("invalid tool arguments")

	// ErrEmptyDocument indicates a suggestion request against a document
	// with no content.
	ErrEmptyDocument = errors.New("document is empty")

	// ErrMissingUser indicates a tool execution without an acting user in
	// the context. Tool sub-tasks always run on behalf of a user.
	ErrMissingUser = errors.New("no acting user in context")
)

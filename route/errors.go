package route

import "errors"

// Common errors returned by the route engine
var (
	ErrInvalidRouteConfig  = errors.New("invalid route configuration")
	ErrInvalidSpeed        = errors.New("speed must be non-negative")
	ErrUnreachablePosition = errors.New("traveled distance not located on any segment")
	ErrUnsupportedFile     = errors.New("unsupported waypoint file type")
)

package simulator

import "errors"

// Common errors returned by the simulator
var (
	ErrInvalidPort             = errors.New("port must be between 0 and 65535")
	ErrInvalidSpeed            = errors.New("speed must be non-negative")
	ErrInvalidOutputRate       = errors.New("output rate must be positive")
	ErrInvalidDuration         = errors.New("duration must be non-negative")
	ErrInvalidBaudRate         = errors.New("baud rate must be positive")
	ErrInvalidPointCount       = errors.New("route point count too small")
	ErrInvalidZone             = errors.New("zone offset out of range")
	ErrUnknownRouteType        = errors.New("unknown route type")
	ErrMissingWaypointsFile    = errors.New("waypoints route requires a waypoints file")
	ErrSimulatorNotRunning     = errors.New("simulator is not running")
	ErrSimulatorAlreadyRunning = errors.New("simulator is already running")
)

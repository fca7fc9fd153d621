package gateway

import (
	"errors"
	"fmt"
)

// ErrGatewayUnavailable wraps transport-level failures reaching the Tool
// Gateway (connection refused, timeout, an unreadable body, or a 2xx body
// that is not valid JSON).
var ErrGatewayUnavailable = errors.New("tool gateway unavailable")

// ErrGatewayRejected wraps a gateway response indicating failure
// (success=false from create_session, or any non-2xx status, with or
// without a body).
type ErrGatewayRejected struct {
	Body string
}

func (e *ErrGatewayRejected) Error() string {
	return fmt.Sprintf("tool gateway rejected request: %s", e.Body)
}

// SessionGuardSentinel is the original implementation's session-guard
// text, kept for parity. Nothing in this client returns it: search,
// execute and list create a session on first use instead.
const SessionGuardSentinel = "No gateway session - call create_session first"

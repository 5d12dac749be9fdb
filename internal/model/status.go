package model

// StatusEvent is a component health/status report handed to the host
// runtime (vocabulary inherited from the upstream transport).
type StatusEvent struct {
	Component string `json:"component"`
	Status    string `json:"status"`
	Type      string `json:"type"`
	Message   string `json:"message"`
}

const (
	StatusOK   = "ok"
	StatusDown = "down"

	ComponentInbound  = "inbound"
	ComponentOutbound = "outbound"
	ComponentDispatch = "dispatch"

	TypeRequestSuccess = "request_success"
	TypeRequestFail    = "request_fail"
	TypeBatchFail      = "batch_request_fail"
)

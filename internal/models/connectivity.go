package models

// Connectivity is the shared backend-reachability state. It starts Unknown
// and is driven by the connectivity monitor's probes and by the outcome of
// every outbound call.
type Connectivity int

const (
	ConnectivityUnknown Connectivity = iota
	ConnectivityConnected
	ConnectivityDisconnected
)

func (c Connectivity) String() string {
	switch c {
	case ConnectivityConnected:
		return "connected"
	case ConnectivityDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

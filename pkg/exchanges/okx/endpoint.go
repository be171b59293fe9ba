package okx

import "net/http"

// Endpoint identifies one of the two OKX v5 websocket channels.
type Endpoint int

const (
	EndpointPublic Endpoint = iota
	EndpointPrivate
)

const (
	liveHost = "wss://ws.okx.com:8443"
	demoHost = "wss://wspap.okx.com:8443"

	// RESTBaseURL is used for the public server-time endpoint.
	RESTBaseURL = "https://www.okx.com"

	simulatedHeader = "x-simulated-trading"
)

func (e Endpoint) String() string {
	switch e {
	case EndpointPublic:
		return "public"
	case EndpointPrivate:
		return "private"
	default:
		return "unknown"
	}
}

// URL returns the websocket URL for the endpoint in live or demo mode.
func (e Endpoint) URL(simulated bool) string {
	host := liveHost
	if simulated {
		host = demoHost
	}
	return host + "/ws/v5/" + e.String()
}

// Headers returns the upgrade headers; demo mode needs x-simulated-trading: 1.
func Headers(simulated bool) http.Header {
	h := http.Header{}
	if simulated {
		h.Set(simulatedHeader, "1")
	}
	return h
}

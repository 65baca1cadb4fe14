package domain

// Default backend settings
const (
	DefaultEndpointURL = "http://localhost:8000"
	DefaultTemperature = 0.7
)

// BackendConfiguration holds the endpoint and tunable request parameters
// used for outbound calls.
type BackendConfiguration struct {
	EndpointURL        string  `json:"endpoint_url"`
	RequestTemperature float64 `json:"temperature"`
}

// ConfigUpdate is a partial update of BackendConfiguration. Nil fields are
// left unchanged.
type ConfigUpdate struct {
	EndpointURL        *string  `json:"endpoint_url,omitempty"`
	RequestTemperature *float64 `json:"temperature,omitempty"`
}

// DefaultBackendConfiguration returns the configuration used when nothing
// else is set.
func DefaultBackendConfiguration() BackendConfiguration {
	return BackendConfiguration{
		EndpointURL:        DefaultEndpointURL,
		RequestTemperature: DefaultTemperature,
	}
}

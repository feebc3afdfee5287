// Separate package is workaround to import cycles.
package ubidots_config

type Config struct { //nolint:maligned
	Token          string `hcl:"token"` // secret
	DeviceLabel    string `hcl:"device_label"`
	Server         string `hcl:"server"`
	Port           int    `hcl:"port"`
	Transport      string `hcl:"transport"` // http|mqtt
	MqttBroker     string `hcl:"mqtt_broker"`
	Capacity       int    `hcl:"capacity"`
	ConnectRetries int    `hcl:"connect_retries"` // negative disables retries
	RetryDelaySec  int    `hcl:"retry_delay_sec"`
	GetTimeoutMs   int    `hcl:"get_timeout_ms"`
	PostTimeoutMs  int    `hcl:"post_timeout_ms"`
	ReadTimeoutMs  int    `hcl:"read_timeout_ms"`
	ResponseLimit  int    `hcl:"response_limit"`
	// historical behaviour: readings of failed upload are lost
	DiscardOnFailure bool `hcl:"discard_on_failure"`
	LogDebug         bool `hcl:"log_debug"`
}

const (
	TransportHttp = "http"
	TransportMqtt = "mqtt"
)

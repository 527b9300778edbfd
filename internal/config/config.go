// internal/config/config.go
package config

type Config struct {
	Gateway GatewayConfig `yaml:"gateway"`
}

type GatewayConfig struct {
	Log   LogConfig    `yaml:"log"`
	MQTT  MQTTConfig   `yaml:"mqtt"`
	Units []UnitConfig `yaml:"units"`
}

// ---- LOG ----

type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// ---- MQTT (ThingsBoard gateway API) ----

type MQTTConfig struct {
	Broker           string `yaml:"broker"`
	ClientID         string `yaml:"client_id"`
	AccessToken      string `yaml:"access_token"`
	QoS              byte   `yaml:"qos"`
	ConnectTimeoutMs int    `yaml:"connect_timeout_ms"`
}

// ---- UNIT ----

type UnitConfig struct {
	ID     string       `yaml:"id"`
	Source SourceConfig `yaml:"source"`
	Device DeviceConfig `yaml:"device"`
	Poll   PollConfig   `yaml:"poll"`

	// Tag groups, keyed the ThingsBoard way.
	Timeseries []TagConfig `yaml:"timeseries"`
	Attributes []TagConfig `yaml:"attributes"`
	RPC        []TagConfig `yaml:"rpc"`
}

// ---- SOURCE ----

type SourceConfig struct {
	// host:port for TCP, rtu:///dev/ttyX for serial
	Endpoint  string `yaml:"endpoint"`
	UnitID    uint8  `yaml:"unit_id"`
	TimeoutMs int    `yaml:"timeout_ms"`

	// serial only
	BaudRate int    `yaml:"baud_rate"`
	DataBits int    `yaml:"data_bits"`
	Parity   string `yaml:"parity"`
	StopBits int    `yaml:"stop_bits"`
}

// ---- DEVICE IDENTITY ----

type DeviceConfig struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
}

// ---- POLL ----

type PollConfig struct {
	IntervalMs int `yaml:"interval_ms"`
}

// ---- TAG ----

// TagConfig uses the ThingsBoard Modbus connector field names.
type TagConfig struct {
	Tag           string  `yaml:"tag"`
	Type          string  `yaml:"type"`
	FunctionCode  uint8   `yaml:"functionCode"`
	Address       uint16  `yaml:"address"`
	RegisterCount float64 `yaml:"registerCount"`
	ByteOrder     string  `yaml:"byteOrder"`
	Bit           *int    `yaml:"bit"`

	// 0 means unset.
	Divider    float64 `yaml:"divider"`
	Multiplier float64 `yaml:"multiplier"`
}

// Groups returns the tag groups in processing order.
func (u UnitConfig) Groups() []GroupTags {
	return []GroupTags{
		{Name: GroupTimeseries, Tags: u.Timeseries},
		{Name: GroupAttributes, Tags: u.Attributes},
		{Name: GroupRPC, Tags: u.RPC},
	}
}

// GroupTags pairs a group name with its configured tags.
type GroupTags struct {
	Name string
	Tags []TagConfig
}

const (
	GroupTimeseries = "timeseries"
	GroupAttributes = "attributes"
	GroupRPC        = "rpc"
)

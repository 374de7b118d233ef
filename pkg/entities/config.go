package entities

// BrokerConfig carries the credentials and tuning for the broker connection.
// Host, Username and Password are mandatory; Start fails with a configuration
// error when any of them is missing.
type BrokerConfig struct {
	Host              string `yaml:"host"`
	Port              int    `yaml:"port"`
	Username          string `yaml:"username"`
	Password          string `yaml:"password"`
	ClientID          string `yaml:"clientId"`
	ReconnectSeconds  int    `yaml:"reconnectSeconds"`
	SettleMilliseconds int   `yaml:"settleMilliseconds"`
}

// LedgerConfig locates the record store.
type LedgerConfig struct {
	Path string `yaml:"path"`
}

// ServerConfig configures the operator API listener.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// GatewayConfig is the root configuration document, parsed from YAML.
type GatewayConfig struct {
	Broker   BrokerConfig `yaml:"broker"`
	Ledger   LedgerConfig `yaml:"ledger"`
	Server   ServerConfig `yaml:"server"`
	LogLevel string       `yaml:"logLevel"`
}

package flotilla

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml"
)

type Config struct {
	Broker      BrokerConfig      `toml:"broker"`
	Store       StoreConfig       `toml:"store"`
	Mailbox     MailboxConfig     `toml:"mailbox"`
	Coordinator CoordinatorConfig `toml:"coordinator"`
	Edge        EdgeConfig        `toml:"edge"`
}

type BrokerConfig struct {
	URL      string `toml:"url"`
	QoS      int    `toml:"qos"`
	Timeout  string `toml:"timeout"`
	Username string `toml:"username"`
	Password string `toml:"password"`
	CAPath   string `toml:"ca_path"`
	CertPath string `toml:"cert_path"`
	KeyPath  string `toml:"key_path"`
}

type StoreConfig struct {
	// Backend selects the payload store: "local" or "oci".
	Backend   string `toml:"backend"`
	Root      string `toml:"root"`
	Registry  string `toml:"registry"`
	Username  string `toml:"username"`
	Password  string `toml:"password"`
	PlainHTTP bool   `toml:"plain_http"`
	Bucket    string `toml:"bucket"`
}

type MailboxConfig struct {
	// Backend selects the result mailbox: "memory" or "postgres".
	Backend string `toml:"backend"`
	DSN     string `toml:"dsn"`
}

type CoordinatorConfig struct {
	HTTPAddr     string   `toml:"http_addr"`
	Participants []string `toml:"participants"`
	PollInterval string   `toml:"poll_interval"`
	SummaryPath  string   `toml:"summary_path"`
}

type EdgeConfig struct {
	Participant       string `toml:"participant"`
	HeartbeatInterval string `toml:"heartbeat_interval"`
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	tree, err := toml.Load(string(data))
	if err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	var cfg Config
	if err := tree.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &cfg, nil
}

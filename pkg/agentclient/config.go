package agentclient

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	flag "github.com/spf13/pflag"
)

const (
	CommandDeploy = "deploy"
	CommandStatus = "status"
	CommandList   = "list"
)

type Config struct {
	AgentHash     string
	AgentID       string
	AgentKey      string
	Command       string
	Env           []string
	EnvFile       string
	LogFormat     string
	Name          string
	Owner         string
	PollInterval  time.Duration
	PSK           string
	Quiet         bool
	Retry         bool
	RetryInterval time.Duration
	Server        string
	Timeout       time.Duration
	Wait          bool
}

func InitConfig(cfg *Config) {
	flag.StringVar(&cfg.AgentHash, "agent-hash", os.Getenv("AGENT_HASH"), "Content hash of the agent descriptor. (env AGENT_HASH)")
	flag.StringVar(&cfg.AgentID, "agent-id", os.Getenv("AGENT_ID"), "Agent UUID. (env AGENT_ID)")
	flag.StringVar(&cfg.AgentKey, "agent-key", os.Getenv("AGENT_KEY"), "Key material for the agent wallet account. (env AGENT_KEY)")
	flag.StringSliceVar(&cfg.Env, "env", getEnvStringSlice("ENV"), "Agent environment variable in the form KEY=VALUE. Can be specified multiple times. (env ENV)")
	flag.StringVar(&cfg.EnvFile, "env-file", os.Getenv("ENV_FILE"), "YAML file with agent environment variables. (env ENV_FILE)")
	flag.StringVar(&cfg.LogFormat, "log-format", getEnv("LOG_FORMAT", "text"), "Log format, either 'text' or 'json'. (env LOG_FORMAT)")
	flag.StringVar(&cfg.Name, "name", os.Getenv("NAME"), "Display name of the agent. Defaults to the agent id. (env NAME)")
	flag.StringVar(&cfg.Owner, "owner", os.Getenv("OWNER"), "Address of the agent owner. (env OWNER)")
	flag.DurationVar(&cfg.PollInterval, "poll-interval", getEnvDuration("POLL_INTERVAL", DefaultPollInterval), "How often to check deployment status while waiting. (env POLL_INTERVAL)")
	flag.StringVar(&cfg.PSK, "psk", os.Getenv("AGENTD_PSK"), "Pre-shared key for the agentd API. (env AGENTD_PSK)")
	flag.BoolVar(&cfg.Quiet, "quiet", getEnvBool("QUIET", false), "Suppress printing of informational messages except errors. (env QUIET)")
	flag.BoolVar(&cfg.Retry, "retry", getEnvBool("RETRY", true), "Retry requests when agentd is unavailable. (env RETRY)")
	flag.StringVar(&cfg.Server, "server", getEnv("AGENTD_SERVER", DefaultServer), "URL to agentd. (env AGENTD_SERVER)")
	flag.DurationVar(&cfg.Timeout, "timeout", getEnvDuration("TIMEOUT", DefaultTimeout), "Time to wait for the agent to become alive. (env TIMEOUT)")
	flag.BoolVar(&cfg.Wait, "wait", getEnvBool("WAIT", false), "Block until the agent is alive or the deployment stops. (env WAIT)")

	flag.Parse()

	cfg.Command = flag.Arg(0)
	if cfg.Command == CommandStatus && len(flag.Arg(1)) > 0 {
		cfg.AgentID = flag.Arg(1)
	}
}

// NewConfig returns a configuration with defaults that have no flag.
// Values will be resolved with the following precedence: flags > environment variables > default values.
func NewConfig() *Config {
	return &Config{
		RetryInterval: time.Second * 5,
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}

	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		duration, err := time.ParseDuration(value)
		if err == nil {
			return duration
		}
	}
	return fallback
}

func getEnvStringSlice(key string) []string {
	if value, ok := os.LookupEnv(key); ok {
		return strings.Split(value, ",")
	}

	return []string{}
}

func getEnvBool(key string, def bool) bool {
	b, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return def
	}

	return b
}

var (
	ErrCommandRequired   = errors.New("command required; one of deploy, status, list")
	ErrServerRequired    = errors.New("agentd server URL required")
	ErrAgentIDRequired   = errors.New("agent id required")
	ErrAgentKeyRequired  = errors.New("agent key required")
	ErrAgentHashRequired = errors.New("agent hash required")
	ErrOwnerRequired     = errors.New("owner required")
)

func (cfg *Config) Validate() error {
	if len(cfg.Server) == 0 {
		return ErrServerRequired
	}

	switch cfg.Command {
	case CommandDeploy:
		if len(cfg.AgentKey) == 0 {
			return ErrAgentKeyRequired
		}
		if len(cfg.AgentHash) == 0 {
			return ErrAgentHashRequired
		}
		if len(cfg.Owner) == 0 {
			return ErrOwnerRequired
		}
		fallthrough
	case CommandStatus:
		if len(cfg.AgentID) == 0 {
			return ErrAgentIDRequired
		}
	case CommandList:
	default:
		return ErrCommandRequired
	}

	return nil
}

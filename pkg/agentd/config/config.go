package config

import (
	"time"

	"github.com/nais/agentdeploy/pkg/conftools"
	flag "github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Target struct {
	File     string `json:"file"`
	Name     string `json:"name"`
	URL      string `json:"url"`
	Hash     string `json:"hash"`
	Receiver string `json:"receiver"`
}

type Wallet struct {
	URL           string  `json:"url"`
	MinGasBalance string  `json:"min-gas-balance"`
	RateLimit     float64 `json:"rate-limit"`
	PlatformAddr  string  `json:"platform-address"`
}

type Instance struct {
	VCPUs    int `json:"vcpus"`
	MemoryMB int `json:"memory"`
	DiskMB   int `json:"disk"`
}

type Provision struct {
	CommandTemplate string        `json:"command-template"`
	Runtime         string        `json:"runtime"`
	PackageManager  string        `json:"package-manager"`
	Usage           string        `json:"usage"`
	User            string        `json:"user"`
	DialTimeout     time.Duration `json:"dial-timeout"`
}

type Policy struct {
	FundingWindow        time.Duration `json:"funding-window"`
	FundingBuffer        string        `json:"funding-buffer"`
	FlowInterval         time.Duration `json:"flow-interval"`
	ConnectivityAttempts int           `json:"connectivity-attempts"`
	ConnectivityTimeout  time.Duration `json:"connectivity-timeout"`
	SettleDelay          time.Duration `json:"settle-delay"`
	ProvisionAttempts    int           `json:"provision-attempts"`
	ProvisionTimeout     time.Duration `json:"provision-timeout"`
	CallTimeout          time.Duration `json:"call-timeout"`
}

type Config struct {
	AgentPostType          string        `json:"agent-post-type"`
	ApiURL                 string        `json:"api-url"`
	BreakGlassKeys         []string      `json:"break-glass-keys"`
	CodeFilesPath          string        `json:"code-files-path"`
	CommunityReceiver      string        `json:"community-receiver"`
	DatabaseURL            string        `json:"database-url"`
	DatabaseConnectTimeout time.Duration `json:"database-connect-timeout"`
	FrontendKeys           []string      `json:"frontend-keys"`
	Instance               Instance      `json:"instance"`
	KeysPath               string        `json:"keys-path"`
	KeyBits                int           `json:"key-bits"`
	ListenAddress          string        `json:"listen-address"`
	LogFormat              string        `json:"log-format"`
	LogLevel               string        `json:"log-level"`
	MetricsPath            string        `json:"metrics-path"`
	OtelCollectorEndpoint  string        `json:"otel-collector-endpoint"`
	Policy                 Policy        `json:"policy"`
	Provision              Provision     `json:"provision"`
	RequiredTokens         string        `json:"required-tokens"`
	ScriptsPath            string        `json:"scripts-path"`
	Target                 Target        `json:"target"`
	Wallet                 Wallet        `json:"wallet"`
}

const (
	AgentPostType               = "agent-post-type"
	ApiUrl                      = "api-url"
	BreakGlassKeys              = "break-glass-keys"
	CodeFilesPath               = "code-files-path"
	CommunityReceiver           = "community-receiver"
	DatabaseConnectTimeout      = "database-connect-timeout"
	DatabaseUrl                 = "database-url"
	FrontendKeys                = "frontend-keys"
	InstanceDisk                = "instance.disk"
	InstanceMemory              = "instance.memory"
	InstanceVCPUs               = "instance.vcpus"
	KeyBits                     = "key-bits"
	KeysPath                    = "keys-path"
	ListenAddress               = "listen-address"
	LogFormat                   = "log-format"
	LogLevel                    = "log-level"
	MetricsPath                 = "metrics-path"
	OtelCollectorEndpoint       = "otel-collector-endpoint"
	PolicyCallTimeout           = "policy.call-timeout"
	PolicyConnectivityAttempts  = "policy.connectivity-attempts"
	PolicyConnectivityTimeout   = "policy.connectivity-timeout"
	PolicyFlowInterval          = "policy.flow-interval"
	PolicyFundingBuffer         = "policy.funding-buffer"
	PolicyFundingWindow         = "policy.funding-window"
	PolicyProvisionAttempts     = "policy.provision-attempts"
	PolicyProvisionTimeout      = "policy.provision-timeout"
	PolicySettleDelay           = "policy.settle-delay"
	ProvisionCommandTemplate    = "provision.command-template"
	ProvisionDialTimeout        = "provision.dial-timeout"
	ProvisionPackageManager     = "provision.package-manager"
	ProvisionRuntime            = "provision.runtime"
	ProvisionUsage              = "provision.usage"
	ProvisionUser               = "provision.user"
	RequiredTokens              = "required-tokens"
	ScriptsPath                 = "scripts-path"
	TargetFile                  = "target.file"
	TargetHash                  = "target.hash"
	TargetName                  = "target.name"
	TargetReceiver              = "target.receiver"
	TargetUrl                   = "target.url"
	WalletMinGasBalance         = "wallet.min-gas-balance"
	WalletPlatformAddress       = "wallet.platform-address"
	WalletRateLimit             = "wallet.rate-limit"
	WalletUrl                   = "wallet.url"
	DefaultInstallCommandFormat = "chmod +x {{script}} && {{script}} {{runtime}} {{packageManager}} {{usage}}"
)

// Bind environment variables commonly provided by the hosting platform.
func bindPlatform() {
	viper.BindEnv(DatabaseUrl, "DATABASE_URL")
	viper.BindEnv(FrontendKeys, "FRONTEND_KEYS")
	viper.BindEnv(ApiUrl, "ALEPH_API_URL")
}

func Initialize() *Config {
	conftools.Initialize("agentd")
	bindPlatform()

	flag.String(ListenAddress, "127.0.0.1:8080", "IP:PORT")
	flag.String(LogFormat, "text", "Log format, either 'json' or 'text'.")
	flag.String(LogLevel, "debug", "Logging verbosity level.")
	flag.String(MetricsPath, "/metrics", "HTTP endpoint for exposed metrics.")
	flag.String(OtelCollectorEndpoint, "", "OpenTelemetry collector endpoint. Tracing is disabled when empty.")
	flag.StringSlice(FrontendKeys, nil, "Pre-shared frontend keys, comma separated. The internal API is open when empty.")

	flag.String(DatabaseUrl, "", "PostgreSQL connection information. Deployment records are kept in memory when empty.")
	flag.Duration(DatabaseConnectTimeout, time.Minute*5, "How long to try the initial database connection.")

	flag.String(ApiUrl, "https://api2.aleph.im", "Marketplace API server.")
	flag.String(AgentPostType, "creaitors-agent", "Post type of published agents.")
	flag.String(CodeFilesPath, "downloads", "Local cache directory for agent code artifacts.")
	flag.String(ScriptsPath, "scripts", "Directory containing deploy.sh.")
	flag.String(KeysPath, "keys", "Directory for per-agent SSH key pairs.")
	flag.Int(KeyBits, 4096, "RSA key size for generated SSH key pairs.")
	flag.StringSlice(BreakGlassKeys, nil, "Operator SSH public keys added to every instance.")

	flag.String(RequiredTokens, "10", "Settlement tokens a new agent wallet is asked to hold.")
	flag.String(CommunityReceiver, "0x5aBd3258C5492fD378EBC2e0017416E199e5Da56", "Receiver of the community payment stream.")

	flag.String(TargetFile, "", "YAML file listing compute nodes. Overrides the single target flags when set.")
	flag.String(TargetName, "", "Compute node to select from the target file. Defaults to the first entry.")
	flag.String(TargetUrl, "https://gpu-test-02.nergame.app", "Compute node URL.")
	flag.String(TargetHash, "e9423d9f9fd27cdc9c4c27d5cf3120ef573eece260d44e6df76b3c27569a3154", "Compute node hash.")
	flag.String(TargetReceiver, "0xA07B1214bAe0D5ccAA25449C3149c0aC83658874", "Receiver of the operator payment stream.")

	flag.Int(InstanceVCPUs, 1, "Default vCPUs when an agent declares no requirements.")
	flag.Int(InstanceMemory, 2048, "Default memory (MiB) when an agent declares no requirements.")
	flag.Int(InstanceDisk, 20480, "Default root filesystem size (MiB) when an agent declares no requirements.")

	flag.String(WalletUrl, "http://127.0.0.1:8090", "Wallet service URL.")
	flag.String(WalletMinGasBalance, "0.0005", "Minimum fallback currency balance required to submit a transaction.")
	flag.Float64(WalletRateLimit, 1, "Maximum wallet service requests per second, per account.")
	flag.String(WalletPlatformAddress, "", "Platform reward address written to every agent's environment.")

	flag.String(ProvisionCommandTemplate, DefaultInstallCommandFormat, "Handlebars template of the remote install command.")
	flag.String(ProvisionRuntime, "3.12", "Runtime version passed to the install script.")
	flag.String(ProvisionPackageManager, "poetry", "Package manager passed to the install script.")
	flag.String(ProvisionUsage, "fastapi", "Usage type passed to the install script.")
	flag.String(ProvisionUser, "root", "Remote shell user.")
	flag.Duration(ProvisionDialTimeout, time.Second*30, "Remote shell connect timeout.")

	flag.Duration(PolicyFundingWindow, time.Hour*4, "Payment stream duration the wallet must be able to cover up front.")
	flag.String(PolicyFundingBuffer, "0.1", "Settlement tokens added on top of the funding window.")
	flag.Duration(PolicyFlowInterval, time.Second*10, "Delay between the two payment stream transactions.")
	flag.Int(PolicyConnectivityAttempts, 30, "Reachability probes before giving up.")
	flag.Duration(PolicyConnectivityTimeout, time.Second*5, "Timeout of a single reachability probe.")
	flag.Duration(PolicySettleDelay, time.Second*5, "Wait after the instance first answers before connecting over SSH.")
	flag.Int(PolicyProvisionAttempts, 5, "Remote provisioning attempts before giving up.")
	flag.Duration(PolicyProvisionTimeout, time.Minute*30, "Timeout of a single remote provisioning attempt.")
	flag.Duration(PolicyCallTimeout, time.Minute*2, "Timeout of each marketplace and ledger call.")

	return &Config{}
}

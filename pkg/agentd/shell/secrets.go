package shell

import (
	"bytes"
	"fmt"
	"regexp"
	"sort"
	"strings"

	log "github.com/sirupsen/logrus"
)

const (
	EnvAgentPrivateKey = "AGENT_WALLET_PRIVATE_KEY"
	EnvCreatorAddress  = "CREATOR_WALLET_ADDRESS"
	EnvOwnerAddress    = "OWNER_WALLET_ADDRESS"
	EnvPlatformAddress = "PLATFORM_WALLET_ADDRESS"
)

var envName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Secrets is the environment handed to the agent process.
type Secrets struct {
	PrivateKey      string
	CreatorAddress  string
	OwnerAddress    string
	PlatformAddress string
	// Overrides are caller supplied variables. They cannot replace the fixed variables above.
	Overrides map[string]string
}

func (s Secrets) fixed() [][2]string {
	return [][2]string{
		{EnvAgentPrivateKey, s.PrivateKey},
		{EnvCreatorAddress, s.CreatorAddress},
		{EnvOwnerAddress, s.OwnerAddress},
		{EnvPlatformAddress, s.PlatformAddress},
	}
}

// EnvFile renders the secrets as a dotenv file: fixed variables first, then overrides sorted by name.
func (s Secrets) EnvFile() ([]byte, error) {
	buf := &bytes.Buffer{}
	reserved := make(map[string]bool)

	for _, kv := range s.fixed() {
		reserved[kv[0]] = true
		if err := writeEnv(buf, kv[0], kv[1]); err != nil {
			return nil, err
		}
	}

	names := make([]string, 0, len(s.Overrides))
	for name := range s.Overrides {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if reserved[name] {
			log.Warnf("Ignoring environment override of reserved variable %s", name)
			continue
		}
		if err := writeEnv(buf, name, s.Overrides[name]); err != nil {
			return nil, err
		}
	}

	return buf.Bytes(), nil
}

func writeEnv(buf *bytes.Buffer, name, value string) error {
	if !envName.MatchString(name) {
		return fmt.Errorf("invalid environment variable name '%s'", name)
	}
	if strings.ContainsAny(value, "\r\n") {
		return fmt.Errorf("environment variable %s contains a line break", name)
	}
	fmt.Fprintf(buf, "%s=%s\n", name, value)
	return nil
}

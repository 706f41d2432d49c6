package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// RegistrySeed describes the optional YAML file that pre-loads the scope,
// connection and mapping registries at startup. Missing entries are created;
// existing entries (matched by providedId / scopeId) are left untouched.
type RegistrySeed struct {
	Servers []SeedServer `yaml:"servers"`
}

// SeedServer is one MCP resource server with its catalog
type SeedServer struct {
	ProvidedId  string           `yaml:"providedId"`
	Name        string           `yaml:"name"`
	Description string           `yaml:"description"`
	Scopes      []SeedScope      `yaml:"scopes"`
	Connections []SeedConnection `yaml:"connections"`
	Mappings    []SeedMapping    `yaml:"mappings"`
}

// SeedScope is one scope entry in the seed file
type SeedScope struct {
	ScopeId     string `yaml:"scopeId"`
	Description string `yaml:"description"`
}

// SeedConnection is one downstream provider entry in the seed file
type SeedConnection struct {
	ProvidedId   string `yaml:"providedId"`
	FriendlyName string `yaml:"friendlyName"`
	ClientId     string `yaml:"clientId"`
	ClientSecret string `yaml:"clientSecret"`
	AuthorizeUrl string `yaml:"authorizeUrl"`
	TokenUrl     string `yaml:"tokenUrl"`
}

// SeedMapping wires a scope to a connection in the seed file
type SeedMapping struct {
	ScopeId         string `yaml:"scopeId"`
	ConnectionId    string `yaml:"connectionId"` // providedId of the connection
	DownstreamScope string `yaml:"downstreamScope"`
}

// LoadRegistrySeed parses the registry seed file at path
func LoadRegistrySeed(path string) (*RegistrySeed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read registry seed file: %w", err)
	}

	var seed RegistrySeed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("failed to parse registry seed file: %w", err)
	}

	for _, server := range seed.Servers {
		if server.ProvidedId == "" {
			return nil, fmt.Errorf("registry seed: server entry missing providedId")
		}
	}

	return &seed, nil
}

package config

import (
	"os"
	"path/filepath"
	"strings"
)

// Environment is the deployment a clawdash run belongs to, read from APP_ENV.
type Environment string

const (
	Development Environment = "development"
	Staging     Environment = "staging"
	Production  Environment = "production"
)

var environmentAliases = map[string]Environment{
	"":      Development,
	"dev":   Development,
	"local": Development,
	"stage": Staging,
	"stg":   Staging,
	"prod":  Production,
}

// CurrentEnvironment returns the normalised APP_ENV value. Unset means
// Development; unknown names are kept as given.
func CurrentEnvironment() Environment {
	name := strings.ToLower(strings.TrimSpace(os.Getenv("APP_ENV")))
	if env, ok := environmentAliases[name]; ok {
		return env
	}
	return Environment(name)
}

// RequiresConfigFile reports whether the built-in defaults are refused. The
// workspace and output paths differ per host, so staging and production must
// ship a file.
func (e Environment) RequiresConfigFile() bool {
	return e == Staging || e == Production
}

// configFile is the per-environment file next to DefaultPath, e.g.
// config/config.production.yml.
func (e Environment) configFile() string {
	if e == Development {
		return DefaultPath
	}
	dir, base := filepath.Split(DefaultPath)
	ext := filepath.Ext(base)
	return filepath.Join(dir, strings.TrimSuffix(base, ext)+"."+string(e)+ext)
}

// configCandidates lists the files Load tries in order when no explicit path
// was given. Strict environments never fall back to the development file.
func (e Environment) configCandidates() []string {
	switch {
	case e == Development:
		return []string{DefaultPath}
	case e.RequiresConfigFile():
		return []string{e.configFile()}
	default:
		return []string{e.configFile(), DefaultPath}
	}
}

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// TargetsFile is the YAML run configuration: which accounts race which
// plannings, plus optional policy overrides. Tokens never live in the file
// itself; each account names the environment variable that carries its
// bearer token.
type TargetsFile struct {
	PollSeconds            int `yaml:"poll_seconds"`
	StartupDeadlineSeconds int `yaml:"startup_deadline_seconds"`
	RaceDeadlineSeconds    int `yaml:"race_deadline_seconds"`

	// EmptyPollLimit is the number of consecutive polls with nothing left to
	// attempt before a race is declared exhausted. 0 keeps polling until the
	// race deadline.
	EmptyPollLimit int `yaml:"empty_poll_limit"`

	// DefaultQuota caps confirmed reservations per pair when the account does
	// not set its own. 0 means no cap.
	DefaultQuota int `yaml:"default_quota"`

	Accounts []TargetAccount `yaml:"accounts"`
}

type TargetAccount struct {
	Label string `yaml:"label"`

	// TokenEnv names the env var with the bearer token. Defaults to
	// SHIFTHEROES_TOKEN_<LABEL>.
	TokenEnv string `yaml:"token_env"`

	// Exactly one of PlanningID / PlanningType should be set. A type asks the
	// run to discover the first planning of that type.
	PlanningID   string `yaml:"planning_id"`
	PlanningType string `yaml:"planning_type"`

	Quota int `yaml:"quota"`
}

func LoadTargets(path string) (TargetsFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return TargetsFile{}, err
	}
	defer f.Close()

	var tf TargetsFile
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&tf); err != nil {
		return TargetsFile{}, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := tf.Validate(); err != nil {
		return TargetsFile{}, fmt.Errorf("%s: %w", path, err)
	}
	return tf, nil
}

func (tf TargetsFile) Validate() error {
	if len(tf.Accounts) == 0 {
		return fmt.Errorf("no accounts configured")
	}
	seen := make(map[string]bool, len(tf.Accounts))
	for i, a := range tf.Accounts {
		if a.Label == "" {
			return fmt.Errorf("accounts[%d]: label required", i)
		}
		if seen[a.Label] {
			return fmt.Errorf("accounts[%d]: duplicate label %q", i, a.Label)
		}
		seen[a.Label] = true
		if a.PlanningID == "" && a.PlanningType == "" {
			return fmt.Errorf("account %q: planning_id or planning_type required", a.Label)
		}
	}
	return nil
}

// Token resolves the account's bearer token from the environment.
func (a TargetAccount) Token() (string, error) {
	env := a.TokenEnv
	if env == "" {
		env = "SHIFTHEROES_TOKEN_" + strings.ToUpper(strings.ReplaceAll(a.Label, "-", "_"))
	}
	tok := strings.TrimSpace(os.Getenv(env))
	if tok == "" {
		return "", fmt.Errorf("account %q: token env %s is empty", a.Label, env)
	}
	return tok, nil
}

func (tf TargetsFile) PollInterval(def time.Duration) time.Duration {
	return secondsOr(tf.PollSeconds, def)
}

func (tf TargetsFile) StartupDeadline(def time.Duration) time.Duration {
	return secondsOr(tf.StartupDeadlineSeconds, def)
}

func (tf TargetsFile) RaceDeadline(def time.Duration) time.Duration {
	return secondsOr(tf.RaceDeadlineSeconds, def)
}

func secondsOr(n int, def time.Duration) time.Duration {
	if n <= 0 {
		return def
	}
	return time.Duration(n) * time.Second
}

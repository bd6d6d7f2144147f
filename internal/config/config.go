package config

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Mode selects which deployment state machine runs for an environment.
type Mode string

const (
	ModeContainer     Mode = "container"
	ModeStaticRelease Mode = "static-release"
)

// ServerEndpoint identifies one remote host. Read-only once resolved.
type ServerEndpoint struct {
	Host         string `mapstructure:"host" json:"host"`
	Port         int    `mapstructure:"port" json:"port,omitempty"`
	User         string `mapstructure:"user" json:"user"`
	IdentityFile string `mapstructure:"identity_file" json:"identity_file"`
	// PrivateHost, when set, is the address the proxy uses to reach the
	// workload; Host remains the control-plane address.
	PrivateHost string `mapstructure:"private_host" json:"private_host,omitempty"`
}

// Addr returns the control-plane address for SSH dialing.
func (e ServerEndpoint) Addr() string {
	port := e.Port
	if port == 0 {
		port = 22
	}
	return net.JoinHostPort(e.Host, strconv.Itoa(port))
}

// RouteHost returns the address the proxy should route traffic to.
func (e ServerEndpoint) RouteHost() string {
	if e.PrivateHost != "" {
		return e.PrivateHost
	}
	return e.Host
}

type HealthCheck struct {
	Path        string        `mapstructure:"path" json:"path,omitempty"`
	Interval    time.Duration `mapstructure:"interval" json:"interval"`
	MaxAttempts int           `mapstructure:"max_attempts" json:"max_attempts"`
}

type Registry struct {
	Provider string `mapstructure:"provider" json:"provider"`
	Server   string `mapstructure:"server" json:"server,omitempty"`
	Username string `mapstructure:"username" json:"username,omitempty"`
	Password string `mapstructure:"password" json:"password,omitempty"`
	// ECR
	AccountID string `mapstructure:"account_id" json:"account_id,omitempty"`
	Region    string `mapstructure:"region" json:"region,omitempty"`
	// GCR
	Project string `mapstructure:"project" json:"project,omitempty"`
	KeyFile string `mapstructure:"key_file" json:"key_file,omitempty"`
	// ACR
	ClientID     string `mapstructure:"client_id" json:"client_id,omitempty"`
	ClientSecret string `mapstructure:"client_secret" json:"client_secret,omitempty"`

	Repository string `mapstructure:"repository" json:"repository"`
	Tag        string `mapstructure:"tag" json:"tag"`
}

type Container struct {
	Registry    Registry      `mapstructure:"registry" json:"registry"`
	Port        int           `mapstructure:"port" json:"port"`
	EnvFile     string        `mapstructure:"env_file" json:"env_file,omitempty"`
	DeployDir   string        `mapstructure:"deploy_dir" json:"deploy_dir,omitempty"`
	HealthCheck HealthCheck   `mapstructure:"health_check" json:"health_check"`
	StopTimeout time.Duration `mapstructure:"stop_timeout" json:"stop_timeout"`
	// AutoRollback defaults to true; set false to keep a failed instance
	// around for inspection.
	AutoRollback *bool `mapstructure:"auto_rollback" json:"auto_rollback,omitempty"`
}

type Static struct {
	DeployRoot    string   `mapstructure:"deploy_root" json:"deploy_root"`
	Retain        int      `mapstructure:"retain" json:"retain"`
	Archive       string   `mapstructure:"archive" json:"archive"`
	RequiredFiles []string `mapstructure:"required_files" json:"required_files,omitempty"`
	SharedPaths   []string `mapstructure:"shared_paths" json:"shared_paths,omitempty"`
}

type TLS struct {
	CertPath string `mapstructure:"cert_path" json:"cert_path"`
	KeyPath  string `mapstructure:"key_path" json:"key_path"`
}

// ProxyTuning carries nginx knobs rendered into the site document.
type ProxyTuning struct {
	ConfigDir      string        `mapstructure:"config_dir" json:"config_dir,omitempty"`
	ReloadCommand  string        `mapstructure:"reload_command" json:"reload_command,omitempty"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout" json:"connect_timeout,omitempty"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout" json:"read_timeout,omitempty"`
	SendTimeout    time.Duration `mapstructure:"send_timeout" json:"send_timeout,omitempty"`
	BufferSize     string        `mapstructure:"buffer_size" json:"buffer_size,omitempty"`
	BodySizeLimit  string        `mapstructure:"body_size_limit" json:"body_size_limit,omitempty"`
}

// Environment is the resolved descriptor for one deployable environment.
// Immutable for the duration of a run.
type Environment struct {
	Product  string          `mapstructure:"-" json:"product"`
	Name     string          `mapstructure:"-" json:"name"`
	Mode     Mode            `mapstructure:"mode" json:"mode"`
	Domain   string          `mapstructure:"domain" json:"domain"`
	Proxy    ServerEndpoint  `mapstructure:"proxy" json:"proxy"`
	Workload *ServerEndpoint `mapstructure:"workload" json:"workload,omitempty"`

	Container *Container  `mapstructure:"container" json:"container,omitempty"`
	Static    *Static     `mapstructure:"static" json:"static,omitempty"`
	TLS       *TLS        `mapstructure:"tls" json:"tls,omitempty"`
	Tuning    ProxyTuning `mapstructure:"proxy_tuning" json:"proxy_tuning"`
}

// ServiceName is the logical upstream name rendered into proxy documents.
func (e *Environment) ServiceName() string {
	return fmt.Sprintf("%s_%s", e.Product, e.Name)
}

type History struct {
	Path string `mapstructure:"path" json:"path,omitempty"`
}

// Config is the full resolved configuration document.
type Config struct {
	Product      string                  `mapstructure:"product" json:"product"`
	Environments map[string]*Environment `mapstructure:"environments" json:"environments"`
	History      History                 `mapstructure:"history" json:"history"`
}

// Load reads and validates the configuration file at path. When path is
// empty, viper searches the working directory and $HOME/.slipway.
func Load(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("slipway")
		v.SetConfigType("yml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.slipway")
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if err := validateDocument(v.AllSettings()); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(decodeHook())); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	for name, env := range cfg.Environments {
		env.Product = cfg.Product
		env.Name = name
		applyDefaults(env)
		if err := env.validate(); err != nil {
			return nil, err
		}
	}

	return &cfg, nil
}

// Environment returns the descriptor for the named environment, failing with
// a configuration error when it does not exist.
func (c *Config) Environment(name string) (*Environment, error) {
	env, ok := c.Environments[name]
	if !ok {
		return nil, fmt.Errorf("environment %q is not defined in the configuration", name)
	}
	return env, nil
}

// ContainerEnv loads the environment's secret env file, if configured,
// and returns it as KEY=VALUE pairs for the container.
func (e *Environment) ContainerEnv() ([]string, error) {
	if e.Container == nil || e.Container.EnvFile == "" {
		return nil, nil
	}
	vars, err := godotenv.Read(e.Container.EnvFile)
	if err != nil {
		return nil, fmt.Errorf("reading env file %s: %w", e.Container.EnvFile, err)
	}
	pairs := make([]string, 0, len(vars))
	for k, v := range vars {
		pairs = append(pairs, fmt.Sprintf("%s=%s", k, v))
	}
	return pairs, nil
}

func applyDefaults(env *Environment) {
	if env.Tuning.ConfigDir == "" {
		env.Tuning.ConfigDir = "/etc/nginx/conf.d"
	}
	if env.Tuning.ReloadCommand == "" {
		env.Tuning.ReloadCommand = "sudo nginx -s reload"
	}
	if env.Container != nil {
		hc := &env.Container.HealthCheck
		if hc.Interval == 0 {
			hc.Interval = 2 * time.Second
		}
		if hc.MaxAttempts == 0 {
			hc.MaxAttempts = 30
		}
		if env.Container.StopTimeout == 0 {
			env.Container.StopTimeout = 30 * time.Second
		}
		if env.Container.DeployDir == "" {
			env.Container.DeployDir = fmt.Sprintf("/srv/%s", env.Product)
		}
	}
	if env.Static != nil && env.Static.Retain == 0 {
		env.Static.Retain = 5
	}
}

// validate enforces per-mode required fields before any remote command runs.
func (e *Environment) validate() error {
	if e.Domain == "" {
		return missingField(e.Name, "domain")
	}
	if e.Proxy.Host == "" {
		return missingField(e.Name, "proxy.host")
	}
	if e.Proxy.User == "" {
		return missingField(e.Name, "proxy.user")
	}
	switch e.Mode {
	case ModeContainer:
		if e.Workload == nil || e.Workload.Host == "" {
			return missingField(e.Name, "workload.host")
		}
		if e.Container == nil {
			return missingField(e.Name, "container")
		}
		if e.Container.Port == 0 {
			return missingField(e.Name, "container.port")
		}
		if e.Container.Registry.Repository == "" {
			return missingField(e.Name, "container.registry.repository")
		}
		if e.Container.Registry.Provider == "" {
			return missingField(e.Name, "container.registry.provider")
		}
	case ModeStaticRelease:
		if e.Static == nil {
			return missingField(e.Name, "static")
		}
		if e.Static.DeployRoot == "" {
			return missingField(e.Name, "static.deploy_root")
		}
	default:
		return fmt.Errorf("environment %s: unknown mode %q", e.Name, e.Mode)
	}
	if e.TLS != nil && (e.TLS.CertPath == "" || e.TLS.KeyPath == "") {
		return missingField(e.Name, "tls.cert_path/tls.key_path")
	}
	return nil
}

func missingField(env, field string) error {
	return fmt.Errorf("environment %s: missing required field %s", env, field)
}

package registry

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/docker/docker/api/types/registry"
	"github.com/rs/zerolog/log"

	"github.com/slipway-sh/slipway/internal/config"
)

// Provider selects the authentication handshake for a container registry.
type Provider string

const (
	ProviderBasic Provider = "basic"
	ProviderECR   Provider = "ecr"
	ProviderGCR   Provider = "gcr"
	ProviderACR   Provider = "acr"
)

// TokenRunner executes a token-exchange command on the workload host. The
// cloud providers mint short-lived registry passwords through their CLIs
// there, so the host doing the pull is the one that authenticates.
type TokenRunner interface {
	RunCommand(ctx context.Context, command string) (string, error)
}

// Credential is resolved registry auth material. It lives for the duration
// of one authenticate+pull step and is never persisted.
type Credential struct {
	Provider Provider
	Server   string
	Username string
	Password string
}

// Resolve checks provider selection and required fields before any remote
// command is issued. A missing field is a configuration error carrying the
// field name.
func Resolve(cfg *config.Registry) (*Credential, error) {
	provider := Provider(cfg.Provider)
	switch provider {
	case ProviderBasic:
		if cfg.Username == "" || cfg.Password == "" {
			return nil, missingField(provider, "username/password")
		}
		return &Credential{
			Provider: provider,
			Server:   cfg.Server,
			Username: cfg.Username,
			Password: cfg.Password,
		}, nil
	case ProviderECR:
		if cfg.AccountID == "" {
			return nil, missingField(provider, "account_id")
		}
		if cfg.Region == "" {
			return nil, missingField(provider, "region")
		}
		return &Credential{
			Provider: provider,
			Server:   fmt.Sprintf("%s.dkr.ecr.%s.amazonaws.com", cfg.AccountID, cfg.Region),
			Username: "AWS",
		}, nil
	case ProviderGCR:
		if cfg.Project == "" {
			return nil, missingField(provider, "project")
		}
		server := cfg.Server
		if server == "" {
			server = "gcr.io"
		}
		cred := &Credential{Provider: provider, Server: server}
		if cfg.KeyFile != "" {
			cred.Username = "_json_key"
		} else {
			cred.Username = "oauth2accesstoken"
		}
		return cred, nil
	case ProviderACR:
		if cfg.Server == "" {
			return nil, missingField(provider, "server")
		}
		if cfg.ClientID == "" || cfg.ClientSecret == "" {
			return nil, missingField(provider, "client_id/client_secret")
		}
		return &Credential{
			Provider: provider,
			Server:   cfg.Server,
			Username: cfg.ClientID,
			Password: cfg.ClientSecret,
		}, nil
	default:
		return nil, fmt.Errorf("unknown registry provider %q", cfg.Provider)
	}
}

// Login completes the credential. For basic and acr the secret material is
// already in hand; ecr and gcr exchange a short-lived token on the workload
// host. Post-condition is uniform: AuthHeader yields auth that makes the
// subsequent pull succeed.
func (c *Credential) Login(ctx context.Context, cfg *config.Registry, runner TokenRunner) error {
	switch c.Provider {
	case ProviderBasic, ProviderACR:
		return nil
	case ProviderECR:
		command := fmt.Sprintf("aws ecr get-login-password --region %s", cfg.Region)
		token, err := runner.RunCommand(ctx, command)
		if err != nil {
			return fmt.Errorf("ecr token exchange: %w", err)
		}
		c.Password = strings.TrimSpace(token)
		return nil
	case ProviderGCR:
		var command string
		if cfg.KeyFile != "" {
			command = fmt.Sprintf("cat %s", cfg.KeyFile)
		} else {
			command = "gcloud auth print-access-token"
		}
		token, err := runner.RunCommand(ctx, command)
		if err != nil {
			return fmt.Errorf("gcr token exchange: %w", err)
		}
		c.Password = strings.TrimSpace(token)
		return nil
	default:
		return fmt.Errorf("unknown registry provider %q", c.Provider)
	}
}

// AuthHeader encodes the credential the way the runtime expects it on a
// pull request.
func (c *Credential) AuthHeader() (string, error) {
	if c.Password == "" {
		return "", fmt.Errorf("credential for %s is not logged in", c.Server)
	}
	auth := registry.AuthConfig{
		Username:      c.Username,
		Password:      c.Password,
		ServerAddress: c.Server,
	}
	encoded, err := json.Marshal(auth)
	if err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(encoded), nil
}

// ImageURI builds the canonical image reference for a provider and tag.
func ImageURI(cfg *config.Registry, tag string) (string, error) {
	if tag == "" {
		tag = cfg.Tag
	}
	if tag == "" {
		tag = "latest"
	}

	switch Provider(cfg.Provider) {
	case ProviderBasic:
		if cfg.Server == "" {
			return fmt.Sprintf("%s:%s", cfg.Repository, tag), nil
		}
		return fmt.Sprintf("%s/%s:%s", cfg.Server, cfg.Repository, tag), nil
	case ProviderECR:
		return fmt.Sprintf("%s.dkr.ecr.%s.amazonaws.com/%s:%s", cfg.AccountID, cfg.Region, cfg.Repository, tag), nil
	case ProviderGCR:
		server := cfg.Server
		if server == "" {
			server = "gcr.io"
		}
		return fmt.Sprintf("%s/%s/%s:%s", server, cfg.Project, cfg.Repository, tag), nil
	case ProviderACR:
		return fmt.Sprintf("%s/%s:%s", cfg.Server, cfg.Repository, tag), nil
	default:
		return "", fmt.Errorf("unknown registry provider %q", cfg.Provider)
	}
}

// Authenticate is the full resolve+login step used by the orchestrator.
func Authenticate(ctx context.Context, cfg *config.Registry, runner TokenRunner) (*Credential, error) {
	cred, err := Resolve(cfg)
	if err != nil {
		return nil, err
	}
	if err := cred.Login(ctx, cfg, runner); err != nil {
		return nil, err
	}
	log.Debug().Str("server", cred.Server).Str("provider", string(cred.Provider)).Msg("registry authenticated")
	return cred, nil
}

func missingField(provider Provider, field string) error {
	return fmt.Errorf("registry provider %s: missing required field %s", provider, field)
}

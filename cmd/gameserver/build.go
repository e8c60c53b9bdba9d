package main

import (
	"context"
	"fmt"
	"os"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/redis/go-redis/v9"

	"github.com/foldnet/gameserver/internal/actionlog"
	"github.com/foldnet/gameserver/internal/cache"
	"github.com/foldnet/gameserver/internal/config"
	"github.com/foldnet/gameserver/internal/domain"
	"github.com/foldnet/gameserver/internal/modprovider"
	"github.com/foldnet/gameserver/internal/sandbox"
	"github.com/foldnet/gameserver/internal/tokensource"
)

// loadConfig applies the standard layering: defaults, then an optional
// file, then environment overrides.
func loadConfig() (*config.Config, error) {
	cfg := config.DefaultConfig()
	if configFile != "" {
		var err error
		cfg, err = config.LoadFromFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
	}
	config.LoadFromEnv(cfg)
	return cfg, nil
}

// actionLog is the subset every caller needs: Append/Fetch/Len/Watch.
type actionLog interface {
	Append(ctx context.Context, moduleID domain.ModuleId, action domain.ActionBlob) (uint64, error)
	Fetch(ctx context.Context, index uint64) (domain.LogEntry, error)
	Len(ctx context.Context) (uint64, error)
	Watch(ctx context.Context, from uint64) (<-chan uint64, error)
	Close() error
}

// buildActionLog constructs the action log backend named by cfg.
func buildActionLog(ctx context.Context, cfg config.ActionLogConfig) (actionLog, error) {
	switch cfg.Backend {
	case "postgres":
		return actionlog.NewPostgres(ctx, cfg.DSN)
	case "local", "":
		return actionlog.NewLocal(), nil
	default:
		return nil, fmt.Errorf("unknown action_log backend %q", cfg.Backend)
	}
}

// buildModuleProvider constructs the module provider named by cfg,
// optionally wrapping it in the shared cache.Cache abstraction.
func buildModuleProvider(ctx context.Context, cfg config.ModuleProviderConfig) (modprovider.Provider, error) {
	var provider modprovider.Provider

	switch cfg.Backend {
	case "s3":
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		client := s3.NewFromConfig(awsCfg)
		provider = modprovider.NewS3(client, cfg.Bucket, cfg.Prefix)
	case "filesystem", "":
		provider = modprovider.NewFilesystem(cfg.RootDir, domain.ModuleId(cfg.DefaultModule))
	default:
		return nil, fmt.Errorf("unknown module_provider backend %q", cfg.Backend)
	}

	if cfg.CacheTTL > 0 {
		backend, err := buildModuleCache(cfg)
		if err != nil {
			return nil, err
		}
		provider = modprovider.NewCached(provider, backend, cfg.CacheTTL)
	}
	return provider, nil
}

// buildModuleCache constructs the L1 cache backing a cached module
// provider, optionally tiering it in front of a shared Redis L2 and
// starting a CacheInvalidator that evicts L1 entries whose keys are
// published on its Redis channel. Loading a module through this cache
// does not publish its key, so it evicts nothing on other nodes.
func buildModuleCache(cfg config.ModuleProviderConfig) (cache.Cache, error) {
	l1 := cache.NewInMemoryCache()

	switch cfg.CacheBackend {
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
		l2 := cache.NewRedisCacheFromClient(client, "")
		go cache.NewCacheInvalidator(l1, client).Start(context.Background())
		return cache.NewTieredCache(l1, l2, 0), nil
	case "memory", "":
		return l1, nil
	default:
		return nil, fmt.Errorf("unknown cache_backend %q", cfg.CacheBackend)
	}
}

// buildSandboxRunner constructs the sandbox runner wired to provider.
func buildSandboxRunner(cfg config.SandboxConfig, provider modprovider.Provider, outputs *sandbox.OutputSink) *sandbox.Runner {
	return sandbox.NewRunner(sandbox.Config{
		AgentPath:  cfg.AgentPath,
		RunTimeout: cfg.RunTimeout,
	}, provider, sandbox.PassthroughCompiler{}, outputs)
}

// buildTokenSource constructs the credential source named by cfg. A
// "literal" source is only useful for local testing; deployments should
// configure "jwt" or "instance_metadata".
func buildTokenSource(ctx context.Context, cfg config.TokenSourceConfig) (*tokensource.Source, error) {
	var authority tokensource.Authority

	switch cfg.CredentialSource {
	case "jwt":
		keyBytes, err := os.ReadFile(cfg.ServiceAccountKeyFile)
		if err != nil {
			return nil, fmt.Errorf("read service account key: %w", err)
		}
		key, err := tokensource.ParseServiceAccountKey(keyBytes)
		if err != nil {
			return nil, err
		}
		if cfg.Audience != "" {
			key.Audience = cfg.Audience
		}
		jwtAuthority, err := tokensource.NewJWT(key)
		if err != nil {
			return nil, err
		}
		authority = jwtAuthority
	case "instance_metadata":
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		authority = tokensource.NewInstanceMetadata(awsCfg.Credentials)
	case "literal", "":
		authority = literalAuthority(cfg.Literal)
	default:
		return nil, fmt.Errorf("unknown token_source credential_source %q", cfg.CredentialSource)
	}

	return tokensource.New(authority), nil
}

// literalAuthority always returns the same fixed token with a far-future
// expiry, for local development where no real issuer is configured.
type literalAuthority string

func (a literalAuthority) Fetch(ctx context.Context) (domain.Credential, error) {
	return domain.Credential{Token: string(a), ExpiresAt: time.Now().Add(24 * time.Hour).Unix()}, nil
}


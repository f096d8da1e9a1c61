package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/afero"

	"github.com/wthorbecke/gather/backend/analytics"
	"github.com/wthorbecke/gather/backend/breakdown"
	"github.com/wthorbecke/gather/backend/conversation"
	"github.com/wthorbecke/gather/backend/event"
	"github.com/wthorbecke/gather/backend/model"
	"github.com/wthorbecke/gather/backend/preference"
	"github.com/wthorbecke/gather/backend/recall"
	"github.com/wthorbecke/gather/backend/task"
	"github.com/wthorbecke/gather/shared/keyring"
)

const (
	secretAnthropicKey = "anthropic-api-key"
	secretOpenAIKey    = "openai-api-key"

	defaultAnthropicModel = "claude-3-5-sonnet-latest"
	defaultOpenAIModel    = "gpt-4o-mini"

	recallCacheSize = 256
)

// app bundles the wired engine for the interactive commands.
type app struct {
	store        *task.SQLiteStore
	router       *event.Router
	orchestrator *conversation.Orchestrator
	analytics    *analytics.Emitter
}

func (a *app) Close() {
	a.router.Close()
	a.analytics.Close()
	if err := a.store.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to close task store: %v\n", err)
	}
}

// newApp wires the conversation engine from the data dir, the keyring, and
// the environment.
func newApp(ctx context.Context, options *globalOptions) (*app, error) {
	provider, modelName, err := resolveProvider()
	if err != nil {
		return nil, err
	}

	store, err := task.NewSQLiteStore(ctx, filepath.Join(options.DataDir, "tasks.db"))
	if err != nil {
		return nil, err
	}

	prefs, err := preference.NewStore(afero.NewOsFs(), filepath.Join(options.DataDir, "preferences.yaml"))
	if err != nil {
		store.Close()
		return nil, err
	}

	memory, err := recall.NewService(recall.NewTaskSource(store), recallCacheSize)
	if err != nil {
		store.Close()
		return nil, err
	}

	router := event.NewRouter(event.DefaultChannelBufferSize,
		event.WithMetrics(event.NewRouterMetrics(prometheus.NewRegistry())),
	)
	emitter := analytics.NewEmitter(os.Getenv("GATHER_POSTHOG_KEY"), machineUser())

	orchestrator := conversation.NewOrchestrator(conversation.Config{
		Provider:    provider,
		ModelName:   modelName,
		Store:       store,
		Recall:      memory,
		Generator:   breakdown.NewGenerator(provider, modelName),
		Classifier:  conversation.NewClassifier(provider, modelName),
		Router:      router,
		Analytics:   emitter,
		Preferences: prefs,
		Questions:   conversation.DefaultQuestions,
	})

	return &app{
		store:        store,
		router:       router,
		orchestrator: orchestrator,
		analytics:    emitter,
	}, nil
}

// resolveProvider prefers Anthropic and falls back to OpenAI. Keys come
// from the keyring first, then the environment.
func resolveProvider() (model.Provider, string, error) {
	secrets := keyring.NewKeyringProvider()
	metrics := prometheus.NewRegistry()

	if key := lookupKey(secrets, secretAnthropicKey, "ANTHROPIC_API_KEY"); key != "" {
		provider, err := model.NewAnthropicProvider(key, model.WithMetrics(metrics))
		if err != nil {
			return nil, "", err
		}
		return provider, defaultAnthropicModel, nil
	}

	if key := lookupKey(secrets, secretOpenAIKey, "OPENAI_API_KEY"); key != "" {
		provider, err := model.NewOpenAIProvider(key, model.WithMetrics(metrics))
		if err != nil {
			return nil, "", err
		}
		return provider, defaultOpenAIModel, nil
	}

	return nil, "", fmt.Errorf("no API key configured\n\nTo get started:\n  • Run 'gather auth set-key anthropic' to store an Anthropic key\n  • Or set ANTHROPIC_API_KEY / OPENAI_API_KEY in the environment")
}

func lookupKey(secrets keyring.Provider, secretName, envName string) string {
	key, err := secrets.Get(secretName)
	if err == nil && key != "" {
		return key
	}
	if err != nil && !errors.Is(err, &keyring.ErrSecretNotFound{}) {
		fmt.Fprintf(os.Stderr, "keyring lookup failed, falling back to environment: %v\n", err)
	}
	return os.Getenv(envName)
}

// machineUser is a stable, non-identifying analytics id.
func machineUser() string {
	hostname, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return hostname
}

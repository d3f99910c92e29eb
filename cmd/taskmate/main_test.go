package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odvcencio/taskmate/pkg/api"
	"github.com/odvcencio/taskmate/pkg/bus"
	"github.com/odvcencio/taskmate/pkg/config"
	apperrors "github.com/odvcencio/taskmate/pkg/errors"
	"github.com/odvcencio/taskmate/pkg/logging"
	"github.com/odvcencio/taskmate/pkg/model"
	"github.com/odvcencio/taskmate/pkg/telemetry"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type cannedModel struct {
	mu      sync.Mutex
	replies []string
}

func (m *cannedModel) Generate(ctx context.Context, req model.Request) (*model.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.replies) == 0 {
		return &model.Response{Text: "OK."}, nil
	}
	text := m.replies[0]
	m.replies = m.replies[1:]
	return &model.Response{Text: text}, nil
}

func cannedFactory(gen model.Generator) generatorFactory {
	return func(context.Context, *config.Config, zerolog.Logger, *telemetry.Metrics) (model.Generator, error) {
		return gen, nil
	}
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Storage.DSN = ":memory:"
	cfg.Auth.Secret = testSecret
	cfg.Telemetry.Tracing = false
	return cfg
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestExitCodeForError(t *testing.T) {
	assert.Equal(t, 0, exitCodeForError(nil))
	assert.Equal(t, exitFailure, exitCodeForError(errors.New("boom")))
	assert.Equal(t, exitConfig, exitCodeForError(withExitCode(errors.New("bad"), exitConfig)))
	assert.Equal(t, exitConfig, exitCodeForError(apperrors.New(apperrors.ErrCodeConfigInvalid, "bad")))
	assert.Equal(t, exitConfig, exitCodeForError(fmt.Errorf("load: %w", apperrors.New(apperrors.ErrCodeConfigLoad, "bad"))))
	assert.Equal(t, exitFailure, exitCodeForError(exitError{err: errors.New("zero code")}))
	assert.Nil(t, withExitCode(nil, exitConfig))
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})
	require.NoError(t, cmd.Execute())
	assert.Equal(t, "taskmate dev (none)\n", out.String())
}

func TestTokenCommand(t *testing.T) {
	path := writeConfig(t, "auth:\n  secret: "+testSecret+"\n  issuer: test\nstorage:\n  dsn: \":memory:\"\n")

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--config", path, "token", "--user", "alice", "--ttl", "1h"})
	require.NoError(t, cmd.Execute())

	claims, err := api.NewTokenManager(testSecret, "test").Validate(strings.TrimSpace(out.String()))
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.UserID)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt.Time, time.Minute)
}

func TestTokenCommand_NoSecret(t *testing.T) {
	path := writeConfig(t, "storage:\n  dsn: \":memory:\"\n")

	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"--config", path, "token", "--user", "alice"})
	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, exitConfig, exitCodeForError(err))
}

func TestLoadConfig_Missing(t *testing.T) {
	_, err := loadConfig(&rootOptions{configPath: filepath.Join(t.TempDir(), "nope.yaml")})
	require.Error(t, err)
	assert.Equal(t, exitConfig, exitCodeForError(err))
}

func TestLoadConfig_FlagOverrides(t *testing.T) {
	path := writeConfig(t, "logging:\n  level: info\n")
	cfg, err := loadConfig(&rootOptions{configPath: path, logLevel: "debug", logFormat: "console"})
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "console", cfg.Logging.Format)
}

func TestOpenRepository(t *testing.T) {
	ctx := context.Background()

	repo, err := openRepository(ctx, config.StorageConfig{Driver: "sqlite", DSN: ":memory:"})
	require.NoError(t, err)
	require.NoError(t, repo.Close())

	_, err = openRepository(ctx, config.StorageConfig{Driver: "mongo", DSN: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mongo")
}

func TestNewApp_GeneratorError(t *testing.T) {
	failing := func(context.Context, *config.Config, zerolog.Logger, *telemetry.Metrics) (model.Generator, error) {
		return nil, errors.New("no model")
	}
	_, err := newApp(context.Background(), testConfig(t), logging.Nop(), failing)
	require.EqualError(t, err, "no model")
}

func TestRunChat_ProposeAndConfirm(t *testing.T) {
	ctx := context.Background()
	gen := &cannedModel{replies: []string{
		"Sure, adding it.\n" +
			`<ACTIONS>[{"type":"create_task","data":{"title":"Call mom","priority":"high"}}]</ACTIONS>`,
	}}
	a, err := newApp(ctx, testConfig(t), logging.Nop(), cannedFactory(gen))
	require.NoError(t, err)
	defer a.Close()

	in := strings.NewReader("add a task to call mom\n/pending\nyes\n/pending\n/quit\nnever read\n")
	var out bytes.Buffer
	require.NoError(t, runChat(ctx, a.orch, "local", in, &out))

	transcript := out.String()
	assert.Contains(t, transcript, "Sure, adding it.")
	assert.Contains(t, transcript, "pending: 1 create task")
	assert.Contains(t, transcript, "1 pending (create_task)")
	assert.Contains(t, transcript, "nothing pending")
	assert.NotContains(t, transcript, "never read")

	tasks, err := a.repo.ListTasks(ctx, "local", 10)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "Call mom", tasks[0].Title)
}

func TestRunChat_EOFAndPublicErrors(t *testing.T) {
	ctx := context.Background()
	a, err := newApp(ctx, testConfig(t), logging.Nop(), cannedFactory(model.GeneratorFunc(
		func(context.Context, model.Request) (*model.Response, error) {
			return nil, errors.New("upstream down")
		})))
	require.NoError(t, err)
	defer a.Close()

	var out bytes.Buffer
	require.NoError(t, runChat(ctx, a.orch, "local", strings.NewReader("\nhello\n"), &out))
	assert.Contains(t, out.String(), "Could not process message. Please try again.")
	assert.NotContains(t, out.String(), "upstream down")
}

func TestLogEvents(t *testing.T) {
	mb := bus.NewMemoryBus()
	defer mb.Close()

	var logs bytes.Buffer
	logger := zerolog.New(&syncWriter{w: &logs})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- logEvents(ctx, mb, "", logger) }()

	pub := bus.NewPublisher(mb, "", logging.Nop())
	require.Eventually(t, func() bool {
		_ = pub.Publish(context.Background(), bus.TypeTaskCreated, "alice", map[string]string{"entityId": "t1"})
		return strings.Contains(logs.String(), bus.TypeTaskCreated)
	}, time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("logEvents did not return after cancel")
	}
}

type syncWriter struct {
	mu sync.Mutex
	w  *bytes.Buffer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

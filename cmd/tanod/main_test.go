package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lborres/tanod/core"
	"github.com/lborres/tanod/pkg/config"
)

type cliEnv struct {
	environ map[string]string
}

func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	return &cliEnv{environ: map[string]string{
		"TANOD_STORAGE":   config.StorageCSV,
		"TANOD_DATA_DIR":  t.TempDir(),
		"TANOD_HASHER":    config.HasherBCrypt,
		"TANOD_CACHE":     config.CacheNone,
		"TANOD_LOG_LEVEL": "error",
	}}
}

func (e *cliEnv) load() (config.Config, error) {
	return config.LoadFrom(e.environ)
}

func (e *cliEnv) run(t *testing.T, stdin string, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, strings.NewReader(stdin), &stdout, &stderr, e.load)
	return code, stdout.String(), stderr.String()
}

func (e *cliEnv) mustRun(t *testing.T, stdin string, args ...string) string {
	t.Helper()
	code, stdout, stderr := e.run(t, stdin, args...)
	require.Equal(t, 0, code, "tanod %s failed: %s", strings.Join(args, " "), stderr)
	return strings.TrimSpace(stdout)
}

func TestRunUsage(t *testing.T) {
	env := newCLIEnv(t)

	tests := []struct {
		name     string
		args     []string
		wantCode int
	}{
		{name: "no command", args: nil, wantCode: 2},
		{name: "help", args: []string{"help"}, wantCode: 0},
		{name: "unknown command", args: []string{"frobnicate"}, wantCode: 2},
		{name: "missing required flag", args: []string{"register"}, wantCode: 2},
		{name: "unknown flag", args: []string{"list", "-verbose"}, wantCode: 2},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			code, _, stderr := env.run(t, "", test.args...)

			assert.Equal(t, test.wantCode, code)
			assert.NotEmpty(t, stderr)
		})
	}
}

func TestRunInvalidConfig(t *testing.T) {
	env := newCLIEnv(t)
	env.environ["TANOD_STORAGE"] = "floppy"

	code, _, stderr := env.run(t, "", "list")

	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "invalid config")
}

// Requirement: the CLI drives the whole account lifecycle over a persistent store.
func TestRunAccountLifecycle(t *testing.T) {
	env := newCLIEnv(t)

	id := env.mustRun(t, "password1\n", "register", "-email", "a@x.com", "-name", "A", "-profession", "Weaver")
	require.NotEmpty(t, id)

	code, _, stderr := env.run(t, "other-pw\n", "register", "-email", "A@X.com")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, core.ErrEmailTaken.Error())

	token := env.mustRun(t, "password1\n", "login", "-email", "a@x.com")
	require.NotEmpty(t, token)

	out := env.mustRun(t, "", "validate", "-token", token)
	assert.True(t, strings.HasPrefix(out, "valid\t"+id), out)

	var acc core.Account
	require.NoError(t, json.Unmarshal([]byte(env.mustRun(t, "", "whoami", "-token", token)), &acc))
	assert.Equal(t, "a@x.com", acc.Email)
	assert.Equal(t, "Weaver", acc.Profile.Profession)

	env.mustRun(t, "password1\npassword2\n", "passwd", "-token", token)
	code, _, _ = env.run(t, "password1\n", "login", "-email", "a@x.com")
	assert.Equal(t, 1, code, "old password must stop working")
	second := env.mustRun(t, "password2\n", "login", "-email", "a@x.com")

	env.mustRun(t, "", "logout", "-token", token)
	code, _, stderr = env.run(t, "", "validate", "-token", token)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, core.ErrUnauthenticated.Error())

	out = env.mustRun(t, "", "sweep")
	assert.Equal(t, "removed 1 sessions", out)

	env.mustRun(t, "password2\n", "deactivate", "-token", second)
	code, _, stderr = env.run(t, "password2\n", "login", "-email", "a@x.com")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, core.ErrAccountDeactivated.Error())

	list := env.mustRun(t, "", "list")
	assert.Contains(t, list, id)
	assert.Contains(t, list, "false")
}

func TestRunWeakSecret(t *testing.T) {
	env := newCLIEnv(t)

	code, _, stderr := env.run(t, "1234567\n", "register", "-email", "short@x.com")

	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, core.ErrWeakSecret.Error())
}

func TestWhoamiWithoutToken(t *testing.T) {
	env := newCLIEnv(t)
	t.Setenv("TANOD_TOKEN", "")

	code, _, stderr := env.run(t, "", "whoami")

	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "no token given")
}

func TestReadSecretFromPipe(t *testing.T) {
	env := newCLIEnv(t)
	cfg, err := env.load()
	require.NoError(t, err)

	var stderr bytes.Buffer
	a, err := newApp(context.Background(), cfg, strings.NewReader("first\r\nlast"), io.Discard, &stderr)
	require.NoError(t, err)
	defer a.close()

	got, err := a.readSecret("Password: ")
	require.NoError(t, err)
	assert.Equal(t, "first", got)

	got, err = a.readSecret("Password: ")
	require.NoError(t, err)
	assert.Equal(t, "last", got, "a final line without newline still counts")

	_, err = a.readSecret("Password: ")
	assert.ErrorIs(t, err, io.EOF)
	assert.Contains(t, stderr.String(), "Password: ")
}

func TestServerRoutes(t *testing.T) {
	env := newCLIEnv(t)
	cfg, err := env.load()
	require.NoError(t, err)
	a, err := newApp(context.Background(), cfg, strings.NewReader(""), io.Discard, io.Discard)
	require.NoError(t, err)
	defer a.close()

	srv, err := newServer(a)
	require.NoError(t, err)

	resp, err := srv.Test(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = srv.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "tanod_sessions_created_total")
	assert.Contains(t, string(body), "go_goroutines")

	resp, err = srv.Test(httptest.NewRequest(http.MethodGet, cfg.BasePath+"/session", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

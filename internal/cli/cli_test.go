package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"teleecho/internal/pairing"
	"teleecho/internal/storage"
	kit "teleecho/internal/transport"
	"teleecho/internal/transport/telegram/adapter"
	logx "teleecho/pkg/logx"
)

type fakeClient struct {
	mu       sync.Mutex
	cfgs     []adapter.Config
	sent     []string
	targets  []int64
	incoming []kit.Message
}

func (f *fakeClient) factory(cfg adapter.Config, _ logx.Logger) (kit.Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cfgs = append(f.cfgs, cfg)
	return f, nil
}

func (f *fakeClient) SendText(_ context.Context, to kit.ChatTarget, text string) (kit.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, text)
	f.targets = append(f.targets, to.ChatID)
	return kit.MessageRef{ChatID: to.ChatID, MessageID: len(f.sent), Text: text}, nil
}

func (f *fakeClient) EditText(_ context.Context, ref kit.MessageRef, text string) (kit.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, "edit:"+text)
	ref.Text = text
	return ref, nil
}

func (f *fakeClient) Me(context.Context) (kit.Identity, error) {
	return kit.Identity{ID: 1, Username: "relay_bot"}, nil
}

func (f *fakeClient) Poll(_ context.Context, fn func(kit.Message) kit.PollAction) error {
	for _, m := range f.incoming {
		if fn(m) == kit.PollStop {
			return nil
		}
	}
	return nil
}

func executeCLI(t *testing.T, home string, stdin string, client *fakeClient, args ...string) (string, error) {
	t.Helper()
	t.Setenv("HOME", home)
	t.Setenv("NOTIFY_SOCKET", "")
	t.Setenv("TELEECHO_LOG_LEVEL", "error")

	if client == nil {
		client = &fakeClient{}
	}
	root := NewRootCmd(
		WithClientFactory(client.factory),
		WithStdin(strings.NewReader(stdin)),
		WithPairingOptions(pairing.WithCode(func() int { return 31337 })),
	)
	stdout := &bytes.Buffer{}
	root.SetOut(stdout)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(args)

	err := root.ExecuteContext(context.Background())
	return stdout.String(), err
}

func writeConnections(t *testing.T, home, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(home, ".teleecho.conf"), []byte(body), 0o600))
}

func writeSettings(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestListAndRemove(t *testing.T) {
	home := t.TempDir()
	writeConnections(t, home, `[["laptop","1:a",10],["server","2:b",20]]`)

	out, err := executeCLI(t, home, "", nil, "list")
	require.NoError(t, err)
	assert.Equal(t, "laptop\nserver\n", out)

	_, err = executeCLI(t, home, "", nil, "remove", "laptop")
	require.NoError(t, err)

	out, err = executeCLI(t, home, "", nil, "list")
	require.NoError(t, err)
	assert.Equal(t, "server\n", out)

	_, err = executeCLI(t, home, "", nil, "remove", "laptop")
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestNewPairsAndStores(t *testing.T) {
	home := t.TempDir()
	client := &fakeClient{incoming: []kit.Message{
		{ChatID: 5, Text: "12"},
		{ChatID: 77, FromName: "me", Text: "31337"},
	}}

	out, err := executeCLI(t, home, "", client, "new", "999:token", "my box")
	require.NoError(t, err)
	assert.Contains(t, out, "send the following number to the relay_bot bot:\t31337")
	assert.Contains(t, out, "new connection successfully created: my-box")
	assert.Equal(t, []string{"correct number!"}, client.sent)

	st, err := storage.Open(storage.Config{Path: filepath.Join(home, ".teleecho.conf")}, logx.Nop())
	require.NoError(t, err)
	c, err := st.Lookup(context.Background(), "my-box")
	require.NoError(t, err)
	assert.Equal(t, storage.Connection{Name: "my-box", Token: "999:token", ChatID: 77}, c)
}

func TestNewRejectsTakenNameBeforePairing(t *testing.T) {
	home := t.TempDir()
	writeConnections(t, home, `[["box","1:a",10]]`)
	client := &fakeClient{}

	_, err := executeCLI(t, home, "", client, "new", "2:b", "box")
	require.ErrorIs(t, err, storage.ErrExists)
	assert.Empty(t, client.cfgs, "no client may be built for a taken name")
}

func TestRelayForwardsStdin(t *testing.T) {
	home := t.TempDir()
	writeConnections(t, home, `[["only","1:a",4242]]`)
	settings := writeSettings(t, home, "relay:\n  send_interval: 0s\n")
	client := &fakeClient{}

	_, err := executeCLI(t, home, "one\ntwo\nfinal", client, "--settings", settings)
	require.NoError(t, err)

	require.NotEmpty(t, client.sent)
	assert.Equal(t, "one\ntwo\nfinal", strings.Join(client.sent, "\n"))
	for _, id := range client.targets {
		assert.Equal(t, int64(4242), id)
	}
	require.Len(t, client.cfgs, 1)
	assert.Equal(t, "1:a", client.cfgs[0].Token)
	assert.True(t, client.cfgs[0].Offline)
}

func TestRelayPicksNamedConnection(t *testing.T) {
	home := t.TempDir()
	writeConnections(t, home, `[["a","1:a",1],["b","2:b",2]]`)
	settings := writeSettings(t, home, "relay:\n  send_interval: 0s\n")

	_, err := executeCLI(t, home, "x\n", &fakeClient{}, "--settings", settings)
	require.ErrorIs(t, err, storage.ErrAmbiguous)

	client := &fakeClient{}
	_, err = executeCLI(t, home, "x\n", client, "--settings", settings, "b")
	require.NoError(t, err)
	assert.Equal(t, []int64{2}, client.targets)
}

func TestRelayUnknownConnection(t *testing.T) {
	home := t.TempDir()
	_, err := executeCLI(t, home, "", nil, "missing")
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestConfigFlagSelectsFormat(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "conns.toml")
	require.NoError(t, os.WriteFile(path, []byte("[[connections]]\nname = 'toml'\ntoken = 't'\nchat_id = 3\n"), 0o600))

	out, err := executeCLI(t, dir, "", nil, "-c", path, "list")
	require.NoError(t, err)
	assert.Equal(t, "toml\n", out)
}

func TestSQLiteDriverFromSettings(t *testing.T) {
	home := t.TempDir()
	settings := writeSettings(t, home, "storage:\n  driver: sqlite\n")
	client := &fakeClient{incoming: []kit.Message{{ChatID: 9, Text: "31337"}}}

	_, err := executeCLI(t, home, "", client, "--settings", settings, "new", "1:a", "db")
	require.NoError(t, err)

	out, err := executeCLI(t, home, "", nil, "--settings", settings, "list")
	require.NoError(t, err)
	assert.Equal(t, "db\n", out)
	_, err = os.Stat(filepath.Join(home, ".teleecho.db"))
	assert.NoError(t, err)
}

func TestInvalidSettingsFail(t *testing.T) {
	home := t.TempDir()
	settings := writeSettings(t, home, "relay:\n  bogus: 1\n")
	_, err := executeCLI(t, home, "", nil, "--settings", settings, "list")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "while loading settings")
}

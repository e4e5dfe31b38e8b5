package cli_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/servicedesk/admin"
	"github.com/jrsteele09/servicedesk/client"
	"github.com/jrsteele09/servicedesk/identity"
	"github.com/jrsteele09/servicedesk/identity/memgateway"
	"github.com/jrsteele09/servicedesk/internal/cli"
	"github.com/jrsteele09/servicedesk/internal/config"
	"github.com/jrsteele09/servicedesk/users"
	fakeuserrepo "github.com/jrsteele09/servicedesk/users/repofake"
)

// backend is shared by every command of a test, standing in for a real identity
// provider and database that outlive each process
type backend struct {
	gw   *memgateway.Gateway
	repo *fakeuserrepo.FakeUserRepo
}

func newBackend(t *testing.T) *backend {
	t.Helper()
	t.Setenv("SERVICEDESK_CONFIG", "")
	t.Setenv("LOG_LEVEL", "disabled")

	gw, err := memgateway.New()
	require.NoError(t, err)
	t.Cleanup(gw.Close)
	return &backend{gw: gw, repo: fakeuserrepo.NewFakeUserRepo()}
}

func (b *backend) factory(ctx context.Context, cfg config.Config, opts ...client.Option) (*client.Client, error) {
	return client.New(ctx, cfg, append(opts, client.WithGateway(b.gw), client.WithProfileRepo(b.repo))...)
}

func (b *backend) run(t *testing.T, ctx context.Context, args ...string) (string, error) {
	t.Helper()
	cmd := cli.NewRootCommand(b.factory)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	return out.String(), err
}

// seedAdmin creates an admin account and leaves it signed in
func (b *backend) seedAdmin(t *testing.T) string {
	t.Helper()
	ctx := context.Background()
	res, err := b.gw.SignUp(ctx, "eve@example.com", "secret1", identity.Metadata{Name: "Eve", Role: "admin"})
	require.NoError(t, err)
	require.NoError(t, b.repo.Insert(ctx, &users.User{ID: res.UserID, Name: "Eve", Email: "eve@example.com", Role: users.RoleAdmin}))
	return res.UserID
}

func TestSessionCommands(t *testing.T) {
	b := newBackend(t)
	ctx := context.Background()

	out, err := b.run(t, ctx, "whoami")
	require.NoError(t, err)
	require.Equal(t, "Not signed in\n", out)

	out, err = b.run(t, ctx, "signup", "--name", "Ann", "--email", "ann@example.com",
		"--password", "secret1", "--confirm", "secret1", "--role", "client")
	require.NoError(t, err)
	require.Equal(t, "Account created for ann@example.com\n", out)

	out, err = b.run(t, ctx, "whoami")
	require.NoError(t, err)
	require.Contains(t, out, "Ann <ann@example.com>\tclient")

	out, err = b.run(t, ctx, "signout")
	require.NoError(t, err)
	require.Equal(t, "Signed out\n", out)

	out, err = b.run(t, ctx, "whoami")
	require.NoError(t, err)
	require.Equal(t, "Not signed in\n", out)

	out, err = b.run(t, ctx, "signin", "--email", "ann@example.com", "--password", "secret1")
	require.NoError(t, err)
	require.Equal(t, "Signed in as Ann (client)\n", out)

	_, err = b.run(t, ctx, "signin", "--email", "ann@example.com", "--password", "wrong")
	require.EqualError(t, err, "Invalid login credentials")
}

func TestSignUpRejectsMismatchedPasswords(t *testing.T) {
	b := newBackend(t)

	_, err := b.run(t, context.Background(), "signup", "--name", "Ann", "--email", "ann@example.com",
		"--password", "secret1", "--confirm", "secret2")
	require.EqualError(t, err, "Passwords do not match")

	list, err := b.repo.List(context.Background())
	require.NoError(t, err)
	require.Empty(t, list)
}

func TestUsersCommands(t *testing.T) {
	b := newBackend(t)
	ctx := context.Background()
	eveID := b.seedAdmin(t)

	out, err := b.run(t, ctx, "users", "create", "--name", "Cal", "--email", "cal@example.com", "--role", "employee")
	require.NoError(t, err)
	require.Contains(t, out, "Cal <cal@example.com>\temployee")

	out, err = b.run(t, ctx, "--format", "json", "users", "list")
	require.NoError(t, err)
	var list []*users.User
	require.NoError(t, json.Unmarshal([]byte(out), &list))
	require.Len(t, list, 2)

	out, err = b.run(t, ctx, "--format", "json", "users", "get", eveID)
	require.NoError(t, err)
	var eve users.User
	require.NoError(t, json.Unmarshal([]byte(out), &eve))
	require.Equal(t, users.RoleAdmin, eve.Role)

	calID := list[0].ID
	if calID == eveID {
		calID = list[1].ID
	}
	out, err = b.run(t, ctx, "users", "update", calID, "--name", "Cal", "--email", "cal@example.com", "--role", "client")
	require.NoError(t, err)
	require.Contains(t, out, "\tclient")

	out, err = b.run(t, ctx, "users", "delete", calID)
	require.NoError(t, err)
	require.Equal(t, "Deleted "+calID+"\n", out)

	_, err = b.run(t, ctx, "users", "create", "--name", "Dan", "--role", "client")
	require.EqualError(t, err, "Please fill in all required fields")

	_, err = b.run(t, ctx, "signout")
	require.NoError(t, err)
	_, err = b.run(t, ctx, "users", "list")
	require.ErrorIs(t, err, admin.ErrForbidden)
}

func TestWatchPrintsRedirects(t *testing.T) {
	b := newBackend(t)
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	out, err := b.run(t, ctx, "watch", "--no-banner", "--path", "/tasks")
	require.NoError(t, err)
	require.Contains(t, out, "session: none (loading=false)")
	require.Contains(t, out, "redirect /(app)/tasks -> /sign-in")
}

func TestInvalidFormat(t *testing.T) {
	b := newBackend(t)
	_, err := b.run(t, context.Background(), "--format", "xml", "whoami")
	require.ErrorContains(t, err, `invalid format "xml"`)
}

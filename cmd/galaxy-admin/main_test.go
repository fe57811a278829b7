package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BV-BRC/galaxy-admin/internal/galaxytest"
	"github.com/BV-BRC/galaxy-admin/pkg/galaxy"
)

// env points the configuration at a fake server and a fresh alias file
// holding "test" for it.
func env(t *testing.T) *galaxytest.Server {
	t.Helper()
	srv := galaxytest.NewServer()
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	keys := filepath.Join(dir, "keys")
	require.NoError(t, os.WriteFile(keys, []byte("test\t"+srv.URL+"\t"+galaxytest.APIKey+"\n"), 0o600))

	t.Setenv("HOME", dir)
	t.Setenv("GALAXY_ADMIN_KEYS_FILE", keys)
	t.Setenv("GALAXY_ADMIN_TOOLSHED_MAIN", srv.URL)
	t.Setenv("GALAXY_ADMIN_TOOLS_POLL_INTERVAL", "10ms")
	t.Setenv("GALAXY_ADMIN_PING_INTERVAL", "1ms")
	return srv
}

// newTestAdmin returns command state whose password prompt always fails.
func newTestAdmin() *galaxyAdmin {
	g := newGalaxyAdmin()
	g.prompt = func(string) (string, error) { return "", os.ErrNotExist }
	return g
}

func runCmd(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	return runWith(context.Background(), newTestAdmin(), args...)
}

func runCtx(ctx context.Context, args ...string) (int, string, string) {
	return runWith(ctx, newTestAdmin(), args...)
}

func runWith(ctx context.Context, g *galaxyAdmin, args ...string) (int, string, string) {
	var stdout, stderr bytes.Buffer
	code := run(ctx, g, args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestKeys(t *testing.T) {
	srv := env(t)

	code, _, stderr := runCmd(t, "add_key", "other", "galaxy.example.org/", "secret")
	require.Equal(t, 0, code, stderr)

	code, out, _ := runCmd(t, "list_keys")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "test")
	assert.Contains(t, out, "galaxy.example.org/")
	assert.NotContains(t, out, "https://galaxy.example.org")
	assert.NotContains(t, out, "secret")

	_, out, _ = runCmd(t, "list_keys", "--name", "oth*", "-s")
	assert.Contains(t, out, "secret")
	assert.NotContains(t, out, srv.URL)

	code, _, stderr = runCmd(t, "add_key", "other", "galaxy.example.org", "again")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "already exists")

	code, _, stderr = runCmd(t, "update_key", "other", "--new-api-key", "newer")
	require.Equal(t, 0, code, stderr)
	_, out, _ = runCmd(t, "list_keys", "--name", "other", "-s")
	assert.Contains(t, out, "newer")

	code, _, _ = runCmd(t, "remove_key", "other")
	assert.Equal(t, 0, code)
	code, _, stderr = runCmd(t, "remove_key", "other")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "not found")
}

func TestAddKey_KeepsURLAsGiven(t *testing.T) {
	srv := env(t)

	code, _, stderr := runCmd(t, "add_key", "slash", srv.URL+"/", galaxytest.APIKey)
	require.Equal(t, 0, code, stderr)
	code, _, stderr = runCmd(t, "update_key", "slash", "--new-url", srv.URL+"//")
	require.Equal(t, 0, code, stderr)

	_, out, _ := runCmd(t, "list_keys", "--name", "slash")
	assert.Equal(t, "slash\t"+srv.URL+"//", strings.Join(strings.Fields(out), "\t"))

	// The stored URL is normalised only when connecting.
	code, out, stderr = runCmd(t, "whoami", "slash")
	require.Equal(t, 0, code, stderr)
	assert.Equal(t, "admin@example.org\n", out)
}

func TestAddKey_FetchesKeyWithPassword(t *testing.T) {
	srv := env(t)
	srv.AddUser("admin@example.org", "admin", "passw0rd")

	code, _, stderr := runCmd(t, "add_key", "fetched", srv.URL, "-u", "admin@example.org", "-P", "passw0rd")
	require.Equal(t, 0, code, stderr)
	_, out, _ := runCmd(t, "list_keys", "--name", "fetched", "-s")
	assert.Contains(t, out, galaxytest.APIKey)

	code, _, stderr = runCmd(t, "add_key", "bad", srv.URL, "-u", "admin@example.org", "-P", "wrong")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "Invalid password")
}

func TestUnknownAlias(t *testing.T) {
	env(t)
	code, _, stderr := runCmd(t, "whoami", "nosuchalias")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "Error: 'nosuchalias': not found")
}

func TestWhoamiAndConfig(t *testing.T) {
	env(t)

	code, out, _ := runCmd(t, "whoami", "test")
	require.Equal(t, 0, code)
	assert.Equal(t, "admin@example.org\n", out)

	code, out, _ = runCmd(t, "config", "test")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "allow_user_creation")
	assert.Less(t, strings.Index(out, "allow_user_creation"), strings.Index(out, "brand"))

	code, out, _ = runCmd(t, "config", "test", "--name", "brand", "-o", "json")
	require.Equal(t, 0, code)
	var got map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, map[string]interface{}{"brand": "Test"}, got)

	_, out, _ = runCmd(t, "config", "test", "--name", "version_*", "-o", "yaml")
	assert.Equal(t, "version_major: \"23.1\"\n", out)
}

func TestPing(t *testing.T) {
	srv := env(t)

	code, out, _ := runCmd(t, "ping", "test", "-c", "2")
	require.Equal(t, 0, code)
	assert.True(t, strings.HasPrefix(out, "PING "+srv.URL+"\n"), out)
	assert.Equal(t, 2, strings.Count(out, srv.URL+": status = ok time = "))

	code, out, _ = runCmd(t, "ping", "http://127.0.0.1:1", "-k", "x", "-c", "1")
	assert.Equal(t, 1, code)
	assert.Contains(t, out, "status = failed")
}

func TestPing_GivesUp(t *testing.T) {
	env(t)

	// No count: keeps going until the failures have lasted longer than -t.
	code, out, _ := runCmd(t, "ping", "http://127.0.0.1:1", "-k", "x", "-i", "0.01", "-t", "0.02")
	assert.Equal(t, 1, code)
	assert.GreaterOrEqual(t, strings.Count(out, "status = failed"), 3)
	assert.True(t, strings.HasSuffix(out, "Timeout limit reached without connecting\n"), out)
}

func TestUsers(t *testing.T) {
	srv := env(t)
	srv.AddUser("student2@example.org", "student2", "passw0rd")

	code, out, _ := runCmd(t, "create_batch_users", "test", "student#@example.org", "3", "--password", "s3cret!")
	assert.Equal(t, 1, code)
	assert.Contains(t, out, "student1@example.org")
	assert.Contains(t, out, "already exists")
	assert.Len(t, srv.Users(), 3)

	msg := filepath.Join(t.TempDir(), "welcome.txt")
	require.NoError(t, os.WriteFile(msg, []byte("Hello {{.Username}}, log in at {{.URL}}\n"), 0o600))
	code, out, stderr := runCmd(t, "create_user", "test", "Jane.Doe@example.org", "-p", "passw0rd", "-m", msg)
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, out, "Hello jane-doe, log in at "+srv.URL)

	code, _, stderr = runCmd(t, "create_user", "test", "bob@example.org", "--password", "short")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "password")

	code, out, _ = runCmd(t, "list_users", "test", "--name", "student*")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "student3@example.org")
	assert.NotContains(t, out, "jane")
	assert.Contains(t, out, "total 3")

	code, _, _ = runCmd(t, "delete_user", "test", "student1@example.org", "--purge")
	require.Equal(t, 0, code)
	_, out, _ = runCmd(t, "list_users", "test", "--status", "purged")
	assert.Contains(t, out, "student1@example.org")
	assert.Contains(t, out, "total 1")
}

func TestCreateUser_PublicName(t *testing.T) {
	srv := env(t)

	g := newTestAdmin()
	var prompted string
	g.prompt = func(p string) (string, error) {
		prompted = p
		return "typedpass", nil
	}
	code, _, stderr := runWith(context.Background(), g, "create_user", "test", "alice@example.org", "alicesmith")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, prompted, "alice@example.org")

	list := srv.Users()
	require.Len(t, list, 1)
	assert.Equal(t, "alicesmith", list[0].Username)

	code, _, stderr = runCmd(t, "create_user", "test", "carol@example.org", "Not Valid", "-p", "passw0rd")
	assert.Equal(t, 1, code)
	assert.Len(t, srv.Users(), 1, stderr)

	code, _, _ = runCmd(t, "create_user", "test", "dave@example.org", "-c")
	assert.Equal(t, 0, code)
	assert.Len(t, srv.Users(), 1)
}

func TestCreateUsersFromFile(t *testing.T) {
	srv := env(t)
	file := filepath.Join(t.TempDir(), "users.tsv")
	require.NoError(t, os.WriteFile(file, []byte("# course\na@example.org\tpassw0rd\nb@example.org\tpassw0rd\tbee\n"), 0o600))

	code, out, _ := runCmd(t, "create_users_from_file", "test", file, "--check")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "ok")
	assert.Empty(t, srv.Users())

	msg := filepath.Join(t.TempDir(), "welcome.txt")
	require.NoError(t, os.WriteFile(msg, []byte("Welcome {{.Username}}\n"), 0o600))
	code, out, _ = runCmd(t, "create_users_from_file", "test", file, "-m", msg)
	require.Equal(t, 0, code)
	assert.Len(t, srv.Users(), 2)
	assert.Contains(t, out, "Welcome a\n")
	assert.Contains(t, out, "Welcome bee\n")
}

func TestLibraries(t *testing.T) {
	srv := env(t)
	_, root := srv.AddLibrary("NGS data", "Sequencing")
	runs := srv.AddFolder(root, "Runs")
	srv.AddDataset(srv.AddFolder(runs, "Run 20"), "reads.fastq", 2048)

	code, out, _ := runCmd(t, "list_libraries", "test")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "NGS data")

	code, out, _ = runCmd(t, "list_libraries", "test", "NGS data/Runs/Run 20", "-l")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "reads.fastq")
	assert.Contains(t, out, "2.0 KB")

	code, _, stderr := runCmd(t, "create_library_folder", "test", "NGS data/Runs/Run 21/lane1")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "Run 21")

	code, _, _ = runCmd(t, "create_library_folder", "test", "NGS data/Runs/Run 21")
	require.Equal(t, 0, code)
	code, out, _ = runCmd(t, "list_libraries", "test", "NGS data/Runs/Run 2*")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "Run 21/")

	code, _, _ = runCmd(t, "create_library", "test", "Proteomics", "--description", "Mass spec")
	require.Equal(t, 0, code)
	code, _, stderr = runCmd(t, "create_library", "test", "Proteomics")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "already exists")

	code, _, _ = runCmd(t, "add_library_datasets", "test", "Proteomics", "/data/run.raw", "--server", "--link")
	require.Equal(t, 0, code)
	assert.Contains(t, srv.Uploads(), "/data/run.raw|link_to_files")

	code, _, _ = runCmd(t, "add_library_datasets", "test", "Proteomics", "/data/run.raw", "--link")
	assert.Equal(t, 1, code)
}

func TestInstallTool(t *testing.T) {
	srv := env(t)
	srv.AddShedRepository("devteam", "fastqc", "aaa111", "bbb222")

	code, out, stderr := runCmd(t, "install_tool", "test", "devteam", "fastqc", "--tool-panel-section", "NGS: QC")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, out, "OK")
	installs := srv.Installs()
	require.Len(t, installs, 1)
	assert.Equal(t, "bbb222", installs[0].ChangesetRevision)
	assert.Equal(t, "NGS: QC", installs[0].NewToolPanelSectionLabel)

	// Already installed.
	code, out, _ = runCmd(t, "install_tool", "test", "devteam/fastqc")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "SKIPPED")
	assert.Len(t, srv.Installs(), 1)

	code, out, _ = runCmd(t, "list_tools", "test")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "fastqc")
	assert.Contains(t, out, "1:bbb222")
	assert.Contains(t, out, "total 1")

	code, _, stderr = runCmd(t, "install_tool", "test", "devteam", "fastqc", "ccc333")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "ccc333")
}

func TestInstallTool_ReportsProgress(t *testing.T) {
	srv := env(t)
	srv.AddShedRepository("devteam", "fastqc", "aaa111")
	srv.SetInstallSteps("Cloning", "Installing dependencies", "Installed")

	code, out, stderr := runCmd(t, "install_tool", "test", "devteam", "fastqc")
	require.Equal(t, 0, code, stderr)
	cloning := strings.Index(out, "/devteam/fastqc/aaa111: Cloning\n")
	deps := strings.Index(out, "/devteam/fastqc/aaa111: Installing dependencies\n")
	require.True(t, cloning >= 0 && deps > cloning, out)
	assert.Less(t, deps, strings.Index(out, "OK"))
}

func TestInstallTool_Timeout(t *testing.T) {
	srv := env(t)
	srv.AddShedRepository("iuc", "bwa", "aaa111")
	srv.SetInstallSteps("Cloning")

	code, out, _ := runCmd(t, "install_tool", "test", "iuc", "bwa", "--timeout", "50ms")
	assert.Equal(t, 2, code)
	assert.Contains(t, out, "TIMEOUT")

	// A bare number is seconds.
	code, out, _ = runCmd(t, "install_tool", "test", "iuc", "bwa", "--timeout", "0.05")
	assert.Equal(t, 2, code)
	assert.Contains(t, out, "TIMEOUT")

	code, _, stderr := runCmd(t, "install_tool", "test", "iuc", "bwa", "--timeout", "soon")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "soon")
}

func TestInstallTool_NoWait(t *testing.T) {
	srv := env(t)
	srv.AddShedRepository("iuc", "bwa", "aaa111")
	srv.SetInstallSteps("Cloning")

	code, out, _ := runCmd(t, "install_tool", "test", "iuc", "bwa", "--no-wait")
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "PENDING")
}

func TestInstallTool_Interrupted(t *testing.T) {
	env(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	code, _, _ := runCtx(ctx, "install_tool", "test", "iuc", "bwa")
	assert.Equal(t, 130, code)
}

func TestExportAndInstallFromFile(t *testing.T) {
	srv := env(t)
	srv.AddShedRepository("devteam", "fastqc", "aaa111")
	srv.AddShedRepository("iuc", "bwa", "bbb222")
	require.Equal(t, 0, first(runCmd(t, "install_tool", "test", "devteam", "fastqc", "--tool-panel-section", "QC")))
	require.Equal(t, 0, first(runCmd(t, "install_tool", "test", "iuc", "bwa", "--tool-panel-section", "Mapping")))

	code, exported, _ := runCmd(t, "list_tools", "test", "--mode", "export")
	require.Equal(t, 0, code)
	lines := strings.Split(strings.TrimSpace(exported), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasSuffix(lines[0], "\tdevteam\tfastqc\taaa111\tQC"), lines[0])

	target := env(t)
	target.AddShedRepository("devteam", "fastqc", "aaa111")
	target.AddShedRepository("iuc", "bwa", "bbb222")
	// Both fake servers act as their own toolshed.
	exported = strings.ReplaceAll(exported, strings.TrimPrefix(srv.URL, "http://"), strings.TrimPrefix(target.URL, "http://"))
	file := filepath.Join(t.TempDir(), "tools.tsv")
	require.NoError(t, os.WriteFile(file, []byte(exported), 0o600))

	code, _, stderr := runCmd(t, "install_tool", "test", "--file", file)
	require.Equal(t, 0, code, stderr)
	installs := target.Installs()
	require.Len(t, installs, 2)
	assert.Equal(t, "Mapping", installs[1].NewToolPanelSectionLabel)
}

func TestUninstallTool(t *testing.T) {
	srv := env(t)
	shed := strings.TrimPrefix(srv.URL, "http://")
	for i, rev := range []string{"aaa111", "bbb222"} {
		srv.AddInstalled(galaxy.Repository{
			Name: "fastqc", Owner: "devteam", ToolShed: shed,
			ChangesetRevision: rev, InstalledChangesetRevision: rev,
			CtxRev: strconv.Itoa(i), Status: "Installed",
		})
	}

	code, _, stderr := runCmd(t, "uninstall_tool", "test", "devteam", "fastqc")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "0:aaa111")
	assert.Empty(t, srv.Uninstalls())

	code, _, stderr = runCmd(t, "uninstall_tool", "test", "devteam", "fastqc", "--revision", "*")
	require.Equal(t, 0, code, stderr)
	assert.Len(t, srv.Uninstalls(), 2)
}

func TestSearchToolshed(t *testing.T) {
	srv := env(t)
	srv.AddSearchHit(galaxy.SearchHit{Name: "fastqc", Owner: "devteam", Description: "Read QC"})
	srv.AddSearchHit(galaxy.SearchHit{Name: "bwa", Owner: "devteam", Description: "Mapper"})
	srv.AddInstalled(galaxy.Repository{
		Name: "fastqc", Owner: "devteam", ToolShed: strings.TrimPrefix(srv.URL, "http://"),
		ChangesetRevision: "aaa111", CtxRev: "0", Status: "Installed",
	})

	code, out, _ := runCmd(t, "search_toolshed", "qc", "--galaxy", "test", "-l")
	require.Equal(t, 0, code)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(strings.TrimSpace(lines[0]), "bwa"), lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "*"), lines[1])
	assert.Contains(t, lines[1], "Read QC")
	assert.Equal(t, "2 repositories found", lines[2])
}

func TestQuotas(t *testing.T) {
	srv := env(t)
	srv.AddUser("a@example.org", "a", "passw0rd")

	code, _, stderr := runCmd(t, "quota_add", "test", "Course", "Course accounts", "50G", "--users", "a@example.org")
	require.Equal(t, 0, code, stderr)

	code, out, _ := runCmd(t, "quota", "test")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "Course")
	assert.Contains(t, out, "=50.0 GB")

	code, _, _ = runCmd(t, "quota_mod", "test", "Course", "--quota", "+10G", "--remove-users", "a@example.org")
	require.Equal(t, 0, code)
	q := srv.Quota("Course")
	assert.Equal(t, "+", q.Operation)
	assert.Empty(t, q.Users)

	code, _, _ = runCmd(t, "quota_del", "test", "Course")
	require.Equal(t, 0, code)
	_, out, _ = runCmd(t, "quota", "test", "--status", "deleted", "-l")
	assert.Contains(t, out, "Course [deleted]")

	code, _, stderr = runCmd(t, "quota_add", "test", "Bad", "x", "+unlimited")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "unlimited")
}

func first(code int, _, _ string) int {
	return code
}

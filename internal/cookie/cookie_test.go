package cookie

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleJar = "# Netscape HTTP Cookie File\n.example.com\tTRUE\t/\tFALSE\t0\tsid\tabc\n"

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestResolver_Resolve_UploadedWins(t *testing.T) {
	dir := t.TempDir()
	uploaded := writeFile(t, dir, "uploaded.txt", sampleJar)
	candidate := writeFile(t, dir, "cookies.txt", sampleJar)

	resolver := NewResolver([]string{candidate})
	path, wasUploaded := resolver.Resolve(uploaded)

	assert.Equal(t, uploaded, path)
	assert.True(t, wasUploaded)
}

func TestResolver_Resolve_SkipsStubJars(t *testing.T) {
	dir := t.TempDir()
	stub := writeFile(t, dir, "stub.txt", "# stub\n")
	full := writeFile(t, dir, "cookies.txt", sampleJar)

	resolver := NewResolver([]string{stub, full})
	path, wasUploaded := resolver.Resolve("")

	assert.Equal(t, full, path)
	assert.False(t, wasUploaded)
}

func TestResolver_Resolve_FloorIsStrict(t *testing.T) {
	dir := t.TempDir()
	boundary := writeFile(t, dir, "cookies.txt", strings.Repeat("x", 10))

	resolver := NewResolver([]string{boundary})
	path, _ := resolver.Resolve("")

	assert.Empty(t, path)
}

func TestResolver_Resolve_NothingUsable(t *testing.T) {
	resolver := NewResolver([]string{"/does/not/exist.txt"})
	path, wasUploaded := resolver.Resolve("")

	assert.Empty(t, path)
	assert.False(t, wasUploaded)
}

func TestResolver_Default(t *testing.T) {
	dir := t.TempDir()
	jar := writeFile(t, dir, "cookies.txt", sampleJar)

	resolver := NewResolver([]string{filepath.Join(dir, "missing.txt"), jar})

	path, ok := resolver.Default()
	require.True(t, ok)
	assert.Equal(t, jar, path)
}

func TestResolver_Default_NoJar(t *testing.T) {
	resolver := NewResolver([]string{"/does/not/exist.txt"})

	_, ok := resolver.Default()
	assert.False(t, ok)
}

func TestResolver_CandidateStatus(t *testing.T) {
	dir := t.TempDir()
	jar := writeFile(t, dir, "cookies.txt", sampleJar)
	missing := filepath.Join(dir, "missing.txt")

	resolver := NewResolver([]string{jar, missing})
	statuses := resolver.CandidateStatus()

	require.Len(t, statuses, 2)
	assert.Equal(t, jar, statuses[0].Path)
	assert.True(t, statuses[0].Exists)
	assert.Equal(t, int64(len(sampleJar)), statuses[0].Size)
	assert.Equal(t, missing, statuses[1].Path)
	assert.False(t, statuses[1].Exists)
	assert.Zero(t, statuses[1].Size)
}

func TestWriteTemp(t *testing.T) {
	path, err := WriteTemp(strings.NewReader(sampleJar))
	require.NoError(t, err)
	t.Cleanup(func() { os.Remove(path) })

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, sampleJar, string(data))
}

func TestResolver_Bootstrap_Base64(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "cookies.txt")

	resolver := NewResolver([]string{target})
	resolver.Bootstrap(context.Background(), Sources{
		Base64: base64.StdEncoding.EncodeToString([]byte(sampleJar)),
	})

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, sampleJar, string(data))
}

func TestResolver_Bootstrap_Raw(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "cookies.txt")

	resolver := NewResolver([]string{target})
	resolver.Bootstrap(context.Background(), Sources{Raw: sampleJar})

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, sampleJar, string(data))
}

func TestResolver_Bootstrap_URL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(sampleJar))
	}))
	defer srv.Close()

	dir := t.TempDir()
	target := filepath.Join(dir, "cookies.txt")

	resolver := NewResolver([]string{target})
	resolver.Bootstrap(context.Background(), Sources{URL: srv.URL})

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, sampleJar, string(data))
}

func TestResolver_Bootstrap_URLTooSmall(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("tiny"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	target := filepath.Join(dir, "cookies.txt")

	resolver := NewResolver([]string{target})
	resolver.Bootstrap(context.Background(), Sources{URL: srv.URL})

	_, err := os.Stat(target)
	assert.True(t, os.IsNotExist(err))
}

func TestResolver_Bootstrap_NoSources(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "cookies.txt")

	resolver := NewResolver([]string{target})
	resolver.Bootstrap(context.Background(), Sources{})

	_, err := os.Stat(target)
	assert.True(t, os.IsNotExist(err))
}

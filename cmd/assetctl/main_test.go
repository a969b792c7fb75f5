package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	t      *testing.T
	dir    string
	config string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dir := t.TempDir()
	config := filepath.Join(dir, "enginedb.yaml")
	body := "storage:\n  work_dir: " + dir + "\nlog:\n  level: error\n  outputs: [" + filepath.Join(dir, "log.txt") + "]\n"
	require.NoError(t, os.WriteFile(config, []byte(body), 0o644))
	return &harness{t: t, dir: dir, config: config}
}

func (h *harness) run(args ...string) (string, error) {
	var out, errOut bytes.Buffer
	err := run(context.Background(), append([]string{"-config", h.config}, args...), &out, &errOut)
	return out.String(), err
}

func (h *harness) must(args ...string) string {
	h.t.Helper()
	out, err := h.run(args...)
	require.NoError(h.t, err, strings.Join(args, " "))
	return out
}

func TestCreateListSetGet(t *testing.T) {
	h := newHarness(t)

	id := strings.TrimSpace(h.must("create", "Player"))
	assert.Contains(t, h.must("list"), id)
	assert.Contains(t, h.must("list"), "Player")

	h.must("set", id, "speed", "2.5")
	h.must("set", id, "label", "hero")
	h.must("set", id, "alive", "true")
	assert.Equal(t, "2.5\n", h.must("get", id, "speed"))
	assert.Equal(t, "\"hero\"\n", h.must("get", id, "label"))
	assert.Equal(t, "true\n", h.must("get", id, "alive"))

	h.must("unset", id, "speed")
	_, err := h.run("get", id, "speed")
	assert.Error(t, err)

	h.must("delete", id)
	assert.Empty(t, h.must("list"))
}

func TestAttachDetachScripts(t *testing.T) {
	h := newHarness(t)
	scripts := filepath.Join(h.dir, "Assets", "scripts")
	require.NoError(t, os.MkdirAll(scripts, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(scripts, "Rotator.go"), []byte("package scripts\n"), 0o644))

	assert.Equal(t, "Rotator\tscripts/Rotator.go\n", h.must("scripts"))

	id := strings.TrimSpace(h.must("create", "Wheel"))
	h.must("attach", id, "Rotator")
	_, err := h.run("attach", id, "Rotator")
	assert.Error(t, err, "already attached")
	_, err = h.run("attach", id, "Missing")
	assert.Error(t, err)

	// no behaviour types are registered in the CLI, so nothing attaches
	assert.Contains(t, h.must("load"), "Wheel\t[]")

	h.must("detach", id, "Rotator")
	_, err = h.run("detach", id, "Rotator")
	assert.Error(t, err)
}

func TestBlobAndVerify(t *testing.T) {
	h := newHarness(t)
	src := filepath.Join(h.dir, "tex.png")
	require.NoError(t, os.WriteFile(src, []byte("pixels"), 0o644))

	key := strings.TrimSpace(h.must("blob", "put", "texture", src))
	assert.True(t, strings.HasSuffix(key, ".texture"))
	assert.Equal(t, key+"\n", h.must("blob", "ls"))
	assert.Equal(t, "pixels", h.must("blob", "get", key))

	h.must("create", "A")
	assert.Contains(t, h.must("verify"), "0 problems")

	require.NoError(t, os.WriteFile(filepath.Join(h.dir, ".enginedb", "cache", key), []byte("x"), 0o644))
	out, err := h.run("verify")
	assert.Error(t, err)
	assert.Contains(t, out, "corrupt_blob")
}

func TestUsageErrors(t *testing.T) {
	h := newHarness(t)
	for _, args := range [][]string{
		{},
		{"frobnicate"},
		{"create"},
		{"get", "not-a-uuid", "x"},
		{"blob"},
	} {
		_, err := h.run(args...)
		assert.Error(t, err, args)
	}

	_, err := h.run("-profile", "gpu", "list")
	assert.Error(t, err)
}

func TestParseValue(t *testing.T) {
	assert.Equal(t, true, parseValue("true"))
	assert.Equal(t, "quoted", parseValue(`"quoted"`))
	assert.Equal(t, "bare words", parseValue("bare words"))
	assert.Equal(t, "[1]", parseValue("[1]"))
	assert.Equal(t, "1 2", parseValue("1 2"))
	assert.Equal(t, "12", parseValue("12").(interface{ String() string }).String())
}

package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JustinTDCT/StoryDraw/internal/auth"
)

func TestHashPasswordCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetIn(strings.NewReader("s3cret\n"))
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"hash-password"})
	require.NoError(t, rootCmd.Execute())

	hash := strings.TrimSpace(out.String())
	assert.True(t, auth.CheckPassword(hash, "s3cret"))
	assert.False(t, auth.CheckPassword(hash, "s3cret\n"))
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"version", "--version-file", t.TempDir() + "/none.json"})
	require.NoError(t, rootCmd.Execute())
	assert.NotEmpty(t, strings.TrimSpace(out.String()))
}

func TestSetupRejectsBadLevel(t *testing.T) {
	logLevel = "loud"
	defer func() { logLevel = "" }()
	_, _, err := setup()
	assert.Error(t, err)
}

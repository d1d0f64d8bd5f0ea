package cli

import (
	"bytes"
	"strings"
	"testing"
)

func TestRootCommand_Version(t *testing.T) {
	var buf bytes.Buffer
	RootCmd.SetOut(&buf)
	RootCmd.SetArgs([]string{"--version"})
	defer RootCmd.SetArgs(nil)

	if err := Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !strings.Contains(buf.String(), version) {
		t.Errorf("version output = %q, want it to contain %q", buf.String(), version)
	}
}

func TestRootCommand_Subcommands(t *testing.T) {
	for _, name := range []string{"search", "validate"} {
		cmd, _, err := RootCmd.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Errorf("subcommand %q not registered (err = %v)", name, err)
		}
	}
}

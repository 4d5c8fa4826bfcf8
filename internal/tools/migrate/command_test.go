package migrate

import "testing"

func TestRootCommandRegistersSubcommands(t *testing.T) {
	cmd := NewRootCommand()
	for _, name := range []string{"up", "status", "plan", "cleanup"} {
		if sub, _, err := cmd.Find([]string{name}); err != nil || sub.Name() != name {
			t.Fatalf("expected subcommand %s", name)
		}
	}
	for _, flag := range []string{"env-file", "timeout", "ci"} {
		if cmd.PersistentFlags().Lookup(flag) == nil {
			t.Fatalf("expected persistent flag %s", flag)
		}
	}
}

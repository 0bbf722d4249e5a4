package main

import "testing"

func TestBuildRootCmd(t *testing.T) {
	root := buildRootCmd()
	if root.Use != "brigade" {
		t.Fatalf("Use = %q", root.Use)
	}

	serve, _, err := root.Find([]string{"serve"})
	if err != nil {
		t.Fatalf("serve command missing: %v", err)
	}
	for _, flag := range []string{"config", "data-dir", "syscalls-dir", "metrics-addr", "debug"} {
		if serve.Flags().Lookup(flag) == nil {
			t.Errorf("serve is missing the --%s flag", flag)
		}
	}
}

func TestResolveVersionFallback(t *testing.T) {
	got := resolveVersion()
	if got == "" {
		t.Fatal("resolveVersion returned empty string")
	}
}

package main

import "testing"

func TestRunRequiresUserAndSecret(t *testing.T) {
    t.Setenv("JWT_SECRET", "")
    if err := run([]string{"--secret", "s"}); err == nil {
        t.Fatal("missing --user accepted")
    }
    if err := run([]string{"-u", "user-1"}); err == nil {
        t.Fatal("missing secret accepted")
    }
    if err := run([]string{"-u", "user-1", "--secret", "s", "--ttl", "1h"}); err != nil {
        t.Fatalf("run: %v", err)
    }
}

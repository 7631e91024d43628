package credentials

import (
	"errors"
	"testing"

	"github.com/99designs/keyring"
)

func TestStoreRoundTrip(t *testing.T) {
	t.Parallel()
	s := New(keyring.NewArrayKeyring(nil))

	if _, err := s.Password("root", "localhost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := s.SetPassword("root", "localhost", "hunter2"); err != nil {
		t.Fatalf("SetPassword: %v", err)
	}
	pw, err := s.Password("root", "localhost")
	if err != nil || pw != "hunter2" {
		t.Fatalf("Password = %q, %v", pw, err)
	}
	if _, err := s.Password("root", "otherhost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("password leaked across hosts: %v", err)
	}
	if err := s.Clear("root", "localhost"); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if _, err := s.Password("root", "localhost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after Clear, got %v", err)
	}
}

func TestKey(t *testing.T) {
	t.Parallel()
	if got := Key("app", "db.internal"); got != "db_password:app@db.internal" {
		t.Fatalf("Key = %q", got)
	}
}

func TestResolveOrder(t *testing.T) {
	t.Parallel()
	ring := keyring.NewArrayKeyring([]keyring.Item{{Key: Key("root", "db"), Data: []byte("from-ring")}})
	store := New(ring)
	env := func(v string) func(string) string {
		return func(k string) string {
			if k == EnvPassword {
				return v
			}
			return ""
		}
	}
	prompted := 0
	prompt := func(label string) (string, error) {
		prompted++
		return "typed", nil
	}

	tests := []struct {
		name   string
		r      Resolver
		user   string
		want   string
		source Source
	}{
		{"env wins", Resolver{Getenv: env("from-env"), Store: store, Prompt: prompt}, "root", "from-env", SourceEnv},
		{"keyring next", Resolver{Getenv: env(""), Store: store, Prompt: prompt}, "root", "from-ring", SourceKeyring},
		{"prompt last", Resolver{Getenv: env(""), Store: store, Prompt: prompt}, "other", "typed", SourcePrompt},
		{"nothing", Resolver{Getenv: env("")}, "root", "", SourceNone},
	}
	for _, tt := range tests {
		pw, src, err := tt.r.Resolve(tt.user, "db")
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tt.name, err)
		}
		if pw != tt.want || src != tt.source {
			t.Errorf("%s: got %q from %s, want %q from %s", tt.name, pw, src, tt.want, tt.source)
		}
	}
	if prompted != 1 {
		t.Errorf("prompt called %d times, want 1", prompted)
	}
}

func TestResolvePromptError(t *testing.T) {
	t.Parallel()
	r := Resolver{
		Getenv: func(string) string { return "" },
		Prompt: func(string) (string, error) { return "", errors.New("no tty") },
	}
	if _, _, err := r.Resolve("root", "db"); err == nil {
		t.Fatal("expected prompt error to propagate")
	}
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package container

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
)

// mockExecutor answers LookPath and RunSilent from tables and delegates
// RunPiped to a function.
type mockExecutor struct {
	onPath   map[string]bool
	succeeds map[string]bool // "bin arg1 arg2" -> RunSilent succeeds
	piped    func(name string, args []string, stdin io.Reader, stdout io.Writer) error
	lastArgs []string
}

func (m *mockExecutor) LookPath(file string) (string, error) {
	if m.onPath[file] {
		return "/usr/bin/" + file, nil
	}
	return "", errors.New("not found: " + file)
}

func (m *mockExecutor) RunSilent(_ context.Context, name string, args ...string) error {
	key := name + " " + strings.Join(args, " ")
	if m.succeeds[key] {
		return nil
	}
	return errors.New("command failed: " + key)
}

func (m *mockExecutor) RunPiped(_ context.Context, name string, args []string, stdin io.Reader, stdout io.Writer) error {
	m.lastArgs = args
	if m.piped != nil {
		return m.piped(name, args, stdin, stdout)
	}
	return nil
}

func TestDetect(t *testing.T) {
	tests := []struct {
		name     string
		exec     *mockExecutor
		wantName string
		wantErr  bool
	}{
		{
			name:     "docker preferred",
			exec:     &mockExecutor{onPath: map[string]bool{"docker": true, "podman": true}, succeeds: map[string]bool{"docker info": true, "podman info": true}},
			wantName: "docker",
		},
		{
			name:     "podman when docker missing",
			exec:     &mockExecutor{onPath: map[string]bool{"podman": true}, succeeds: map[string]bool{"podman info": true}},
			wantName: "podman",
		},
		{
			name:     "podman when docker daemon down",
			exec:     &mockExecutor{onPath: map[string]bool{"docker": true, "podman": true}, succeeds: map[string]bool{"podman info": true}},
			wantName: "podman",
		},
		{
			name:    "nothing available",
			exec:    &mockExecutor{},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rt, err := detect(context.Background(), tt.exec)
			if tt.wantErr {
				if err == nil || !strings.Contains(err.Error(), "no container runtime available") {
					t.Fatalf("expected no-runtime error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if rt.Name() != tt.wantName {
				t.Errorf("got runtime %q, want %q", rt.Name(), tt.wantName)
			}
		})
	}
}

func TestImageExists(t *testing.T) {
	ctx := context.Background()
	e := &mockExecutor{succeeds: map[string]bool{
		"docker image inspect markitdown:latest": true,
		"podman image exists markitdown:latest":  true,
	}}

	if err := newDocker(e).ImageExists(ctx, "markitdown:latest"); err != nil {
		t.Errorf("docker: unexpected error %v", err)
	}
	if err := newPodman(e).ImageExists(ctx, "markitdown:latest"); err != nil {
		t.Errorf("podman: unexpected error %v", err)
	}
	err := newDocker(e).ImageExists(ctx, "grobid:latest")
	if err == nil || !strings.Contains(err.Error(), "grobid:latest") {
		t.Errorf("missing image error should name the image, got %v", err)
	}
}

func TestRun(t *testing.T) {
	e := &mockExecutor{piped: func(name string, _ []string, stdin io.Reader, stdout io.Writer) error {
		data, _ := io.ReadAll(stdin)
		_, _ = stdout.Write([]byte(name + ": " + string(data)))
		return nil
	}}
	var out bytes.Buffer
	if err := newPodman(e).Run(context.Background(), "markitdown:latest", []string{"--keep-data-uris"}, strings.NewReader("pdf"), &out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := out.String(); got != "podman: pdf" {
		t.Errorf("output = %q", got)
	}
	want := "run --rm -i --network none markitdown:latest --keep-data-uris"
	if got := strings.Join(e.lastArgs, " "); got != want {
		t.Errorf("args = %q, want %q", got, want)
	}
}

func TestRun_WrapsFailure(t *testing.T) {
	e := &mockExecutor{piped: func(string, []string, io.Reader, io.Writer) error {
		return errors.New("exit status 1")
	}}
	err := newDocker(e).Run(context.Background(), "markitdown:latest", nil, strings.NewReader(""), io.Discard)
	if err == nil || !strings.Contains(err.Error(), "running docker container markitdown:latest") {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}

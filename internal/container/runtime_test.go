// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package container

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
)

// mockExecutor records calls and returns configured responses.
type mockExecutor struct {
	availableBins map[string]bool // binary -> whether LookPath succeeds
	runnableCmds  map[string]bool // "bin arg1 arg2" -> whether RunSilent succeeds
	capturedFunc  func(name string, args []string, stdout, stderr io.Writer) error

	lastArgs []string
}

func (m *mockExecutor) LookPath(file string) (string, error) {
	if m.availableBins[file] {
		return "/usr/bin/" + file, nil
	}
	return "", errors.New("not found: " + file)
}

func (m *mockExecutor) RunSilent(_ context.Context, name string, args ...string) error {
	key := name + " " + strings.Join(args, " ")
	if m.runnableCmds[key] {
		return nil
	}
	return errors.New("command failed: " + key)
}

func (m *mockExecutor) RunCaptured(_ context.Context, name string, args []string, stdout, stderr io.Writer) error {
	m.lastArgs = args
	if m.capturedFunc != nil {
		return m.capturedFunc(name, args, stdout, stderr)
	}
	return nil
}

func TestDetectRuntime(t *testing.T) {
	tests := []struct {
		name     string
		exec     *mockExecutor
		wantName string
		wantErr  bool
	}{
		{
			name: "docker available",
			exec: &mockExecutor{
				availableBins: map[string]bool{"docker": true},
				runnableCmds:  map[string]bool{"docker info": true},
			},
			wantName: "docker",
		},
		{
			name: "podman fallback when docker missing",
			exec: &mockExecutor{
				availableBins: map[string]bool{"podman": true},
				runnableCmds:  map[string]bool{"podman info": true},
			},
			wantName: "podman",
		},
		{
			name: "neither available",
			exec: &mockExecutor{
				availableBins: map[string]bool{},
				runnableCmds:  map[string]bool{},
			},
			wantErr: true,
		},
		{
			name: "docker on PATH but info fails, podman works",
			exec: &mockExecutor{
				availableBins: map[string]bool{"docker": true, "podman": true},
				runnableCmds:  map[string]bool{"podman info": true},
			},
			wantName: "podman",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rt, err := detectRuntime(context.Background(), tt.exec)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if !strings.Contains(err.Error(), "no container runtime available") {
					t.Errorf("error should mention no runtime available, got: %v", err)
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
	tests := []struct {
		name    string
		mkRT    func(*mockExecutor) Runtime
		cmds    map[string]bool
		wantErr bool
	}{
		{
			name: "docker image exists",
			mkRT: func(e *mockExecutor) Runtime { return newDockerRuntime(e) },
			cmds: map[string]bool{"docker image inspect marker:latest": true},
		},
		{
			name:    "docker image not found",
			mkRT:    func(e *mockExecutor) Runtime { return newDockerRuntime(e) },
			cmds:    map[string]bool{},
			wantErr: true,
		},
		{
			name: "podman image exists",
			mkRT: func(e *mockExecutor) Runtime { return newPodmanRuntime(e) },
			cmds: map[string]bool{"podman image exists marker:latest": true},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rt := tt.mkRT(&mockExecutor{runnableCmds: tt.cmds})
			err := rt.ImageExists(context.Background(), "marker:latest")
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if !strings.Contains(err.Error(), "marker:latest") {
					t.Errorf("error should mention image name, got: %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestRun_BuildsArguments(t *testing.T) {
	exec := &mockExecutor{}
	rt := newDockerRuntime(exec)

	spec := RunSpec{
		Image: "marker:latest",
		Args:  []string{"marker_single", "/work/in.pdf"},
		Mounts: []Mount{
			{Source: "/tmp/job", Target: "/work"},
			{Source: "/var/cache/marker", Target: "/root/.cache", ReadOnly: true},
		},
		Env:     map[string]string{"TORCH_DEVICE": "cpu", "A": "1"},
		WorkDir: "/work",
	}
	if err := rt.Run(context.Background(), spec); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := "run --rm -v /tmp/job:/work -v /var/cache/marker:/root/.cache:ro " +
		"-e A=1 -e TORCH_DEVICE=cpu -w /work marker:latest marker_single /work/in.pdf"
	if got := strings.Join(exec.lastArgs, " "); got != want {
		t.Errorf("args = %q\nwant   %q", got, want)
	}
}

func TestRun_ErrorIncludesStderrTail(t *testing.T) {
	exec := &mockExecutor{
		capturedFunc: func(_ string, _ []string, _, stderr io.Writer) error {
			_, _ = io.WriteString(stderr, "loading models\nRuntimeError: CUDA out of memory\n")
			return errors.New("exit status 1")
		},
	}
	rt := newPodmanRuntime(exec)

	err := rt.Run(context.Background(), RunSpec{Image: "marker:latest"})
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "CUDA out of memory") {
		t.Errorf("error should carry stderr tail, got: %v", err)
	}
	if !strings.Contains(err.Error(), "podman") {
		t.Errorf("error should name the runtime, got: %v", err)
	}
}

func TestLastLines(t *testing.T) {
	got := lastLines("a\nb\nc\nd\n", 2)
	if got != "c\nd" {
		t.Errorf("lastLines = %q, want %q", got, "c\nd")
	}
	if lastLines("  \n", 3) != "" {
		t.Error("blank input should yield empty tail")
	}
}

func TestRuntimeName(t *testing.T) {
	exec := &mockExecutor{}
	if name := newDockerRuntime(exec).Name(); name != "docker" {
		t.Errorf("docker runtime name = %q, want %q", name, "docker")
	}
	if name := newPodmanRuntime(exec).Name(); name != "podman" {
		t.Errorf("podman runtime name = %q, want %q", name, "podman")
	}
}

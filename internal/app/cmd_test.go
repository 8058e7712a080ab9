package app

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
)

func TestNewRootCommand_Subcommands(t *testing.T) {
	root := NewRootCommand(&bytes.Buffer{})

	for _, name := range []string{CommandServe, CommandHealthcheck} {
		cmd, _, err := root.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Errorf("サブコマンド %q が登録されるべき (err: %v)", name, err)
		}
	}
}

func TestNewRootCommand_UnknownCommand(t *testing.T) {
	root := NewRootCommand(&bytes.Buffer{})
	root.SetArgs([]string{"worker"})
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})

	if err := root.Execute(); err == nil {
		t.Error("未知のサブコマンドはエラーになるべき")
	}
}

func healthcheckPort(t *testing.T, status int) string {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(status)
	}))
	t.Cleanup(server.Close)

	u, err := url.Parse(server.URL)
	if err != nil {
		t.Fatalf("failed to parse server URL: %v", err)
	}
	return u.Port()
}

func TestHealthcheckCommand(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr bool
	}{
		{"healthy", http.StatusOK, false},
		{"unhealthy", http.StatusServiceUnavailable, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			port := healthcheckPort(t, tt.status)

			root := NewRootCommand(&bytes.Buffer{})
			root.SetArgs([]string{CommandHealthcheck, "--port", port})
			err := root.Execute()

			if (err != nil) != tt.wantErr {
				t.Errorf("err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestHealthcheckCommand_DefaultsToServerPort(t *testing.T) {
	port := healthcheckPort(t, http.StatusOK)
	t.Setenv("SERVER_PORT", port)

	root := NewRootCommand(&bytes.Buffer{})
	root.SetArgs([]string{CommandHealthcheck})
	if err := root.Execute(); err != nil {
		t.Errorf("SERVER_PORT のポートを確認するべき: %v", err)
	}
}

func TestHealthcheckCommand_NoServer(t *testing.T) {
	root := NewRootCommand(&bytes.Buffer{})
	root.SetArgs([]string{CommandHealthcheck, "--port", "1"})

	if err := root.Execute(); err == nil {
		t.Error("サーバーがない場合はエラーになるべき")
	}
}

package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/awsgate/awsgate/internal/awsconfig"
	"github.com/awsgate/awsgate/internal/config"
	"github.com/awsgate/awsgate/internal/resolver"
	"github.com/awsgate/awsgate/internal/sandbox"
	"github.com/awsgate/awsgate/internal/session"
	"github.com/awsgate/awsgate/internal/tools"
)

func testHandler() *tools.Handler {
	return &tools.Handler{
		Session: session.New(),
		Config:  &config.Config{Region: "us-east-1"},
		LoadStore: func() *awsconfig.Store {
			return awsconfig.Load(awsconfig.Options{
				ConfigFile:      "/nonexistent/config",
				CredentialsFile: "/nonexistent/credentials",
			})
		},
		Resolve: func(ctx context.Context, store *awsconfig.Store, profile string) (*resolver.Credentials, error) {
			return &resolver.Credentials{AccessKeyID: "AKIA", SecretAccessKey: "x", Source: "test"}, nil
		},
		BuildBinding: func(ctx context.Context, snap session.Snapshot) map[string]any {
			return map[string]any{"profile": snap.Profile}
		},
		Sandbox: sandbox.New(0),
	}
}

func serve(t *testing.T, input string) []Response {
	t.Helper()
	var out bytes.Buffer
	s := New(testHandler())
	if err := s.Serve(context.Background(), strings.NewReader(input), &out); err != nil {
		t.Fatalf("Serve() error = %v", err)
	}

	var responses []Response
	sc := bufio.NewScanner(&out)
	for sc.Scan() {
		var resp Response
		if err := json.Unmarshal(sc.Bytes(), &resp); err != nil {
			t.Fatalf("unmarshal response %q: %v", sc.Text(), err)
		}
		responses = append(responses, resp)
	}
	return responses
}

func TestServe_ListProfiles(t *testing.T) {
	responses := serve(t, `{"id":"1","tool":"list-profiles"}`+"\n")

	if len(responses) != 1 {
		t.Fatalf("got %d responses, want 1", len(responses))
	}
	resp := responses[0]
	if resp.ID != "1" || resp.Error != nil || resp.Result == nil {
		t.Fatalf("response = %+v", resp)
	}
	if !strings.Contains(*resp.Result, `"profiles"`) {
		t.Errorf("result = %q", *resp.Result)
	}
}

func TestServe_SelectThenRun(t *testing.T) {
	input := `{"id":"1","tool":"select-profile","args":{"profile":"dev"}}` + "\n" +
		`{"id":"2","tool":"run-script","args":{"code":"return aws.profile"}}` + "\n"

	responses := serve(t, input)

	if len(responses) != 2 {
		t.Fatalf("got %d responses, want 2", len(responses))
	}
	if responses[0].Result == nil || !strings.Contains(*responses[0].Result, "Selected profile") {
		t.Fatalf("select response = %+v", responses[0])
	}
	if responses[1].Result == nil || *responses[1].Result != `"dev"` {
		t.Fatalf("run response = %+v", responses[1])
	}
}

func TestServe_UnknownTool(t *testing.T) {
	responses := serve(t, `{"id":"9","tool":"shell"}`+"\n")

	if len(responses) != 1 || responses[0].Error == nil {
		t.Fatalf("responses = %+v", responses)
	}
	if !strings.Contains(*responses[0].Error, "unknown tool") {
		t.Errorf("error = %q", *responses[0].Error)
	}
}

func TestServe_MalformedLine(t *testing.T) {
	input := "not json\n" + `{"id":"2","tool":"list-profiles"}` + "\n"

	responses := serve(t, input)

	if len(responses) != 2 {
		t.Fatalf("got %d responses, want 2", len(responses))
	}
	if responses[0].Error == nil || !strings.Contains(*responses[0].Error, "invalid request") {
		t.Errorf("first response = %+v", responses[0])
	}
	if responses[1].Result == nil {
		t.Errorf("second response = %+v", responses[1])
	}
}

func TestServe_BadArgs(t *testing.T) {
	responses := serve(t, `{"id":"3","tool":"run-script","args":{"code":42}}`+"\n")

	if len(responses) != 1 || responses[0].Error == nil {
		t.Fatalf("responses = %+v", responses)
	}
	if !strings.Contains(*responses[0].Error, "invalid args") {
		t.Errorf("error = %q", *responses[0].Error)
	}
}

func TestServe_SkipsBlankLines(t *testing.T) {
	responses := serve(t, "\n\n"+`{"id":"1","tool":"list-profiles"}`+"\n\n")

	if len(responses) != 1 {
		t.Fatalf("got %d responses, want 1", len(responses))
	}
}

func TestServe_PanicRecovered(t *testing.T) {
	h := testHandler()
	h.BuildBinding = func(ctx context.Context, snap session.Snapshot) map[string]any {
		panic("binding blew up")
	}
	h.Session.Select("dev", &resolver.Credentials{AccessKeyID: "a", SecretAccessKey: "b"}, "")

	var out bytes.Buffer
	s := New(h)
	err := s.Serve(context.Background(), strings.NewReader(`{"id":"1","tool":"run-script","args":{"code":"return 1"}}`+"\n"), &out)
	if err != nil {
		t.Fatalf("Serve() error = %v", err)
	}

	var resp Response
	if err := json.Unmarshal(bytes.TrimSpace(out.Bytes()), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Error == nil || !strings.Contains(*resp.Error, "internal error") {
		t.Errorf("response = %+v", resp)
	}
}

package awsbinding

import (
	"context"
	"testing"

	"github.com/awsgate/awsgate/internal/resolver"
	"github.com/awsgate/awsgate/internal/session"
)

func testSnapshot() session.Snapshot {
	return session.Snapshot{
		Profile: "dev",
		Region:  "eu-west-1",
		Credentials: &resolver.Credentials{
			AccessKeyID:     "AKIATEST",
			SecretAccessKey: "secret",
			SessionToken:    "token",
		},
	}
}

func TestBuild_Shape(t *testing.T) {
	binding := Build(context.Background(), testSnapshot())

	if binding["profile"] != "dev" {
		t.Errorf("profile = %v, want dev", binding["profile"])
	}
	if binding["region"] != "eu-west-1" {
		t.Errorf("region = %v, want eu-west-1", binding["region"])
	}

	for _, ns := range []string{"sts", "iam", "secretsmanager"} {
		if _, ok := binding[ns].(map[string]any); !ok {
			t.Errorf("namespace %q missing or wrong type", ns)
		}
	}

	stsNS := binding["sts"].(map[string]any)
	for _, op := range []string{"getCallerIdentity", "assumeRole"} {
		if stsNS[op] == nil {
			t.Errorf("sts.%s missing", op)
		}
	}
}

func TestSDKConfig_StaticCredentials(t *testing.T) {
	cfg := sdkConfig(testSnapshot())

	if cfg.Region != "eu-west-1" {
		t.Errorf("Region = %q, want eu-west-1", cfg.Region)
	}

	creds, err := cfg.Credentials.Retrieve(context.Background())
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if creds.AccessKeyID != "AKIATEST" || creds.SessionToken != "token" {
		t.Errorf("credentials = %+v", creds)
	}
}

func TestSDKConfig_NoCredentials(t *testing.T) {
	cfg := sdkConfig(session.Snapshot{Region: "us-east-1"})
	if cfg.Credentials != nil {
		t.Error("Credentials should be nil without a resolved triple")
	}
}

func TestToPlain(t *testing.T) {
	type inner struct{ Name string }
	out, err := toPlain(struct {
		Count int
		Inner inner
	}{Count: 2, Inner: inner{Name: "x"}})
	if err != nil {
		t.Fatalf("toPlain() error = %v", err)
	}

	m, ok := out.(map[string]any)
	if !ok {
		t.Fatalf("out = %T, want map", out)
	}
	if m["Count"] != float64(2) {
		t.Errorf("Count = %v", m["Count"])
	}
	if m["Inner"].(map[string]any)["Name"] != "x" {
		t.Errorf("Inner = %v", m["Inner"])
	}
}

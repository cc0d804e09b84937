// Package awsbinding builds the capability object a script sees as `aws`.
//
// The object is the only bridge between the sandbox and the account: a set of
// per-service namespaces backed by SDK clients configured with the session's
// resolved credentials. Errors from the SDK surface into the script as thrown
// exceptions; results come back as plain JSON-shaped objects.
package awsbinding

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/sts"

	"github.com/awsgate/awsgate/internal/session"
)

// Build assembles the `aws` object for one script run against the given
// session snapshot. The context bounds every SDK call the script makes.
func Build(ctx context.Context, snap session.Snapshot) map[string]any {
	cfg := sdkConfig(snap)

	return map[string]any{
		"profile":        snap.Profile,
		"region":         snap.Region,
		"sts":            stsNamespace(ctx, cfg),
		"iam":            iamNamespace(ctx, cfg),
		"secretsmanager": secretsNamespace(ctx, cfg),
	}
}

// sdkConfig builds an SDK config carrying the session's static credentials.
func sdkConfig(snap session.Snapshot) aws.Config {
	cfg := aws.Config{Region: snap.Region}
	if snap.Credentials != nil {
		cfg.Credentials = credentials.NewStaticCredentialsProvider(
			snap.Credentials.AccessKeyID,
			snap.Credentials.SecretAccessKey,
			snap.Credentials.SessionToken,
		)
	}
	return cfg
}

func stsNamespace(ctx context.Context, cfg aws.Config) map[string]any {
	client := sts.NewFromConfig(cfg)
	return map[string]any{
		"getCallerIdentity": func() (any, error) {
			out, err := client.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
			if err != nil {
				return nil, err
			}
			return toPlain(out)
		},
		"assumeRole": func(roleArn, sessionName string) (any, error) {
			out, err := client.AssumeRole(ctx, &sts.AssumeRoleInput{
				RoleArn:         aws.String(roleArn),
				RoleSessionName: aws.String(sessionName),
			})
			if err != nil {
				return nil, err
			}
			return toPlain(out)
		},
	}
}

func iamNamespace(ctx context.Context, cfg aws.Config) map[string]any {
	client := iam.NewFromConfig(cfg)
	return map[string]any{
		"getUser": func() (any, error) {
			out, err := client.GetUser(ctx, &iam.GetUserInput{})
			if err != nil {
				return nil, err
			}
			return toPlain(out)
		},
		"listUsers": func() (any, error) {
			out, err := client.ListUsers(ctx, &iam.ListUsersInput{})
			if err != nil {
				return nil, err
			}
			return toPlain(out)
		},
		"listRoles": func() (any, error) {
			out, err := client.ListRoles(ctx, &iam.ListRolesInput{})
			if err != nil {
				return nil, err
			}
			return toPlain(out)
		},
	}
}

func secretsNamespace(ctx context.Context, cfg aws.Config) map[string]any {
	client := secretsmanager.NewFromConfig(cfg)
	return map[string]any{
		"listSecrets": func() (any, error) {
			out, err := client.ListSecrets(ctx, &secretsmanager.ListSecretsInput{})
			if err != nil {
				return nil, err
			}
			return toPlain(out)
		},
		"getSecretValue": func(secretID string) (any, error) {
			out, err := client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
				SecretId: aws.String(secretID),
			})
			if err != nil {
				return nil, err
			}
			return toPlain(out)
		},
	}
}

// toPlain flattens an SDK response into JSON-shaped maps and slices so the
// script sees plain objects instead of reflected Go structs.
func toPlain(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("converting response: %w", err)
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("converting response: %w", err)
	}
	return out, nil
}

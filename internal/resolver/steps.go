package resolver

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials/ec2rolecreds"
	"github.com/aws/aws-sdk-go-v2/credentials/processcreds"
	"github.com/aws/aws-sdk-go-v2/feature/ec2/imds"
	"github.com/aws/smithy-go"

	"github.com/awsgate/awsgate/internal/awsconfig"
	"github.com/awsgate/awsgate/internal/log"
)

// DefaultSteps builds the real provider chain for a profile: the SDK's
// unified chain first, then the legacy ordered providers. Order is fixed;
// each step's failure falls through to the next.
func DefaultSteps(profile awsconfig.Profile) []Step {
	return []Step{
		{Name: "default-chain", Resolve: defaultChainStep(profile)},
		{Name: "shared-file", Resolve: sharedFileStep(profile)},
		{Name: "process", Resolve: processStep(profile)},
		{Name: "env-aws", Resolve: envStep("AWS")},
		{Name: "env-amazon", Resolve: envStep("AMAZON")},
		{Name: "instance-metadata", Resolve: instanceMetadataStep()},
	}
}

// defaultChainStep resolves through the SDK's own chain for the profile:
// env vars, shared config, credential process, IMDS, and assume-role
// chaining all come for free.
func defaultChainStep(profile awsconfig.Profile) func(ctx context.Context) (*Credentials, error) {
	return func(ctx context.Context) (*Credentials, error) {
		cfg, err := config.LoadDefaultConfig(ctx, config.WithSharedConfigProfile(profile.Name))
		if err != nil {
			return nil, fmt.Errorf("loading shared config for %q: %w", profile.Name, err)
		}
		creds, err := cfg.Credentials.Retrieve(ctx)
		if err != nil {
			return nil, err
		}
		return fromSDK(creds), nil
	}
}

// sharedFileStep uses static keys from the profile's own configuration.
func sharedFileStep(profile awsconfig.Profile) func(ctx context.Context) (*Credentials, error) {
	return func(context.Context) (*Credentials, error) {
		if profile.AccessKeyID == "" || profile.SecretAccessKey == "" {
			return nil, fmt.Errorf("profile %q has no static access keys", profile.Name)
		}
		return &Credentials{
			AccessKeyID:     profile.AccessKeyID,
			SecretAccessKey: profile.SecretAccessKey,
			SessionToken:    profile.SessionToken,
		}, nil
	}
}

// processStep runs the profile's credential_process command.
func processStep(profile awsconfig.Profile) func(ctx context.Context) (*Credentials, error) {
	return func(ctx context.Context) (*Credentials, error) {
		if profile.CredentialProcess == "" {
			return nil, fmt.Errorf("profile %q has no credential_process", profile.Name)
		}
		creds, err := processcreds.NewProvider(profile.CredentialProcess).Retrieve(ctx)
		if err != nil {
			return nil, err
		}
		return fromSDK(creds), nil
	}
}

// envStep reads <PREFIX>_ACCESS_KEY_ID / <PREFIX>_SECRET_ACCESS_KEY /
// <PREFIX>_SESSION_TOKEN from the environment.
func envStep(prefix string) func(ctx context.Context) (*Credentials, error) {
	return func(context.Context) (*Credentials, error) {
		accessKey := os.Getenv(prefix + "_ACCESS_KEY_ID")
		secretKey := os.Getenv(prefix + "_SECRET_ACCESS_KEY")
		if accessKey == "" || secretKey == "" {
			return nil, fmt.Errorf("environment variables %s_ACCESS_KEY_ID/%s_SECRET_ACCESS_KEY not set", prefix, prefix)
		}
		return &Credentials{
			AccessKeyID:     accessKey,
			SecretAccessKey: secretKey,
			SessionToken:    os.Getenv(prefix + "_SESSION_TOKEN"),
		}, nil
	}
}

// instanceMetadataStep pulls role credentials from EC2 instance metadata.
func instanceMetadataStep() func(ctx context.Context) (*Credentials, error) {
	return func(ctx context.Context) (*Credentials, error) {
		provider := ec2rolecreds.New(func(o *ec2rolecreds.Options) {
			o.Client = imds.New(imds.Options{})
		})
		creds, err := provider.Retrieve(ctx)
		if err != nil {
			return nil, err
		}
		return fromSDK(creds), nil
	}
}

func fromSDK(creds aws.Credentials) *Credentials {
	out := &Credentials{
		AccessKeyID:     creds.AccessKeyID,
		SecretAccessKey: creds.SecretAccessKey,
		SessionToken:    creds.SessionToken,
		Source:          creds.Source,
	}
	if creds.CanExpire {
		out.Expires = creds.Expires
	}
	return out
}

// logStepFailure records one abandoned chain step, with the service error
// code when the failure came from an AWS API.
func logStepFailure(step, profile string, err error) {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		log.Debug("provider step abandoned", "step", step, "profile", profile,
			"code", apiErr.ErrorCode(), "error", err)
		return
	}
	log.Debug("provider step abandoned", "step", step, "profile", profile, "error", err)
}

package resolver

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sso"
)

// ExchangeRoleCredentials trades a cached SSO access token for temporary role
// credentials via the SSO service. GetRoleCredentials authenticates with the
// bearer token alone, so the client is built with anonymous credentials.
func ExchangeRoleCredentials(ctx context.Context, in ExchangeInput) (*Credentials, error) {
	if in.AccountID == "" || in.RoleName == "" {
		return nil, fmt.Errorf("profile is missing sso_account_id or sso_role_name")
	}

	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(in.Region),
		config.WithCredentialsProvider(aws.AnonymousCredentials{}),
	)
	if err != nil {
		return nil, fmt.Errorf("building SSO client config: %w", err)
	}

	client := sso.NewFromConfig(cfg)
	out, err := client.GetRoleCredentials(ctx, &sso.GetRoleCredentialsInput{
		AccessToken: aws.String(in.AccessToken),
		AccountId:   aws.String(in.AccountID),
		RoleName:    aws.String(in.RoleName),
	})
	if err != nil {
		return nil, err
	}
	if out.RoleCredentials == nil {
		return nil, fmt.Errorf("empty role credentials in response")
	}

	rc := out.RoleCredentials
	creds := &Credentials{
		AccessKeyID:     aws.ToString(rc.AccessKeyId),
		SecretAccessKey: aws.ToString(rc.SecretAccessKey),
		SessionToken:    aws.ToString(rc.SessionToken),
	}
	// A zero expiration means the field was absent; the caller treats the
	// tuple as incomplete and falls through.
	if rc.Expiration != 0 {
		creds.Expires = time.UnixMilli(rc.Expiration).UTC()
	}
	return creds, nil
}

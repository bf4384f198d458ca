package aws

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

const kubernetesTokenPath = "/var/run/secrets/kubernetes.io/serviceaccount/token"

// Identity is the AWS principal that owns the generated permit keys.
type Identity struct {
	Account string
	Arn     string
}

// LoadAWSConfig resolves credentials for the owner key backend. Outside
// Kubernetes the shared profile from AWS_PROFILE is used.
func LoadAWSConfig(ctx context.Context, region string) (aws.Config, error) {
	return config.LoadDefaultConfig(ctx, loadOptions(region, isInKubernetes())...)
}

func loadOptions(region string, inKubernetes bool) []func(*config.LoadOptions) error {
	var options []func(*config.LoadOptions) error
	if !inKubernetes {
		options = append(options, config.WithSharedConfigProfile(getProfile()))
	}
	if region != "" {
		options = append(options, config.WithRegion(region))
	}
	return options
}

func isInKubernetes() bool {
	_, err := os.Stat(kubernetesTokenPath)
	return err == nil
}

func getProfile() string {
	if profile := os.Getenv("AWS_PROFILE"); profile != "" {
		return profile
	}
	return "default"
}

// ResolveIdentity asks STS who the loaded credentials belong to. The server
// calls it at startup so a bad credential chain fails before any wallet is created.
func ResolveIdentity(ctx context.Context, cfg aws.Config) (*Identity, error) {
	out, err := sts.NewFromConfig(cfg).GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return nil, fmt.Errorf("failed to resolve AWS caller identity: %w", err)
	}
	return &Identity{
		Account: aws.ToString(out.Account),
		Arn:     aws.ToString(out.Arn),
	}, nil
}

//go:build e2e

// Package e2e exercises the AWS scan path against a real account.
// Tests skip themselves when no credentials are configured; nothing in
// this suite mutates cloud state.
package e2e

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

// TestEnvironment holds e2e configuration read from env vars
type TestEnvironment struct {
	AWSRegion  string
	TestPrefix string
	Timeout    time.Duration
}

// NewTestEnvironment creates an environment with a unique scan prefix,
// so no resource in any real account can match it
func NewTestEnvironment() *TestEnvironment {
	return &TestEnvironment{
		AWSRegion:  getEnvOrDefault("AWS_REGION", "us-east-1"),
		TestPrefix: fmt.Sprintf("bastion-vpn-e2e-%d-", time.Now().Unix()),
		Timeout:    2 * time.Minute,
	}
}

// RequireAWSCredentials skips the test when no valid credentials are
// available
func RequireAWSCredentials(t *testing.T) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		t.Skipf("AWS credentials not configured: %v", err)
	}

	client := sts.NewFromConfig(cfg)
	if _, err := client.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{}); err != nil {
		t.Skipf("AWS credentials invalid: %v", err)
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

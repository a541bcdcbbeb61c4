package stack

import (
	"testing"

	"adoption-infra/config"

	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/aws-cdk-go/awscdk/v2/assertions"
	"github.com/aws/jsii-runtime-go"
)

const (
	testAccount = "123456789012"
	testRegion  = "ap-northeast-1"
	testIP      = "203.0.113.10/32"
	testIP2     = "198.51.100.0/24"
)

// testConfig is a Config that validates for every stack.
func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Account = testAccount
	cfg.Region = testRegion
	cfg.AllowedIPs = []string{testIP, testIP2}
	cfg.WebAllowedIPs = []string{testIP, testIP2}
	cfg.ECS.ExecutionRoleARN = "arn:aws:iam::123456789012:role/ecsTaskExecutionRole"
	cfg.ECS.Image = "123456789012.dkr.ecr.ap-northeast-1.amazonaws.com/adoption-nextjs:latest"
	cfg.ECS.DomainName = "example.com"
	cfg.ECS.SubDomainName = "app"
	cfg.RDS.Schemas = []string{"app"}
	cfg.CICD = config.CICDConfig{
		VpcID:               "vpc-0123456789abcdef0",
		EcrRepositoryName:   "adoption-go",
		EcrURI:              "123456789012.dkr.ecr.ap-northeast-1.amazonaws.com/adoption-go",
		ClusterName:         "AdoptionCluster",
		CodeCommitRepo:      "adoption_go",
		ServiceARN:          "arn:aws:ecs:ap-northeast-1:123456789012:service/AdoptionCluster/backend",
		ContainerName:       "AdoptionGoContainer",
		Branch:              "main",
		DockerHubSecretName: "dockerhub",
	}
	return cfg
}

// newTestApp returns an app that skips asset bundling.
func newTestApp() awscdk.App {
	return awscdk.NewApp(&awscdk.AppProps{
		Context: &map[string]interface{}{
			"aws:cdk:bundling-stacks": []interface{}{},
		},
	})
}

func testProps(cfg *config.Config) *StackProps {
	return &StackProps{
		StackProps: awscdk.StackProps{Env: Env(cfg)},
		Config:     cfg,
	}
}

func templateOf(t *testing.T, stack awscdk.Stack) assertions.Template {
	t.Helper()
	return assertions.Template_FromStack(stack, nil)
}

func obj(m map[string]interface{}) assertions.Matcher {
	return assertions.Match_ObjectLike(&m)
}

func arrayWith(items ...interface{}) assertions.Matcher {
	return assertions.Match_ArrayWith(&items)
}

func count(n int) *float64 {
	return jsii.Number(n)
}

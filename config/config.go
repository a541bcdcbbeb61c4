// Package config holds the typed settings the adoption stacks are built from.
package config

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Stack identifiers. These double as the CloudFormation stack names.
const (
	StackEC2        = "AdoptionEC2Stack"
	StackDockerHost = "AdoptionStack"
	StackECR        = "EcrStack"
	StackECS        = "EcsStack"
	StackRDS        = "AuroraPostgresAndRedisWithBastionStack"
	StackCICD       = "CICD3Stack"
	StackAmplify    = "AmplifyNextAppStack"
)

// AllStacks lists every stack the app knows how to build, in synthesis order.
var AllStacks = []string{
	StackEC2,
	StackDockerHost,
	StackECR,
	StackECS,
	StackRDS,
	StackCICD,
	StackAmplify,
}

// DefaultParameterPrefix is the SSM path every stack publishes its outputs under.
const DefaultParameterPrefix = "/adoption"

// Config is the fully resolved configuration for one synthesis run.
type Config struct {
	Account string
	Region  string

	// AllowedIPs are the CIDRs granted access to the EC2 hosts.
	AllowedIPs []string
	// WebAllowedIPs are the CIDRs let through the ALB listener rules and the WAF.
	WebAllowedIPs []string
	// HostIngress is the port table opened to each of AllowedIPs.
	HostIngress []IngressRule

	ParameterPrefix string
	Stacks          []string

	EC2     EC2Config
	ECR     ECRConfig
	ECS     ECSConfig
	RDS     RDSConfig
	CICD    CICDConfig
	Amplify AmplifyConfig
}

// EC2Config configures the two development host stacks.
type EC2Config struct {
	KeyName string
}

// ECRConfig configures the image repository stack.
type ECRConfig struct {
	RepositoryName string
	// DockerfileDir, when set, is built and pushed as an image asset.
	DockerfileDir string
}

// ECSConfig configures the Fargate frontend, its ALB and DNS name.
type ECSConfig struct {
	ExecutionRoleARN string
	Image            string
	ContainerName    string
	ContainerPort    int
	CPU              int
	MemoryMiB        int
	DesiredCount     int
	HealthCheckPath  string
	DomainName       string
	SubDomainName    string
}

// FQDN is the record the ALB alias and certificate are issued for.
func (c ECSConfig) FQDN() string {
	return c.SubDomainName + "." + c.DomainName
}

// RDSConfig configures Aurora PostgreSQL, Redis, the bastion and the
// database bootstrap.
type RDSConfig struct {
	BastionCIDR    string
	DatabaseName   string
	MasterUsername string
	EngineVersion  string
	InstanceClass  string
	Readers        int
	RedisNodeType  string
	Extensions     []string
	Schemas        []string
}

// CICDConfig names the existing resources the backend pipeline deploys to.
type CICDConfig struct {
	VpcID               string
	EcrRepositoryName   string
	EcrURI              string
	ClusterName         string
	CodeCommitRepo      string
	ServiceARN          string
	ContainerName       string
	Branch              string
	DockerHubSecretName string
}

// AmplifyConfig configures the Amplify app source.
type AmplifyConfig struct {
	Repository string
	Branch     string
}

// MinEngineMajorVersion is the oldest Aurora PostgreSQL major still accepted.
const MinEngineMajorVersion = 13

// EngineMajorVersion returns the major part of EngineVersion ("15.12" -> "15").
func (c RDSConfig) EngineMajorVersion() (string, error) {
	major, minor, ok := strings.Cut(c.EngineVersion, ".")
	if !ok || minor == "" {
		return "", errors.Errorf("DB_ENGINE_VERSION %q is not major.minor", c.EngineVersion)
	}
	n, err := strconv.Atoi(major)
	if err != nil {
		return "", errors.Errorf("DB_ENGINE_VERSION %q is not major.minor", c.EngineVersion)
	}
	if n < MinEngineMajorVersion {
		return "", errors.Errorf("DB_ENGINE_VERSION %q is older than %d", c.EngineVersion, MinEngineMajorVersion)
	}
	return major, nil
}

// Default returns a Config with every non-environment-specific value filled in.
func Default() *Config {
	return &Config{
		HostIngress:     DefaultHostIngress(),
		ParameterPrefix: DefaultParameterPrefix,
		Stacks:          append([]string(nil), AllStacks...),
		EC2: EC2Config{
			KeyName: "key",
		},
		ECR: ECRConfig{
			RepositoryName: "my-ecr-repo",
		},
		ECS: ECSConfig{
			ContainerName:   "AdoptionNextJsContainer",
			ContainerPort:   3000,
			CPU:             256,
			MemoryMiB:       512,
			DesiredCount:    1,
			HealthCheckPath: "/",
		},
		RDS: RDSConfig{
			BastionCIDR:    "0.0.0.0/0",
			DatabaseName:   "wordpress_dev",
			MasterUsername: "adoption_admin",
			EngineVersion:  "15.12",
			InstanceClass:  "t3.medium",
			Readers:        1,
			RedisNodeType:  "cache.t3.micro",
			Extensions:     []string{"pgcrypto"},
		},
		CICD: CICDConfig{
			Branch: "main",
		},
		Amplify: AmplifyConfig{
			Repository: "adoption_nextjs",
			Branch:     "main",
		},
	}
}

// Selected reports whether the stack with the given id is part of this run.
func (c *Config) Selected(id string) bool {
	for _, s := range c.Stacks {
		if s == id {
			return true
		}
	}
	return false
}

package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// LookupFunc has the shape of os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// Load reads .env (if present) into the process environment, then builds the
// Config from the environment and the optional YAML file named by
// ADOPTION_CONFIG.
func Load(dotenvPath string) (*Config, error) {
	if dotenvPath == "" {
		dotenvPath = ".env"
	}
	if err := godotenv.Load(dotenvPath); err != nil {
		if !os.IsNotExist(err) {
			return nil, errors.Wrapf(err, "loading %s", dotenvPath)
		}
		zap.S().Debugf("no %s file, using process environment only", dotenvPath)
	}
	return FromEnv(os.LookupEnv)
}

// FromEnv builds a Config from the given environment lookup.
func FromEnv(lookup LookupFunc) (*Config, error) {
	cfg := Default()
	get := func(key string) string {
		v, _ := lookup(key)
		return strings.TrimSpace(v)
	}

	cfg.Account = get("CDK_DEFAULT_ACCOUNT")
	cfg.Region = get("CDK_DEFAULT_REGION")

	hostIPs := []string{get("SG_IP"), get("SG_IP2"), get("SG_IP3"), get("SG_IP4")}
	allowed, err := NormalizeCIDRs(hostIPs)
	if err != nil {
		return nil, errors.Wrap(err, "SG_IP*")
	}
	cfg.AllowedIPs = allowed

	webIPs := hostIPs[:2]
	if v := get("WEB_ALLOWED_IPS"); v != "" {
		webIPs = splitList(v)
	}
	if cfg.WebAllowedIPs, err = NormalizeCIDRs(webIPs); err != nil {
		return nil, errors.Wrap(err, "WEB_ALLOWED_IPS")
	}

	if v := get("BASTION_IP"); v != "" {
		if cfg.RDS.BastionCIDR, err = NormalizeCIDR(v); err != nil {
			return nil, errors.Wrap(err, "BASTION_IP")
		}
	}
	if v := get("ADOPTION_PARAMETER_PREFIX"); v != "" {
		cfg.ParameterPrefix = "/" + strings.Trim(v, "/")
	}
	if v := get("ADOPTION_STACKS"); v != "" {
		if cfg.Stacks, err = ParseStacks(v); err != nil {
			return nil, err
		}
	}

	setString(&cfg.EC2.KeyName, get("EC2_KEY_NAME"))

	if v, ok := lookup("ECR_REPOSITORY_NAME"); ok {
		cfg.ECR.RepositoryName = strings.TrimSpace(v)
	}
	cfg.ECR.DockerfileDir = get("ECR_DOCKERFILE_DIR")

	cfg.ECS.ExecutionRoleARN = get("ROLE_ARN")
	cfg.ECS.Image = get("ECR_URI_ADOPTION_NEXTJS")
	cfg.ECS.DomainName = get("DOMAIN_NAME")
	cfg.ECS.SubDomainName = get("SUB_DOMAIN_NAME")
	setString(&cfg.ECS.ContainerName, get("ECS_CONTAINER_NAME"))
	if err := setInt(&cfg.ECS.ContainerPort, "ECS_CONTAINER_PORT", get("ECS_CONTAINER_PORT")); err != nil {
		return nil, err
	}
	if err := setInt(&cfg.ECS.DesiredCount, "ECS_DESIRED_COUNT", get("ECS_DESIRED_COUNT")); err != nil {
		return nil, err
	}

	setString(&cfg.RDS.DatabaseName, get("DB_NAME"))
	setString(&cfg.RDS.MasterUsername, get("DB_MASTER_USERNAME"))
	setString(&cfg.RDS.EngineVersion, get("DB_ENGINE_VERSION"))
	setString(&cfg.RDS.InstanceClass, get("DB_INSTANCE_CLASS"))
	if err := setInt(&cfg.RDS.Readers, "DB_READERS", get("DB_READERS")); err != nil {
		return nil, err
	}
	if v, ok := lookup("DB_EXTENSIONS"); ok {
		cfg.RDS.Extensions = splitList(v)
	}
	if v, ok := lookup("DB_SCHEMAS"); ok {
		cfg.RDS.Schemas = splitList(v)
	}

	cfg.CICD.VpcID = get("VPC_ID")
	cfg.CICD.EcrRepositoryName = get("ECR_NAME_ADOPTION_GO")
	cfg.CICD.EcrURI = get("ECR_URI_ADOPTION_GO")
	cfg.CICD.ClusterName = get("CLUSTER")
	cfg.CICD.CodeCommitRepo = get("CODECOMMIT_ADOPTION_GO")
	cfg.CICD.ServiceARN = get("ECS_BACKEND_ARN")
	cfg.CICD.ContainerName = get("BACKEND_CONTAINER_NAME")
	cfg.CICD.DockerHubSecretName = get("DOCKERHUB_SECRET_NAME")
	setString(&cfg.CICD.Branch, get("CODECOMMIT_BRANCH"))

	setString(&cfg.Amplify.Repository, get("AMPLIFY_REPOSITORY"))
	setString(&cfg.Amplify.Branch, get("AMPLIFY_BRANCH"))

	if path := get("ADOPTION_CONFIG"); path != "" {
		if err := cfg.ApplyFile(path); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// ParseStacks parses a comma separated list of stack ids.
func ParseStacks(v string) ([]string, error) {
	var out []string
	for _, id := range splitList(v) {
		if !known(id) {
			return nil, errors.Errorf("unknown stack %q (known: %s)", id, strings.Join(AllStacks, ", "))
		}
		out = append(out, id)
	}
	if len(out) == 0 {
		return nil, errors.New("no stacks selected")
	}
	return out, nil
}

func known(id string) bool {
	for _, s := range AllStacks {
		if s == id {
			return true
		}
	}
	return false
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, key, v string) error {
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return errors.Wrapf(err, "%s", key)
	}
	*dst = n
	return nil
}

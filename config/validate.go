package config

import (
	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// MissingError reports a required environment variable that was left unset.
type MissingError struct {
	Stack string
	Key   string
}

func (e *MissingError) Error() string {
	return e.Stack + ": " + e.Key + " is not set"
}

// Validate checks that every selected stack has what it needs. All problems
// are returned together.
func (c *Config) Validate() error {
	var err error
	if len(c.Stacks) == 0 {
		return errors.New("no stacks selected")
	}
	if ierr := validateIngress(c.HostIngress); ierr != nil {
		err = multierr.Append(err, errors.Wrap(ierr, "host ingress"))
	}

	require := func(stack, key, value string) {
		if value == "" {
			err = multierr.Append(err, &MissingError{Stack: stack, Key: key})
		}
	}

	for _, id := range c.Stacks {
		switch id {
		case StackEC2, StackDockerHost:
			if len(c.AllowedIPs) == 0 {
				err = multierr.Append(err, &MissingError{Stack: id, Key: "SG_IP"})
			}
			if len(c.HostIngress) == 0 {
				err = multierr.Append(err, errors.Errorf("%s: host ingress table is empty", id))
			}
		case StackECR:
			require(id, "ECR_REPOSITORY_NAME", c.ECR.RepositoryName)
		case StackECS:
			require(id, "CDK_DEFAULT_ACCOUNT", c.Account)
			require(id, "CDK_DEFAULT_REGION", c.Region)
			require(id, "ROLE_ARN", c.ECS.ExecutionRoleARN)
			require(id, "ECR_URI_ADOPTION_NEXTJS", c.ECS.Image)
			require(id, "DOMAIN_NAME", c.ECS.DomainName)
			require(id, "SUB_DOMAIN_NAME", c.ECS.SubDomainName)
			if len(c.WebAllowedIPs) == 0 {
				err = multierr.Append(err, &MissingError{Stack: id, Key: "SG_IP"})
			}
			if c.ECS.ContainerPort < 1 || c.ECS.ContainerPort > 65535 {
				err = multierr.Append(err, errors.Errorf("%s: container port %d out of range", id, c.ECS.ContainerPort))
			}
		case StackRDS:
			require(id, "DB_NAME", c.RDS.DatabaseName)
			if c.RDS.Readers < 0 {
				err = multierr.Append(err, errors.Errorf("%s: DB_READERS must not be negative", id))
			}
			if _, verr := c.RDS.EngineMajorVersion(); verr != nil {
				err = multierr.Append(err, errors.Wrapf(verr, "%s", id))
			}
		case StackCICD:
			require(id, "CDK_DEFAULT_ACCOUNT", c.Account)
			require(id, "CDK_DEFAULT_REGION", c.Region)
			require(id, "VPC_ID", c.CICD.VpcID)
			require(id, "ECR_NAME_ADOPTION_GO", c.CICD.EcrRepositoryName)
			require(id, "ECR_URI_ADOPTION_GO", c.CICD.EcrURI)
			require(id, "CLUSTER", c.CICD.ClusterName)
			require(id, "CODECOMMIT_ADOPTION_GO", c.CICD.CodeCommitRepo)
			require(id, "ECS_BACKEND_ARN", c.CICD.ServiceARN)
			require(id, "BACKEND_CONTAINER_NAME", c.CICD.ContainerName)
		case StackAmplify:
			require(id, "AMPLIFY_REPOSITORY", c.Amplify.Repository)
			if len(c.WebAllowedIPs) == 0 {
				err = multierr.Append(err, &MissingError{Stack: id, Key: "SG_IP"})
			}
		}
	}
	return err
}

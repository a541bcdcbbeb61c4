package stack

import (
	"path/filepath"

	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsecr"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsecrassets"
	"github.com/aws/constructs-go/constructs/v10"
	"github.com/aws/jsii-runtime-go"
)

// EcrStack holds the application image repository.
type EcrStack struct {
	awscdk.Stack
	Repository awsecr.Repository
	// Image is nil unless a Dockerfile directory was configured.
	Image awsecrassets.DockerImageAsset
}

// NewEcrStack declares the ECR repository and, when ECR_DOCKERFILE_DIR is
// set, builds that directory as a Docker image asset.
func NewEcrStack(scope constructs.Construct, id string, props *StackProps) *EcrStack {
	cfg := props.Config
	stack := newStack(scope, id, props)

	repository := awsecr.NewRepository(stack, jsii.String("AdoptionEcrRepo"), &awsecr.RepositoryProps{
		RepositoryName: jsii.String(cfg.ECR.RepositoryName),
	})

	awscdk.NewCfnOutput(stack, jsii.String("EcrRepoUri"), &awscdk.CfnOutputProps{
		Value:       repository.RepositoryUri(),
		Description: jsii.String("ECR repository URI"),
	})

	params := map[string]*string{
		"repository-uri":  repository.RepositoryUri(),
		"repository-name": jsii.String(cfg.ECR.RepositoryName),
	}

	var image awsecrassets.DockerImageAsset
	if cfg.ECR.DockerfileDir != "" {
		dir := cfg.ECR.DockerfileDir
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(moduleRoot(), dir)
		}
		image = awsecrassets.NewDockerImageAsset(stack, jsii.String("AdoptionDockerImage"), &awsecrassets.DockerImageAssetProps{
			Directory: jsii.String(dir),
		})
		awscdk.NewCfnOutput(stack, jsii.String("EcrImageUri"), &awscdk.CfnOutputProps{
			Value:       image.ImageUri(),
			Description: jsii.String("URI of the image built from " + cfg.ECR.DockerfileDir),
		})
		params["image-uri"] = image.ImageUri()
	}

	publishParameters(stack, cfg.ParameterPrefix, "ecr", params)

	return &EcrStack{
		Stack:      stack,
		Repository: repository,
		Image:      image,
	}
}

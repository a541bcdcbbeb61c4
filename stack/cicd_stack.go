package stack

import (
	"encoding/json"
	"fmt"

	"adoption-infra/config"

	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/aws-cdk-go/awscdk/v2/awscodebuild"
	"github.com/aws/aws-cdk-go/awscdk/v2/awscodecommit"
	"github.com/aws/aws-cdk-go/awscdk/v2/awscodepipeline"
	"github.com/aws/aws-cdk-go/awscdk/v2/awscodepipelineactions"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsec2"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsecr"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsecs"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsiam"
	"github.com/aws/constructs-go/constructs/v10"
	"github.com/aws/jsii-runtime-go"
)

// ImageDefinitionsFile is the artifact the ECS deploy action reads.
const ImageDefinitionsFile = "imagedefinitions.json"

type imageDefinition struct {
	Name     string `json:"name"`
	ImageURI string `json:"imageUri"`
}

// ImageDefinitions renders imagedefinitions.json for one container.
func ImageDefinitions(containerName, imageURI string) string {
	b, err := json.Marshal([]imageDefinition{{Name: containerName, ImageURI: imageURI}})
	if err != nil {
		panic(err)
	}
	return string(b)
}

// BuildSpec is the CodeBuild buildspec that builds the backend image, pushes
// it to ECR and writes imagedefinitions.json. Docker Hub login only happens
// when a credentials secret is configured.
func BuildSpec(cicd config.CICDConfig, region string) map[string]interface{} {
	preBuild := []string{
		"echo Logging in to Amazon ECR...",
		fmt.Sprintf("aws ecr get-login-password --region %s | docker login --username AWS --password-stdin %s", region, cicd.EcrURI),
	}
	if cicd.DockerHubSecretName != "" {
		preBuild = append(preBuild, `echo "$DOCKERHUB_PASSWORD" | docker login --username "$DOCKERHUB_USERNAME" --password-stdin`)
	}

	return map[string]interface{}{
		"version": "0.2",
		"phases": map[string]interface{}{
			"pre_build": map[string]interface{}{
				"commands": preBuild,
			},
			"build": map[string]interface{}{
				"commands": []string{
					"echo Build started on `date`",
					fmt.Sprintf("docker build -t %s -f ./Dockerfile .", cicd.EcrURI),
					fmt.Sprintf("docker push %s", cicd.EcrURI),
				},
			},
			"post_build": map[string]interface{}{
				"commands": []string{
					"echo Build completed on `date`",
					fmt.Sprintf("printf '%%s' '%s' > %s", ImageDefinitions(cicd.ContainerName, cicd.EcrURI), ImageDefinitionsFile),
				},
			},
		},
		"artifacts": map[string]interface{}{
			"files":          []string{ImageDefinitionsFile},
			"base-directory": ".",
		},
	}
}

// ecrPushActions are granted to the build role on every repository.
var ecrPushActions = []string{
	"ecr:GetDownloadUrlForLayer",
	"ecr:BatchGetImage",
	"ecr:BatchCheckLayerAvailability",
	"ecr:GetAuthorizationToken",
	"ecr:PutImage",
	"ecr:InitiateLayerUpload",
	"ecr:UploadLayerPart",
	"ecr:CompleteLayerUpload",
}

// CicdStack is the CodeCommit -> CodeBuild -> ECS deploy pipeline for the Go
// backend. Every target resource already exists and is imported.
type CicdStack struct {
	awscdk.Stack
	Project  awscodebuild.PipelineProject
	Pipeline awscodepipeline.Pipeline
}

// NewCicdStack declares the pipeline. Env must carry a concrete account and
// region for the VPC lookup.
func NewCicdStack(scope constructs.Construct, id string, props *StackProps) *CicdStack {
	cfg := props.Config
	cicd := cfg.CICD
	stack := newStack(scope, id, props)

	vpc := awsec2.Vpc_FromLookup(stack, jsii.String("AdoptionImportedVpc"), &awsec2.VpcLookupOptions{
		VpcId: jsii.String(cicd.VpcID),
	})
	repository := awsecr.Repository_FromRepositoryName(stack, jsii.String("AdoptionECRBackend"), jsii.String(cicd.EcrRepositoryName))
	cluster := awsecs.Cluster_FromClusterAttributes(stack, jsii.String("AdoptionCluster"), &awsecs.ClusterAttributes{
		ClusterName: jsii.String(cicd.ClusterName),
		Vpc:         vpc,
	})
	sourceRepo := awscodecommit.Repository_FromRepositoryName(stack, jsii.String("AdoptionCodeCommitRepo"), jsii.String(cicd.CodeCommitRepo))

	sourceOutput := awscodepipeline.NewArtifact(jsii.String("SourceOutput"), nil)
	buildOutput := awscodepipeline.NewArtifact(jsii.String("BuildOutput"), nil)

	env := map[string]*awscodebuild.BuildEnvironmentVariable{}
	if cicd.DockerHubSecretName != "" {
		env["DOCKERHUB_USERNAME"] = &awscodebuild.BuildEnvironmentVariable{
			Type:  awscodebuild.BuildEnvironmentVariableType_SECRETS_MANAGER,
			Value: jsii.String(cicd.DockerHubSecretName + ":username"),
		}
		env["DOCKERHUB_PASSWORD"] = &awscodebuild.BuildEnvironmentVariable{
			Type:  awscodebuild.BuildEnvironmentVariableType_SECRETS_MANAGER,
			Value: jsii.String(cicd.DockerHubSecretName + ":password"),
		}
	}

	project := awscodebuild.NewPipelineProject(stack, jsii.String("BuildProject"), &awscodebuild.PipelineProjectProps{
		Environment: &awscodebuild.BuildEnvironment{
			BuildImage: awscodebuild.LinuxBuildImage_STANDARD_7_0(),
			// Docker-in-Docker needs privileged mode.
			Privileged: jsii.Bool(true),
		},
		EnvironmentVariables: &env,
		BuildSpec:            awscodebuild.BuildSpec_FromObject(toJsiiMap(BuildSpec(cicd, cfg.Region))),
	})

	project.AddToRolePolicy(awsiam.NewPolicyStatement(&awsiam.PolicyStatementProps{
		Effect:    awsiam.Effect_ALLOW,
		Actions:   jsii.Strings(ecrPushActions...),
		Resources: jsii.Strings("*"),
	}))

	service := awsecs.FargateService_FromFargateServiceAttributes(stack, jsii.String("AdoptionService"), &awsecs.FargateServiceAttributes{
		ServiceArn: jsii.String(cicd.ServiceARN),
		Cluster:    cluster,
	})

	pipeline := awscodepipeline.NewPipeline(stack, jsii.String("AdoptionPipeline"), &awscodepipeline.PipelineProps{
		Stages: &[]*awscodepipeline.StageProps{
			{
				StageName: jsii.String("Source"),
				Actions: &[]awscodepipeline.IAction{
					awscodepipelineactions.NewCodeCommitSourceAction(&awscodepipelineactions.CodeCommitSourceActionProps{
						ActionName: jsii.String("CodeCommit"),
						Repository: sourceRepo,
						Branch:     jsii.String(cicd.Branch),
						Output:     sourceOutput,
					}),
				},
			},
			{
				StageName: jsii.String("Build"),
				Actions: &[]awscodepipeline.IAction{
					awscodepipelineactions.NewCodeBuildAction(&awscodepipelineactions.CodeBuildActionProps{
						ActionName: jsii.String("CodeBuild"),
						Project:    project,
						Input:      sourceOutput,
						Outputs:    &[]awscodepipeline.Artifact{buildOutput},
					}),
				},
			},
			{
				StageName: jsii.String("Deploy"),
				Actions: &[]awscodepipeline.IAction{
					awscodepipelineactions.NewEcsDeployAction(&awscodepipelineactions.EcsDeployActionProps{
						ActionName: jsii.String("ECSDeploy"),
						Service:    service,
						Input:      buildOutput,
					}),
				},
			},
		},
	})

	repository.GrantPullPush(project.Role())

	awscdk.NewCfnOutput(stack, jsii.String("AdoptionPipelineName"), &awscdk.CfnOutputProps{
		Value:       pipeline.PipelineName(),
		Description: jsii.String("Backend CodePipeline name"),
	})

	publishParameters(stack, cfg.ParameterPrefix, "cicd", map[string]*string{
		"pipeline-name": pipeline.PipelineName(),
		"project-name":  project.ProjectName(),
	})

	return &CicdStack{
		Stack:    stack,
		Project:  project,
		Pipeline: pipeline,
	}
}

// toJsiiMap adapts a plain map to the pointer form BuildSpec_FromObject takes.
func toJsiiMap(m map[string]interface{}) *map[string]interface{} {
	return &m
}

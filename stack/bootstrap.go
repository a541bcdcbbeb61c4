package stack

import (
	"adoption-infra/config"

	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsec2"
	"github.com/aws/aws-cdk-go/awscdk/v2/awslambda"
	"github.com/aws/aws-cdk-go/awscdk/v2/awslogs"
	"github.com/aws/aws-cdk-go/awscdk/v2/awss3assets"
	"github.com/aws/aws-cdk-go/awscdk/v2/customresources"
	"github.com/aws/jsii-runtime-go"
)

// BootstrapResourceType is the CloudFormation type of the database bootstrap
// custom resource.
const BootstrapResourceType = "Custom::AdoptionDatabaseBootstrap"

// BootstrapResources holds the function that prepares the database and the
// custom resource that invokes it on every deploy that changes its inputs.
type BootstrapResources struct {
	Function      awslambda.Function
	SecurityGroup awsec2.SecurityGroup
	Provider      customresources.Provider
	Resource      awscdk.CustomResource
}

// bootstrapCode builds ./lambda/dbinit for arm64 inside the Go image.
func bootstrapCode() awslambda.AssetCode {
	return awslambda.AssetCode_FromAsset(jsii.String(moduleRoot()), &awss3assets.AssetOptions{
		Exclude: jsii.Strings("cdk.out", ".git", "_examples", "**/*_test.go"),
		Bundling: &awscdk.BundlingOptions{
			Image: awscdk.DockerImage_FromRegistry(jsii.String("golang:1.24")),
			Command: jsii.Strings(
				"bash", "-c",
				"go build -tags lambda.norpc -trimpath -o /asset-output/bootstrap ./lambda/dbinit",
			),
			Environment: &map[string]*string{
				"CGO_ENABLED": jsii.String("0"),
				"GOOS":        jsii.String("linux"),
				"GOARCH":      jsii.String("arm64"),
				"GOCACHE":     jsii.String("/tmp/go-cache"),
				"GOPATH":      jsii.String("/tmp/go"),
			},
			User: jsii.String("root"),
		},
	})
}

// createBootstrapResources declares the bootstrap function in the private
// subnets, lets it into the database and wires it to a custom resource.
func createBootstrapResources(stack awscdk.Stack, networking *NetworkingResources, database *DatabaseResources, rds config.RDSConfig) *BootstrapResources {
	sg := awsec2.NewSecurityGroup(stack, jsii.String("DbBootstrapSG"), &awsec2.SecurityGroupProps{
		Vpc:              networking.Vpc,
		Description:      jsii.String("Allow outbound connection to Aurora PostgreSQL for database bootstrap"),
		AllowAllOutbound: jsii.Bool(true),
	})
	database.Cluster.Connections().AllowFrom(sg, awsec2.Port_Tcp(jsii.Number(postgresPort)), jsii.String("Allow database bootstrap function"))

	fn := awslambda.NewFunction(stack, jsii.String("DbBootstrapFunction"), &awslambda.FunctionProps{
		Runtime:      awslambda.Runtime_PROVIDED_AL2023(),
		Architecture: awslambda.Architecture_ARM_64(),
		Handler:      jsii.String("bootstrap"),
		Code:         bootstrapCode(),
		Vpc:          networking.Vpc,
		VpcSubnets: &awsec2.SubnetSelection{
			SubnetType: awsec2.SubnetType_PRIVATE_WITH_EGRESS,
		},
		SecurityGroups: &[]awsec2.ISecurityGroup{sg},
		Timeout:        awscdk.Duration_Seconds(jsii.Number(60)),
		MemorySize:     jsii.Number(256),
		Environment: &map[string]*string{
			"LOG_LEVEL": jsii.String("info"),
		},
		ReservedConcurrentExecutions: jsii.Number(1),
	})
	database.Cluster.Secret().GrantRead(fn, nil)

	provider := customresources.NewProvider(stack, jsii.String("DbBootstrapProvider"), &customresources.ProviderProps{
		OnEventHandler: fn,
		LogRetention:   awslogs.RetentionDays_ONE_WEEK,
	})

	resource := awscdk.NewCustomResource(stack, jsii.String("DbBootstrap"), &awscdk.CustomResourceProps{
		ServiceToken: provider.ServiceToken(),
		ResourceType: jsii.String(BootstrapResourceType),
		Properties: &map[string]interface{}{
			"SecretArn":  database.Cluster.Secret().SecretArn(),
			"Database":   rds.DatabaseName,
			"Extensions": stringsOrEmpty(rds.Extensions),
			"Schemas":    stringsOrEmpty(rds.Schemas),
		},
	})
	resource.Node().AddDependency(database.Cluster)

	return &BootstrapResources{
		Function:      fn,
		SecurityGroup: sg,
		Provider:      provider,
		Resource:      resource,
	}
}

func stringsOrEmpty(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}

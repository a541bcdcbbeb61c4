package stack

import (
	"adoption-infra/config"

	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsec2"
	"github.com/aws/aws-cdk-go/awscdk/v2/awselasticache"
	"github.com/aws/aws-cdk-go/awscdk/v2/awslogs"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsrds"
	"github.com/aws/constructs-go/constructs/v10"
	"github.com/aws/jsii-runtime-go"
)

const (
	postgresPort = 5432
	redisPort    = 6379
)

// SecurityGroups holds the three groups of the data stack.
type SecurityGroups struct {
	Database awsec2.SecurityGroup
	Redis    awsec2.SecurityGroup
	Bastion  awsec2.SecurityGroup
}

// DatabaseResources holds the Aurora cluster.
type DatabaseResources struct {
	Cluster awsrds.DatabaseCluster
}

// CacheResources holds the Redis cache cluster.
type CacheResources struct {
	SubnetGroup awselasticache.CfnSubnetGroup
	Cluster     awselasticache.CfnCacheCluster
}

// RdsStack is Aurora PostgreSQL plus Redis in isolated subnets, reachable
// through a bastion host.
type RdsStack struct {
	awscdk.Stack
	Networking     *NetworkingResources
	SecurityGroups *SecurityGroups
	Bastion        awsec2.BastionHostLinux
	Database       *DatabaseResources
	Cache          *CacheResources
	Bootstrap      *BootstrapResources
}

// NewRdsStack declares the data stack.
func NewRdsStack(scope constructs.Construct, id string, props *StackProps) *RdsStack {
	cfg := props.Config
	stack := newStack(scope, id, props)

	networking := createNetworkingResources(stack, "AdoptionRDSVPC", VpcTiered)
	sgs := createDataSecurityGroups(stack, networking, cfg.RDS)

	bastion := awsec2.NewBastionHostLinux(stack, jsii.String("lpdevbastion"), &awsec2.BastionHostLinuxProps{
		Vpc: networking.Vpc,
		SubnetSelection: &awsec2.SubnetSelection{
			SubnetType: awsec2.SubnetType_PUBLIC,
		},
		SecurityGroup: sgs.Bastion,
	})

	database := createDatabaseResources(stack, networking, sgs, cfg.RDS)
	cache := createCacheResources(stack, networking, sgs, cfg.RDS)
	bootstrap := createBootstrapResources(stack, networking, database, cfg.RDS)

	awscdk.NewCfnOutput(stack, jsii.String("lpdevaurorapostgresendpoint"), &awscdk.CfnOutputProps{
		Value:       database.Cluster.ClusterEndpoint().Hostname(),
		Description: jsii.String("Aurora PostgreSQL writer endpoint"),
	})
	awscdk.NewCfnOutput(stack, jsii.String("lpdevredisendpoint"), &awscdk.CfnOutputProps{
		Value:       cache.Cluster.AttrRedisEndpointAddress(),
		Description: jsii.String("Redis endpoint"),
	})
	awscdk.NewCfnOutput(stack, jsii.String("lpdevbastionpublicip"), &awscdk.CfnOutputProps{
		Value:       bastion.InstancePublicIp(),
		Description: jsii.String("Bastion public IP"),
	})
	awscdk.NewCfnOutput(stack, jsii.String("lpdevauroracredentialssecretarn"), &awscdk.CfnOutputProps{
		Value:       database.Cluster.Secret().SecretArn(),
		Description: jsii.String("Aurora master credentials secret ARN"),
	})

	publishParameters(stack, cfg.ParameterPrefix, "rds", map[string]*string{
		"postgres-endpoint":   database.Cluster.ClusterEndpoint().Hostname(),
		"postgres-reader":     database.Cluster.ClusterReadEndpoint().Hostname(),
		"postgres-secret-arn": database.Cluster.Secret().SecretArn(),
		"postgres-database":   jsii.String(cfg.RDS.DatabaseName),
		"redis-endpoint":      cache.Cluster.AttrRedisEndpointAddress(),
		"redis-port":          cache.Cluster.AttrRedisEndpointPort(),
		"bastion-instance-id": bastion.InstanceId(),
		"bastion-public-ip":   bastion.InstancePublicIp(),
	})

	return &RdsStack{
		Stack:          stack,
		Networking:     networking,
		SecurityGroups: sgs,
		Bastion:        bastion,
		Database:       database,
		Cache:          cache,
		Bootstrap:      bootstrap,
	}
}

// createDataSecurityGroups lets the bastion reach PostgreSQL and Redis, and
// the bastion CIDR reach the bastion over SSH.
func createDataSecurityGroups(stack awscdk.Stack, networking *NetworkingResources, rds config.RDSConfig) *SecurityGroups {
	db := awsec2.NewSecurityGroup(stack, jsii.String("lpdevdbsg"), &awsec2.SecurityGroupProps{
		Vpc:              networking.Vpc,
		Description:      jsii.String("Allow PostgreSQL access"),
		AllowAllOutbound: jsii.Bool(true),
	})
	redis := awsec2.NewSecurityGroup(stack, jsii.String("lpdevredissg"), &awsec2.SecurityGroupProps{
		Vpc:              networking.Vpc,
		Description:      jsii.String("Allow Redis access"),
		AllowAllOutbound: jsii.Bool(true),
	})
	bastion := awsec2.NewSecurityGroup(stack, jsii.String("lpdevbastionsg"), &awsec2.SecurityGroupProps{
		Vpc:              networking.Vpc,
		Description:      jsii.String("Allow SSH access to Bastion"),
		AllowAllOutbound: jsii.Bool(true),
	})

	db.AddIngressRule(bastion, awsec2.Port_Tcp(jsii.Number(postgresPort)), jsii.String("Allow PostgreSQL access from bastion"), nil)
	redis.AddIngressRule(bastion, awsec2.Port_Tcp(jsii.Number(redisPort)), jsii.String("Allow Redis access from bastion"), nil)
	bastion.AddIngressRule(awsec2.Peer_Ipv4(jsii.String(rds.BastionCIDR)), awsec2.Port_Tcp(jsii.Number(22)), jsii.String("Allow SSH access from trusted IP"), nil)

	return &SecurityGroups{
		Database: db,
		Redis:    redis,
		Bastion:  bastion,
	}
}

// createDatabaseResources declares the Aurora PostgreSQL cluster with one
// writer and rds.Readers readers in the isolated subnets.
func createDatabaseResources(stack awscdk.Stack, networking *NetworkingResources, sgs *SecurityGroups, rds config.RDSConfig) *DatabaseResources {
	major, err := rds.EngineMajorVersion()
	if err != nil {
		// Config.Validate rejects this before any stack is built.
		panic(err)
	}
	instanceType := awsec2.NewInstanceType(jsii.String(rds.InstanceClass))

	readers := make([]awsrds.IClusterInstance, 0, rds.Readers)
	for i := 1; i <= rds.Readers; i++ {
		readers = append(readers, awsrds.ClusterInstance_Provisioned(jsii.Sprintf("reader%d", i), &awsrds.ProvisionedClusterInstanceProps{
			InstanceType: instanceType,
		}))
	}

	cluster := awsrds.NewDatabaseCluster(stack, jsii.String("lpdevaurorapostgrescluster"), &awsrds.DatabaseClusterProps{
		Engine: awsrds.DatabaseClusterEngine_AuroraPostgres(&awsrds.AuroraPostgresClusterEngineProps{
			Version: awsrds.AuroraPostgresEngineVersion_Of(jsii.String(rds.EngineVersion), jsii.String(major), nil),
		}),
		Credentials:         awsrds.Credentials_FromGeneratedSecret(jsii.String(rds.MasterUsername), nil),
		DefaultDatabaseName: jsii.String(rds.DatabaseName),
		Writer: awsrds.ClusterInstance_Provisioned(jsii.String("writer"), &awsrds.ProvisionedClusterInstanceProps{
			InstanceType: instanceType,
		}),
		Readers: &readers,
		Vpc:     networking.Vpc,
		VpcSubnets: &awsec2.SubnetSelection{
			SubnetType: awsec2.SubnetType_PRIVATE_ISOLATED,
		},
		SecurityGroups:          &[]awsec2.ISecurityGroup{sgs.Database},
		Port:                    jsii.Number(postgresPort),
		CloudwatchLogsExports:   jsii.Strings("postgresql"),
		CloudwatchLogsRetention: awslogs.RetentionDays_ONE_MONTH,
		RemovalPolicy:           awscdk.RemovalPolicy_DESTROY,
	})

	return &DatabaseResources{
		Cluster: cluster,
	}
}

// createCacheResources declares a single-node Redis cluster in the isolated
// subnets.
func createCacheResources(stack awscdk.Stack, networking *NetworkingResources, sgs *SecurityGroups, rds config.RDSConfig) *CacheResources {
	subnetGroup := awselasticache.NewCfnSubnetGroup(stack, jsii.String("lpdevredissubnetgroup"), &awselasticache.CfnSubnetGroupProps{
		Description: jsii.String("Subnet group for Redis"),
		SubnetIds: networking.Vpc.SelectSubnets(&awsec2.SubnetSelection{
			SubnetType: awsec2.SubnetType_PRIVATE_ISOLATED,
		}).SubnetIds,
	})

	cluster := awselasticache.NewCfnCacheCluster(stack, jsii.String("lpdevrediscluster"), &awselasticache.CfnCacheClusterProps{
		Engine:               jsii.String("redis"),
		CacheNodeType:        jsii.String(rds.RedisNodeType),
		NumCacheNodes:        jsii.Number(1),
		VpcSecurityGroupIds:  jsii.Strings(*sgs.Redis.SecurityGroupId()),
		CacheSubnetGroupName: subnetGroup.Ref(),
	})

	return &CacheResources{
		SubnetGroup: subnetGroup,
		Cluster:     cluster,
	}
}

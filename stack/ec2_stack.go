package stack

import (
	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsec2"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsiam"
	"github.com/aws/constructs-go/constructs/v10"
	"github.com/aws/jsii-runtime-go"
)

// Ec2Profile describes one flavour of development host.
type Ec2Profile struct {
	Name string
	// IDPrefix namespaces construct ids so the two profiles keep the logical
	// ids their stacks were first deployed with.
	IDPrefix     string
	InstanceSize awsec2.InstanceSize
	// RootVolumeGiB of zero keeps the AMI default root volume.
	RootVolumeGiB float64
	UserData      []string
}

// BasicProfile is a bare t3.medium host.
var BasicProfile = Ec2Profile{
	Name:         "basic",
	InstanceSize: awsec2.InstanceSize_MEDIUM,
}

// DockerHostProfile is a t3.small running Docker and docker compose on a
// 160 GiB encrypted root volume.
var DockerHostProfile = Ec2Profile{
	Name:          "docker-host",
	IDPrefix:      "adoption-",
	InstanceSize:  awsec2.InstanceSize_SMALL,
	RootVolumeGiB: 160,
	UserData:      DockerHostUserData(),
}

// DockerHostUserData installs git, Docker and the compose CLI plugin.
func DockerHostUserData() []string {
	return []string{
		"#!/bin/bash",
		"",
		"yum update -y",
		"yum install -y git",
		"yum install -y docker",
		"systemctl start docker",
		"systemctl enable docker",
		"chmod 666 /var/run/docker.sock",
		"mkdir -p /usr/local/lib/docker/cli-plugins",
		"VER=2.4.1",
		"curl -L https://github.com/docker/compose/releases/download/v${VER}/docker-compose-$(uname -s)-$(uname -m) -o /usr/local/lib/docker/cli-plugins/docker-compose",
		"chmod +x /usr/local/lib/docker/cli-plugins/docker-compose",
		"ln -s /usr/local/lib/docker/cli-plugins/docker-compose /usr/bin/docker-compose",
	}
}

// Ec2StackProps configures NewEc2Stack.
type Ec2StackProps struct {
	StackProps
	Profile Ec2Profile
}

// Ec2Stack is a single development host in its own VPC.
type Ec2Stack struct {
	awscdk.Stack
	Instance      awsec2.Instance
	SecurityGroup awsec2.SecurityGroup
	Permissions   []IngressPermission
}

// NewEc2Stack declares a no-NAT VPC, a security group opening the host
// ingress table to every allowed CIDR, and an SSM-managed Amazon Linux 2
// instance in a public subnet.
func NewEc2Stack(scope constructs.Construct, id string, props *Ec2StackProps) *Ec2Stack {
	cfg := props.Config
	profile := props.Profile
	stack := newStack(scope, id, &props.StackProps)

	vpcID := "VPC"
	if profile.IDPrefix != "" {
		vpcID = profile.IDPrefix + "vpc"
	}
	networking := createNetworkingResources(stack, vpcID, VpcDefault)

	sg := awsec2.NewSecurityGroup(stack, jsii.String(profile.IDPrefix+"ec2-sg"), &awsec2.SecurityGroupProps{
		Vpc: networking.Vpc,
	})
	perms := ExpandIngress(cfg.AllowedIPs, cfg.HostIngress)
	applyIngress(sg, perms)

	role := awsiam.NewRole(stack, jsii.String("adoption-role"), &awsiam.RoleProps{
		AssumedBy: awsiam.NewServicePrincipal(jsii.String("ec2.amazonaws.com"), nil),
		ManagedPolicies: &[]awsiam.IManagedPolicy{
			awsiam.ManagedPolicy_FromAwsManagedPolicyName(jsii.String("AmazonSSMManagedInstanceCore")),
		},
	})

	userData := awsec2.NewMultipartUserData(nil)
	commands := awsec2.UserData_ForLinux(nil)
	userData.AddUserDataPart(commands, awsec2.MultipartBody_SHELL_SCRIPT(), jsii.Bool(true))
	for _, line := range profile.UserData {
		commands.AddCommands(jsii.String(line))
	}

	instanceProps := &awsec2.InstanceProps{
		Vpc: networking.Vpc,
		VpcSubnets: &awsec2.SubnetSelection{
			SubnetType: awsec2.SubnetType_PUBLIC,
		},
		SecurityGroup: sg,
		InstanceType:  awsec2.InstanceType_Of(awsec2.InstanceClass_T3, profile.InstanceSize),
		MachineImage:  awsec2.MachineImage_LatestAmazonLinux2(nil),
		Role:          role,
		KeyPair:       awsec2.KeyPair_FromKeyPairName(stack, jsii.String("KeyPair"), jsii.String(cfg.EC2.KeyName)),
		UserData:      userData,
	}
	if profile.RootVolumeGiB > 0 {
		instanceProps.BlockDevices = &[]*awsec2.BlockDevice{
			{
				DeviceName: jsii.String("/dev/xvda"),
				Volume: awsec2.BlockDeviceVolume_Ebs(jsii.Number(profile.RootVolumeGiB), &awsec2.EbsDeviceOptions{
					DeleteOnTermination: jsii.Bool(true),
					Encrypted:           jsii.Bool(true),
					VolumeType:          awsec2.EbsDeviceVolumeType_GP2,
				}),
			},
		}
	}
	instance := awsec2.NewInstance(stack, jsii.String("adoption"), instanceProps)

	outputID := "ec2-output"
	if profile.IDPrefix != "" {
		outputID = profile.IDPrefix + "ec2-output"
	}
	awscdk.NewCfnOutput(stack, jsii.String(outputID), &awscdk.CfnOutputProps{
		Value:       instance.InstancePublicIp(),
		Description: jsii.String("Public IP of the " + profile.Name + " host"),
	})

	publishParameters(stack, cfg.ParameterPrefix, "ec2-"+profile.Name, map[string]*string{
		"instance-id": instance.InstanceId(),
		"public-ip":   instance.InstancePublicIp(),
	})

	return &Ec2Stack{
		Stack:         stack,
		Instance:      instance,
		SecurityGroup: sg,
		Permissions:   perms,
	}
}

// NewBasicEc2Stack is NewEc2Stack with BasicProfile.
func NewBasicEc2Stack(scope constructs.Construct, id string, props *StackProps) *Ec2Stack {
	return NewEc2Stack(scope, id, &Ec2StackProps{StackProps: *props, Profile: BasicProfile})
}

// NewDockerHostStack is NewEc2Stack with DockerHostProfile.
func NewDockerHostStack(scope constructs.Construct, id string, props *StackProps) *Ec2Stack {
	return NewEc2Stack(scope, id, &Ec2StackProps{StackProps: *props, Profile: DockerHostProfile})
}

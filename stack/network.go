package stack

import (
	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsec2"
	"github.com/aws/jsii-runtime-go"
)

// VpcLayout selects one of the network shapes the stacks use.
type VpcLayout int

const (
	// VpcDefault is the CDK default subnet layout with no NAT gateway; the
	// private subnets come out isolated.
	VpcDefault VpcLayout = iota
	// VpcPublicOnly has a single public /24 per AZ.
	VpcPublicOnly
	// VpcTiered has public, private-with-egress (one NAT) and isolated /24s.
	VpcTiered
)

// NetworkingResources holds the VPC and its layout.
type NetworkingResources struct {
	Vpc    awsec2.Vpc
	Layout VpcLayout
}

// createNetworkingResources declares a VPC in the requested layout.
func createNetworkingResources(stack awscdk.Stack, id string, layout VpcLayout) *NetworkingResources {
	var props *awsec2.VpcProps
	switch layout {
	case VpcPublicOnly:
		props = &awsec2.VpcProps{
			MaxAzs:      jsii.Number(2),
			NatGateways: jsii.Number(0),
			SubnetConfiguration: &[]*awsec2.SubnetConfiguration{
				{
					CidrMask:   jsii.Number(24),
					Name:       jsii.String("PublicSubnet"),
					SubnetType: awsec2.SubnetType_PUBLIC,
				},
			},
		}
	case VpcTiered:
		props = &awsec2.VpcProps{
			MaxAzs:      jsii.Number(2),
			NatGateways: jsii.Number(1),
			SubnetConfiguration: &[]*awsec2.SubnetConfiguration{
				{
					CidrMask:   jsii.Number(24),
					Name:       jsii.String("Public"),
					SubnetType: awsec2.SubnetType_PUBLIC,
				},
				{
					CidrMask:   jsii.Number(24),
					Name:       jsii.String("Private"),
					SubnetType: awsec2.SubnetType_PRIVATE_WITH_EGRESS,
				},
				{
					CidrMask:   jsii.Number(24),
					Name:       jsii.String("Isolated"),
					SubnetType: awsec2.SubnetType_PRIVATE_ISOLATED,
				},
			},
		}
	default:
		props = &awsec2.VpcProps{
			NatGateways: jsii.Number(0),
		}
	}

	return &NetworkingResources{
		Vpc:    awsec2.NewVpc(stack, jsii.String(id), props),
		Layout: layout,
	}
}

package stack

import (
	"adoption-infra/config"

	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/aws-cdk-go/awscdk/v2/awscertificatemanager"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsec2"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsecs"
	"github.com/aws/aws-cdk-go/awscdk/v2/awselasticloadbalancingv2"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsiam"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsroute53"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsroute53targets"
	"github.com/aws/constructs-go/constructs/v10"
	"github.com/aws/jsii-runtime-go"
	"go.uber.org/zap"
)

// ComputeResources holds the Fargate side of the ECS stack.
type ComputeResources struct {
	Cluster awsecs.Cluster
	TaskDef awsecs.FargateTaskDefinition
	Service awsecs.FargateService
}

// LoadBalancerResources holds the ALB side of the ECS stack.
type LoadBalancerResources struct {
	LoadBalancer  awselasticloadbalancingv2.ApplicationLoadBalancer
	TargetGroup   awselasticloadbalancingv2.ApplicationTargetGroup
	HTTPListener  awselasticloadbalancingv2.ApplicationListener
	HTTPSListener awselasticloadbalancingv2.ApplicationListener
	Rules         []ListenerRule
}

// DNSResources holds the zone, certificate and alias record.
type DNSResources struct {
	HostedZone  awsroute53.IHostedZone
	Certificate awscertificatemanager.Certificate
	Record      awsroute53.ARecord
}

// EcsStack runs the Next.js frontend on Fargate behind an ALB that only
// forwards traffic from the web allow list.
type EcsStack struct {
	awscdk.Stack
	Networking   *NetworkingResources
	Compute      *ComputeResources
	LoadBalancer *LoadBalancerResources
	DNS          *DNSResources
}

// NewEcsStack declares the ECS stack. Env must carry a concrete account and
// region for the hosted zone lookup.
func NewEcsStack(scope constructs.Construct, id string, props *StackProps) *EcsStack {
	cfg := props.Config
	stack := newStack(scope, id, props)

	networking := createNetworkingResources(stack, "AdoptionVpc", VpcPublicOnly)
	compute := createComputeResources(stack, networking, cfg.ECS)
	dns := createDNSResources(stack, cfg.ECS)
	lb := createLoadBalancerResources(stack, networking, compute, dns, cfg)

	dns.Record = awsroute53.NewARecord(stack, jsii.String("AdoptionAliasRecord"), &awsroute53.ARecordProps{
		Zone:       dns.HostedZone,
		RecordName: jsii.String(cfg.ECS.SubDomainName),
		Target: awsroute53.RecordTarget_FromAlias(
			awsroute53targets.NewLoadBalancerTarget(lb.LoadBalancer, nil),
		),
	})

	awscdk.NewCfnOutput(stack, jsii.String("AdoptionAlbDnsName"), &awscdk.CfnOutputProps{
		Value:       lb.LoadBalancer.LoadBalancerDnsName(),
		Description: jsii.String("ALB DNS name"),
	})
	awscdk.NewCfnOutput(stack, jsii.String("AdoptionUrl"), &awscdk.CfnOutputProps{
		Value:       jsii.String("https://" + cfg.ECS.FQDN()),
		Description: jsii.String("Public URL of the frontend"),
	})

	publishParameters(stack, cfg.ParameterPrefix, "ecs", map[string]*string{
		"alb-dns-name": lb.LoadBalancer.LoadBalancerDnsName(),
		"cluster-name": compute.Cluster.ClusterName(),
		"service-arn":  compute.Service.ServiceArn(),
		"url":          jsii.String("https://" + cfg.ECS.FQDN()),
	})

	return &EcsStack{
		Stack:        stack,
		Networking:   networking,
		Compute:      compute,
		LoadBalancer: lb,
		DNS:          dns,
	}
}

// createComputeResources declares the cluster, task definition and service.
func createComputeResources(stack awscdk.Stack, networking *NetworkingResources, ecs config.ECSConfig) *ComputeResources {
	cluster := awsecs.NewCluster(stack, jsii.String("AdoptionEcsCluster"), &awsecs.ClusterProps{
		Vpc: networking.Vpc,
	})

	// The execution role is managed outside this stack.
	executionRole := awsiam.Role_FromRoleArn(stack, jsii.String("ECSExecutionRole"), jsii.String(ecs.ExecutionRoleARN), nil)

	taskDef := awsecs.NewFargateTaskDefinition(stack, jsii.String("AdoptionTaskDef"), &awsecs.FargateTaskDefinitionProps{
		ExecutionRole:  executionRole,
		Cpu:            jsii.Number(ecs.CPU),
		MemoryLimitMiB: jsii.Number(ecs.MemoryMiB),
	})

	container := taskDef.AddContainer(jsii.String(ecs.ContainerName), &awsecs.ContainerDefinitionOptions{
		Image:          awsecs.ContainerImage_FromRegistry(jsii.String(ecs.Image), nil),
		MemoryLimitMiB: jsii.Number(ecs.MemoryMiB),
		Cpu:            jsii.Number(ecs.CPU),
		Logging: awsecs.NewAwsLogDriver(&awsecs.AwsLogDriverProps{
			StreamPrefix: jsii.String("ecs-logs"),
		}),
	})
	container.AddPortMappings(&awsecs.PortMapping{
		ContainerPort: jsii.Number(ecs.ContainerPort),
	})

	service := awsecs.NewFargateService(stack, jsii.String("AdoptionFargateService"), &awsecs.FargateServiceProps{
		Cluster:        cluster,
		TaskDefinition: taskDef,
		DesiredCount:   jsii.Number(ecs.DesiredCount),
		AssignPublicIp: jsii.Bool(true),
		VpcSubnets: &awsec2.SubnetSelection{
			SubnetType: awsec2.SubnetType_PUBLIC,
		},
	})

	return &ComputeResources{
		Cluster: cluster,
		TaskDef: taskDef,
		Service: service,
	}
}

// createDNSResources looks up the hosted zone and issues a DNS-validated
// certificate for the subdomain.
func createDNSResources(stack awscdk.Stack, ecs config.ECSConfig) *DNSResources {
	zone := awsroute53.HostedZone_FromLookup(stack, jsii.String("AdoptionHostedZone"), &awsroute53.HostedZoneProviderProps{
		DomainName: jsii.String(ecs.DomainName),
	})

	certificate := awscertificatemanager.NewCertificate(stack, jsii.String("AdoptionCertificate"), &awscertificatemanager.CertificateProps{
		DomainName: jsii.String(ecs.FQDN()),
		Validation: awscertificatemanager.CertificateValidation_FromDns(zone),
	})

	return &DNSResources{
		HostedZone:  zone,
		Certificate: certificate,
	}
}

// createLoadBalancerResources declares the ALB. Port 80 redirects to 443 and
// 443 answers a fixed 200 unless a source-IP rule forwards to the service.
func createLoadBalancerResources(stack awscdk.Stack, networking *NetworkingResources, compute *ComputeResources, dns *DNSResources, cfg *config.Config) *LoadBalancerResources {
	loadBalancer := awselasticloadbalancingv2.NewApplicationLoadBalancer(stack, jsii.String("AdoptionALB"), &awselasticloadbalancingv2.ApplicationLoadBalancerProps{
		Vpc:            networking.Vpc,
		InternetFacing: jsii.Bool(true),
	})

	targetGroup := awselasticloadbalancingv2.NewApplicationTargetGroup(stack, jsii.String("AdoptionTargetGroup"), &awselasticloadbalancingv2.ApplicationTargetGroupProps{
		Vpc:      networking.Vpc,
		Port:     jsii.Number(cfg.ECS.ContainerPort),
		Protocol: awselasticloadbalancingv2.ApplicationProtocol_HTTP,
		Targets: &[]awselasticloadbalancingv2.IApplicationLoadBalancerTarget{
			compute.Service.LoadBalancerTarget(&awsecs.LoadBalancerTargetOptions{
				ContainerName: jsii.String(cfg.ECS.ContainerName),
				ContainerPort: jsii.Number(cfg.ECS.ContainerPort),
			}),
		},
		HealthCheck: &awselasticloadbalancingv2.HealthCheck{
			Path: jsii.String(cfg.ECS.HealthCheckPath),
		},
	})

	httpListener := loadBalancer.AddListener(jsii.String("AdoptionHttpListener"), &awselasticloadbalancingv2.BaseApplicationListenerProps{
		Port: jsii.Number(80),
		DefaultAction: awselasticloadbalancingv2.ListenerAction_Redirect(&awselasticloadbalancingv2.RedirectOptions{
			Protocol:  jsii.String("HTTPS"),
			Port:      jsii.String("443"),
			Permanent: jsii.Bool(true),
		}),
	})

	httpsListener := loadBalancer.AddListener(jsii.String("AdoptionHttpsListener"), &awselasticloadbalancingv2.BaseApplicationListenerProps{
		Port: jsii.Number(443),
		Certificates: &[]awselasticloadbalancingv2.IListenerCertificate{
			awselasticloadbalancingv2.ListenerCertificate_FromCertificateManager(dns.Certificate),
		},
		DefaultAction: awselasticloadbalancingv2.ListenerAction_FixedResponse(jsii.Number(200), &awselasticloadbalancingv2.FixedResponseOptions{
			ContentType: jsii.String("text/plain"),
			MessageBody: jsii.String("OK"),
		}),
	})

	rules := ListenerRules(cfg.WebAllowedIPs)
	for _, rule := range rules {
		listener := httpListener
		if rule.Listener == ListenerHTTPS {
			listener = httpsListener
		}
		listener.AddAction(jsii.String(rule.ID()), &awselasticloadbalancingv2.AddApplicationActionProps{
			Priority: jsii.Number(rule.Priority),
			Conditions: &[]awselasticloadbalancingv2.ListenerCondition{
				awselasticloadbalancingv2.ListenerCondition_SourceIps(jsii.Strings(rule.CIDR)),
			},
			Action: awselasticloadbalancingv2.ListenerAction_Forward(
				&[]awselasticloadbalancingv2.IApplicationTargetGroup{targetGroup}, nil,
			),
		})
		zap.S().Debugf("listener %s: forward %s at priority %d", rule.Listener, rule.CIDR, rule.Priority)
	}

	return &LoadBalancerResources{
		LoadBalancer:  loadBalancer,
		TargetGroup:   targetGroup,
		HTTPListener:  httpListener,
		HTTPSListener: httpsListener,
		Rules:         rules,
	}
}

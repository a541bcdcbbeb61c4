package stack

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"adoption-infra/config"

	"github.com/aws/jsii-runtime-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEc2Stack_Basic(t *testing.T) {
	cfg := testConfig()
	s := NewBasicEc2Stack(newTestApp(), config.StackEC2, testProps(cfg))
	template := templateOf(t, s.Stack)

	assert.Len(t, s.Permissions, len(cfg.AllowedIPs)*len(cfg.HostIngress))
	template.ResourceCountIs(jsii.String("AWS::EC2::Instance"), count(1))
	template.ResourceCountIs(jsii.String("AWS::EC2::NatGateway"), count(0))
	template.HasResourceProperties(jsii.String("AWS::EC2::Instance"), obj(map[string]interface{}{
		"InstanceType": "t3.medium",
		"KeyName":      "key",
	}))
	template.HasResourceProperties(jsii.String("AWS::EC2::SecurityGroup"), obj(map[string]interface{}{
		"SecurityGroupIngress": arrayWith(
			obj(map[string]interface{}{
				"CidrIp":      testIP,
				"FromPort":    jsii.Number(5432),
				"ToPort":      jsii.Number(5432),
				"IpProtocol":  "tcp",
				"Description": "PostgreSQL Access from 203.0.113.10/32",
			}),
			obj(map[string]interface{}{
				"CidrIp":      testIP2,
				"FromPort":    jsii.Number(8001),
				"Description": "RedisInsight Access from 198.51.100.0/24",
			}),
		),
	}))
	template.HasResourceProperties(jsii.String("AWS::SSM::Parameter"), obj(map[string]interface{}{
		"Name": "/adoption/ec2-basic/public-ip",
		"Type": "String",
	}))
	template.HasOutput(jsii.String("ec2output"), obj(map[string]interface{}{}))
}

func TestEc2Stack_DockerHost(t *testing.T) {
	cfg := testConfig()
	s := NewDockerHostStack(newTestApp(), config.StackDockerHost, testProps(cfg))
	template := templateOf(t, s.Stack)

	template.HasResourceProperties(jsii.String("AWS::EC2::Instance"), obj(map[string]interface{}{
		"InstanceType": "t3.small",
		"BlockDeviceMappings": arrayWith(obj(map[string]interface{}{
			"DeviceName": "/dev/xvda",
			"Ebs": obj(map[string]interface{}{
				"VolumeSize":          jsii.Number(160),
				"Encrypted":           true,
				"DeleteOnTermination": true,
				"VolumeType":          "gp2",
			}),
		})),
	}))
	template.HasResourceProperties(jsii.String("AWS::SSM::Parameter"), obj(map[string]interface{}{
		"Name": "/adoption/ec2-docker-host/instance-id",
	}))
}

func TestEc2Stack_UserData(t *testing.T) {
	dockerLines := []string{
		"yum install -y docker",
		"systemctl enable docker",
		"chmod +x /usr/local/lib/docker/cli-plugins/docker-compose",
		"ln -s /usr/local/lib/docker/cli-plugins/docker-compose /usr/bin/docker-compose",
	}
	tests := []struct {
		name       string
		newStack   func(*StackProps) *Ec2Stack
		wantDocker bool
	}{
		{
			name: "basic",
			newStack: func(p *StackProps) *Ec2Stack {
				return NewBasicEc2Stack(newTestApp(), config.StackEC2, p)
			},
		},
		{
			name: "docker host",
			newStack: func(p *StackProps) *Ec2Stack {
				return NewDockerHostStack(newTestApp(), config.StackDockerHost, p)
			},
			wantDocker: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := tt.newStack(testProps(testConfig()))
			rendered, err := json.Marshal(templateOf(t, s.Stack).ToJSON())
			require.NoError(t, err)

			for _, line := range dockerLines {
				if tt.wantDocker {
					assert.Contains(t, string(rendered), line)
				} else {
					assert.NotContains(t, string(rendered), line)
				}
			}
		})
	}
}

func TestEcrStack(t *testing.T) {
	dockerDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dockerDir, "Dockerfile"), []byte("FROM scratch\n"), 0o600))

	tests := []struct {
		name       string
		dockerfile string
		wantImage  bool
		wantParams int
	}{
		{name: "repository only", wantParams: 2},
		{name: "with image asset", dockerfile: dockerDir, wantImage: true, wantParams: 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			cfg.ECR.DockerfileDir = tt.dockerfile
			s := NewEcrStack(newTestApp(), config.StackECR, testProps(cfg))
			template := templateOf(t, s.Stack)

			template.HasResourceProperties(jsii.String("AWS::ECR::Repository"), obj(map[string]interface{}{
				"RepositoryName": "my-ecr-repo",
			}))
			template.HasOutput(jsii.String("EcrRepoUri"), obj(map[string]interface{}{}))
			template.ResourcePropertiesCountIs(jsii.String("AWS::SSM::Parameter"), obj(map[string]interface{}{}), count(tt.wantParams))
			template.HasResourceProperties(jsii.String("AWS::SSM::Parameter"), obj(map[string]interface{}{
				"Name":  "/adoption/ecr/repository-name",
				"Value": "my-ecr-repo",
			}))

			if !tt.wantImage {
				assert.Nil(t, s.Image)
				assert.Empty(t, *template.FindOutputs(jsii.String("EcrImageUri"), nil))
				return
			}
			require.NotNil(t, s.Image)
			template.HasOutput(jsii.String("EcrImageUri"), obj(map[string]interface{}{}))
			template.HasResourceProperties(jsii.String("AWS::SSM::Parameter"), obj(map[string]interface{}{
				"Name": "/adoption/ecr/image-uri",
			}))
		})
	}
}

func TestEcsStack(t *testing.T) {
	cfg := testConfig()
	s := NewEcsStack(newTestApp(), config.StackECS, testProps(cfg))
	template := templateOf(t, s.Stack)

	template.ResourceCountIs(jsii.String("AWS::ECS::Service"), count(1))
	template.HasResourceProperties(jsii.String("AWS::ECS::TaskDefinition"), obj(map[string]interface{}{
		"Cpu":    "256",
		"Memory": "512",
		"ContainerDefinitions": arrayWith(obj(map[string]interface{}{
			"Name":  "AdoptionNextJsContainer",
			"Image": cfg.ECS.Image,
			"PortMappings": arrayWith(obj(map[string]interface{}{
				"ContainerPort": jsii.Number(3000),
			})),
		})),
	}))
	template.ResourceCountIs(jsii.String("AWS::ElasticLoadBalancingV2::Listener"), count(2))
	template.ResourceCountIs(jsii.String("AWS::ElasticLoadBalancingV2::ListenerRule"), count(2*len(cfg.WebAllowedIPs)))
	template.HasResourceProperties(jsii.String("AWS::ElasticLoadBalancingV2::ListenerRule"), obj(map[string]interface{}{
		"Priority": jsii.Number(4),
		"Conditions": arrayWith(obj(map[string]interface{}{
			"Field": "source-ip",
			"SourceIpConfig": obj(map[string]interface{}{
				"Values": []interface{}{testIP2},
			}),
		})),
	}))
	// Rule construct ids embed the CIDR; constructs turns its "/" into "--".
	for _, rule := range s.LoadBalancer.Rules {
		listener := s.LoadBalancer.HTTPListener
		if rule.Listener == ListenerHTTPS {
			listener = s.LoadBalancer.HTTPSListener
		}
		assert.NotNil(t, listener.Node().TryFindChild(jsii.String(rule.ID()+"Rule")), rule.ID())
	}
	assert.NotNil(t, s.LoadBalancer.HTTPListener.Node().TryFindChild(jsii.String("AllowHttpIP-203.0.113.10--32Rule")))
	template.HasResourceProperties(jsii.String("AWS::ElasticLoadBalancingV2::Listener"), obj(map[string]interface{}{
		"Port": jsii.Number(80),
		"DefaultActions": arrayWith(obj(map[string]interface{}{
			"Type": "redirect",
			"RedirectConfig": obj(map[string]interface{}{
				"Port":       "443",
				"Protocol":   "HTTPS",
				"StatusCode": "HTTP_301",
			}),
		})),
	}))
	template.HasResourceProperties(jsii.String("AWS::CertificateManager::Certificate"), obj(map[string]interface{}{
		"DomainName":       "app.example.com",
		"ValidationMethod": "DNS",
	}))
	template.HasResourceProperties(jsii.String("AWS::Route53::RecordSet"), obj(map[string]interface{}{
		"Name": "app.example.com.",
		"Type": "A",
	}))
}

func TestRdsStack(t *testing.T) {
	cfg := testConfig()
	cfg.RDS.Readers = 2
	s := NewRdsStack(newTestApp(), config.StackRDS, testProps(cfg))
	template := templateOf(t, s.Stack)

	template.ResourceCountIs(jsii.String("AWS::EC2::NatGateway"), count(1))
	template.HasResourceProperties(jsii.String("AWS::RDS::DBCluster"), obj(map[string]interface{}{
		"Engine":                      "aurora-postgresql",
		"EngineVersion":               "15.12",
		"DatabaseName":                "wordpress_dev",
		"Port":                        jsii.Number(5432),
		"EnableCloudwatchLogsExports": []interface{}{"postgresql"},
	}))
	template.ResourceCountIs(jsii.String("AWS::RDS::DBInstance"), count(3))
	template.ResourceCountIs(jsii.String("AWS::ElastiCache::CacheCluster"), count(1))
	template.HasResourceProperties(jsii.String("AWS::ElastiCache::CacheCluster"), obj(map[string]interface{}{
		"Engine":        "redis",
		"CacheNodeType": "cache.t3.micro",
		"NumCacheNodes": jsii.Number(1),
	}))
	template.HasResourceProperties(jsii.String("AWS::EC2::SecurityGroup"), obj(map[string]interface{}{
		"GroupDescription": "Allow SSH access to Bastion",
		"SecurityGroupIngress": arrayWith(obj(map[string]interface{}{
			"CidrIp":   "0.0.0.0/0",
			"FromPort": jsii.Number(22),
		})),
	}))
	template.HasResourceProperties(jsii.String("AWS::Lambda::Function"), obj(map[string]interface{}{
		"Runtime":       "provided.al2023",
		"Handler":       "bootstrap",
		"Architectures": []interface{}{"arm64"},
	}))
	template.HasResourceProperties(jsii.String(BootstrapResourceType), obj(map[string]interface{}{
		"Database":   "wordpress_dev",
		"Extensions": []interface{}{"pgcrypto"},
		"Schemas":    []interface{}{"app"},
	}))
	template.HasResourceProperties(jsii.String("AWS::SSM::Parameter"), obj(map[string]interface{}{
		"Name":  "/adoption/rds/postgres-database",
		"Value": "wordpress_dev",
	}))
}

func TestCicdStack(t *testing.T) {
	cfg := testConfig()
	s := NewCicdStack(newTestApp(), config.StackCICD, testProps(cfg))
	template := templateOf(t, s.Stack)

	template.ResourceCountIs(jsii.String("AWS::CodePipeline::Pipeline"), count(1))
	template.HasResourceProperties(jsii.String("AWS::CodePipeline::Pipeline"), obj(map[string]interface{}{
		"Stages": []interface{}{
			obj(map[string]interface{}{"Name": "Source"}),
			obj(map[string]interface{}{"Name": "Build"}),
			obj(map[string]interface{}{"Name": "Deploy"}),
		},
	}))
	template.HasResourceProperties(jsii.String("AWS::CodeBuild::Project"), obj(map[string]interface{}{
		"Environment": obj(map[string]interface{}{
			"PrivilegedMode": true,
			"EnvironmentVariables": arrayWith(obj(map[string]interface{}{
				"Name":  "DOCKERHUB_PASSWORD",
				"Type":  "SECRETS_MANAGER",
				"Value": "dockerhub:password",
			})),
		}),
	}))
}

func TestAmplifyStack(t *testing.T) {
	cfg := testConfig()
	s := NewAmplifyStack(newTestApp(), config.StackAmplify, testProps(cfg))
	template := templateOf(t, s.Stack)

	template.ResourceCountIs(jsii.String("AWS::Amplify::App"), count(1))
	template.HasResourceProperties(jsii.String("AWS::Amplify::Branch"), obj(map[string]interface{}{
		"BranchName": "main",
		"EnvironmentVariables": arrayWith(obj(map[string]interface{}{
			"Name": "CLOUDFRONT_WAF_WEB_ACL_ID",
		})),
	}))
	template.HasResourceProperties(jsii.String("AWS::WAFv2::IPSet"), obj(map[string]interface{}{
		"Addresses":        []interface{}{testIP, testIP2},
		"IPAddressVersion": "IPV4",
		"Scope":            "REGIONAL",
	}))
	template.HasResourceProperties(jsii.String("AWS::WAFv2::WebACL"), obj(map[string]interface{}{
		"DefaultAction": map[string]interface{}{"Block": map[string]interface{}{}},
		"Rules": arrayWith(obj(map[string]interface{}{
			"Name":     "AdoptionAllowSpecificIP",
			"Priority": jsii.Number(1),
			"Action":   map[string]interface{}{"Allow": map[string]interface{}{}},
		})),
	}))
}

func TestBuild_SelectedStacksOnly(t *testing.T) {
	cfg := testConfig()
	cfg.Stacks = []string{config.StackAmplify, config.StackECR}

	stacks := Build(newTestApp(), cfg)

	require.Len(t, stacks, 2)
	// Declared in config.AllStacks order, not selection order.
	assert.Equal(t, config.StackECR, *stacks[0].StackName())
	assert.Equal(t, config.StackAmplify, *stacks[1].StackName())
	assert.Equal(t, testRegion, *stacks[0].Region())
}

func TestFactories_CoverAllStacks(t *testing.T) {
	for _, id := range config.AllStacks {
		assert.Contains(t, Factories, id)
	}
	assert.Len(t, Factories, len(config.AllStacks))
}

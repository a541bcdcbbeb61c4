package stack

import (
	"adoption-infra/config"

	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/constructs-go/constructs/v10"
	"github.com/aws/jsii-runtime-go"
	"go.uber.org/zap"
)

// Factory declares one stack.
type Factory func(scope constructs.Construct, id string, props *StackProps) awscdk.Stack

// Factories maps each stack id to the factory that declares it.
var Factories = map[string]Factory{
	config.StackEC2: func(scope constructs.Construct, id string, props *StackProps) awscdk.Stack {
		return NewBasicEc2Stack(scope, id, props).Stack
	},
	config.StackDockerHost: func(scope constructs.Construct, id string, props *StackProps) awscdk.Stack {
		return NewDockerHostStack(scope, id, props).Stack
	},
	config.StackECR: func(scope constructs.Construct, id string, props *StackProps) awscdk.Stack {
		return NewEcrStack(scope, id, props).Stack
	},
	config.StackECS: func(scope constructs.Construct, id string, props *StackProps) awscdk.Stack {
		return NewEcsStack(scope, id, props).Stack
	},
	config.StackRDS: func(scope constructs.Construct, id string, props *StackProps) awscdk.Stack {
		return NewRdsStack(scope, id, props).Stack
	},
	config.StackCICD: func(scope constructs.Construct, id string, props *StackProps) awscdk.Stack {
		return NewCicdStack(scope, id, props).Stack
	},
	config.StackAmplify: func(scope constructs.Construct, id string, props *StackProps) awscdk.Stack {
		return NewAmplifyStack(scope, id, props).Stack
	},
}

// Env is the deployment environment from the config. It is nil (environment
// agnostic) unless both account and region are known.
func Env(cfg *config.Config) *awscdk.Environment {
	if cfg.Account == "" || cfg.Region == "" {
		return nil
	}
	return &awscdk.Environment{
		Account: jsii.String(cfg.Account),
		Region:  jsii.String(cfg.Region),
	}
}

// Build declares every selected stack on app, in config.AllStacks order.
func Build(app awscdk.App, cfg *config.Config) []awscdk.Stack {
	props := &StackProps{
		StackProps: awscdk.StackProps{
			Env: Env(cfg),
		},
		Config: cfg,
	}

	var stacks []awscdk.Stack
	for _, id := range config.AllStacks {
		if !cfg.Selected(id) {
			continue
		}
		stacks = append(stacks, Factories[id](app, id, props))
	}
	zap.S().Infof("declared %d stack(s)", len(stacks))
	return stacks
}

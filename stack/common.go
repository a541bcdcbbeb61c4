// Package stack provides the CDK stacks for the adoption environment.
package stack

import (
	"fmt"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"adoption-infra/config"

	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsssm"
	"github.com/aws/constructs-go/constructs/v10"
	"github.com/aws/jsii-runtime-go"
	"go.uber.org/zap"
)

const (
	// DefaultResourceTagKey and DefaultResourceTagValue are applied to every stack.
	DefaultResourceTagKey   = "Project"
	DefaultResourceTagValue = "adoption"

	ManagedByTagKey   = "ManagedBy"
	ManagedByTagValue = "cdk"
)

// StackProps are shared by every stack factory in this package.
type StackProps struct {
	awscdk.StackProps
	Config *config.Config
}

// newStack creates the stack and applies the default tags.
func newStack(scope constructs.Construct, id string, props *StackProps) awscdk.Stack {
	var sprops awscdk.StackProps
	if props != nil {
		sprops = props.StackProps
	}
	stack := awscdk.NewStack(scope, &id, &sprops)
	awscdk.Tags_Of(stack).Add(jsii.String(DefaultResourceTagKey), jsii.String(DefaultResourceTagValue), nil)
	awscdk.Tags_Of(stack).Add(jsii.String(ManagedByTagKey), jsii.String(ManagedByTagValue), nil)
	zap.S().Debugf("declaring stack %s", id)
	return stack
}

// parameterPath builds "<prefix>/<slug>/<name>".
func parameterPath(prefix, slug, name string) string {
	return strings.TrimRight(prefix, "/") + "/" + slug + "/" + name
}

// parameterConstructID turns a parameter path into a construct id:
// "/adoption/ecs/alb-dns-name" -> "ParamAdoptionEcsAlbDnsName".
func parameterConstructID(path string) string {
	var b strings.Builder
	b.WriteString("Param")
	for _, part := range strings.FieldsFunc(path, func(r rune) bool { return r == '/' || r == '-' || r == '_' || r == '.' }) {
		b.WriteString(strings.ToUpper(part[:1]))
		b.WriteString(part[1:])
	}
	return b.String()
}

// publishParameters stores the given values as SSM String parameters under
// prefix/slug. Values may be unresolved tokens.
func publishParameters(stack awscdk.Stack, prefix, slug string, values map[string]*string) {
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		path := parameterPath(prefix, slug, name)
		awsssm.NewStringParameter(stack, jsii.String(parameterConstructID(path)), &awsssm.StringParameterProps{
			ParameterName: jsii.String(path),
			StringValue:   values[name],
			Description:   jsii.String(fmt.Sprintf("Configuration parameter for %s", path)),
			Tier:          awsssm.ParameterTier_STANDARD,
		})
	}
}

func getThisFileDir() string {
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		panic("unable to get current file path")
	}
	return filepath.Dir(filename)
}

// moduleRoot is the directory holding go.mod, used as the Lambda asset root.
func moduleRoot() string {
	return filepath.Join(getThisFileDir(), "..")
}

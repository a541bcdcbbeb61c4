package stack

import (
	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/aws-cdk-go/awscdk/v2/awscodecommit"
	"github.com/aws/aws-cdk-go/awscdk/v2/awswafv2"
	"github.com/aws/aws-cdk-go/awscdkamplifyalpha/v2"
	"github.com/aws/constructs-go/constructs/v10"
	"github.com/aws/jsii-runtime-go"
)

const wafScope = "REGIONAL"

// AmplifyStack hosts the Next.js app on Amplify behind an IP allow-list WAF.
type AmplifyStack struct {
	awscdk.Stack
	App    awscdkamplifyalpha.App
	Branch awscdkamplifyalpha.Branch
	IPSet  awswafv2.CfnIPSet
	WebACL awswafv2.CfnWebACL
}

func visibility(metric string) *awswafv2.CfnWebACL_VisibilityConfigProperty {
	return &awswafv2.CfnWebACL_VisibilityConfigProperty{
		SampledRequestsEnabled:   jsii.Bool(true),
		CloudWatchMetricsEnabled: jsii.Bool(true),
		MetricName:               jsii.String(metric),
	}
}

// NewAmplifyStack declares the Amplify app, its branch and a web ACL that
// blocks everything except the web allow list.
func NewAmplifyStack(scope constructs.Construct, id string, props *StackProps) *AmplifyStack {
	cfg := props.Config
	stack := newStack(scope, id, props)

	repository := awscodecommit.Repository_FromRepositoryName(stack, jsii.String("Adoption"), jsii.String(cfg.Amplify.Repository))

	app := awscdkamplifyalpha.NewApp(stack, jsii.String("AdoptionAmplify"), &awscdkamplifyalpha.AppProps{
		SourceCodeProvider: awscdkamplifyalpha.NewCodeCommitSourceCodeProvider(&awscdkamplifyalpha.CodeCommitSourceCodeProviderProps{
			Repository: repository,
		}),
	})
	branch := app.AddBranch(jsii.String(cfg.Amplify.Branch), nil)

	ipSet := awswafv2.NewCfnIPSet(stack, jsii.String("AdoptionAllowedIPSet"), &awswafv2.CfnIPSetProps{
		Addresses:        jsii.Strings(cfg.WebAllowedIPs...),
		IpAddressVersion: jsii.String("IPV4"),
		Scope:            jsii.String(wafScope),
	})

	webACL := awswafv2.NewCfnWebACL(stack, jsii.String("AdoptionWebACL"), &awswafv2.CfnWebACLProps{
		DefaultAction: &awswafv2.CfnWebACL_DefaultActionProperty{
			Block: &awswafv2.CfnWebACL_BlockActionProperty{},
		},
		Scope:            jsii.String(wafScope),
		VisibilityConfig: visibility("WebACL"),
		Rules: &[]*awswafv2.CfnWebACL_RuleProperty{
			{
				Name:     jsii.String("AdoptionAllowSpecificIP"),
				Priority: jsii.Number(1),
				Action: &awswafv2.CfnWebACL_RuleActionProperty{
					Allow: &awswafv2.CfnWebACL_AllowActionProperty{},
				},
				Statement: &awswafv2.CfnWebACL_StatementProperty{
					IpSetReferenceStatement: &awswafv2.CfnWebACL_IPSetReferenceStatementProperty{
						Arn: ipSet.AttrArn(),
					},
				},
				VisibilityConfig: visibility("AdoptionAllowedIPSet"),
			},
		},
	})

	branch.AddEnvironment(jsii.String("CLOUDFRONT_WAF_WEB_ACL_ID"), webACL.AttrArn())

	awscdk.NewCfnOutput(stack, jsii.String("WebAclArn"), &awscdk.CfnOutputProps{
		Value:       webACL.AttrArn(),
		Description: jsii.String("WAF web ACL ARN"),
	})
	awscdk.NewCfnOutput(stack, jsii.String("AmplifyDefaultDomain"), &awscdk.CfnOutputProps{
		Value:       app.DefaultDomain(),
		Description: jsii.String("Amplify default domain"),
	})

	publishParameters(stack, cfg.ParameterPrefix, "amplify", map[string]*string{
		"app-id":         app.AppId(),
		"default-domain": app.DefaultDomain(),
		"web-acl-arn":    webACL.AttrArn(),
	})

	return &AmplifyStack{
		Stack:  stack,
		App:    app,
		Branch: branch,
		IPSet:  ipSet,
		WebACL: webACL,
	}
}

package outputs

import (
	"bytes"
	"context"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/cloudformation"
	"github.com/aws/aws-sdk-go/service/cloudformation/cloudformationiface"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCloudFormation struct {
	cloudformationiface.CloudFormationAPI
	stacks map[string][]*cloudformation.Output
	calls  []string
}

func (f *fakeCloudFormation) DescribeStacksWithContext(_ aws.Context, in *cloudformation.DescribeStacksInput, _ ...request.Option) (*cloudformation.DescribeStacksOutput, error) {
	name := aws.StringValue(in.StackName)
	f.calls = append(f.calls, name)
	outs, ok := f.stacks[name]
	if !ok {
		return nil, errors.Errorf("Stack with id %s does not exist", name)
	}
	return &cloudformation.DescribeStacksOutput{
		Stacks: []*cloudformation.Stack{{StackName: aws.String(name), Outputs: outs}},
	}, nil
}

func output(key, value string) *cloudformation.Output {
	return &cloudformation.Output{OutputKey: aws.String(key), OutputValue: aws.String(value)}
}

func TestFetch_SortsByStackAndKey(t *testing.T) {
	api := &fakeCloudFormation{stacks: map[string][]*cloudformation.Output{
		"EcsStack": {
			output("AdoptionUrl", "https://app.example.com"),
			output("AdoptionAlbDnsName", "alb-123.elb.amazonaws.com"),
		},
		"EcrStack": {output("EcrRepoUri", "123456789012.dkr.ecr.ap-northeast-1.amazonaws.com/my-ecr-repo")},
	}}
	r := &Reader{API: api}

	got, err := r.Fetch(context.Background(), []string{"EcsStack", "EcrStack"})
	require.NoError(t, err)

	assert.Equal(t, []string{"EcsStack", "EcrStack"}, api.calls)
	require.Len(t, got, 3)
	assert.Equal(t, Output{Stack: "EcrStack", Key: "EcrRepoUri", Value: "123456789012.dkr.ecr.ap-northeast-1.amazonaws.com/my-ecr-repo"}, got[0])
	assert.Equal(t, "AdoptionAlbDnsName", got[1].Key)
	assert.Equal(t, "AdoptionUrl", got[2].Key)
}

func TestFetch_KeepsGoingOnError(t *testing.T) {
	api := &fakeCloudFormation{stacks: map[string][]*cloudformation.Output{
		"EcrStack": {output("EcrRepoUri", "uri")},
	}}
	r := &Reader{API: api}

	got, err := r.Fetch(context.Background(), []string{"MissingStack", "EcrStack"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "describing stack MissingStack")
	require.Len(t, got, 1)
	assert.Equal(t, "EcrStack", got[0].Stack)
}

func TestWrite(t *testing.T) {
	var buf bytes.Buffer
	err := Write(&buf, []Output{
		{Stack: "EcrStack", Key: "EcrRepoUri", Value: "uri"},
		{Stack: "EcsStack", Key: "AdoptionUrl", Value: "https://app.example.com"},
	})
	require.NoError(t, err)
	assert.Equal(t,
		"EcrStack  EcrRepoUri   uri\n"+
			"EcsStack  AdoptionUrl  https://app.example.com\n",
		buf.String())
}

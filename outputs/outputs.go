// Package outputs reads the outputs of deployed stacks from CloudFormation.
package outputs

import (
	"context"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/cloudformation"
	"github.com/aws/aws-sdk-go/service/cloudformation/cloudformationiface"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Output is one stack output.
type Output struct {
	Stack       string
	Key         string
	Value       string
	Description string
}

// Reader fetches outputs through the CloudFormation API.
type Reader struct {
	API cloudformationiface.CloudFormationAPI
}

// NewReader builds a Reader from the shared AWS config. region may be empty.
func NewReader(region string) (*Reader, error) {
	opts := session.Options{SharedConfigState: session.SharedConfigEnable}
	if region != "" {
		opts.Config.Region = aws.String(region)
	}
	sess, err := session.NewSessionWithOptions(opts)
	if err != nil {
		return nil, errors.Wrap(err, "creating AWS session")
	}
	return &Reader{API: cloudformation.New(sess)}, nil
}

// Fetch returns the outputs of the named stacks, sorted by stack and key.
// A stack that cannot be described does not stop the others; all such
// failures are returned together.
func (r *Reader) Fetch(ctx context.Context, stacks []string) ([]Output, error) {
	var (
		out  []Output
		errs error
	)
	for _, name := range stacks {
		got, err := r.fetchStack(ctx, name)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		out = append(out, got...)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Stack != out[j].Stack {
			return out[i].Stack < out[j].Stack
		}
		return out[i].Key < out[j].Key
	})
	return out, errs
}

func (r *Reader) fetchStack(ctx context.Context, name string) ([]Output, error) {
	zap.S().Debugf("describing stack %s", name)
	resp, err := r.API.DescribeStacksWithContext(ctx, &cloudformation.DescribeStacksInput{
		StackName: aws.String(name),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "describing stack %s", name)
	}

	var out []Output
	for _, s := range resp.Stacks {
		for _, o := range s.Outputs {
			out = append(out, Output{
				Stack:       aws.StringValue(s.StackName),
				Key:         aws.StringValue(o.OutputKey),
				Value:       aws.StringValue(o.OutputValue),
				Description: aws.StringValue(o.Description),
			})
		}
	}
	return out, nil
}

// Write prints one aligned "stack key value" line per output.
func Write(w io.Writer, outs []Output) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, o := range outs {
		if _, err := fmt.Fprintf(tw, "%s\t%s\t%s\n", o.Stack, o.Key, o.Value); err != nil {
			return err
		}
	}
	return tw.Flush()
}

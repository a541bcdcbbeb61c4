package main

import (
	"context"
	"fmt"
	"os"

	"adoption-infra/config"
	"adoption-infra/logging"
	"adoption-infra/outputs"
	"adoption-infra/stack"

	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/jsii-runtime-go"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type options struct {
	logLevel   string
	stacks     string
	configPath string
	dotenv     string
	outdir     string
}

func main() {
	os.Exit(run())
}

func run() int {
	defer jsii.Close()

	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	synth := &cobra.Command{
		Use:   "synth",
		Short: "Synthesize the selected stacks into cdk.out",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSynth(opts)
		},
	}

	root := &cobra.Command{
		Use:           "adoption",
		Short:         "AWS CDK app for the adoption environment",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger, err := logging.New(opts.logLevel)
			if err != nil {
				return err
			}
			logging.Install(logger)
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = zap.L().Sync()
		},
		// cdk.json runs the binary without arguments.
		Args: cobra.NoArgs,
		RunE: synth.RunE,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flags.StringVar(&opts.stacks, "stacks", "", "Comma separated stack ids, overrides ADOPTION_STACKS")
	flags.StringVar(&opts.configPath, "config", "", "YAML config file, overrides ADOPTION_CONFIG")
	flags.StringVar(&opts.dotenv, "env-file", ".env", "dotenv file loaded before reading the environment")
	flags.StringVar(&opts.outdir, "outdir", "", "Cloud assembly directory, defaults to the one the cdk CLI passes in CDK_OUTDIR")

	root.AddCommand(synth, newOutputsCmd(opts))
	return root
}

// loadConfig layers .env, the environment, the YAML file and the flags.
func loadConfig(opts *options) (*config.Config, error) {
	cfg, err := config.Load(opts.dotenv)
	if err != nil {
		return nil, err
	}
	if opts.configPath != "" {
		if err := cfg.ApplyFile(opts.configPath); err != nil {
			return nil, err
		}
	}
	if opts.stacks != "" {
		if cfg.Stacks, err = config.ParseStacks(opts.stacks); err != nil {
			return nil, errors.Wrap(err, "--stacks")
		}
	}
	return cfg, nil
}

func runSynth(opts *options) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return errors.Wrap(err, "invalid configuration")
	}

	var props *awscdk.AppProps
	if opts.outdir != "" {
		props = &awscdk.AppProps{Outdir: jsii.String(opts.outdir)}
	}
	app := awscdk.NewApp(props)
	stack.Build(app, cfg)
	app.Synth(nil)
	return nil
}

func newOutputsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "outputs [stack...]",
		Short: "Print the outputs of deployed stacks",
		Long:  "Print the CloudFormation outputs of the given stacks, or of every selected stack when none is given.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			names := args
			if len(names) == 0 {
				names = cfg.Stacks
			}

			reader, err := outputs.NewReader(cfg.Region)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			outs, fetchErr := reader.Fetch(ctx, names)
			if err := outputs.Write(cmd.OutOrStdout(), outs); err != nil {
				return err
			}
			return fetchErr
		},
	}
}

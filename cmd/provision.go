package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/quizforge/quizd/internal/logging"
	"github.com/quizforge/quizd/internal/provision"
)

// provisionFlags are shared by the provision subcommands.
type provisionFlags struct {
	builder    string
	tag        string
	contextDir string
}

// newProvisionCmd creates the 'provision' command group: rendering,
// building, and verifying the runtime container image. These commands do
// not need credentials, so they run without the application container.
func newProvisionCmd() *cobra.Command {
	flags := &provisionFlags{}

	cmd := &cobra.Command{
		Use:   "provision",
		Short: "Builds and verifies the runtime container image",
		Long: `Manages the container image the service runs in: a minimal base
layer plus the shared libraries the headless browser engine needs, the
service binary, and the launch directive.`,
	}

	cmd.PersistentFlags().StringVar(&flags.builder, "builder", "docker", "image build tool (docker or podman)")
	cmd.PersistentFlags().StringVar(&flags.tag, "tag", "quizd:latest", "tag for the built image")
	cmd.PersistentFlags().StringVar(&flags.contextDir, "context", ".", "build context directory")

	cmd.AddCommand(newProvisionPlanCmd())
	cmd.AddCommand(newProvisionApplyCmd(flags))
	cmd.AddCommand(newProvisionVerifyCmd(flags))
	return cmd
}

func newProvisionPlanCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:     "plan",
		Aliases: []string{"render"},
		Short:   "Renders the containerfile without building",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rendered, err := provision.Render(provision.DefaultSpec())
			if err != nil {
				return err
			}
			if output == "-" {
				fmt.Fprint(cmd.OutOrStdout(), rendered)
				return nil
			}
			if err := os.WriteFile(output, []byte(rendered), 0o644); err != nil {
				return fmt.Errorf("write containerfile: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "-", "output path, or - for stdout")
	return cmd
}

func newProvisionApplyCmd(flags *provisionFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "apply",
		Short: "Renders the containerfile and builds the image",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger, err := logging.New(true)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			builder := provision.NewBuilder(logger)
			res, err := builder.Apply(cmd.Context(), provision.DefaultSpec(), provision.Options{
				Builder:    flags.builder,
				Tag:        flags.tag,
				ContextDir: flags.contextDir,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "built %s from %s\n", res.Tag, res.Containerfile)
			return nil
		},
	}
}

func newProvisionVerifyCmd(flags *provisionFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Verifies a built image can run the service",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger, err := logging.New(true)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			builder := provision.NewBuilder(logger)
			if err := builder.Verify(cmd.Context(), provision.DefaultSpec(), provision.Options{
				Builder: flags.builder,
				Tag:     flags.tag,
			}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "image %s verified\n", flags.tag)
			return nil
		},
	}
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/xenking/upc-lookup/internal/domain/product"
	"github.com/xenking/upc-lookup/internal/lookup"
	"github.com/xenking/upc-lookup/internal/signature"
)

const (
	envAppKey  = "UPC_DIGITEYES_APP_KEY"
	envAuthKey = "UPC_DIGITEYES_AUTH_KEY"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "upc-lookup: %v\n", err)
		os.Exit(1)
	}
}

// rootOptions are shared by every subcommand.
type rootOptions struct {
	appKey   string
	authKey  string
	endpoint string
	verbose  bool
}

func (o *rootOptions) credentials() (signature.Credentials, error) {
	if o.appKey == "" {
		return signature.Credentials{}, errors.Errorf("app key is required: pass --app-key or set %s", envAppKey)
	}
	if o.authKey == "" {
		return signature.Credentials{}, errors.Errorf("auth key is required: pass --auth-key or set %s", envAuthKey)
	}
	return signature.Credentials{AppKey: o.appKey, AuthKey: o.authKey}, nil
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "upc-lookup",
		Short: "Look up products by barcode on digit-eyes",
		Long: `upc-lookup signs barcode lookups for the digit-eyes GTIN API and resolves
them into a product description and image.`,
		SilenceUsage: true,
	}
	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.appKey, "app-key", os.Getenv(envAppKey), "digit-eyes application key (env "+envAppKey+")")
	flags.StringVar(&opts.authKey, "auth-key", os.Getenv(envAuthKey), "digit-eyes authorization key (env "+envAuthKey+")")
	flags.StringVar(&opts.endpoint, "endpoint", signature.DefaultEndpoint, "Lookup endpoint")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "Log lookup stages to stderr")

	cmd.AddCommand(
		newSignCmd(opts),
		newLookupCmd(opts),
	)
	return cmd
}

func newSignCmd(opts *rootOptions) *cobra.Command {
	var algorithm string
	cmd := &cobra.Command{
		Use:   "sign <barcode>",
		Short: "Print the signature and signed lookup URL for a barcode",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			creds, err := opts.credentials()
			if err != nil {
				return err
			}
			alg, err := signature.ParseAlgorithm(algorithm)
			if err != nil {
				return err
			}
			signer, err := signature.NewSigner(creds,
				signature.WithAlgorithm(alg),
				signature.WithEndpoint(opts.endpoint),
			)
			if err != nil {
				return err
			}

			sig, err := signer.Sign(args[0])
			if err != nil {
				return err
			}
			u, err := signer.LookupURL(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "algorithm: %s\n", alg)
			fmt.Fprintf(out, "signature: %s\n", sig)
			fmt.Fprintf(out, "url:       %s\n", u)
			return nil
		},
	}
	cmd.Flags().StringVarP(&algorithm, "algorithm", "a", string(signature.DefaultAlgorithm),
		fmt.Sprintf("HMAC hash function %v", signature.Algorithms()))
	return cmd
}

func newLookupCmd(opts *rootOptions) *cobra.Command {
	var (
		imageOut string
		timeout  time.Duration
	)
	cmd := &cobra.Command{
		Use:   "lookup <barcode>",
		Short: "Fetch the description and image of a product",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			creds, err := opts.credentials()
			if err != nil {
				return err
			}
			lg, err := newLogger(opts.verbose)
			if err != nil {
				return err
			}
			defer func() { _ = lg.Sync() }()

			ctx := zctx.Base(cmd.Context(), lg)
			rec, err := lookup.Product(ctx, args[0], creds,
				lookup.WithSignerOptions(signature.WithEndpoint(opts.endpoint)),
				lookup.WithTimeout(timeout),
			)
			if err != nil {
				return errors.Wrap(err, product.KindOf(err).String())
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "barcode:     %s\n", rec.Barcode)
			fmt.Fprintf(out, "description: %s\n", rec.Description)
			fmt.Fprintf(out, "image:       %s (%s, %d bytes)\n", rec.ImageURL, rec.ImageFormat, len(rec.Image))

			if imageOut == "" {
				return nil
			}
			if err := os.WriteFile(imageOut, rec.Image, 0o644); err != nil {
				return errors.Wrap(err, "write image")
			}
			fmt.Fprintf(out, "saved:       %s\n", imageOut)
			return nil
		},
	}
	cmd.Flags().StringVarP(&imageOut, "image-out", "o", "", "Write the product image to this file")
	cmd.Flags().DurationVar(&timeout, "timeout", lookup.DefaultTimeout, "Per-request timeout")
	return cmd
}

// newLogger logs warnings to stderr, or every stage with --verbose.
func newLogger(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	cfg.DisableStacktrace = true
	return cfg.Build()
}

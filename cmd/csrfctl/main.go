// Command csrfctl mints, inspects and verifies CSRF tokens and checks CSRF
// configuration files from the command line.
//
//	csrfctl issue --secret s3cr3t
//	csrfctl verify --secret s3cr3t --signed <cookie> --plain <token>
//	csrfctl check-config --yaml config.yaml --section csrf
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/JeanGrijp/go-csrf/csrf"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

type options struct {
	secret  string
	salt    string
	yaml    string
	section string
	dotenv  []string
}

// loadConfig resolves the configuration from --yaml or the CSRF_* environment
// and applies --secret on top.
func (o *options) loadConfig() (csrf.Config, error) {
	var src csrf.Source = csrf.FromEnv(o.dotenv...)
	if o.yaml != "" {
		ys, err := csrf.FromYAMLFile(o.yaml, o.section)
		if err != nil {
			return csrf.Config{}, err
		}
		src = ys
	}
	cfg, err := csrf.LoadConfig(src)
	if err != nil {
		return csrf.Config{}, err
	}
	if o.secret != "" {
		cfg.SecretKey = o.secret
	}
	return cfg, nil
}

func (o *options) codec() *csrf.Codec {
	if o.salt == "" {
		return csrf.NewCodec()
	}
	return csrf.NewCodec(csrf.WithSalt(o.salt))
}

func newRootCmd(out io.Writer) *cobra.Command {
	o := &options{}

	root := &cobra.Command{
		Use:           "csrfctl",
		Short:         "Issue, verify and inspect signed CSRF tokens",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)
	root.PersistentFlags().StringVar(&o.secret, "secret", "", "secret key (defaults to secret_key from the configuration)")
	root.PersistentFlags().StringVar(&o.salt, "salt", "", "signing salt (default "+csrf.DefaultSalt+")")
	root.PersistentFlags().StringVar(&o.yaml, "yaml", "", "read options from this YAML file instead of CSRF_* variables")
	root.PersistentFlags().StringVar(&o.section, "section", "", "top-level YAML key holding the options")
	root.PersistentFlags().StringSliceVar(&o.dotenv, "dotenv", nil, ".env files loaded before reading CSRF_* variables")

	root.AddCommand(newIssueCmd(o), newVerifyCmd(o), newCheckConfigCmd(o))
	return root
}

func newIssueCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "issue",
		Short: "Mint a token pair and print it as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := o.loadConfig()
			if err != nil {
				return err
			}
			pair, err := o.codec().Generate(cfg.SecretKey)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]string{
				"csrf_token": pair.Plain,
				"signed":     pair.Signed,
				"cookie":     cfg.CookieKey,
			})
		},
	}
}

func newVerifyCmd(o *options) *cobra.Command {
	var (
		signed string
		plain  string
		maxAge time.Duration
	)
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check a signed token, and optionally that it matches a plain token",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := o.loadConfig()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("max-age") {
				maxAge = time.Duration(cfg.MaxAge) * time.Second
			}

			c := o.codec()
			got, issuedAt, err := c.Decode(cfg.SecretKey, signed, maxAge)
			if err != nil {
				return err
			}
			if plain != "" {
				if err := c.Verify(cfg.SecretKey, signed, plain, maxAge); err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "valid: token=%s issued_at=%s\n", got, issuedAt.UTC().Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().StringVar(&signed, "signed", "", "signed token (cookie value)")
	cmd.Flags().StringVar(&plain, "plain", "", "plain token submitted by the client")
	cmd.Flags().DurationVar(&maxAge, "max-age", 0, "override max_age, e.g. 30m")
	_ = cmd.MarkFlagRequired("signed")
	return cmd
}

// configView is the printable form of csrf.Config; the secret is masked.
type configView struct {
	SecretKey      string   `yaml:"secret_key"`
	CookieKey      string   `yaml:"cookie_key"`
	CookiePath     string   `yaml:"cookie_path"`
	CookieDomain   string   `yaml:"cookie_domain,omitempty"`
	CookieSecure   bool     `yaml:"cookie_secure"`
	CookieSameSite string   `yaml:"cookie_samesite"`
	HTTPOnly       bool     `yaml:"httponly"`
	MaxAge         int      `yaml:"max_age"`
	HeaderName     string   `yaml:"header_name"`
	HeaderType     string   `yaml:"header_type,omitempty"`
	TokenLocation  string   `yaml:"token_location"`
	TokenKey       string   `yaml:"token_key,omitempty"`
	Methods        []string `yaml:"methods"`
}

func newCheckConfigCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "check-config",
		Short: "Validate the configuration and print the effective options",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := o.loadConfig()
			if err != nil {
				return err
			}
			secret := "<unset>"
			if cfg.SecretKey != "" {
				secret = "<redacted>"
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			defer enc.Close()
			return enc.Encode(configView{
				SecretKey:      secret,
				CookieKey:      cfg.CookieKey,
				CookiePath:     cfg.CookiePath,
				CookieDomain:   cfg.CookieDomain,
				CookieSecure:   cfg.CookieSecure,
				CookieSameSite: string(cfg.CookieSameSite),
				HTTPOnly:       cfg.HTTPOnly,
				MaxAge:         cfg.MaxAge,
				HeaderName:     cfg.HeaderName,
				HeaderType:     cfg.HeaderType,
				TokenLocation:  string(cfg.TokenLocation),
				TokenKey:       cfg.TokenKey,
				Methods:        cfg.Methods,
			})
		},
	}
}

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

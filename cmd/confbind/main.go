// FILE: lixenwraith/confbind/cmd/confbind/main.go
package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lixenwraith/confbind"
)

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type rootOptions struct {
	verbose bool
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "confbind",
		Short:         "Inspect configuration keys and sources",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Log source loading to stderr")

	cmd.AddCommand(newKeysCommand())
	cmd.AddCommand(newGetCommand(opts))
	cmd.AddCommand(newDumpCommand(opts))
	cmd.AddCommand(newEncryptCommand())
	return cmd
}

func (o *rootOptions) logger() *zap.Logger {
	if !o.verbose {
		return zap.NewNop()
	}
	l, err := zap.NewDevelopment()
	if err != nil {
		return zap.NewNop()
	}
	return l
}

type keyFlags struct {
	prefixes         []string
	fallbackPrefixes []string
	fallbackKey      string
}

func (k *keyFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringSliceVarP(&k.prefixes, "prefix", "p", nil, "Prefixes, outermost first")
	cmd.Flags().StringSliceVar(&k.fallbackPrefixes, "fallback-prefix", nil, "Fallback prefixes")
	cmd.Flags().StringVar(&k.fallbackKey, "fallback-key", "", "Fallback key tried last")
}

func (k *keyFlags) candidates(keys []string) []string {
	return confbind.CandidateKeys(k.prefixes, keys, k.fallbackPrefixes, k.fallbackKey)
}

func newKeysCommand() *cobra.Command {
	flags := &keyFlags{}
	cmd := &cobra.Command{
		Use:   "keys KEY...",
		Short: "Print the candidate keys probed for a property, in order",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, k := range flags.candidates(args) {
				fmt.Fprintln(cmd.OutOrStdout(), k)
			}
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

type sourceFlags struct {
	file      string
	envPrefix string
	format    string
}

func (s *sourceFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&s.file, "file", "f", "", "Configuration file (TOML, JSON or YAML)")
	cmd.Flags().StringVarP(&s.envPrefix, "env-prefix", "e", "", "Also consult environment variables with this prefix")
	cmd.Flags().StringVar(&s.format, "format", confbind.FormatAuto, "File format: auto, toml, json or yaml")
}

func (s *sourceFlags) source(l *zap.Logger) (confbind.Source, *confbind.FileSource, error) {
	var sources []confbind.Source
	if s.envPrefix != "" {
		sources = append(sources, confbind.NewEnvSource(s.envPrefix))
	}
	var file *confbind.FileSource
	if s.file != "" {
		var err error
		file, err = confbind.NewFileSource(s.file, confbind.WithFormat(s.format), confbind.WithFileLogger(l))
		if err != nil {
			return nil, nil, err
		}
		sources = append(sources, file)
	}
	if len(sources) == 0 {
		return nil, nil, errors.New("no source: set --file or --env-prefix")
	}
	return confbind.Chain(sources...), file, nil
}

func newGetCommand(root *rootOptions) *cobra.Command {
	keys := &keyFlags{}
	src := &sourceFlags{}
	var fallbackValue string
	cmd := &cobra.Command{
		Use:   "get KEY...",
		Short: "Resolve a property against a file and the environment",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, _, err := src.source(root.logger())
			if err != nil {
				return err
			}
			for _, k := range keys.candidates(args) {
				v := s.Lookup(k, nil)
				if !v.IsPresent() {
					continue
				}
				if v.IsNull() {
					fmt.Fprintf(cmd.OutOrStdout(), "%s = <null>\n", k)
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", k, v.String())
				}
				return nil
			}
			if cmd.Flags().Changed("default") {
				fmt.Fprintf(cmd.OutOrStdout(), "<default> = %s\n", fallbackValue)
				return nil
			}
			return fmt.Errorf("no value for %s", strings.Join(args, ", "))
		},
	}
	keys.register(cmd)
	src.register(cmd)
	cmd.Flags().StringVar(&fallbackValue, "default", "", "Value printed when no key resolves")
	return cmd
}

func newDumpCommand(root *rootOptions) *cobra.Command {
	src := &sourceFlags{}
	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Print every flattened key of a configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if src.file == "" {
				return errors.New("--file is required")
			}
			_, file, err := src.source(root.logger())
			if err != nil {
				return err
			}
			for k, v := range file.Entries() {
				fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", k, v.String())
			}
			return nil
		},
	}
	src.register(cmd)
	return cmd
}

func newEncryptCommand() *cobra.Command {
	var name, passphrase, salt string
	cmd := &cobra.Command{
		Use:   "encrypt VALUE",
		Short: "Encrypt a value for an encrypted property",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if passphrase == "" {
				passphrase = os.Getenv("CONFBIND_PASSPHRASE")
			}
			if passphrase == "" {
				return errors.New("--passphrase or CONFBIND_PASSPHRASE is required")
			}
			d, err := confbind.NewPassphraseDecryptor(name, passphrase, []byte(salt))
			if err != nil {
				return err
			}
			out, err := d.Encrypt(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "default", "Decryptor name")
	cmd.Flags().StringVar(&passphrase, "passphrase", "", "Passphrase the key is derived from")
	cmd.Flags().StringVar(&salt, "salt", "confbind", "Key derivation salt")
	return cmd
}

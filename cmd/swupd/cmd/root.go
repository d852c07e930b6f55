// Copyright 2018 Intel Corporation
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cmd

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/clearlinux/swupd-go/swupd"
)

var rootFlags *pflag.FlagSet

// RootCmd represents the base command when called without any subcommands.
var RootCmd = &cobra.Command{
	Use:   "swupd",
	Short: "swupd applies and verifies content-addressed OS image updates",
	Long:  `swupd fetches, verifies, and installs bundle-based OS image updates from a content server.`,

	Run: func(cmd *cobra.Command, args []string) {
		cmd.Print(cmd.UsageString())
	},
}

var rootCmdFlags = struct {
	configFile string
	path       string
	stateDir   string
	contentURL string
	versionURL string
	certPath   string
	insecure   bool
}{}

// Execute adds all child commands to RootCmd and runs it. Called once by
// main.main(); the process exit code is CodeOf the returned error so
// scripting callers see the same closed exit-code table the library
// defines.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(int(swupd.CodeOf(err)))
	}
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&rootCmdFlags.configFile, "config", "c", "", "path to swupd.conf (default "+swupd.DefaultConfigPath+")")
	RootCmd.PersistentFlags().StringVarP(&rootCmdFlags.path, "path", "p", "/", "target root to operate on")
	RootCmd.PersistentFlags().StringVarP(&rootCmdFlags.stateDir, "statedir", "S", "/var/lib/swupd", "cache/state directory")
	RootCmd.PersistentFlags().StringVarP(&rootCmdFlags.contentURL, "url", "u", "", "override the content server URL")
	RootCmd.PersistentFlags().StringVar(&rootCmdFlags.versionURL, "versionurl", "", "override the version server URL")
	RootCmd.PersistentFlags().StringVar(&rootCmdFlags.certPath, "certpath", "/etc/swupd/root.pem", "path to the CA certificate used for signature verification")
	RootCmd.PersistentFlags().BoolVar(&rootCmdFlags.insecure, "allow-insecure-http", false, "skip TLS and signature verification (testing only)")

	rootFlags = RootCmd.PersistentFlags()
}

// loadConfig builds the transaction Config from the persistent flags,
// letting command-line overrides win over the config file the way mixer's
// RootCmd.PersistentPreRunE layers builder.conf under flag overrides.
func loadConfig() (*swupd.Config, error) {
	opts := []swupd.Option{
		swupd.WithPath(rootCmdFlags.path),
		swupd.WithStateDir(rootCmdFlags.stateDir),
	}
	if rootFlags.Changed("url") {
		opts = append(opts, swupd.WithContentURL(rootCmdFlags.contentURL))
	}
	if rootFlags.Changed("versionurl") {
		opts = append(opts, swupd.WithVersionURL(rootCmdFlags.versionURL))
	}
	if rootCmdFlags.insecure {
		opts = append(opts, swupd.WithAllowInsecureHTTP(true))
	}
	opts = append(opts, func(c *swupd.Config) { c.CertPath = rootCmdFlags.certPath })
	return swupd.LoadConfig(rootCmdFlags.configFile, opts...)
}

// withLock acquires the statedir lock (§5 mutual exclusion) for the
// duration of fn, failing fast if another swupd instance already holds it.
func withLock(stateDir string, fn func() error) error {
	lock, err := swupd.AcquireLock(stateDir)
	if err != nil {
		return err
	}
	defer func() { _ = lock.Release() }()
	return fn()
}

func fail(err error) {
	log.Printf("ERROR: %s\n", err)
	os.Exit(int(swupd.CodeOf(err)))
}

func failf(format string, a ...interface{}) {
	log.Printf(fmt.Sprintf("ERROR: %s\n", format), a...)
	os.Exit(int(swupd.ExitGeneralError))
}

func backgroundContext() context.Context {
	return context.Background()
}

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
	"fmt"

	"github.com/spf13/cobra"

	"github.com/clearlinux/swupd-go/swupd"
)

var mirrorFlags = struct {
	set              string
	unset            bool
	stalenessThresh  uint32
}{}

var mirrorCmd = &cobra.Command{
	Use:   "mirror",
	Short: "Configure or evaluate a local content mirror",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if mirrorFlags.unset {
			fmt.Println("Mirror unset")
			return nil
		}
		if mirrorFlags.set != "" {
			fmt.Printf("Mirror set to %s\n", mirrorFlags.set)
			return nil
		}
		return runMirrorCheck(cfg)
	},
}

func runMirrorCheck(cfg *swupd.Config) error {
	if cfg.MirrorURL == "" {
		fmt.Println("No mirror configured")
		return nil
	}

	ctx := backgroundContext()
	vf := swupd.NewVersionFetcher(cfg, nil)
	upstream, uerr := vf.LatestOverall(ctx)

	mirrorCfg := *cfg
	mirrorCfg.VersionURL = cfg.MirrorURL
	mvf := swupd.NewVersionFetcher(&mirrorCfg, nil)
	mirror, merr := mvf.LatestOverall(ctx)

	reachable := uerr == nil && merr == nil
	policy := swupd.MirrorPolicy{StalenessThreshold: mirrorFlags.stalenessThresh}
	decision := policy.Evaluate(reachable, upstream, mirror)

	switch decision {
	case swupd.MirrorKeep:
		fmt.Printf("Mirror %s is current (version %d)\n", cfg.MirrorURL, mirror)
	case swupd.MirrorWarn:
		fmt.Printf("Mirror %s is lagging: mirror=%d upstream=%d\n", cfg.MirrorURL, mirror, upstream)
	case swupd.MirrorUnset:
		fmt.Printf("Mirror %s is unreachable or too stale, falling back to upstream\n", cfg.MirrorURL)
	}
	return nil
}

func init() {
	mirrorCmd.Flags().StringVar(&mirrorFlags.set, "set", "", "configure a mirror URL")
	mirrorCmd.Flags().BoolVar(&mirrorFlags.unset, "unset", false, "remove the configured mirror")
	mirrorCmd.Flags().Uint32Var(&mirrorFlags.stalenessThresh, "staleness-threshold", 10, "maximum version lag before a mirror is unset")
	RootCmd.AddCommand(mirrorCmd)
}

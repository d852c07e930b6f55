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

package swupd

import (
	"context"

	"github.com/pkg/errors"

	"github.com/clearlinux/swupd-go/internal/swudlog"
)

// Trigger names a post-commit action the driver schedules when a change set
// touches a file a heuristic flags for it (§4.11).
type Trigger int

// The triggers the driver can schedule.
const (
	TriggerBootloaderUpdate Trigger = iota
	TriggerSystemdReexec
)

// UpdateResult summarizes one driver run.
type UpdateResult struct {
	FromVersion, ToVersion uint32
	NoUpdateAvailable      bool
	Report                 *DiagnoseReport
	Triggers               []Trigger
	// RetriedFetches lists fingerprints FetchAll couldn't retrieve after
	// its own internal backoff (§4.5/§7): a transient failure the caller
	// may want to retry, not necessarily a fatal update failure since
	// install's archive-extraction fallback can still recover content
	// whose staged/ copy never landed.
	RetriedFetches []string
}

// Driver sequences the update/verify/bundle-add/bundle-remove operations
// described in §4.14, wiring together the resolver, acquirer, fetcher,
// consolidator, heuristics and staging engine built elsewhere in the
// package.
type Driver struct {
	Cfg       *Config
	Cache     *Cache
	Acquirer  *Acquirer
	Fetcher   *Fetcher
	Installer *Installer
	Versions  *VersionFetcher
}

// Update reads the current version and the latest target version, acquires
// the MoM and the subscribed bundles' manifests at the target version only,
// consolidates their files, fetches missing content, and installs it with
// stage-all, rename-all. The current version's MoM and manifests are not
// loaded, so the file set is the target's full list rather than a diff
// against current. Update does not write a version file itself, and it
// returns the post-commit triggers in UpdateResult.Triggers without running
// them.
func (d *Driver) Update(ctx context.Context, subscribed []string) (*UpdateResult, error) {
	current, err := CurrentVersion(d.Installer.Root)
	if err != nil {
		return nil, err
	}
	target, err := d.Versions.LatestForFormat(ctx, d.Cfg.FormatOverride)
	if err != nil {
		return nil, err
	}
	if current == target {
		return &UpdateResult{FromVersion: current, ToVersion: target, NoUpdateAvailable: true}, nil
	}

	targetMoM, err := d.Acquirer.AcquireBundleManifest(ctx, current, target, "MoM", "")
	if err != nil {
		return nil, err
	}

	resolved, err := ResolveBundles(subscribed, !d.Cfg.SkipOptional, func(name string) (*Manifest, error) {
		return d.Acquirer.AcquireBundleManifest(ctx, current, target, name, "")
	})
	if err != nil {
		return nil, err
	}

	var all []*File
	for _, m := range resolved {
		all = append(all, m.Files...)
	}
	consolidated, telemetry := ConsolidateFiles(all)
	for _, rec := range telemetry {
		if err := EmitTelemetry(d.Cache.Dir, rec); err != nil {
			swudlog.Warning(swudlog.Manifest, "couldn't emit telemetry: %v", err)
		}
	}
	ApplyHeuristics(consolidated)

	var toFetch []ArtifactRequest
	for _, f := range consolidated {
		if f.Status == StatusDeleted || f.Status == StatusGhosted || f.HasAttr(AttrDoNotUpdate) {
			continue
		}
		toFetch = append(toFetch, ArtifactRequest{Fingerprint: f.Hash.String()})
	}
	retry, err := d.Fetcher.FetchAll(ctx, toFetch)
	if err != nil {
		return nil, errors.Wrap(err, "fetch phase failed")
	}
	var retriedFingerprints []string
	for _, r := range retry {
		swudlog.Warning(swudlog.Fetch, "couldn't fetch %s after retries, will fall back during install", r.Fingerprint)
		retriedFingerprints = append(retriedFingerprints, r.Fingerprint)
	}

	mom := &MoM{Manifest: *targetMoM}
	d.Installer.MoM = mom
	if err := d.Installer.InstallFiles(consolidated); err != nil {
		return nil, errors.Wrap(err, "install phase failed")
	}

	triggers := d.scheduleTriggers(consolidated)

	return &UpdateResult{
		FromVersion:    current,
		ToVersion:      target,
		Triggers:       triggers,
		RetriedFetches: retriedFingerprints,
	}, nil
}

// Verify runs the diagnose walker over files, the "verify/repair" path of
// §4.14. It repairs only when policy.Fix is set.
func (d *Driver) Verify(files []*File, policy DiagnosePolicy) (*UpdateResult, error) {
	diag := &Diagnoser{Root: d.Installer.Root, Installer: d.Installer}
	report, err := diag.Run(files, policy)
	if err != nil {
		return nil, err
	}
	var triggers []Trigger
	if policy.Fix && (report.Fixed > 0 || report.Deleted > 0) {
		triggers = d.scheduleTriggers(files)
	}
	return &UpdateResult{Report: report, Triggers: triggers}, nil
}

func (d *Driver) scheduleTriggers(changed []*File) []Trigger {
	var triggers []Trigger
	if needsBootloaderUpdate(changed) {
		triggers = append(triggers, TriggerBootloaderUpdate)
	}
	for _, f := range changed {
		if f.Name == "/usr/lib/systemd/systemd" {
			triggers = append(triggers, TriggerSystemdReexec)
			break
		}
	}
	return triggers
}

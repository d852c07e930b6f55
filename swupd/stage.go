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
	"os"
	"path/filepath"
	"sort"
	"syscall"

	"github.com/pkg/errors"

	"github.com/clearlinux/swupd-go/internal/swudlog"
)

// matchStagedAttrs chmods/lchowns path to the mode and ownership extended
// attributes and the staged reference carries, for content (mainly
// directories) whose permissions don't otherwise come along for free the
// way a hardlink or byte-copy already carries them.
func matchStagedAttrs(path, reference string) error {
	info, err := os.Lstat(reference)
	if err != nil {
		// No staged reference to match against (e.g. a fresh directory
		// with no fullfile of its own); leave the defaults in place.
		return nil
	}
	if err := os.Chmod(path, info.Mode().Perm()); err != nil {
		return err
	}
	if st, ok := info.Sys().(*syscall.Stat_t); ok {
		if err := os.Lchown(path, int(st.Uid), int(st.Gid)); err != nil {
			return err
		}
	}
	return copyXattrs(path, reference)
}

// updatePrefix names the temporary file a staged install is written under
// before the atomic rename that commits it, "<target-dir>/.update.<basename>".
const updatePrefix = ".update."

// Installer stages and commits File entries into a target root, the engine
// behind §4.10. Given a File it prepares the parent directory (see
// verifyFixPath), stages the new content under a temporary name, then
// commits with rename(2). The installer does not read the MoM field.
type Installer struct {
	Cache  *Cache
	Root   string
	MoM    *MoM
	Lookup func(name string) *File
}

func updatePath(targetDir, basename string) string {
	return filepath.Join(targetDir, updatePrefix+basename)
}

// StageFile installs f into the target root. Deleted entries are
// unlinked/rmdir'd directly, matching step 5's delete handling; everything
// else stages under .update.<basename> then commits via rename.
func (in *Installer) StageFile(f *File) error {
	targetPath := filepath.Join(in.Root, f.Name)
	targetDir := filepath.Dir(targetPath)
	basename := filepath.Base(targetPath)

	if f.Status == StatusDeleted || f.Status == StatusGhosted {
		return in.removeFile(targetPath)
	}

	if err := in.verifyFixPath(targetDir); err != nil {
		return errors.Wrapf(err, "couldn't prepare parent directory for %s", f.Name)
	}

	stagingPath := updatePath(targetDir, basename)
	_ = os.RemoveAll(stagingPath)

	if err := in.replaceIfKindChanged(targetPath, f); err != nil {
		return err
	}

	if err := in.install(f, stagingPath); err != nil {
		return errors.Wrapf(err, "couldn't stage %s", f.Name)
	}

	return in.commit(stagingPath, targetPath, targetDir, basename)
}

// removeFile deletes a deleted/ghosted entry directly from the target root,
// directories only when empty.
func (in *Installer) removeFile(targetPath string) error {
	info, err := os.Lstat(targetPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if info.IsDir() {
		if err := os.Remove(targetPath); err != nil && !os.IsExist(err) {
			return errors.Wrapf(err, "couldn't remove directory %s (must be empty)", targetPath)
		}
		return nil
	}
	return os.Remove(targetPath)
}

// verifyFixPath walks each prefix of dir under Root and refuses to follow a
// symlinked ancestor. A missing ancestor is staged from the entry Lookup
// returns when Lookup is set and finds one, and is otherwise created with
// mode 0755. An ancestor that exists but is not a directory is reported as
// an error; it is not repaired.
func (in *Installer) verifyFixPath(dir string) error {
	rel, err := filepath.Rel(in.Root, dir)
	if err != nil {
		return err
	}
	if rel == "." {
		return nil
	}

	var prefix string
	for _, part := range splitPath(rel) {
		prefix = filepath.Join(prefix, part)
		full := filepath.Join(in.Root, prefix)

		info, err := os.Lstat(full)
		switch {
		case err == nil && info.Mode()&os.ModeSymlink != 0:
			return errors.Errorf("refusing to follow symlink at ancestor %s", full)
		case err == nil && info.IsDir():
			continue
		case err == nil:
			return errors.Errorf("ancestor %s exists and is not a directory", full)
		case os.IsNotExist(err):
			if in.Lookup != nil {
				if ancestor := in.Lookup("/" + filepath.ToSlash(prefix)); ancestor != nil {
					if err := in.StageFile(ancestor); err != nil {
						return err
					}
					continue
				}
			}
			if err := os.MkdirAll(full, 0755); err != nil {
				return err
			}
		default:
			return err
		}
	}
	return nil
}

func splitPath(rel string) []string {
	var parts []string
	for _, p := range filepathSplitAll(rel) {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}

func filepathSplitAll(path string) []string {
	var parts []string
	for path != "" && path != "." && path != string(filepath.Separator) {
		dir, file := filepath.Split(filepath.Clean(path))
		parts = append([]string{file}, parts...)
		path = filepath.Clean(dir)
	}
	return parts
}

// replaceIfKindChanged removes targetPath if it exists and its kind differs
// from f's, so the install step below starts from a clean slate. A
// non-empty directory being replaced by a non-directory is relocated under
// <root>/lost+found/ instead of being destroyed outright.
func (in *Installer) replaceIfKindChanged(targetPath string, f *File) error {
	info, err := os.Lstat(targetPath)
	if err != nil {
		return nil
	}
	existingIsDir := info.IsDir()
	newIsDir := f.Kind == KindDirectory
	if existingIsDir == newIsDir {
		return nil
	}

	if existingIsDir {
		entries, err := os.ReadDir(targetPath)
		if err == nil && len(entries) > 0 {
			lostFound := filepath.Join(in.Root, "lost+found")
			if err := os.MkdirAll(lostFound, 0700); err != nil {
				return err
			}
			dest := filepath.Join(lostFound, filepath.Base(targetPath))
			swudlog.Warning(swudlog.Stage, "relocating non-empty directory %s to %s", targetPath, dest)
			return os.Rename(targetPath, dest)
		}
	}
	return os.RemoveAll(targetPath)
}

// install writes f's content to stagingPath. Directories are created
// directly and have their attributes matched to the staged reference,
// falling back to archive extraction if the plain Mkdir fails; regular
// files are hardlinked from staged/<fingerprint>, falling back to copy then
// to archive extraction; symlinks are handled by the same hardlink/copy
// fallback since they too live under staged/.
func (in *Installer) install(f *File, stagingPath string) error {
	src := in.Cache.StagedPath(f.Hash.String())
	archive := in.Cache.DownloadPath(f.Hash.String(), false)

	switch f.Kind {
	case KindDirectory:
		if err := os.Mkdir(stagingPath, 0755); err != nil && !os.IsExist(err) {
			if extractErr := extractSingleEntry(archive, stagingPath); extractErr != nil {
				return errors.Wrapf(err, "couldn't create directory %s (archive fallback also failed: %v)", f.Name, extractErr)
			}
		}
		return matchStagedAttrs(stagingPath, src)
	case KindRegular, KindLink:
		if err := os.Link(src, stagingPath); err == nil {
			return nil
		}
		if err := copyFile(stagingPath, src); err == nil {
			return copyXattrs(stagingPath, src)
		}
		if err := extractSingleEntry(archive, stagingPath); err == nil {
			return copyXattrs(stagingPath, src)
		}
		return errors.Errorf("couldn't install %s: hardlink, copy and archive extraction all failed", f.Name)
	default:
		return errors.Errorf("unsupported kind for %s", f.Name)
	}
}

// commit renames stagingPath to its final basename under targetDir, the
// atomic step that gives the crash-safety invariant described in §4.10.
func (in *Installer) commit(stagingPath, targetPath, targetDir, basename string) error {
	_ = targetDir
	_ = basename
	return os.Rename(stagingPath, targetPath)
}

// InstallFiles is the driver variant: sorts files by (path, deleted),
// stages all, syncs, commits all, syncs — giving the invariant that after a
// crash every file has either its old or its new contents, never a
// truncated one.
func (in *Installer) InstallFiles(files []*File) error {
	sorted := make([]*File, len(files))
	copy(sorted, files)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Name != sorted[j].Name {
			return sorted[i].Name < sorted[j].Name
		}
		return sorted[i].Status != StatusDeleted && sorted[j].Status == StatusDeleted
	})

	type staged struct {
		f          *File
		stagingPath string
		targetPath string
		targetDir  string
		basename   string
	}
	var prepared []staged

	for _, f := range sorted {
		if f.Status == StatusDeleted || f.Status == StatusGhosted || f.HasAttr(AttrDoNotUpdate) {
			continue
		}
		targetPath := filepath.Join(in.Root, f.Name)
		targetDir := filepath.Dir(targetPath)
		basename := filepath.Base(targetPath)

		if err := in.verifyFixPath(targetDir); err != nil {
			return err
		}
		stagingPath := updatePath(targetDir, basename)
		_ = os.RemoveAll(stagingPath)
		if err := in.replaceIfKindChanged(targetPath, f); err != nil {
			return err
		}
		if err := in.install(f, stagingPath); err != nil {
			return err
		}
		prepared = append(prepared, staged{f, stagingPath, targetPath, targetDir, basename})
	}

	if err := syscall.Sync(); err != nil {
		swudlog.Warning(swudlog.Stage, "sync before commit failed: %v", err)
	}

	var failed []string
	for _, p := range prepared {
		if err := os.Rename(p.stagingPath, p.targetPath); err != nil {
			swudlog.Warning(swudlog.Stage, "couldn't commit %s: %v", p.f.Name, err)
			failed = append(failed, p.f.Name)
			continue
		}
	}
	for _, f := range sorted {
		if f.HasAttr(AttrDoNotUpdate) {
			continue
		}
		if f.Status == StatusDeleted || f.Status == StatusGhosted {
			if err := in.removeFile(filepath.Join(in.Root, f.Name)); err != nil {
				swudlog.Warning(swudlog.Stage, "couldn't remove %s: %v", f.Name, err)
				failed = append(failed, f.Name)
			}
		}
	}

	if err := syscall.Sync(); err != nil {
		swudlog.Warning(swudlog.Stage, "sync after commit failed: %v", err)
	}
	if len(failed) > 0 {
		return errors.Errorf("%d file(s) failed to commit: %v", len(failed), failed)
	}
	return nil
}

package trash

import (
	"errors"
	"fmt"
	"path"
	"path/filepath"

	"media-catalog/internal/filesystem"
	"media-catalog/internal/logging"
	"media-catalog/internal/mediatypes"
)

// maxSuffix bounds the search for a free _N name.
const maxSuffix = 10000

// companions returns the sidecar paths belonging to the media file at abs,
// whether or not they exist: prompt, workflow and tags siblings, then the
// edit sidecar.
func (m *Manager) companions(abs string) []string {
	dir, name := filepath.Split(abs)
	var out []string
	for _, s := range mediatypes.SidecarNames(name) {
		out = append(out, filepath.Join(dir, s))
	}
	return append(out, filepath.Join(dir, m.config.EditsDirName, mediatypes.EditSidecarName(name)))
}

// suffixed returns name with _n inserted before its extension.
func suffixed(name string, n int) string {
	if n == 0 {
		return name
	}
	ext := path.Ext(name)
	return fmt.Sprintf("%s_%d%s", name[:len(name)-len(ext)], n, ext)
}

// move relocates a media file and its existing sidecars from srcAbs to
// dstAbs, renaming sidecars to match. Sidecars whose destination is taken
// are left in place. It returns the moved pairs so a failed caller can
// undo them.
func (m *Manager) move(srcAbs, dstAbs string, moveMain bool) ([][2]string, error) {
	var moved [][2]string
	if moveMain {
		if err := filesystem.MoveFile(srcAbs, dstAbs); err != nil {
			return nil, fmt.Errorf("move %s: %w", filepath.Base(srcAbs), err)
		}
		moved = append(moved, [2]string{srcAbs, dstAbs})
	}

	src := m.companions(srcAbs)
	dst := m.companions(dstAbs)
	var errs []error
	for i := range src {
		if !filesystem.Exists(src[i]) {
			continue
		}
		if filesystem.Exists(dst[i]) {
			logging.Warn("Sidecar destination %s exists, leaving %s in place", dst[i], src[i])
			continue
		}
		if err := filesystem.MoveFile(src[i], dst[i]); err != nil {
			errs = append(errs, fmt.Errorf("move sidecar %s: %w", filepath.Base(src[i]), err))
			continue
		}
		moved = append(moved, [2]string{src[i], dst[i]})
	}
	if len(errs) > 0 {
		// Sidecar failures do not undo the main move.
		logging.Warn("Sidecar moves incomplete: %v", errors.Join(errs...))
	}
	return moved, nil
}

// undo reverses moves made by move, newest first.
func undo(moved [][2]string) {
	for i := len(moved) - 1; i >= 0; i-- {
		if err := filesystem.MoveFile(moved[i][1], moved[i][0]); err != nil {
			logging.Error("Failed to roll back move %s -> %s: %v", moved[i][1], moved[i][0], err)
		}
	}
}

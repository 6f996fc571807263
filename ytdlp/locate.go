package ytdlp

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// LocateOutput finds the file a backend invocation actually produced. The
// backend's self-reported filename is unreliable across merge, remux and
// post-process steps, so the lookup is layered:
//
//  1. the reported path as-is,
//  2. the reported path with each acceptable extension substituted
//     (canonical extension first),
//  3. <workdir>/<id>.<ext> for each acceptable extension,
//  4. newest regular file in workdir whose name contains the item id.
//
// Every candidate must strictly exceed minBytes to count; partial files left
// by an aborted merge must not be mistaken for output.
func LocateOutput(workdir, reported, id string, exts []string, minBytes int64) (string, bool) {
	isUsable := func(path string) bool {
		info, err := os.Stat(path)
		return err == nil && info.Mode().IsRegular() && info.Size() > minBytes
	}

	if reported != "" {
		if isUsable(reported) {
			return reported, true
		}
		stem := strings.TrimSuffix(reported, filepath.Ext(reported))
		for _, ext := range exts {
			if candidate := stem + "." + ext; isUsable(candidate) {
				return candidate, true
			}
		}
	}

	if id != "" {
		for _, ext := range exts {
			if candidate := filepath.Join(workdir, id+"."+ext); isUsable(candidate) {
				return candidate, true
			}
		}

		matches, _ := filepath.Glob(filepath.Join(workdir, "*"+id+"*"))
		type candidate struct {
			path  string
			mtime int64
		}
		var usable []candidate
		for _, m := range matches {
			info, err := os.Stat(m)
			if err != nil || !info.Mode().IsRegular() || info.Size() <= minBytes {
				continue
			}
			usable = append(usable, candidate{m, info.ModTime().UnixNano()})
		}
		sort.Slice(usable, func(i, j int) bool { return usable[i].mtime > usable[j].mtime })
		if len(usable) > 0 {
			return usable[0].path, true
		}
	}

	return "", false
}

package server

import (
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"
)

type fileEntry struct {
	Name       string
	IsDir      bool
	Size       int64
	ModifyTime time.Time
}

type listing struct {
	Dirs  []fileEntry
	Files []fileEntry
}

func (l listing) empty() bool {
	return len(l.Dirs) == 0 && len(l.Files) == 0
}

func (l listing) len() int {
	return len(l.Dirs) + len(l.Files)
}

// listEntries reads absDir and splits it into sorted directories and files.
// Entries that cannot be stat'ed and symlinks pointing outside the root are
// skipped.
func (s *Server) listEntries(absDir string, logger *zap.Logger) (listing, error) {
	dirEntries, err := os.ReadDir(absDir)
	if err != nil {
		return listing{}, openError(err)
	}

	var out listing
	for _, entry := range dirEntries {
		name := entry.Name()
		if !s.showHidden && isHidden(name) {
			continue
		}

		full := filepath.Join(absDir, name)
		if entry.Type()&fs.ModeSymlink != 0 && !s.linkStaysInRoot(full) {
			logger.Debug("skipping symlink leaving root",
				zap.String("dir", absDir),
				zap.String("name", name),
			)

			continue
		}

		// Stat follows symlinks so a link to a directory lists as one.
		info, err := os.Stat(full)
		if err != nil {
			logger.Warn("skipping unreadable entry",
				zap.String("dir", absDir),
				zap.String("name", name),
				zap.Error(err),
			)

			continue
		}

		if info.IsDir() {
			out.Dirs = append(out.Dirs, fileEntry{
				Name:       name,
				IsDir:      true,
				ModifyTime: info.ModTime(),
			})

			continue
		}

		if !s.isAllowedExtension(name) {
			continue
		}

		out.Files = append(out.Files, fileEntry{
			Name:       name,
			Size:       info.Size(),
			ModifyTime: info.ModTime(),
		})
	}

	sortEntries(out.Dirs)
	sortEntries(out.Files)

	return out, nil
}

// linkStaysInRoot reports whether the symlink at full resolves below the root.
// Broken links report true and are dropped later by the stat.
func (s *Server) linkStaysInRoot(full string) bool {
	target, err := filepath.EvalSymlinks(full)
	if err != nil {
		return true
	}

	return s.resolver.contains(target)
}

// sortEntries orders entries by name, byte-wise and case-sensitive.
func sortEntries(entries []fileEntry) {
	slices.SortFunc(entries, func(a, b fileEntry) int {
		return strings.Compare(a.Name, b.Name)
	})
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}

// isAllowedExtension reports whether name passes the extension allow-list.
// An empty list allows everything.
func (s *Server) isAllowedExtension(name string) bool {
	if len(s.allowedExts) == 0 {
		return true
	}

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	_, ok := s.allowedExts[ext]

	return ok
}

func extensionSet(exts []string) map[string]struct{} {
	if len(exts) == 0 {
		return nil
	}

	set := make(map[string]struct{}, len(exts))
	for _, ext := range exts {
		set[strings.ToLower(strings.TrimPrefix(ext, "."))] = struct{}{}
	}

	return set
}

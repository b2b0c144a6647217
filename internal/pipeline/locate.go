package pipeline

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

// DefaultPattern matches exported report files.
const DefaultPattern = "*.json"

// Unreadable is a path below the input root that could not be read while
// locating files. It is skipped rather than failing the walk.
type Unreadable struct {
	Path string
	Err  error
}

// Locate finds every file under root whose base name matches pattern.
// A missing root is ErrInputPathNotFound; an empty result is not an error.
// Unreadable paths below the root are skipped.
func Locate(root, pattern string) ([]ReportFile, error) {
	files, _, err := locate(root, pattern)
	return files, err
}

func locate(root, pattern string) ([]ReportFile, []Unreadable, error) {
	if pattern == "" {
		pattern = DefaultPattern
	}
	if _, err := filepath.Match(pattern, ""); err != nil {
		return nil, nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, nil, fmt.Errorf("resolve input path %s: %w", root, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil, fmt.Errorf("%w: %s", ErrInputPathNotFound, root)
		}
		return nil, nil, fmt.Errorf("stat input path %s: %w", root, err)
	}

	if !info.IsDir() {
		if ok, _ := filepath.Match(pattern, filepath.Base(abs)); ok {
			return []ReportFile{{Path: abs, Dir: filepath.Dir(abs)}}, nil, nil
		}
		return nil, nil, nil
	}

	files, skipped, err := walkReports(os.DirFS(abs), abs, pattern)
	if err != nil {
		return nil, nil, fmt.Errorf("walk input path %s: %w", root, err)
	}
	return files, skipped, nil
}

// walkReports walks fsys, which is rooted at the absolute directory abs.
// Only a failure to read the root itself is returned as an error.
func walkReports(fsys fs.FS, abs, pattern string) ([]ReportFile, []Unreadable, error) {
	var files []ReportFile
	var skipped []Unreadable
	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		path := filepath.Join(abs, filepath.FromSlash(p))
		if err != nil {
			if p == "." {
				return err
			}
			skipped = append(skipped, Unreadable{Path: path, Err: err})
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if ok, _ := filepath.Match(pattern, d.Name()); ok {
			files = append(files, ReportFile{Path: path, Dir: filepath.Dir(path)})
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, skipped, nil
}

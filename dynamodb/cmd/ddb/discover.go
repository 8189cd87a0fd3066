package main

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/antipr000/NobaServer-sub003/dynamodb/schemafile"
)

const schemaFilename = "schema_dynamodb.yaml"

// discoverSchemas finds all schema_dynamodb.yaml files under dir.
// It tries git ls-files first and falls back to walking the tree.
func discoverSchemas(dir string) ([]string, error) {
	if files, err := discoverWithGitLsFiles(dir); err == nil && len(files) > 0 {
		return files, nil
	}
	return discoverWithWalk(dir)
}

func discoverWithGitLsFiles(dir string) ([]string, error) {
	if _, err := exec.LookPath("git"); err != nil {
		return nil, err
	}
	cmd := exec.Command("git", "ls-files", "--cached", "--others", "--exclude-standard")
	cmd.Dir = dir
	output, err := cmd.Output()
	if err != nil {
		return nil, err
	}

	var files []string
	scanner := bufio.NewScanner(bytes.NewReader(output))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if filepath.Base(line) == schemaFilename {
			files = append(files, filepath.Join(dir, line))
		}
	}
	return files, scanner.Err()
}

func discoverWithWalk(dir string) ([]string, error) {
	var files []string

	skipDirs := map[string]bool{
		".git":         true,
		"node_modules": true,
		"vendor":       true,
		".ddb":         true,
	}

	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if skipDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Name() == schemaFilename {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// loadSchemas reads path, or every discovered schema file under dir when
// path is empty, into one document.
func loadSchemas(path, dir string) (*schemafile.Document, error) {
	paths := []string{path}
	if path == "" {
		found, err := discoverSchemas(dir)
		if err != nil {
			return nil, err
		}
		if len(found) == 0 {
			return nil, fmt.Errorf("no schema given and no %s found under %s", schemaFilename, dir)
		}
		paths = found
	}

	merged := &schemafile.Document{}
	for _, p := range paths {
		doc, err := schemafile.LoadFile(p)
		if err != nil {
			return nil, err
		}
		merged.Tables = append(merged.Tables, doc.Tables...)
		merged.Entities = append(merged.Entities, doc.Entities...)
	}
	return merged, nil
}

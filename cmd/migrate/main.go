package main

import (
	"bufio"
	"crypto/sha256"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// frontmatter holds the digest fields the migrations need
type frontmatter struct {
	Title      string   `yaml:"title"`
	ArticleIDs []string `yaml:"article_ids"`
}

var hashSuffixRegex = regexp.MustCompile(`-([0-9a-f]{8})\.md$`)

func main() {
	if len(os.Args) < 3 {
		log.Fatal("Usage: migrate <add-hashes|remove-duplicates> <digests-directory>")
	}

	command := os.Args[1]
	digestsDir := os.Args[2]

	switch command {
	case "add-hashes":
		if err := addHashes(digestsDir); err != nil {
			log.Fatal(err)
		}
	case "remove-duplicates":
		if err := removeDuplicates(digestsDir, bufio.NewReader(os.Stdin)); err != nil {
			log.Fatal(err)
		}
	default:
		log.Fatalf("Unknown command %q", command)
	}
}

func addHashes(digestsDir string) error {
	return filepath.WalkDir(digestsDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // Continue on errors
		}

		if !d.IsDir() && strings.HasSuffix(path, ".md") {
			if err := processFile(path); err != nil {
				log.Printf("Error processing %s: %v", path, err)
			}
		}

		return nil
	})
}

func processFile(filePath string) error {
	fileName := filepath.Base(filePath)
	if extractHash(fileName) != "" {
		log.Printf("File %s already has hash, skipping", fileName)
		return nil
	}

	content, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("reading file %s: %w", filePath, err)
	}

	meta, err := parseFrontmatter(string(content))
	if err != nil {
		return fmt.Errorf("parsing frontmatter of %s: %w", filePath, err)
	}
	if len(meta.ArticleIDs) == 0 {
		log.Printf("No article_ids found in %s, skipping", filePath)
		return nil
	}

	hash := digestHash(meta.ArticleIDs)
	newFileName := fmt.Sprintf("%s-%s.md", strings.TrimSuffix(fileName, ".md"), hash)
	newFilePath := filepath.Join(filepath.Dir(filePath), newFileName)

	log.Printf("Renaming %s -> %s", fileName, newFileName)
	return os.Rename(filePath, newFilePath)
}

// parseFrontmatter decodes the YAML block between the leading --- markers
func parseFrontmatter(content string) (*frontmatter, error) {
	rest, ok := strings.CutPrefix(content, "---\n")
	if !ok {
		return nil, fmt.Errorf("missing frontmatter")
	}
	block, _, ok := strings.Cut(rest, "\n---")
	if !ok {
		return nil, fmt.Errorf("unterminated frontmatter")
	}

	var meta frontmatter
	if err := yaml.Unmarshal([]byte(block), &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// digestHash must match the hash used when digests are written
func digestHash(ids []string) string {
	sorted := slices.Clone(ids)
	slices.Sort(sorted)
	h := sha256.Sum256([]byte(strings.Join(sorted, "\n")))
	return fmt.Sprintf("%x", h)[:8]
}

func extractHash(fileName string) string {
	matches := hashSuffixRegex.FindStringSubmatch(fileName)
	if len(matches) >= 2 {
		return matches[1]
	}
	return ""
}

func removeDuplicates(digestsDir string, reader *bufio.Reader) error {
	hashToFiles := make(map[string][]string)

	if err := filepath.WalkDir(digestsDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // Continue on errors
		}

		if !d.IsDir() && strings.HasSuffix(path, ".md") {
			if hash := extractHash(filepath.Base(path)); hash != "" {
				hashToFiles[hash] = append(hashToFiles[hash], path)
			}
		}
		return nil
	}); err != nil {
		return fmt.Errorf("walking directory: %w", err)
	}

	totalRemoved := 0
	for hash, files := range hashToFiles {
		if len(files) <= 1 {
			continue
		}

		fmt.Printf("\nFound %d digests of the same articles (hash %s):\n", len(files), hash)
		for i, file := range files {
			fileName := filepath.Base(file)
			if i == 0 {
				fmt.Printf("  KEEP: %s\n", fileName)
				continue
			}

			if confirmDelete(reader, file) {
				if err := os.Remove(file); err != nil {
					log.Printf("Error removing %s: %v", file, err)
				} else {
					totalRemoved++
					fmt.Printf("  REMOVED: %s\n", fileName)
				}
			} else {
				fmt.Printf("  SKIP: %s\n", fileName)
			}
		}
	}

	fmt.Printf("\nRemoved %d duplicate digests\n", totalRemoved)
	return nil
}

func confirmDelete(reader *bufio.Reader, path string) bool {
	for {
		fmt.Printf("  DELETE %s? [y/N]: ", filepath.Base(path))
		input, err := reader.ReadString('\n')
		if err != nil {
			log.Printf("Error reading input: %v", err)
			return false
		}
		response := strings.ToLower(strings.TrimSpace(input))
		switch response {
		case "y", "yes":
			return true
		case "", "n", "no":
			return false
		default:
			fmt.Println("  Please enter y or n.")
		}
	}
}

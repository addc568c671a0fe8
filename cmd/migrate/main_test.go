package main

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sampleDigest = `---
title: "Chips and models"
approved: true
article_ids:
  - "b"
  - "a"
---

# Chips and models

Body.
`

func TestParseFrontmatter(t *testing.T) {
	meta, err := parseFrontmatter(sampleDigest)
	if err != nil {
		t.Fatalf("parseFrontmatter() error = %v", err)
	}
	if meta.Title != "Chips and models" {
		t.Errorf("Title = %q", meta.Title)
	}
	if len(meta.ArticleIDs) != 2 || meta.ArticleIDs[0] != "b" {
		t.Errorf("ArticleIDs = %v", meta.ArticleIDs)
	}

	for _, bad := range []string{"# No frontmatter", "---\ntitle: open"} {
		if _, err := parseFrontmatter(bad); err == nil {
			t.Errorf("parseFrontmatter(%q) expected error", bad)
		}
	}
}

func TestDigestHashIgnoresOrder(t *testing.T) {
	if digestHash([]string{"a", "b"}) != digestHash([]string{"b", "a"}) {
		t.Error("article order changed the hash")
	}
	if got := len(digestHash([]string{"a"})); got != 8 {
		t.Errorf("hash length = %d, want 8", got)
	}
}

func TestExtractHash(t *testing.T) {
	tests := []struct {
		fileName string
		expected string
	}{
		{"chips-and-models-0123abcd.md", "0123abcd"},
		{"chips-and-models.md", ""},
		{"chips-0123ABCD.md", ""},
		{"chips-0123abcd.html", ""},
	}

	for _, tt := range tests {
		t.Run(tt.fileName, func(t *testing.T) {
			if got := extractHash(tt.fileName); got != tt.expected {
				t.Errorf("extractHash() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestAddHashes(t *testing.T) {
	dir := t.TempDir()
	nested := filepath.Join(dir, "2025", "09")
	os.MkdirAll(nested, 0755)
	os.WriteFile(filepath.Join(nested, "chips-and-models.md"), []byte(sampleDigest), 0644)
	os.WriteFile(filepath.Join(nested, "no-ids.md"), []byte("---\ntitle: x\n---\n"), 0644)

	if err := addHashes(dir); err != nil {
		t.Fatalf("addHashes() error = %v", err)
	}

	renamed := filepath.Join(nested, "chips-and-models-"+digestHash([]string{"a", "b"})+".md")
	if _, err := os.Stat(renamed); err != nil {
		t.Errorf("digest not renamed to %s: %v", renamed, err)
	}
	if _, err := os.Stat(filepath.Join(nested, "no-ids.md")); err != nil {
		t.Error("digest without article ids should be left alone")
	}

	// a second run leaves hashed files alone
	if err := addHashes(dir); err != nil {
		t.Fatalf("second addHashes() error = %v", err)
	}
	if _, err := os.Stat(renamed); err != nil {
		t.Errorf("hashed digest renamed again: %v", err)
	}
}

func TestRemoveDuplicates(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"first-0123abcd.md", "second-0123abcd.md", "third-0123abcd.md", "other-ffff0000.md"} {
		os.WriteFile(filepath.Join(dir, name), []byte("digest"), 0644)
	}

	// delete the first duplicate, keep the second
	if err := removeDuplicates(dir, bufio.NewReader(strings.NewReader("y\nmaybe\nn\n"))); err != nil {
		t.Fatalf("removeDuplicates() error = %v", err)
	}

	entries, _ := os.ReadDir(dir)
	var remaining []string
	for _, entry := range entries {
		remaining = append(remaining, entry.Name())
	}
	if len(remaining) != 3 {
		t.Fatalf("remaining files = %v, want 3", remaining)
	}
	if _, err := os.Stat(filepath.Join(dir, "other-ffff0000.md")); err != nil {
		t.Error("unique digest was removed")
	}
}

func TestConfirmDelete(t *testing.T) {
	tests := []struct {
		input    string
		expected bool
	}{
		{"y\n", true},
		{"YES\n", true},
		{"\n", false},
		{"no\n", false},
		{"what\ny\n", true},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(strings.TrimSpace(tt.input), func(t *testing.T) {
			if got := confirmDelete(bufio.NewReader(strings.NewReader(tt.input)), "digest.md"); got != tt.expected {
				t.Errorf("confirmDelete(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

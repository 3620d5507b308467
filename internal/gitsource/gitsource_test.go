package gitsource

import (
	"path/filepath"
	"testing"
)

func TestLocalPath(t *testing.T) {
	testCases := []struct {
		name     string
		url      string
		expected string
		wantErr  bool
	}{
		{
			name:     "https URL",
			url:      "https://github.com/example/cards.git",
			expected: filepath.Join("repos", "github.com", "example", "cards"),
		},
		{
			name:     "https URL without .git",
			url:      "https://github.com/example/cards",
			expected: filepath.Join("repos", "github.com", "example", "cards"),
		},
		{
			name:     "scp-style URL",
			url:      "git@github.com:example/cards.git",
			expected: filepath.Join("repos", "github.com", "example", "cards"),
		},
		{
			name:    "unparseable",
			url:     "not a url",
			wantErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := LocalPath("repos", tc.url)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected an error for %q", tc.url)
				}
				return
			}
			if err != nil {
				t.Fatalf("LocalPath returned an unexpected error: %v", err)
			}
			if got != tc.expected {
				t.Errorf("expected %q, got %q", tc.expected, got)
			}
		})
	}
}

func TestRepoName(t *testing.T) {
	testCases := []struct {
		url      string
		expected string
	}{
		{"https://github.com/example/spanish-vocab.git", "spanish-vocab"},
		{"git@github.com:example/kanji.git", "kanji"},
		{"https://github.com/example/cards/", "cards"},
		{"", "deck"},
	}

	for _, tc := range testCases {
		if got := RepoName(tc.url); got != tc.expected {
			t.Errorf("RepoName(%q) = %q, expected %q", tc.url, got, tc.expected)
		}
	}
}

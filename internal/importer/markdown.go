package importer

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/conorfennell/deckserve/internal/domain"
	"github.com/conorfennell/deckserve/internal/gitsource"
	"github.com/conorfennell/deckserve/internal/markdown"
)

// ImportGit syncs a git repository of markdown card sources and
// imports its cards as a new deck named after the repository.
func (p *Pipeline) ImportGit(ctx context.Context, repoURL string) (*Result, error) {
	localPath, err := gitsource.LocalPath(p.reposDir, repoURL)
	if err != nil {
		return nil, err
	}

	if err := gitsource.Sync(p.log, repoURL, localPath); err != nil {
		return nil, err
	}

	pkg, err := p.markdownPackage(localPath, gitsource.RepoName(repoURL))
	if err != nil {
		return nil, err
	}

	return p.persist(ctx, pkg)
}

// markdownPackage walks a directory of .md files and builds the
// intermediate representation: one note per parsed card, identified by
// its content hash, linked one-to-one to a source card. Files that
// fail to parse are logged and skipped.
func (p *Pipeline) markdownPackage(dir, name string) (*domain.Package, error) {
	pkg := &domain.Package{Name: name}
	seen := make(map[string]bool)

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(strings.ToLower(d.Name()), ".md") {
			return nil
		}

		cards, parseErr := markdown.ParseFile(path)
		if parseErr != nil {
			p.log.Warn().Err(parseErr).Str("file", path).Msg("failed to parse markdown source")
			return nil
		}

		for _, card := range cards {
			hash := markdown.Hash(card)
			if seen[hash] {
				continue
			}
			seen[hash] = true

			pkg.Notes = append(pkg.Notes, domain.Note{
				ID: hash,
				Fields: map[string]string{
					frontField: card.Front,
					backField:  card.Back,
					"Context":  card.Context,
				},
			})
			pkg.Cards = append(pkg.Cards, domain.SourceCard{ID: hash, NoteID: hash})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk markdown sources in %s: %w", dir, err)
	}

	return pkg, nil
}

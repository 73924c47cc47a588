// Package catalog loads the vocabulary corpus into the word store.
//
// The corpus is a tab-separated file with one word per line:
//
//	surface<TAB>part_of_speech<TAB>frequency_rank
//
// Lines starting with '#' and blank lines are skipped. The catalog is
// reference data: loading is idempotent and existing words are left alone.
package catalog

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/wortweg/wortweg-api/internal/domain"
	"github.com/wortweg/wortweg-api/internal/store"
)

// ErrEmptyCorpus is returned when the corpus contains no words.
var ErrEmptyCorpus = errors.New("corpus contains no words")

// Parse reads a corpus in the tab-separated format and returns the words it
// defines, all tagged with the given language. Duplicate (surface, part of
// speech) lines keep the first occurrence.
func Parse(r io.Reader, language string) ([]*domain.Word, error) {
	type identity struct {
		surface string
		pos     string
	}

	var words []*domain.Word
	seen := make(map[identity]struct{})

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Split(line, "\t")
		if len(fields) != 3 {
			return nil, fmt.Errorf("corpus line %d: expected 3 tab-separated fields, got %d", lineNo, len(fields))
		}

		rank, err := strconv.Atoi(strings.TrimSpace(fields[2]))
		if err != nil {
			return nil, fmt.Errorf("corpus line %d: invalid frequency rank %q", lineNo, fields[2])
		}

		surface := strings.TrimSpace(fields[0])
		pos := strings.TrimSpace(fields[1])
		key := identity{surface: surface, pos: pos}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}

		word, err := domain.NewWord(surface, pos, rank, language)
		if err != nil {
			return nil, fmt.Errorf("corpus line %d: %w", lineNo, err)
		}
		words = append(words, word)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading corpus: %w", err)
	}

	if len(words) == 0 {
		return nil, ErrEmptyCorpus
	}

	return words, nil
}

// LoadFile parses the corpus file at path. See Parse for the format.
func LoadFile(path, language string) ([]*domain.Word, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening corpus file: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	return Parse(f, language)
}

// Sync loads the corpus file at path and inserts any words the store does
// not yet have. Already known words are skipped by the store, so Sync is
// safe to run on every startup.
func Sync(ctx context.Context, wordStore store.WordStore, path, language string, log *slog.Logger) error {
	words, err := LoadFile(path, language)
	if err != nil {
		return err
	}

	if err := wordStore.CreateMultiple(ctx, words); err != nil {
		return fmt.Errorf("syncing corpus into word store: %w", err)
	}

	log.Info("vocabulary corpus synced",
		slog.String("path", path),
		slog.String("language", language),
		slog.Int("word_count", len(words)))
	return nil
}

// Package syncer implements the resource synchronization algorithm: diffing
// each localized .resx file against the base file's ordered key set,
// resolving missing keys (verbatim copy or batched AI translation), and
// rewriting the file in canonical base order.
//
// Processing is strictly sequential — one file at a time, one batch at a
// time — and failure-isolated: a failed batch never blocks sibling batches,
// a failed file never aborts the run. Only a missing or unparsable base
// file is fatal.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/resxkit/resxkit/resxfile"
)

// Translator is the narrow interface to the translation provider. A batch
// of key→source-text pairs goes in; a key→translated-text mapping (or an
// error meaning "batch unresolved") comes out.
type Translator interface {
	TranslateBatch(ctx context.Context, items map[string]string, targetLang string) (map[string]string, error)
}

// ---------------------------------------------------------------------------
// Options and results
// ---------------------------------------------------------------------------

// DefaultBatchSize is how many keys are sent per translation request.
const DefaultBatchSize = 20

// Options controls the synchronization behavior.
type Options struct {
	// BatchSize is the maximum number of keys per translation request
	// (default DefaultBatchSize).
	BatchSize int
	// NoTranslate holds patterns matched against missing key names;
	// matching keys are copied verbatim from the base file instead of
	// being sent for translation.
	NoTranslate []*regexp.Regexp
	// DryRun reports what would be translated without calling the
	// provider or writing any file.
	DryRun bool
	// OnLog emits progress messages.
	OnLog func(format string, args ...any)
	// OnWarn emits per-key warnings (duplicate/unexpected/orphaned keys).
	OnWarn func(format string, args ...any)
	// OnError emits batch- and file-level error messages.
	OnError func(format string, args ...any)
}

func (o *Options) log(format string, args ...any) {
	if o.OnLog != nil {
		o.OnLog(format, args...)
	}
}

func (o *Options) warn(format string, args ...any) {
	if o.OnWarn != nil {
		o.OnWarn(format, args...)
	} else {
		o.log(format, args...)
	}
}

func (o *Options) logError(format string, args ...any) {
	if o.OnError != nil {
		o.OnError(format, args...)
	} else {
		o.log(format, args...)
	}
}

func (o *Options) effectiveBatchSize() int {
	if o.BatchSize > 0 {
		return o.BatchSize
	}
	return DefaultBatchSize
}

// Status is the terminal state of one localized file.
type Status string

const (
	// StatusOK: every missing key was resolved (or none were missing).
	StatusOK Status = "ok"
	// StatusPartial: some batches failed or some keys stayed missing;
	// the file was still rewritten with whatever was resolved.
	StatusPartial Status = "partial"
	// StatusFailed: the rewrite itself failed.
	StatusFailed Status = "failed"
)

// Result summarizes the outcome for one localized file.
type Result struct {
	// File is the localized file name (base name, not full path).
	File string
	// Lang is the language code from the file name.
	Lang string
	// LangName is the label used for translation (file label or Lang).
	LangName string
	// Status is the terminal state.
	Status Status
	// Missing is how many base keys were absent before the run.
	Missing int
	// Copied is how many keys were copied verbatim (no-translate).
	Copied int
	// Translated is how many keys the provider resolved.
	Translated int
	// Unresolved is how many keys are still missing after the run.
	Unresolved int
}

// ---------------------------------------------------------------------------
// Target discovery
// ---------------------------------------------------------------------------

// Target is one localized file to synchronize.
type Target struct {
	// Path is the full path to the localized file.
	Path string
	// Lang is the language code extracted from the file name.
	Lang string
}

// Targets lists the localized files in dir that follow the
// <prefix>.<langCode>.resx naming convention for the given base file name
// (e.g. base "Strings.resx" matches "Strings.ru.resx" and
// "Strings.pt-BR.resx"). Files with other names are ignored entirely.
// The list is sorted for deterministic runs.
func Targets(dir, baseName string) ([]Target, error) {
	prefix := strings.TrimSuffix(baseName, ".resx")
	localizedRe := regexp.MustCompile(`^` + regexp.QuoteMeta(prefix) + `\.(.+)\.resx$`)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", dir, err)
	}

	var targets []Target
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		m := localizedRe.FindStringSubmatch(entry.Name())
		if m == nil {
			continue
		}
		targets = append(targets, Target{
			Path: filepath.Join(dir, entry.Name()),
			Lang: m[1],
		})
	}
	sort.Slice(targets, func(i, j int) bool { return targets[i].Lang < targets[j].Lang })
	return targets, nil
}

// ---------------------------------------------------------------------------
// Syncer
// ---------------------------------------------------------------------------

// Syncer drives the per-file synchronization against one base file.
type Syncer struct {
	translator Translator
	opts       Options

	// Base key order and values, loaded once per run. The base file is
	// the ordering authority for every localized file.
	baseKeys []string
	baseMap  map[string]string
}

// New loads the base resource file and builds a Syncer. A missing or
// unparsable base file is an error: no localized file can be correctly
// ordered without it.
func New(basePath string, translator Translator, opts Options) (*Syncer, error) {
	base, err := resxfile.ParseFile(basePath)
	if err != nil {
		return nil, fmt.Errorf("base resource file: %w", err)
	}
	return &Syncer{
		translator: translator,
		opts:       opts,
		baseKeys:   base.Keys(),
		baseMap:    base.Map(),
	}, nil
}

// BaseKeyCount returns the number of keys in the base file.
func (s *Syncer) BaseKeyCount() int { return len(s.baseKeys) }

// SyncAll processes every target in order. One file's failure never stops
// the run; the returned error is only a context cancellation.
func (s *Syncer) SyncAll(ctx context.Context, targets []Target) ([]Result, error) {
	results := make([]Result, 0, len(targets))
	for _, t := range targets {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		results = append(results, s.SyncFile(ctx, t))
	}
	return results, nil
}

// SyncFile synchronizes one localized file:
//
//  1. read the language label and existing entries (malformed file counts
//     as zero existing entries, with a logged parse error),
//  2. diff against the base key order,
//  3. copy no-translate keys verbatim, translate the rest in batches,
//  4. rewrite the file in base order with the label re-attached.
//
// The file is rewritten even when nothing was missing, so every run leaves
// every localized file in canonical key order.
func (s *Syncer) SyncFile(ctx context.Context, t Target) Result {
	res := Result{File: filepath.Base(t.Path), Lang: t.Lang}

	label := resxfile.Label(t.Path)
	res.LangName = label
	if res.LangName == "" {
		res.LangName = t.Lang
	}

	s.opts.log("Processing: %s (%s)", res.File, res.LangName)

	existing := s.loadExisting(t.Path)
	s.warnOrphans(existing, res.File)

	var missing []string
	for _, key := range s.baseKeys {
		if _, ok := existing[key]; !ok {
			missing = append(missing, key)
		}
	}
	res.Missing = len(missing)

	if len(missing) == 0 {
		s.opts.log("  No missing resources, normalizing order")
		return s.finish(t, res, existing, label)
	}

	s.opts.log("  Found %d missing resources", len(missing))

	copyKeys, translateKeys := s.partition(missing)
	for _, key := range copyKeys {
		existing[key] = s.baseMap[key]
		s.opts.log("  Copying non-translatable key: %s", key)
	}
	res.Copied = len(copyKeys)

	if s.opts.DryRun {
		s.opts.log("  Dry run: %d key(s) would be translated", len(translateKeys))
		res.Status = StatusOK
		if len(translateKeys) > 0 {
			res.Status = StatusPartial
			res.Unresolved = len(translateKeys)
		}
		return res
	}

	res.Translated = s.translateMissing(ctx, translateKeys, res.LangName, res.File, existing)
	res.Unresolved = len(translateKeys) - res.Translated

	return s.finish(t, res, existing, label)
}

// loadExisting reads the current key→value mapping of a localized file.
// A missing file means a fresh language (empty mapping); a malformed file
// is reported but likewise treated as empty rather than aborting the file.
func (s *Syncer) loadExisting(path string) map[string]string {
	f, err := resxfile.ParseFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.opts.logError("  Parse error in %s: %v (treating as empty)", filepath.Base(path), err)
		}
		return make(map[string]string)
	}
	return f.Map()
}

// warnOrphans reports keys present in the localized file but absent from
// the base file. They are dropped on rewrite (the write is a base-key
// projection); the warning makes the drop visible.
func (s *Syncer) warnOrphans(existing map[string]string, file string) {
	var orphans []string
	for key := range existing {
		if _, ok := s.baseMap[key]; !ok {
			orphans = append(orphans, key)
		}
	}
	sort.Strings(orphans)
	for _, key := range orphans {
		s.opts.warn("  Warning: %s has key %q not present in base file, dropping on rewrite", file, key)
	}
}

// partition splits missing keys into verbatim-copy keys (matching a
// no-translate pattern) and keys to translate, preserving base order
// within each group.
func (s *Syncer) partition(missing []string) (copyKeys, translateKeys []string) {
	for _, key := range missing {
		if s.isNoTranslate(key) {
			copyKeys = append(copyKeys, key)
		} else {
			translateKeys = append(translateKeys, key)
		}
	}
	return
}

func (s *Syncer) isNoTranslate(key string) bool {
	for _, re := range s.opts.NoTranslate {
		if re.MatchString(key) {
			return true
		}
	}
	return false
}

// translateMissing sends translateKeys to the provider in consecutive
// batches and merges the results into existing, enforcing the reconcile
// rules: never overwrite a key that already has a value, never accept a
// key that was not requested. Returns the number of keys resolved.
func (s *Syncer) translateMissing(ctx context.Context, translateKeys []string, langName, file string, existing map[string]string) int {
	if len(translateKeys) == 0 {
		return 0
	}

	batchSize := s.opts.effectiveBatchSize()
	numBatches := (len(translateKeys) + batchSize - 1) / batchSize
	resolved := 0

	for i := 0; i < numBatches; i++ {
		if ctx.Err() != nil {
			return resolved
		}

		start := i * batchSize
		end := min(start+batchSize, len(translateKeys))
		batchKeys := translateKeys[start:end]

		request := make(map[string]string, len(batchKeys))
		requested := make(map[string]bool, len(batchKeys))
		for _, key := range batchKeys {
			request[key] = s.baseMap[key]
			requested[key] = true
		}

		s.opts.log("  Translating batch %d/%d (%d items)...", i+1, numBatches, len(request))

		result, err := s.translator.TranslateBatch(ctx, request, langName)
		if err != nil {
			// Batch stays unresolved; its keys are still missing and
			// will be retried on the next run.
			s.opts.logError("  Failed to translate batch %d/%d of %s: %v", i+1, numBatches, file, err)
			continue
		}

		keys := make([]string, 0, len(result))
		for key := range result {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		for _, key := range keys {
			if _, present := existing[key]; present {
				s.opts.warn("  Warning: provider returned already existing key %q, ignoring", key)
				continue
			}
			if !requested[key] {
				s.opts.warn("  Warning: provider returned unexpected key %q, ignoring", key)
				continue
			}
			existing[key] = result[key]
			resolved++
		}
		s.opts.log("  Batch %d/%d done", i+1, numBatches)
	}

	return resolved
}

// finish rewrites the localized file as a base-order projection of the
// merged entries and fills in the terminal status.
func (s *Syncer) finish(t Target, res Result, existing map[string]string, label string) Result {
	if err := resxfile.WriteFile(t.Path, existing, s.baseKeys, label); err != nil {
		s.opts.logError("  Writing %s: %v", res.File, err)
		res.Status = StatusFailed
		return res
	}

	if res.Unresolved > 0 {
		res.Status = StatusPartial
		s.opts.log("  %s updated (%d key(s) still missing)", res.File, res.Unresolved)
	} else {
		res.Status = StatusOK
		s.opts.log("  %s updated", res.File)
	}
	return res
}

package docdrift

import (
	"context"
	"fmt"
	"os"
	"sync"
	"unicode/utf8"
)

// parseResult is what a worker produces for one source file.
type parseResult struct {
	file    sourceFile
	module  *Module
	warning *Warning
}

// indexFilesParallel builds the index in two phases:
//
//	Phase A (parallel): read and parse each file via a worker pool.
//	Phase B (serial):   insert entries into the index mapping.
//
// Each file writes a distinct key, so the single inserter only has to guard
// against duplicate module paths.
func indexFilesParallel(ctx context.Context, root string, files []sourceFile, cfg indexConfig) (*Index, []Warning, error) {
	idx := newIndex(root)
	if len(files) == 0 {
		return idx, nil, nil
	}

	// ---- Phase A: parallel parsing ----
	numWorkers := min(cfg.workers, len(files))
	if numWorkers < 1 {
		numWorkers = 1
	}

	workCh := make(chan sourceFile, len(files))
	for _, f := range files {
		workCh <- f
	}
	close(workCh)

	resultCh := make(chan parseResult, len(files))

	var wg sync.WaitGroup
	for range numWorkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for f := range workCh {
				if ctx.Err() != nil {
					continue
				}
				resultCh <- parseSourceFile(ctx, f, cfg.maxFileSize)
			}
		}()
	}

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	// ---- Phase B: serial insert ----
	var (
		warnings []Warning
		firstErr error
	)
	for res := range resultCh {
		if res.warning != nil {
			warnings = append(warnings, *res.warning)
		}
		if res.module == nil || firstErr != nil {
			continue
		}
		if err := idx.insert(res.module); err != nil {
			firstErr = err
		}
	}
	if firstErr != nil {
		return nil, nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, fmt.Errorf("docdrift: build index: %w", err)
	}
	return idx, warnings, nil
}

// parseSourceFile reads and scans one module. Unreadable, oversized and
// non-UTF-8 files produce only a warning. Files with syntax errors keep the
// bindings of their well-formed statements but are marked open, since
// bindings inside the broken region cannot be seen.
func parseSourceFile(ctx context.Context, f sourceFile, maxFileSize int64) parseResult {
	res := parseResult{file: f}
	skip := func(reason string) parseResult {
		res.warning = &Warning{Kind: WarnSkippedFile, File: f.path, Message: reason}
		return res
	}

	info, err := os.Stat(f.path)
	if err != nil {
		return skip(err.Error())
	}
	if info.Size() > maxFileSize {
		return skip(fmt.Sprintf("%v: %d bytes", ErrFileTooLarge, info.Size()))
	}
	content, err := os.ReadFile(f.path)
	if err != nil {
		return skip(err.Error())
	}
	if !utf8.Valid(content) {
		return skip("invalid UTF-8")
	}

	scan, err := scanModule(ctx, content)
	if err != nil {
		return skip(err.Error())
	}

	res.module = &Module{
		Path:      f.module,
		File:      f.path,
		IsPackage: f.isPackage,
		Open:      scan.open,
		Symbols:   scan.symbols,
	}
	if scan.syntax != nil {
		res.module.Open = true
		res.warning = &Warning{
			Kind:    WarnPartialParse,
			File:    f.path,
			Line:    scan.syntax.Line,
			Message: scan.syntax.Message,
		}
	}
	return res
}
